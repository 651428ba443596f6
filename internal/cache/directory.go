package cache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"obligations/internal/core"
	"obligations/internal/storage"
)

// Directory caches category, project and supplier lookups. Concurrent misses
// for the same id share a single backend call.
type Directory struct {
	next       storage.Directory
	categories *LRU[core.Category]
	projects   *LRU[core.Project]
	suppliers  *LRU[core.Supplier]
	group      singleflight.Group
}

var _ storage.Directory = (*Directory)(nil)

func NewDirectory(next storage.Directory, size int, ttl time.Duration) *Directory {
	return &Directory{
		next:       next,
		categories: NewLRU[core.Category](size, ttl),
		projects:   NewLRU[core.Project](size, ttl),
		suppliers:  NewLRU[core.Supplier](size, ttl),
	}
}

// Cleaners exposes the underlying caches for a Janitor.
func (d *Directory) Cleaners() []Cleaner {
	return []Cleaner{d.categories, d.projects, d.suppliers}
}

func (d *Directory) GetCategory(ctx context.Context, id string) (core.Category, error) {
	return load(ctx, d, d.categories, "category:"+id, func(ctx context.Context) (core.Category, error) {
		return d.next.GetCategory(ctx, id)
	})
}

func (d *Directory) GetProject(ctx context.Context, id string) (core.Project, error) {
	return load(ctx, d, d.projects, "project:"+id, func(ctx context.Context) (core.Project, error) {
		return d.next.GetProject(ctx, id)
	})
}

func (d *Directory) GetSupplier(ctx context.Context, id string) (core.Supplier, error) {
	return load(ctx, d, d.suppliers, "supplier:"+id, func(ctx context.Context) (core.Supplier, error) {
		return d.next.GetSupplier(ctx, id)
	})
}

// Errors, NotFound included, are never cached.
func load[T any](ctx context.Context, d *Directory, c *LRU[T], key string, fetch func(context.Context) (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err, _ := d.group.Do(key, func() (any, error) {
		v, err := fetch(ctx)
		if err != nil {
			return v, err
		}
		c.Set(key, v)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
