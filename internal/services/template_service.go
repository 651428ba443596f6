// Package services implements the recurring obligation engine: the template
// store, the occurrence generator, the state machine and the ledger linker.
package services

import (
	"context"
	"log/slog"

	"obligations/internal/core"
	"obligations/internal/log"
	"obligations/internal/storage"
)

// TemplateService validates and persists recurring templates.
type TemplateService struct {
	store storage.Store
	clock core.Clock
	newID func() string
}

func NewTemplateService(store storage.Store, clock core.Clock, newID func() string) *TemplateService {
	return &TemplateService{store: store, clock: clock, newID: newID}
}

// Create assigns an id and timestamps; any id on the input is ignored.
func (s *TemplateService) Create(ctx context.Context, t core.Template) (core.Template, error) {
	t.Normalize()
	if err := t.Validate(); err != nil {
		return core.Template{}, err
	}

	now := s.clock.Now()
	t.ID = s.newID()
	t.CreatedAt, t.UpdatedAt = now, now

	created, err := s.store.Templates().CreateTemplate(ctx, t)
	if err != nil {
		return core.Template{}, core.Dependency("template.create", err)
	}

	slog.InfoContext(ctx, "Template created", log.NewFields().
		WithComponent(log.ComponentTemplate).
		WithTemplate(created).ToSlice()...)
	return created, nil
}

func (s *TemplateService) Get(ctx context.Context, id string) (core.Template, error) {
	t, err := s.store.Templates().GetTemplate(ctx, id)
	if err != nil {
		return core.Template{}, core.Dependency("template.get", err)
	}
	return t, nil
}

// Update merges the patch and re-validates the whole template.
func (s *TemplateService) Update(ctx context.Context, id string, patch core.TemplatePatch) (core.Template, error) {
	var updated core.Template
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		current, err := tx.Templates().GetTemplate(ctx, id)
		if err != nil {
			return err
		}
		next := current.Apply(patch)
		next.Normalize()
		if err := next.Validate(); err != nil {
			return err
		}
		next.UpdatedAt = s.clock.Now()
		updated, err = tx.Templates().UpdateTemplate(ctx, next)
		return err
	})
	if err != nil {
		return core.Template{}, core.Dependency("template.update", err)
	}

	slog.InfoContext(ctx, "Template updated", log.NewFields().
		WithComponent(log.ComponentTemplate).
		WithTemplate(updated).ToSlice()...)
	return updated, nil
}

// Delete removes the template only. Occurrences already generated from it
// are historical records and stay untouched.
func (s *TemplateService) Delete(ctx context.Context, id string) error {
	if err := s.store.Templates().DeleteTemplate(ctx, id); err != nil {
		return core.Dependency("template.delete", err)
	}
	slog.InfoContext(ctx, "Template deleted", log.FieldTemplateID, id)
	return nil
}

func (s *TemplateService) List(ctx context.Context, f core.TemplateFilter) ([]core.Template, error) {
	list, err := s.store.Templates().ListTemplates(ctx, f)
	if err != nil {
		return nil, core.Dependency("template.list", err)
	}
	return list, nil
}
