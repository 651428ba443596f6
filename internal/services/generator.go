package services

import (
	"context"
	"errors"
	"log/slog"

	"obligations/internal/core"
	"obligations/internal/lock"
	"obligations/internal/log"
	"obligations/internal/storage"
)

// Generator creates the occurrence of a template for one month.
type Generator struct {
	store  storage.Store
	locker lock.Locker
	clock  core.Clock
	newID  func() string
}

func NewGenerator(store storage.Store, locker lock.Locker, clock core.Clock, newID func() string) *Generator {
	if locker == nil {
		locker = lock.Noop{}
	}
	return &Generator{store: store, locker: locker, clock: clock, newID: newID}
}

// Generate inserts the occurrence of templateID for month m. A second call
// for the same pair fails with core.ErrDuplicateOccurrence whether the row
// already existed or a concurrent caller won the insert.
func (g *Generator) Generate(ctx context.Context, templateID string, m core.Month) (core.Occurrence, error) {
	if m.IsZero() {
		return core.Occurrence{}, core.NewValidationError("month", "month is required")
	}

	tpl, err := g.store.Templates().GetTemplate(ctx, templateID)
	if err != nil {
		return core.Occurrence{}, core.Dependency("occurrence.generate", err)
	}

	release, err := g.locker.Acquire(ctx, lock.GenerationKey(templateID, m.String()))
	if err != nil {
		if errors.Is(err, lock.ErrNotObtained) {
			slog.WarnContext(ctx, "Generation lock busy",
				log.FieldTemplateID, templateID, log.FieldMonth, m.String())
			// The holder usually has inserted the row by now; report the
			// lost race the same way the unique index would.
			if _, exists, findErr := g.store.Occurrences().FindOccurrence(ctx, templateID, m); findErr == nil && exists {
				return core.Occurrence{}, core.Duplicate("occurrence.generate", templateID, m)
			}
		}
		return core.Occurrence{}, core.Dependency("occurrence.generate", err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			slog.ErrorContext(ctx, "Failed to release generation lock",
				log.FieldTemplateID, templateID, log.FieldMonth, m.String(), log.FieldError, err)
		}
	}()

	_, exists, err := g.store.Occurrences().FindOccurrence(ctx, templateID, m)
	if err != nil {
		return core.Occurrence{}, core.Dependency("occurrence.generate", err)
	}
	if exists {
		return core.Occurrence{}, core.Duplicate("occurrence.generate", templateID, m)
	}

	// The unique (template, month) index settles races the lookup above misses.
	occ, err := g.store.Occurrences().InsertOccurrence(ctx, tpl.NewOccurrence(g.newID(), m, g.clock.Now()))
	if err != nil {
		return core.Occurrence{}, core.Dependency("occurrence.generate", err)
	}

	slog.InfoContext(ctx, "Occurrence generated", log.NewFields().
		WithComponent(log.ComponentGenerator).
		WithOccurrence(occ).ToSlice()...)
	return occ, nil
}
