package services

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"obligations/internal/attachments"
	"obligations/internal/core"
	"obligations/internal/events"
	"obligations/internal/lock"
	"obligations/internal/storage"
)

// Options configures the collaborators of an Engine. Zero values select
// in-process defaults.
type Options struct {
	// Publisher receives documentation events. When nil they are applied
	// synchronously by the engine's own state machine; otherwise the
	// consumer of the publisher is expected to call HandleDocumentationEvent.
	Publisher events.Publisher
	Locker    lock.Locker
	Clock     core.Clock
	NewID     func() string
}

// OccurrenceQuery selects occurrences for listing and summaries.
type OccurrenceQuery struct {
	TemplateID string
	Status     core.Status
	Month      *core.Month
}

// Engine is the entry point used by the hosting application.
type Engine struct {
	store     storage.Store
	clock     core.Clock
	templates *TemplateService
	generator *Generator
	linker    *LedgerLinker
	machine   *StateMachine
}

func NewEngine(store storage.Store, directory storage.Directory, counter attachments.Counter, opts Options) *Engine {
	clock := opts.Clock
	if clock == nil {
		clock = core.SystemClock
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	var (
		dispatcher *events.Dispatcher
		publisher  = opts.Publisher
	)
	if publisher == nil {
		dispatcher = events.NewDispatcher()
		publisher = dispatcher
	}

	linker := NewLedgerLinker(store, directory, counter, publisher, clock, newID)
	machine := NewStateMachine(store, linker, clock)
	if dispatcher != nil {
		dispatcher.Subscribe(machine.HandleDocumentationEvent)
	}

	return &Engine{
		store:     store,
		clock:     clock,
		templates: NewTemplateService(store, clock, newID),
		generator: NewGenerator(store, opts.Locker, clock, newID),
		linker:    linker,
		machine:   machine,
	}
}

// Now is the engine clock's current time.
func (e *Engine) Now() time.Time { return e.clock.Now() }

// Today is the clock's current date in UTC.
func (e *Engine) Today() core.Date { return core.DateOf(e.clock.Now()) }

// CurrentMonth is the clock's current calendar month.
func (e *Engine) CurrentMonth() core.Month { return core.MonthOf(e.clock.Now()) }

func (e *Engine) ListTemplates(ctx context.Context, f core.TemplateFilter) ([]core.Template, error) {
	return e.templates.List(ctx, f)
}

func (e *Engine) GetTemplate(ctx context.Context, id string) (core.Template, error) {
	return e.templates.Get(ctx, id)
}

func (e *Engine) CreateTemplate(ctx context.Context, t core.Template) (core.Template, error) {
	return e.templates.Create(ctx, t)
}

func (e *Engine) UpdateTemplate(ctx context.Context, id string, patch core.TemplatePatch) (core.Template, error) {
	return e.templates.Update(ctx, id, patch)
}

func (e *Engine) DeleteTemplate(ctx context.Context, id string) error {
	return e.templates.Delete(ctx, id)
}

// ListOccurrences returns matching occurrences, newest month first.
func (e *Engine) ListOccurrences(ctx context.Context, q OccurrenceQuery) ([]core.Occurrence, error) {
	list, err := e.store.Occurrences().ListOccurrences(ctx, storage.OccurrenceFilter{
		TemplateID: q.TemplateID,
		Status:     q.Status,
	})
	if err != nil {
		return nil, core.Dependency("occurrence.list", err)
	}
	if q.Month != nil {
		filtered := list[:0]
		for _, o := range list {
			if o.Month.Equal(q.Month.Time) {
				filtered = append(filtered, o)
			}
		}
		list = filtered
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].Month.After(list[j].Month.Time) })
	return list, nil
}

func (e *Engine) GetOccurrence(ctx context.Context, id string) (core.Occurrence, error) {
	o, err := e.store.Occurrences().GetOccurrence(ctx, id)
	if err != nil {
		return core.Occurrence{}, core.Dependency("occurrence.get", err)
	}
	return o, nil
}

func (e *Engine) GetLedgerEntry(ctx context.Context, id string) (core.LedgerEntry, error) {
	le, err := e.store.Ledger().GetLedgerEntry(ctx, id)
	if err != nil {
		return core.LedgerEntry{}, core.Dependency("ledger.get", err)
	}
	return le, nil
}

// GenerateOccurrence generates the occurrence for month, or for the
// clock's current month when month is nil.
func (e *Engine) GenerateOccurrence(ctx context.Context, templateID string, month *core.Month) (core.Occurrence, error) {
	m := e.CurrentMonth()
	if month != nil {
		m = *month
	}
	return e.generator.Generate(ctx, templateID, m)
}

func (e *Engine) BeginDocumentation(ctx context.Context, occurrenceID string) (string, error) {
	return e.machine.BeginDocumentation(ctx, occurrenceID)
}

func (e *Engine) RefreshAttachments(ctx context.Context, occurrenceID string) (core.DocumentationEvent, error) {
	return e.linker.RefreshAttachments(ctx, occurrenceID)
}

func (e *Engine) HandleDocumentationEvent(ctx context.Context, ev core.DocumentationEvent) error {
	return e.machine.HandleDocumentationEvent(ctx, ev)
}

func (e *Engine) MarkAsPaid(ctx context.Context, occurrenceID string, actual *decimal.Decimal) (core.Occurrence, error) {
	return e.machine.MarkAsPaid(ctx, occurrenceID, actual)
}

func (e *Engine) ReconcileAmount(ctx context.Context, occurrenceID string, actual decimal.Decimal) (core.Occurrence, error) {
	return e.machine.ReconcileAmount(ctx, occurrenceID, actual)
}

// ComputeSummary buckets the selected occurrences relative to today.
func (e *Engine) ComputeSummary(ctx context.Context, q OccurrenceQuery) (core.Summary, error) {
	list, err := e.ListOccurrences(ctx, q)
	if err != nil {
		return core.Summary{}, err
	}
	return core.ComputeSummary(list, e.Today()), nil
}
