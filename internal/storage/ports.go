package storage

import (
	"context"
	"errors"
	"time"

	"obligations/internal/core"
)

// ErrLedgerEntryExists is returned by InsertLedgerEntry when the occurrence
// already owns a ledger entry.
var ErrLedgerEntryExists = errors.New("ledger entry already exists for occurrence")

// Ports implemented by the persistence backends.
type (
	TemplateRepository interface {
		CreateTemplate(ctx context.Context, t core.Template) (core.Template, error)
		GetTemplate(ctx context.Context, id string) (core.Template, error)
		UpdateTemplate(ctx context.Context, t core.Template) (core.Template, error)
		DeleteTemplate(ctx context.Context, id string) error
		ListTemplates(ctx context.Context, f core.TemplateFilter) ([]core.Template, error)
	}

	OccurrenceRepository interface {
		// InsertOccurrence fails with core.ErrDuplicateOccurrence when the
		// (template, month) pair already exists.
		InsertOccurrence(ctx context.Context, o core.Occurrence) (core.Occurrence, error)
		GetOccurrence(ctx context.Context, id string) (core.Occurrence, error)
		FindOccurrence(ctx context.Context, templateID string, m core.Month) (core.Occurrence, bool, error)
		ListOccurrences(ctx context.Context, f OccurrenceFilter) ([]core.Occurrence, error)
		UpdateOccurrence(ctx context.Context, o core.Occurrence) (core.Occurrence, error)
	}

	LedgerRepository interface {
		// InsertLedgerEntry fails with ErrLedgerEntryExists when the
		// occurrence already owns an entry.
		InsertLedgerEntry(ctx context.Context, e core.LedgerEntry) (core.LedgerEntry, error)
		GetLedgerEntry(ctx context.Context, id string) (core.LedgerEntry, error)
		FindLedgerEntryByOccurrence(ctx context.Context, occurrenceID string) (core.LedgerEntry, bool, error)
		UpdateLedgerEntry(ctx context.Context, e core.LedgerEntry) (core.LedgerEntry, error)
		// UpdateAttachmentCount stores the last observed document count and
		// leaves the payment columns alone.
		UpdateAttachmentCount(ctx context.Context, ledgerEntryID string, count int, updatedAt time.Time) error
	}

	// Directory provides the read-only category, project and supplier lookups.
	Directory interface {
		GetCategory(ctx context.Context, id string) (core.Category, error)
		GetProject(ctx context.Context, id string) (core.Project, error)
		GetSupplier(ctx context.Context, id string) (core.Supplier, error)
	}

	// DirectoryWriter upserts reference data. The hosting application owns
	// these tables; the engine only reads them.
	DirectoryWriter interface {
		SaveCategory(ctx context.Context, c core.Category) error
		SaveProject(ctx context.Context, p core.Project) error
		SaveSupplier(ctx context.Context, s core.Supplier) error
	}

	// Tx exposes the repositories bound to one transaction.
	Tx interface {
		Templates() TemplateRepository
		Occurrences() OccurrenceRepository
		Ledger() LedgerRepository
	}

	// Store is a persistence backend. Writes made through the Tx passed to
	// WithinTx commit together or not at all.
	Store interface {
		Tx
		WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
		Close() error
	}

	OccurrenceFilter struct {
		TemplateID string
		Status     core.Status
		// OnlyLinked restricts the result to occurrences with a ledger entry.
		OnlyLinked bool
	}
)
