package services

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"obligations/internal/attachments"
	"obligations/internal/core"
	"obligations/internal/events"
	"obligations/internal/log"
	"obligations/internal/storage"
)

// LedgerLinker lazily creates the ledger entry of an occurrence and tracks
// the number of documents attached to it.
type LedgerLinker struct {
	store     storage.Store
	directory storage.Directory
	counter   attachments.Counter
	publisher events.Publisher
	clock     core.Clock
	newID     func() string
}

func NewLedgerLinker(store storage.Store, directory storage.Directory, counter attachments.Counter,
	publisher events.Publisher, clock core.Clock, newID func() string) *LedgerLinker {
	return &LedgerLinker{
		store:     store,
		directory: directory,
		counter:   counter,
		publisher: publisher,
		clock:     clock,
		newID:     newID,
	}
}

// EnsureLedgerEntry returns the ledger entry of the occurrence, creating it
// on first use. Repeated calls return the same entry.
func (l *LedgerLinker) EnsureLedgerEntry(ctx context.Context, occurrenceID string) (core.LedgerEntry, error) {
	const op = "ledger.ensure"

	occ, err := l.store.Occurrences().GetOccurrence(ctx, occurrenceID)
	if err != nil {
		return core.LedgerEntry{}, core.Dependency(op, err)
	}
	if err := occ.CheckInvariants(); err != nil {
		return core.LedgerEntry{}, err
	}
	if occ.HasLedgerEntry() {
		return l.linkedEntry(ctx, l.store, occ)
	}

	tpl, err := l.store.Templates().GetTemplate(ctx, occ.TemplateID)
	if err != nil {
		return core.LedgerEntry{}, core.Dependency(op, err)
	}
	if err := l.resolveDirectory(ctx, tpl); err != nil {
		return core.LedgerEntry{}, core.Dependency(op, err)
	}

	var (
		entry   core.LedgerEntry
		created bool
	)
	err = l.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		current, err := tx.Occurrences().GetOccurrence(ctx, occurrenceID)
		if err != nil {
			return err
		}
		if current.HasLedgerEntry() {
			entry, err = l.linkedEntry(ctx, tx, current)
			return err
		}

		existing, found, err := tx.Ledger().FindLedgerEntryByOccurrence(ctx, occurrenceID)
		if err != nil {
			return err
		}
		if found {
			entry = existing
		} else {
			entry, err = tx.Ledger().InsertLedgerEntry(ctx, l.newEntry(tpl, current))
			if errors.Is(err, storage.ErrLedgerEntryExists) {
				entry, _, err = tx.Ledger().FindLedgerEntryByOccurrence(ctx, occurrenceID)
			}
			if err != nil {
				return err
			}
			created = true
		}

		id := entry.ID
		current.LedgerEntryID = &id
		current.UpdatedAt = l.clock.Now()
		_, err = tx.Occurrences().UpdateOccurrence(ctx, current)
		return err
	})
	if err != nil {
		return core.LedgerEntry{}, core.Dependency(op, err)
	}

	if created {
		slog.InfoContext(ctx, "Ledger entry created", log.NewFields().
			WithComponent(log.ComponentLedger).
			WithLedgerEntry(entry).ToSlice()...)
	}
	return entry, nil
}

func (l *LedgerLinker) linkedEntry(ctx context.Context, tx storage.Tx, occ core.Occurrence) (core.LedgerEntry, error) {
	entry, err := tx.Ledger().GetLedgerEntry(ctx, *occ.LedgerEntryID)
	if errors.Is(err, core.ErrNotFound) {
		return core.LedgerEntry{}, core.Inconsistent("ledger.ensure",
			"occurrence %s references missing ledger entry %s", occ.ID, *occ.LedgerEntryID)
	}
	return entry, err
}

// newEntry mirrors an already paid occurrence so the ledger never disagrees
// with the occurrence it belongs to.
func (l *LedgerLinker) newEntry(tpl core.Template, occ core.Occurrence) core.LedgerEntry {
	now := l.clock.Now()
	e := core.LedgerEntry{
		ID:            l.newID(),
		OccurrenceID:  occ.ID,
		Amount:        occ.AmountExpected,
		Currency:      occ.Currency,
		CategoryID:    tpl.CategoryID,
		ProjectID:     tpl.ProjectID,
		SupplierID:    tpl.SupplierID,
		Description:   tpl.LedgerDescription(occ.Month),
		PaymentStatus: core.PaymentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if occ.Status == core.StatusPaid {
		e.Amount = occ.ActualOrExpected()
		e.PaymentStatus = core.PaymentPaid
		e.PaymentDate = occ.PaidAt
	}
	return e
}

// resolveDirectory checks that the references copied onto the ledger entry
// exist. The category is mandatory; project and supplier only when set.
func (l *LedgerLinker) resolveDirectory(ctx context.Context, tpl core.Template) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := l.directory.GetCategory(ctx, tpl.CategoryID)
		return err
	})
	if tpl.ProjectID != nil {
		g.Go(func() error {
			_, err := l.directory.GetProject(ctx, *tpl.ProjectID)
			return err
		})
	}
	if tpl.SupplierID != nil {
		g.Go(func() error {
			_, err := l.directory.GetSupplier(ctx, *tpl.SupplierID)
			return err
		})
	}
	return g.Wait()
}

// RefreshAttachments reads the current document count of the occurrence's
// ledger entry. When it differs from the last observed count a
// DocumentationEvent is published before the new count is stored, so a
// failed store only causes the event to be emitted again.
func (l *LedgerLinker) RefreshAttachments(ctx context.Context, occurrenceID string) (core.DocumentationEvent, error) {
	const op = "ledger.refresh_attachments"

	occ, err := l.store.Occurrences().GetOccurrence(ctx, occurrenceID)
	if err != nil {
		return core.DocumentationEvent{}, core.Dependency(op, err)
	}
	ev := core.DocumentationEvent{OccurrenceID: occ.ID, ObservedAt: l.clock.Now()}
	if !occ.HasLedgerEntry() {
		return ev, nil
	}

	entry, err := l.linkedEntry(ctx, l.store, occ)
	if err != nil {
		return ev, core.Dependency(op, err)
	}
	ev.LedgerEntryID = entry.ID
	ev.Previous = entry.AttachmentCount

	count, err := l.counter.CountAttachments(ctx, entry.ID)
	if err != nil {
		return ev, core.Dependency(op, err)
	}
	ev.Current = count
	if count == entry.AttachmentCount {
		return ev, nil
	}

	fields := log.NewFields().WithComponent(log.ComponentLedger).WithOccurrence(occ)
	fields["previous"] = ev.Previous
	fields[log.FieldAttachments] = ev.Current
	slog.InfoContext(ctx, "Attachment count changed", fields.ToSlice()...)

	if err := l.publisher.Publish(ctx, ev); err != nil {
		return ev, core.Dependency(op, err)
	}

	// Only the count is written: the payment columns may have changed
	// since entry was read.
	if err := l.store.Ledger().UpdateAttachmentCount(ctx, entry.ID, count, l.clock.Now()); err != nil {
		return ev, core.Dependency(op, err)
	}
	return ev, nil
}
