package services

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"obligations/internal/core"
	"obligations/internal/log"
	"obligations/internal/storage"
)

// StateMachine drives occurrences through expected, invoice_missing and paid.
type StateMachine struct {
	store  storage.Store
	linker *LedgerLinker
	clock  core.Clock
}

func NewStateMachine(store storage.Store, linker *LedgerLinker, clock core.Clock) *StateMachine {
	return &StateMachine{store: store, linker: linker, clock: clock}
}

// BeginDocumentation makes sure the occurrence has a ledger entry and flags
// it invoice_missing while that entry carries no document.
func (m *StateMachine) BeginDocumentation(ctx context.Context, occurrenceID string) (string, error) {
	const op = "occurrence.begin_documentation"

	entry, err := m.linker.EnsureLedgerEntry(ctx, occurrenceID)
	if err != nil {
		return "", err
	}
	ev, err := m.linker.RefreshAttachments(ctx, occurrenceID)
	if err != nil {
		return "", err
	}
	if ev.Current > 0 {
		return entry.ID, nil
	}

	var changed *core.Occurrence
	err = m.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		occ, err := tx.Occurrences().GetOccurrence(ctx, occurrenceID)
		if err != nil {
			return err
		}
		if err := occ.CheckInvariants(); err != nil {
			return err
		}
		if occ.Status != core.StatusExpected {
			return nil
		}
		occ.Status = core.StatusInvoiceMissing
		occ.UpdatedAt = m.clock.Now()
		updated, err := tx.Occurrences().UpdateOccurrence(ctx, occ)
		changed = &updated
		return err
	})
	if err != nil {
		return "", core.Dependency(op, err)
	}
	if changed != nil {
		m.logTransition(ctx, "Occurrence awaiting invoice", *changed)
	}
	return entry.ID, nil
}

// HandleDocumentationEvent restores an invoice_missing occurrence to
// expected once its first document arrives. Removing the last document
// leaves the status as it is.
func (m *StateMachine) HandleDocumentationEvent(ctx context.Context, ev core.DocumentationEvent) error {
	const op = "occurrence.documentation_event"

	if !ev.Attached() {
		if ev.Removed() {
			slog.InfoContext(ctx, "Last document removed, status left unchanged",
				log.FieldOccurrenceID, ev.OccurrenceID, log.FieldLedgerEntryID, ev.LedgerEntryID)
		}
		return nil
	}

	var changed *core.Occurrence
	err := m.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		occ, err := tx.Occurrences().GetOccurrence(ctx, ev.OccurrenceID)
		if err != nil {
			return err
		}
		if err := occ.CheckInvariants(); err != nil {
			return err
		}
		if !occ.HasLedgerEntry() || *occ.LedgerEntryID != ev.LedgerEntryID {
			return core.Inconsistent(op, "event for ledger entry %s does not match occurrence %s", ev.LedgerEntryID, occ.ID)
		}
		if occ.Status != core.StatusInvoiceMissing {
			return nil
		}
		occ.Status = core.StatusExpected
		occ.UpdatedAt = m.clock.Now()
		updated, err := tx.Occurrences().UpdateOccurrence(ctx, occ)
		changed = &updated
		return err
	})
	if err != nil {
		return core.Dependency(op, err)
	}
	if changed != nil {
		m.logTransition(ctx, "Invoice received", *changed)
	}
	return nil
}

// MarkAsPaid settles the occurrence and, when linked, its ledger entry in
// one transaction. The paid amount is the explicit actual amount, else a
// previously reconciled amount, else the expected amount. Paying an already
// paid occurrence changes nothing.
func (m *StateMachine) MarkAsPaid(ctx context.Context, occurrenceID string, actual *decimal.Decimal) (core.Occurrence, error) {
	const op = "occurrence.mark_paid"

	if actual != nil {
		if err := core.ValidateActualAmount(*actual); err != nil {
			return core.Occurrence{}, err
		}
	}

	var (
		result  core.Occurrence
		already bool
	)
	err := m.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		occ, err := tx.Occurrences().GetOccurrence(ctx, occurrenceID)
		if err != nil {
			return err
		}
		if err := occ.CheckInvariants(); err != nil {
			return err
		}
		if occ.Status == core.StatusPaid {
			result, already = occ, true
			return nil
		}
		if !core.CanTransition(occ.Status, core.StatusPaid) {
			return core.Inconsistent(op, "occurrence %s cannot be paid from %s", occ.ID, occ.Status)
		}

		now := m.clock.Now()
		amount := occ.ActualOrExpected()
		if actual != nil {
			amount = *actual
		}
		occ.Status = core.StatusPaid
		occ.PaidAt = &now
		occ.AmountActual = &amount
		occ.UpdatedAt = now
		if result, err = tx.Occurrences().UpdateOccurrence(ctx, occ); err != nil {
			return err
		}

		if !occ.HasLedgerEntry() {
			return nil
		}
		entry, err := tx.Ledger().GetLedgerEntry(ctx, *occ.LedgerEntryID)
		if err != nil {
			return err
		}
		entry.Amount = amount
		entry.PaymentStatus = core.PaymentPaid
		entry.PaymentDate = &now
		entry.UpdatedAt = now
		_, err = tx.Ledger().UpdateLedgerEntry(ctx, entry)
		return err
	})
	if err != nil {
		return core.Occurrence{}, core.Dependency(op, err)
	}

	if already {
		slog.DebugContext(ctx, "Occurrence already paid", log.FieldOccurrenceID, occurrenceID)
	} else {
		m.logTransition(ctx, "Occurrence paid", result)
	}
	return result, nil
}

// ReconcileAmount records the actual amount of an occurrence that is not
// paid yet, typically once the invoice shows the real figure.
func (m *StateMachine) ReconcileAmount(ctx context.Context, occurrenceID string, actual decimal.Decimal) (core.Occurrence, error) {
	const op = "occurrence.reconcile"

	if err := core.ValidateActualAmount(actual); err != nil {
		return core.Occurrence{}, err
	}

	var result core.Occurrence
	err := m.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		occ, err := tx.Occurrences().GetOccurrence(ctx, occurrenceID)
		if err != nil {
			return err
		}
		if err := occ.CheckInvariants(); err != nil {
			return err
		}
		if occ.Status == core.StatusPaid {
			return core.Inconsistent(op, "occurrence %s is already paid", occ.ID)
		}
		occ.AmountActual = &actual
		occ.UpdatedAt = m.clock.Now()
		result, err = tx.Occurrences().UpdateOccurrence(ctx, occ)
		return err
	})
	if err != nil {
		return core.Occurrence{}, core.Dependency(op, err)
	}

	slog.InfoContext(ctx, "Occurrence amount reconciled", log.NewFields().
		WithComponent(log.ComponentState).
		WithOccurrence(result).ToSlice()...)
	return result, nil
}

func (m *StateMachine) logTransition(ctx context.Context, msg string, o core.Occurrence) {
	slog.InfoContext(ctx, msg, log.NewFields().
		WithComponent(log.ComponentState).
		WithOccurrence(o).ToSlice()...)
}
