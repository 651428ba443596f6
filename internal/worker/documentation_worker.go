// Package worker runs the background side of documentation tracking.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"obligations/internal/amqp"
	"obligations/internal/core"
	"obligations/internal/log"
	"obligations/internal/services"
)

// Engine is the part of services.Engine the worker drives.
type Engine interface {
	HandleDocumentationEvent(ctx context.Context, ev core.DocumentationEvent) error
	RefreshAttachments(ctx context.Context, occurrenceID string) (core.DocumentationEvent, error)
	ListOccurrences(ctx context.Context, q services.OccurrenceQuery) ([]core.Occurrence, error)
}

// DocumentationWorker applies documentation events received from the broker
// and periodically re-reads the attachment count of occurrences still
// waiting for their invoice, in case an upload was never reported.
type DocumentationWorker struct {
	engine Engine
}

func NewDocumentationWorker(engine Engine) *DocumentationWorker {
	return &DocumentationWorker{engine: engine}
}

// HandleDocumentationMessage is the AMQP consumer callback.
func (w *DocumentationWorker) HandleDocumentationMessage(ctx context.Context, msg *amqp.DocumentationMessage) error {
	slog.InfoContext(ctx, "Processing documentation event",
		log.FieldOccurrenceID, msg.OccurrenceID,
		log.FieldLedgerEntryID, msg.LedgerEntryID,
		"previous", msg.Previous,
		"current", msg.Current)

	if err := w.engine.HandleDocumentationEvent(ctx, msg.Event()); err != nil {
		return fmt.Errorf("apply documentation event: %w", err)
	}
	return nil
}

// ProcessAwaitingInvoices refreshes every invoice_missing occurrence and
// returns how many reported a new attachment count. One failing occurrence
// does not stop the sweep.
func (w *DocumentationWorker) ProcessAwaitingInvoices(ctx context.Context) (int, error) {
	waiting, err := w.engine.ListOccurrences(ctx, services.OccurrenceQuery{Status: core.StatusInvoiceMissing})
	if err != nil {
		return 0, fmt.Errorf("list occurrences awaiting invoice: %w", err)
	}
	if len(waiting) == 0 {
		return 0, nil
	}

	changed := 0
	for _, occ := range waiting {
		if err := ctx.Err(); err != nil {
			return changed, err
		}
		ev, err := w.engine.RefreshAttachments(ctx, occ.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to refresh attachments", log.NewFields().
				WithComponent(log.ComponentWorker).
				WithOccurrence(occ).
				WithError(err).ToSlice()...)
			continue
		}
		if ev.Previous != ev.Current {
			changed++
		}
	}

	slog.InfoContext(ctx, "Invoice sweep complete",
		"checked", len(waiting),
		"changed", changed)
	return changed, nil
}

// Run sweeps immediately and then every interval until ctx is cancelled.
func (w *DocumentationWorker) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := w.ProcessAwaitingInvoices(ctx); err != nil && ctx.Err() == nil {
			slog.ErrorContext(ctx, "Invoice sweep failed", log.FieldError, err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
