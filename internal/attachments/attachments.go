// Package attachments answers how many supporting documents a ledger entry has.
package attachments

import (
	"context"
	"time"
)

// Counter reports the number of documents attached to a ledger entry.
type Counter interface {
	CountAttachments(ctx context.Context, ledgerEntryID string) (int, error)
}

// Store records documents against ledger entries. The SQL and memory
// backends implement it; an object store only counts.
type Store interface {
	Counter
	AddAttachment(ctx context.Context, ledgerEntryID, fileName string, at time.Time) (string, error)
	// RemoveAttachment fails with core.ErrNotFound when id is not a
	// document of ledgerEntryID.
	RemoveAttachment(ctx context.Context, ledgerEntryID, id string) error
}

// CounterFunc adapts a function to Counter.
type CounterFunc func(ctx context.Context, ledgerEntryID string) (int, error)

func (f CounterFunc) CountAttachments(ctx context.Context, ledgerEntryID string) (int, error) {
	return f(ctx, ledgerEntryID)
}
