package core

import "time"

// DocumentationEvent reports a change in the number of supporting documents
// attached to the ledger entry of an occurrence.
type DocumentationEvent struct {
	OccurrenceID  string    `json:"occurrenceId"`
	LedgerEntryID string    `json:"ledgerEntryId"`
	Previous      int       `json:"previous"`
	Current       int       `json:"current"`
	ObservedAt    time.Time `json:"observedAt"`
}

// Attached reports the first document arriving (0 -> >=1).
func (e DocumentationEvent) Attached() bool {
	return e.Previous == 0 && e.Current >= 1
}

// Removed reports the last document going away (>=1 -> 0).
func (e DocumentationEvent) Removed() bool {
	return e.Previous >= 1 && e.Current == 0
}

// Clock supplies the current time to the engine.
type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock in UTC.
var SystemClock Clock = ClockFunc(func() time.Time { return time.Now().UTC() })

// FixedClock always returns t.
func FixedClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}
