package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"obligations/internal/core"
)

// DocumentationMessage carries a core.DocumentationEvent between the
// process that observed the attachment change and the worker applying it.
type DocumentationMessage struct {
	OccurrenceID  string    `json:"occurrence_id"`
	LedgerEntryID string    `json:"ledger_entry_id"`
	Previous      int       `json:"previous"`
	Current       int       `json:"current"`
	ObservedAt    time.Time `json:"observed_at"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewDocumentationMessage(ev core.DocumentationEvent) *DocumentationMessage {
	return &DocumentationMessage{
		OccurrenceID:  ev.OccurrenceID,
		LedgerEntryID: ev.LedgerEntryID,
		Previous:      ev.Previous,
		Current:       ev.Current,
		ObservedAt:    ev.ObservedAt,
		Timestamp:     time.Now(),
	}
}

func (m *DocumentationMessage) Event() core.DocumentationEvent {
	return core.DocumentationEvent{
		OccurrenceID:  m.OccurrenceID,
		LedgerEntryID: m.LedgerEntryID,
		Previous:      m.Previous,
		Current:       m.Current,
		ObservedAt:    m.ObservedAt,
	}
}

func (m *DocumentationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// DocumentationMessageFromJSON decodes and sanity-checks a message body.
func DocumentationMessageFromJSON(data []byte) (*DocumentationMessage, error) {
	var msg DocumentationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.OccurrenceID == "" {
		return nil, fmt.Errorf("documentation message without occurrence_id")
	}
	if msg.Previous < 0 || msg.Current < 0 {
		return nil, fmt.Errorf("documentation message with negative count")
	}
	return &msg, nil
}
