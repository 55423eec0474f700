package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"finledger/internal/notify"
)

// SchemaVersion is bumped whenever the envelope or event layout changes in a
// way old consumers cannot read.
const SchemaVersion = 1

// EventMessage is the envelope published for every ledger event.
type EventMessage struct {
	SchemaVersion int          `json:"schema_version"`
	Event         notify.Event `json:"event"`
	Timestamp     time.Time    `json:"timestamp"`
}

func NewEventMessage(e notify.Event) *EventMessage {
	return &EventMessage{
		SchemaVersion: SchemaVersion,
		Event:         e,
		Timestamp:     time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *EventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EventMessageFromJSON decodes and checks an envelope.
func EventMessageFromJSON(data []byte) (*EventMessage, error) {
	var msg EventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("unsupported schema version %d", msg.SchemaVersion)
	}
	if msg.Event.ID == "" {
		return nil, fmt.Errorf("event without id")
	}
	return &msg, nil
}
