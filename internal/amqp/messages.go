package amqp

import (
	"encoding/json"
	"time"
)

// RecordsCommittedMessage announces that the full record set was saved.
// It carries no records: consumers reload the set from the primary store.
type RecordsCommittedMessage struct {
	Revision  int64     `json:"revision"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRecordsCommittedMessage creates a message stamped with the current time.
func NewRecordsCommittedMessage(revision int64, count int) *RecordsCommittedMessage {
	return &RecordsCommittedMessage{
		Revision:  revision,
		Count:     count,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RecordsCommittedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordsCommittedMessageFromJSON decodes a message from JSON bytes.
func RecordsCommittedMessageFromJSON(data []byte) (*RecordsCommittedMessage, error) {
	var msg RecordsCommittedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
