package amqp

import (
	"encoding/json"
	"time"
)

// LedgerCommitMessage announces that a user's ledger table was overwritten.
// Consumers re-read the table instead of trusting a payload copy.
type LedgerCommitMessage struct {
	User      string    `json:"user"`
	Session   string    `json:"session"`
	Records   int       `json:"records"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerCommitMessage stamps a commit with the current time.
func NewLedgerCommitMessage(user, session string, records int) *LedgerCommitMessage {
	return &LedgerCommitMessage{
		User:      user,
		Session:   session,
		Records:   records,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerCommitMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerCommitMessageFromJSON decodes a message body.
func LedgerCommitMessageFromJSON(data []byte) (*LedgerCommitMessage, error) {
	var msg LedgerCommitMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
