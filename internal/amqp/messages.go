package amqp

import (
	"encoding/json"
	"time"
)

// EventType names a change made to a stored transaction.
type EventType string

const (
	EventCategoryUpdated    EventType = "transaction.category_updated"
	EventTransactionDeleted EventType = "transaction.deleted"
)

// TransactionEvent is published after a successful mutation. Consumers fetch
// the current row by ID when they need more than what the event carries.
type TransactionEvent struct {
	Type      EventType `json:"type"`
	ID        int64     `json:"id"`
	Category  string    `json:"category,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewCategoryUpdated creates the event for a category change.
func NewCategoryUpdated(id int64, category string) *TransactionEvent {
	return &TransactionEvent{
		Type:      EventCategoryUpdated,
		ID:        id,
		Category:  category,
		Timestamp: time.Now(),
	}
}

// NewTransactionDeleted creates the event for a deletion.
func NewTransactionDeleted(id int64) *TransactionEvent {
	return &TransactionEvent{
		Type:      EventTransactionDeleted,
		ID:        id,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionEventFromJSON decodes an event from JSON bytes
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var ev TransactionEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
