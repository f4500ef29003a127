package model

import (
	"encoding/json"
	"time"
)

type EventKind string

const (
	EventCustomerCreated          EventKind = "customer.created"
	EventCustomerDeleted          EventKind = "customer.deleted"
	EventTransactionCreated       EventKind = "transaction.created"
	EventTransactionStatusChanged EventKind = "transaction.status_changed"
	EventTransactionDeleted       EventKind = "transaction.deleted"
)

// LedgerEvent is published after a successful write and delivered to the
// configured webhook by the notifier.
type LedgerEvent struct {
	ID         string          `json:"id"`
	Kind       EventKind       `json:"kind"`
	EntityID   string          `json:"entity_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}
