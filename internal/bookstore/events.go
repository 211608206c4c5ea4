package bookstore

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated    = "OrderCreated"
	EventKycBound        = "KycBound"
	EventCatalogImported = "CatalogImported"
	EventStoreReset      = "StoreReset"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type OrderCreatedPayload struct {
	OrderID          string     `json:"order_id"`
	User             Identity   `json:"user"`
	Items            []CartItem `json:"items"`
	TotalAmount      int64      `json:"total_amount"`
	DeliveredBookIDs []string   `json:"delivered_book_ids"`
}

type KycBoundPayload struct {
	Identifier string   `json:"identifier"`
	User       Identity `json:"user"`
	OrderID    string   `json:"order_id"`
}

type CatalogImportedPayload struct {
	Mode   string   `json:"mode"` // overwrite | merge
	By     Identity `json:"by"`
	Books  int      `json:"books"`
	Orders int      `json:"orders"`
}

type StoreResetPayload struct {
	By Identity `json:"by"`
}
