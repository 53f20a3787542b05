package events

import (
	"encoding/json"
	"time"
)

const (
	EventOrderConfirmed = "OrderConfirmed"
	EventOrderShipped   = "OrderShipped"
)

const (
	TopicOrderConfirmed = "order.confirmed"
	TopicOrderShipped   = "order.shipped"
)

// Envelope wraps every published domain event. The notification service
// consumes these to render and send transactional email; the core knows
// nothing about templates.
type Envelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Producer   string          `json:"producer"`
	Payload    json.RawMessage `json:"payload"`
}

type OrderConfirmedPayload struct {
	OrderID    string `json:"order_id"`
	Email      string `json:"email"`
	Locale     string `json:"locale,omitempty"`
	TotalCents int64  `json:"total_cents"`
	Currency   string `json:"currency"`
}

type OrderShippedPayload struct {
	OrderID      string `json:"order_id"`
	Email        string `json:"email"`
	TrackingCode string `json:"tracking_code,omitempty"`
}

// PartitionKey keeps all events for one order on one partition so
// consumers see them in order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
