package domain

import "time"

// Inventory is the per-variant stock ledger row. Invariant enforced both
// here and by a DB check constraint: 0 <= reserved <= quantity.
type Inventory struct {
	VariantID         string    `json:"variantId"`
	Quantity          int       `json:"quantity"`
	Reserved          int       `json:"reserved"`
	LowStockThreshold int       `json:"lowStockThreshold"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Available is the sellable count: physical stock minus in-flight holds.
func (i Inventory) Available() int {
	return i.Quantity - i.Reserved
}

type ReservationStatus string

const (
	ReservationHeld      ReservationStatus = "HELD"
	ReservationReleased  ReservationStatus = "RELEASED"
	ReservationCommitted ReservationStatus = "COMMITTED"
)

// Reservation is a time-boxed claim on stock taken during checkout. Its ID
// doubles as the token handed back to the orchestrator.
type Reservation struct {
	ID        string            `json:"id"`
	OrderID   string            `json:"orderId"`
	VariantID string            `json:"variantId"`
	Quantity  int               `json:"quantity"`
	Status    ReservationStatus `json:"status"`
	ExpiresAt time.Time         `json:"expiresAt"`
	CreatedAt time.Time         `json:"createdAt"`
}

// InventoryAdjustment is the append-only audit record for manual stock
// corrections issued from the admin CMS.
type InventoryAdjustment struct {
	ID        string    `json:"id"`
	VariantID string    `json:"variantId"`
	Delta     int       `json:"delta"`
	Reason    string    `json:"reason"`
	Actor     string    `json:"actor"`
	CreatedAt time.Time `json:"createdAt"`
}
