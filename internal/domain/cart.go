package domain

import "time"

const (
	CartStateActive  = "active"
	CartStateOrdered = "ordered"
	CartStateDeleted = "deleted"
)

type Cart struct {
	ID         string     `json:"id"`
	CustomerID *string    `json:"customerId,omitempty"`
	SessionID  *string    `json:"-"`
	Currency   string     `json:"currency"`
	Locale     string     `json:"locale,omitempty"`
	TotalCents int64      `json:"totalCents"`
	State      string     `json:"state"`
	Version    int        `json:"version"`
	CreatedAt  time.Time  `json:"createdAt"`
	Lines      []CartLine `json:"lineItems,omitempty"`
}

type CartLine struct {
	ID             string    `json:"id"`
	CartID         string    `json:"cartId"`
	VariantID      string    `json:"variantId"`
	SKU            string    `json:"sku"`
	ProductName    string    `json:"productName"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unitPriceCents"`
	TotalCents     int64     `json:"totalCents"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Line validation outcomes when a cart crosses into checkout.
const (
	LineUnchanged    = "unchanged"
	LinePriceChanged = "price_changed"
	LineUnavailable  = "unavailable"
)

// Reasons carried by an unavailable line.
const (
	ReasonDiscontinued  = "discontinued"
	ReasonOutOfStock    = "out_of_stock"
	ReasonDropNotActive = "drop_not_active"
)

// LineDiff is the per-item result of re-validating a cart line against
// current catalog and inventory state.
type LineDiff struct {
	LineID        string `json:"lineId"`
	VariantID     string `json:"variantId"`
	SKU           string `json:"sku"`
	Result        string `json:"result"`
	Reason        string `json:"reason,omitempty"`
	OldPriceCents int64  `json:"oldPriceCents,omitempty"`
	NewPriceCents int64  `json:"newPriceCents,omitempty"`
}
