package domain

import "time"

const (
	VariantStatusActive       = "active"
	VariantStatusDiscontinued = "discontinued"
)

// Variant is a sellable SKU. The catalog owns it; carts and orders only
// reference it and snapshot what they need at the time.
type Variant struct {
	ID             string    `json:"id"`
	ProductID      string    `json:"productId"`
	SKU            string    `json:"sku"`
	Name           string    `json:"name"`
	PriceCents     int64     `json:"priceCents"`
	Currency       string    `json:"currency"`
	Status         string    `json:"status"`
	ProductName    string    `json:"productName"`
	CollectionID   *string   `json:"collectionId,omitempty"`
	LimitedEdition bool      `json:"limitedEdition"`
	CreatedAt      time.Time `json:"createdAt"`
}

type Collection struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}
