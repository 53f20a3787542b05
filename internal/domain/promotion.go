package domain

import "time"

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountAmount     DiscountType = "amount"
	DiscountShipping   DiscountType = "shipping"
)

// Promotion is a stateless rule evaluated fresh per checkout. Only the
// usage counter mutates, and only through an atomic conditional update.
type Promotion struct {
	ID                 string       `json:"id"`
	Code               string       `json:"code"`
	DiscountType       DiscountType `json:"discountType"`
	Value              int64        `json:"value"`
	StartsAt           time.Time    `json:"startsAt"`
	EndsAt             *time.Time   `json:"endsAt,omitempty"`
	UsageLimit         *int         `json:"usageLimit,omitempty"`
	UsageCount         int          `json:"usageCount"`
	Locale             *string      `json:"locale,omitempty"`
	LimitedEditionOnly bool         `json:"limitedEditionOnly"`
	CreatedAt          time.Time    `json:"createdAt"`
}

// ActiveAt reports whether now falls within [startsAt, endsAt). A nil
// endsAt means open-ended.
func (p Promotion) ActiveAt(now time.Time) bool {
	if now.Before(p.StartsAt) {
		return false
	}
	return p.EndsAt == nil || now.Before(*p.EndsAt)
}

// Discount is the evaluated result of a promotion against a cart.
// Merchandise discounts never touch shipping and vice versa.
type Discount struct {
	PromotionID      string       `json:"promotionId"`
	Code             string       `json:"code"`
	Type             DiscountType `json:"type"`
	MerchandiseCents int64        `json:"merchandiseCents"`
	ShippingCents    int64        `json:"shippingCents"`
}
