package redisx

import "time"

const (
	// Dedup for gateway webhooks: dedup:payment:{order_id}:{result}:{reference}
	KeyPaymentDedup = "dedup:payment:%s:%s:%s"

	// Cached checkout redirect per order: checkout:session:{order_id}
	KeyCheckoutSession = "checkout:session:%s"
)

var (
	TTLPaymentDedup    = 48 * time.Hour
	TTLCheckoutSession = 30 * time.Minute
)
