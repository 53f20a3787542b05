package domain

import "time"

type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderConfirmed OrderStatus = "CONFIRMED"
	OrderFulfilled OrderStatus = "FULFILLED"
	OrderCancelled OrderStatus = "CANCELLED"
	OrderRefunded  OrderStatus = "REFUNDED"
)

type FulfillmentStatus string

const (
	FulfillmentNotStarted          FulfillmentStatus = "NOT_STARTED"
	FulfillmentInProgress          FulfillmentStatus = "IN_PROGRESS"
	FulfillmentShipped             FulfillmentStatus = "SHIPPED"
	FulfillmentDelivered           FulfillmentStatus = "DELIVERED"
	FulfillmentWhiteGloveScheduled FulfillmentStatus = "WHITE_GLOVE_SCHEDULED"
)

type PaymentStatus string

const (
	PaymentUnpaid     PaymentStatus = "UNPAID"
	PaymentAuthorized PaymentStatus = "AUTHORIZED"
	PaymentPaid       PaymentStatus = "PAID"
	PaymentRefunded   PaymentStatus = "REFUNDED"
)

// Each state machine only moves forward; REFUNDED is the single escape
// valve. Anything missing from these tables is rejected.
var validStatusNext = map[OrderStatus]map[OrderStatus]bool{
	OrderPending:   {OrderConfirmed: true, OrderCancelled: true},
	OrderConfirmed: {OrderFulfilled: true, OrderCancelled: true, OrderRefunded: true},
	OrderFulfilled: {},
	OrderCancelled: {},
	OrderRefunded:  {},
}

var validFulfillmentNext = map[FulfillmentStatus]map[FulfillmentStatus]bool{
	FulfillmentNotStarted:          {FulfillmentInProgress: true, FulfillmentWhiteGloveScheduled: true},
	FulfillmentInProgress:          {FulfillmentShipped: true, FulfillmentWhiteGloveScheduled: true},
	FulfillmentWhiteGloveScheduled: {FulfillmentShipped: true},
	FulfillmentShipped:             {FulfillmentDelivered: true},
	FulfillmentDelivered:           {},
}

var validPaymentNext = map[PaymentStatus]map[PaymentStatus]bool{
	PaymentUnpaid:     {PaymentAuthorized: true, PaymentPaid: true},
	PaymentAuthorized: {PaymentPaid: true},
	PaymentPaid:       {PaymentRefunded: true},
	PaymentRefunded:   {},
}

func CanTransitionStatus(from, to OrderStatus) bool {
	return validStatusNext[from][to]
}

func CanTransitionFulfillment(from, to FulfillmentStatus) bool {
	return validFulfillmentNext[from][to]
}

func CanTransitionPayment(from, to PaymentStatus) bool {
	return validPaymentNext[from][to]
}

// Order is immutable once created except for its three status fields.
// Items are snapshotted at commit time so later catalog edits never
// alter historical orders. Orders are never deleted.
type Order struct {
	ID                string            `json:"id"`
	CartID            string            `json:"cartId"`
	Email             string            `json:"email"`
	Locale            string            `json:"locale,omitempty"`
	Currency          string            `json:"currency"`
	Status            OrderStatus       `json:"status"`
	FulfillmentStatus FulfillmentStatus `json:"fulfillmentStatus"`
	PaymentStatus     PaymentStatus     `json:"paymentStatus"`
	SubtotalCents     int64             `json:"subtotalCents"`
	DiscountCents     int64             `json:"discountCents"`
	ShippingCents     int64             `json:"shippingCents"`
	TotalCents        int64             `json:"totalCents"`
	PromotionCode     *string           `json:"promotionCode,omitempty"`
	TrackingCode      *string           `json:"trackingCode,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
	Items             []OrderItem       `json:"items,omitempty"`
}

type OrderItem struct {
	ID             string `json:"id"`
	OrderID        string `json:"orderId"`
	VariantID      string `json:"variantId"`
	SKU            string `json:"sku"`
	ProductName    string `json:"productName"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unitPriceCents"`
	TotalCents     int64  `json:"totalCents"`
}

// PaymentRecord is the append-only log of gateway interactions for an
// order. Rows are never mutated after insert.
type PaymentRecord struct {
	ID               string    `json:"id"`
	OrderID          string    `json:"orderId"`
	Kind             string    `json:"kind"`
	GatewayReference string    `json:"gatewayReference,omitempty"`
	AmountCents      int64     `json:"amountCents"`
	Note             string    `json:"note,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

const (
	PaymentRecordSession  = "session_created"
	PaymentRecordConfirm  = "confirmed"
	PaymentRecordDeclined = "declined"
	PaymentRecordRefund   = "refunded"
	PaymentRecordOrphaned = "orphaned_confirmation"
)
