package order

import (
	"context"

	"maison-commerce/internal/domain"
)

type CreateOrderInput struct {
	CartID        string
	Email         string
	Locale        string
	Currency      string
	SubtotalCents int64
	DiscountCents int64
	ShippingCents int64
	TotalCents    int64
	PromotionCode *string
	Items         []domain.OrderItem
}

// Repository persists orders, their item snapshots and the append-only
// payment record log. Status columns are only written through the
// transition methods; GetForUpdate serializes callback handling per order.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	Create(ctx context.Context, in CreateOrderInput) (*domain.Order, error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetForUpdate(ctx context.Context, id string) (*domain.Order, error)
	SetStatus(ctx context.Context, id string, status domain.OrderStatus) error
	SetFulfillment(ctx context.Context, id string, status domain.FulfillmentStatus, tracking *string) error
	SetPayment(ctx context.Context, id string, status domain.PaymentStatus) error
	AppendPaymentRecord(ctx context.Context, rec domain.PaymentRecord) error
	ListPaymentRecords(ctx context.Context, orderID string) ([]domain.PaymentRecord, error)
	ListPendingByIDs(ctx context.Context, ids []string) ([]string, error)
}
