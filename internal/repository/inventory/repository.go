package inventory

import (
	"context"
	"time"

	"maison-commerce/internal/domain"
)

type AdjustInput struct {
	VariantID string
	Delta     int
	Reason    string
	Actor     string
}

// Repository is the inventory ledger. Reserve, Release and Commit are the
// only operations allowed to touch the quantity/reserved counters for
// sales; Adjust covers manual admin corrections and goes through the same
// invariants.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	Get(ctx context.Context, variantID string) (*domain.Inventory, error)
	Reserve(ctx context.Context, orderID, variantID string, quantity int, expiresAt time.Time) (*domain.Reservation, error)
	Release(ctx context.Context, token string) error
	Commit(ctx context.Context, token string) error
	ListByOrder(ctx context.Context, orderID string) ([]domain.Reservation, error)
	SweepExpired(ctx context.Context, now time.Time) ([]string, error)
	Adjust(ctx context.Context, in AdjustInput) (*domain.Inventory, error)
	LowStock(ctx context.Context) ([]domain.Inventory, error)
}
