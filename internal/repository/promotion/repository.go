package promotion

import (
	"context"

	"maison-commerce/internal/domain"
)

// Repository loads promotion rules and owns the atomic usage counter.
// ConsumeUsage/RestoreUsage are conditional single-statement updates so
// concurrent redemptions at the ceiling cannot both pass.
type Repository interface {
	GetByCode(ctx context.Context, code string) (*domain.Promotion, error)
	ConsumeUsage(ctx context.Context, promotionID, orderID string) error
	RestoreUsage(ctx context.Context, orderID string) error
}
