package variant

import (
	"context"

	"maison-commerce/internal/domain"
)

// Repository is the read-only catalog view the commerce core needs:
// current price, status and drop-relevant flags per variant. The catalog
// service owns writes.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Variant, error)
	GetBySKU(ctx context.Context, sku string) (*domain.Variant, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]domain.Variant, error)
}
