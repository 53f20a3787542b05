package cart

import (
	"context"

	"maison-commerce/internal/domain"
)

type CreateCartInput struct {
	CustomerID *string
	SessionID  *string
	Currency   string
	Locale     string
}

// Repository persists carts. Every mutation bumps the cart version; stale
// writers are coalesced last-write-wins rather than rejected.
type Repository interface {
	Create(ctx context.Context, in CreateCartInput) (*domain.Cart, error)
	GetByID(ctx context.Context, id string) (*domain.Cart, error)
	AddLineItem(ctx context.Context, cartID string, variant domain.Variant, quantity int) error
	ChangeLineItemQuantity(ctx context.Context, cartID, lineItemID string, quantity int) error
	RemoveLineItem(ctx context.Context, cartID, lineItemID string) error
	SetLocale(ctx context.Context, cartID, locale string) error
	SetState(ctx context.Context, cartID, state string) error
}
