package inventory

import (
	"context"
	"errors"
	"strings"

	"maison-commerce/internal/domain"
	invrepo "maison-commerce/internal/repository/inventory"
)

type ledger interface {
	Get(ctx context.Context, variantID string) (*domain.Inventory, error)
	Adjust(ctx context.Context, in invrepo.AdjustInput) (*domain.Inventory, error)
	LowStock(ctx context.Context) ([]domain.Inventory, error)
}

// Service is the admin-facing face of the ledger: reads plus manual
// adjustments. Reserve/release/commit stay with the checkout path.
type Service struct {
	ledger ledger
}

func New(l invrepo.Repository) *Service {
	return &Service{ledger: l}
}

type AdjustInput struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
	Actor  string `json:"actor"`
}

func (s *Service) Get(ctx context.Context, variantID string) (*domain.Inventory, error) {
	return s.ledger.Get(ctx, variantID)
}

func (s *Service) Adjust(ctx context.Context, variantID string, in AdjustInput) (*domain.Inventory, error) {
	if in.Delta == 0 {
		return nil, errors.New("delta must be non-zero")
	}
	if strings.TrimSpace(in.Reason) == "" {
		return nil, errors.New("reason required")
	}
	return s.ledger.Adjust(ctx, invrepo.AdjustInput{
		VariantID: variantID,
		Delta:     in.Delta,
		Reason:    in.Reason,
		Actor:     in.Actor,
	})
}

func (s *Service) LowStock(ctx context.Context) ([]domain.Inventory, error) {
	return s.ledger.LowStock(ctx)
}
