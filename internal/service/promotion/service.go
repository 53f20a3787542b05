package promotion

import (
	"context"

	"maison-commerce/internal/clock"
	"maison-commerce/internal/domain"
)

type promotionRepo interface {
	GetByCode(ctx context.Context, code string) (*domain.Promotion, error)
}

type variantRepo interface {
	GetByIDs(ctx context.Context, ids []string) (map[string]domain.Variant, error)
}

type Service struct {
	repo        promotionRepo
	variantRepo variantRepo
	clock       clock.Clock
}

func New(repo promotionRepo, variants variantRepo, clk clock.Clock) *Service {
	return &Service{repo: repo, variantRepo: variants, clock: clk}
}

// Evaluate checks a code against cart contents and eligibility rules and
// returns the discount to apply. It never consumes a usage slot; the
// checkout transaction does that atomically via the repository.
//
// Rules run in order: existence and validity window, locale restriction,
// limited-edition restriction, usage ceiling.
func (s *Service) Evaluate(ctx context.Context, code string, lines []domain.CartLine, locale string, shippingCents int64) (*domain.Discount, error) {
	promo, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if !promo.ActiveAt(now) {
		return nil, domain.ErrPromotionExpired
	}

	if promo.Locale != nil && *promo.Locale != locale {
		return nil, domain.ErrPromotionNotApplicable
	}

	if promo.LimitedEditionOnly {
		ids := make([]string, 0, len(lines))
		for _, line := range lines {
			ids = append(ids, line.VariantID)
		}
		variants, err := s.variantRepo.GetByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, line := range lines {
			v, ok := variants[line.VariantID]
			if !ok || !v.LimitedEdition {
				return nil, domain.ErrPromotionNotApplicable
			}
		}
	}

	if promo.UsageLimit != nil && promo.UsageCount >= *promo.UsageLimit {
		return nil, domain.ErrUsageExceeded
	}

	subtotal := int64(0)
	for _, line := range lines {
		subtotal += line.TotalCents
	}

	return buildDiscount(*promo, subtotal, shippingCents), nil
}

// buildDiscount applies the type rules: percentage and amount discounts
// touch the merchandise subtotal only, shipping discounts only shipping.
func buildDiscount(promo domain.Promotion, subtotalCents, shippingCents int64) *domain.Discount {
	d := &domain.Discount{
		PromotionID: promo.ID,
		Code:        promo.Code,
		Type:        promo.DiscountType,
	}
	switch promo.DiscountType {
	case domain.DiscountPercentage:
		d.MerchandiseCents = subtotalCents * promo.Value / 100
	case domain.DiscountAmount:
		d.MerchandiseCents = promo.Value
		if d.MerchandiseCents > subtotalCents {
			d.MerchandiseCents = subtotalCents
		}
	case domain.DiscountShipping:
		d.ShippingCents = shippingCents
	}
	return d
}
