package cart

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"time"

	"maison-commerce/internal/clock"
	"maison-commerce/internal/domain"
	cartrepo "maison-commerce/internal/repository/cart"
)

type cartRepo interface {
	Create(ctx context.Context, in cartrepo.CreateCartInput) (*domain.Cart, error)
	GetByID(ctx context.Context, id string) (*domain.Cart, error)
	AddLineItem(ctx context.Context, cartID string, variant domain.Variant, quantity int) error
	ChangeLineItemQuantity(ctx context.Context, cartID, lineItemID string, quantity int) error
	RemoveLineItem(ctx context.Context, cartID, lineItemID string) error
	SetLocale(ctx context.Context, cartID, locale string) error
}

type variantRepo interface {
	GetBySKU(ctx context.Context, sku string) (*domain.Variant, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]domain.Variant, error)
}

type inventoryRepo interface {
	Get(ctx context.Context, variantID string) (*domain.Inventory, error)
}

type dropRepo interface {
	GetByCollection(ctx context.Context, collectionID string) (*domain.LimitedDrop, error)
}

type Service struct {
	repo        cartRepo
	variantRepo variantRepo
	invRepo     inventoryRepo
	dropRepo    dropRepo
	clock       clock.Clock
	logger      *log.Logger
}

func New(repo cartrepo.Repository, variants variantRepo, inv inventoryRepo, drops dropRepo, clk clock.Clock, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{repo: repo, variantRepo: variants, invRepo: inv, dropRepo: drops, clock: clk, logger: logger}
}

type CreateInput struct {
	CustomerID *string `json:"customerId,omitempty"`
	SessionID  *string `json:"sessionId,omitempty"`
	Currency   string  `json:"currency"`
	Locale     string  `json:"locale,omitempty"`
}

type UpdateInput struct {
	Version int            `json:"version"`
	Actions []UpdateAction `json:"actions"`
}

type UpdateAction struct {
	Action     string `json:"action"`
	SKU        string `json:"sku,omitempty"`
	LineItemID string `json:"lineItemId,omitempty"`
	Quantity   int    `json:"quantity,omitempty"`
	Locale     string `json:"locale,omitempty"`
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Cart, error) {
	if strings.TrimSpace(in.Currency) == "" {
		return nil, errors.New("currency required")
	}
	return s.repo.Create(ctx, cartrepo.CreateCartInput{
		CustomerID: in.CustomerID,
		SessionID:  in.SessionID,
		Currency:   in.Currency,
		Locale:     in.Locale,
	})
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Cart, error) {
	return s.repo.GetByID(ctx, id)
}

// Update applies cart actions. Concurrent edits to the same cart (two
// browser tabs) coalesce last-write-wins: a stale version is accepted and
// applied on top of current state, never rejected.
func (s *Service) Update(ctx context.Context, cartID string, in UpdateInput) (*domain.Cart, error) {
	if len(in.Actions) == 0 {
		return nil, errors.New("actions required")
	}
	cart, err := s.repo.GetByID(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if cart.State != domain.CartStateActive {
		return nil, domain.ErrCartNotActive
	}
	if in.Version != 0 && in.Version != cart.Version {
		s.logger.Printf("cart service: cart=%s client version %d behind current %d, applying last-write-wins", cartID, in.Version, cart.Version)
	}

	for _, action := range in.Actions {
		switch strings.ToLower(strings.TrimSpace(action.Action)) {
		case "addlineitem":
			sku := strings.TrimSpace(action.SKU)
			if sku == "" {
				return nil, errors.New("sku required")
			}
			if action.Quantity <= 0 {
				return nil, errors.New("quantity must be positive")
			}
			variant, err := s.variantRepo.GetBySKU(ctx, sku)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return nil, errors.New("variant not found")
				}
				return nil, err
			}
			if variant.Status != domain.VariantStatusActive {
				return nil, errors.New("variant discontinued")
			}
			if err := s.repo.AddLineItem(ctx, cartID, *variant, action.Quantity); err != nil {
				return nil, err
			}
		case "changelineitemquantity":
			lineID := strings.TrimSpace(action.LineItemID)
			if lineID == "" {
				return nil, errors.New("lineItemId required")
			}
			if err := s.repo.ChangeLineItemQuantity(ctx, cartID, lineID, action.Quantity); err != nil {
				return nil, err
			}
		case "removelineitem":
			lineID := strings.TrimSpace(action.LineItemID)
			if lineID == "" {
				return nil, errors.New("lineItemId required")
			}
			if err := s.repo.RemoveLineItem(ctx, cartID, lineID); err != nil {
				return nil, err
			}
		case "setlocale":
			locale := strings.TrimSpace(action.Locale)
			if locale == "" {
				return nil, errors.New("locale required")
			}
			if err := s.repo.SetLocale(ctx, cartID, locale); err != nil {
				return nil, err
			}
		default:
			return nil, errors.New("unsupported action")
		}
	}

	return s.repo.GetByID(ctx, cartID)
}

// Validate re-checks every line against current catalog, inventory and
// drop state and reports a per-line diff. Price changes are surfaced for
// the shopper to re-confirm, never silently applied.
func (s *Service) Validate(ctx context.Context, cartID string) ([]domain.LineDiff, error) {
	cart, err := s.repo.GetByID(ctx, cartID)
	if err != nil {
		return nil, err
	}
	return s.ValidateLines(ctx, cart.Lines)
}

func (s *Service) ValidateLines(ctx context.Context, lines []domain.CartLine) ([]domain.LineDiff, error) {
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.VariantID)
	}
	variants, err := s.variantRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	diffs := make([]domain.LineDiff, 0, len(lines))
	for _, line := range lines {
		diff := domain.LineDiff{LineID: line.ID, VariantID: line.VariantID, SKU: line.SKU, Result: domain.LineUnchanged}

		variant, ok := variants[line.VariantID]
		switch {
		case !ok || variant.Status != domain.VariantStatusActive:
			diff.Result = domain.LineUnavailable
			diff.Reason = domain.ReasonDiscontinued
		default:
			if gated, err := s.dropGated(ctx, variant, now); err != nil {
				return nil, err
			} else if gated {
				diff.Result = domain.LineUnavailable
				diff.Reason = domain.ReasonDropNotActive
				break
			}

			inv, err := s.invRepo.Get(ctx, line.VariantID)
			if err != nil {
				if !errors.Is(err, domain.ErrNotFound) {
					return nil, err
				}
				diff.Result = domain.LineUnavailable
				diff.Reason = domain.ReasonOutOfStock
				break
			}
			if inv.Available() < line.Quantity {
				diff.Result = domain.LineUnavailable
				diff.Reason = domain.ReasonOutOfStock
				break
			}

			if variant.PriceCents != line.UnitPriceCents {
				diff.Result = domain.LinePriceChanged
				diff.OldPriceCents = line.UnitPriceCents
				diff.NewPriceCents = variant.PriceCents
			}
		}

		diffs = append(diffs, diff)
	}
	return diffs, nil
}

// dropGated reports whether the variant's collection is under a limited
// drop whose window does not cover now. Variants outside any drop are
// never gated.
func (s *Service) dropGated(ctx context.Context, variant domain.Variant, now time.Time) (bool, error) {
	if variant.CollectionID == nil {
		return false, nil
	}
	d, err := s.dropRepo.GetByCollection(ctx, *variant.CollectionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return !d.ActiveAt(now), nil
}
