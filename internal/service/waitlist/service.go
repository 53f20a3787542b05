package waitlist

import (
	"context"
	"errors"
	"strings"

	"maison-commerce/internal/clock"
	"maison-commerce/internal/domain"
)

type dropRepo interface {
	GetByCollectionKey(ctx context.Context, key string) (*domain.LimitedDrop, error)
	AddWaitlistEntry(ctx context.Context, dropID, email, locale string) (*domain.WaitlistEntry, error)
}

type Service struct {
	drops dropRepo
	clock clock.Clock
}

func New(drops dropRepo, clk clock.Clock) *Service {
	return &Service{drops: drops, clock: clk}
}

// DropStatus is what the storefront needs to render a drop page: the
// window, whether purchase is currently possible, and whether the
// waitlist is taking entries.
type DropStatus struct {
	Drop   domain.LimitedDrop `json:"drop"`
	Active bool               `json:"active"`
}

func (s *Service) Status(ctx context.Context, collectionKey string) (*DropStatus, error) {
	d, err := s.drops.GetByCollectionKey(ctx, collectionKey)
	if err != nil {
		return nil, err
	}
	return &DropStatus{Drop: *d, Active: d.ActiveAt(s.clock.Now())}, nil
}

// Join registers a waitlist entry. No stock implication; duplicate joins
// for the same email are idempotent.
func (s *Service) Join(ctx context.Context, collectionKey, email, locale string) (*domain.WaitlistEntry, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, errors.New("valid email required")
	}
	d, err := s.drops.GetByCollectionKey(ctx, collectionKey)
	if err != nil {
		return nil, err
	}
	if !d.WaitlistOpen {
		return nil, domain.ErrWaitlistClosed
	}
	return s.drops.AddWaitlistEntry(ctx, d.ID, email, locale)
}
