package drop

import (
	"context"

	"maison-commerce/internal/domain"
)

// Repository reads limited drop windows and stores waitlist entries.
type Repository interface {
	GetByCollection(ctx context.Context, collectionID string) (*domain.LimitedDrop, error)
	GetByCollectionKey(ctx context.Context, key string) (*domain.LimitedDrop, error)
	AddWaitlistEntry(ctx context.Context, dropID, email, locale string) (*domain.WaitlistEntry, error)
}
