package drop

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"maison-commerce/internal/db"
	"maison-commerce/internal/domain"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

const dropColumns = `d.id::text, d.collection_id::text, d.starts_at, d.ends_at, d.waitlist_open, d.created_at`

func (r *postgresRepo) GetByCollection(ctx context.Context, collectionID string) (*domain.LimitedDrop, error) {
	q := `
SELECT ` + dropColumns + `
FROM limited_drops d
WHERE d.collection_id = $1
`
	return r.fetchOne(ctx, q, collectionID)
}

func (r *postgresRepo) GetByCollectionKey(ctx context.Context, key string) (*domain.LimitedDrop, error) {
	q := `
SELECT ` + dropColumns + `
FROM limited_drops d
JOIN collections c ON c.id = d.collection_id
WHERE c.key = $1
`
	return r.fetchOne(ctx, q, key)
}

// AddWaitlistEntry is idempotent per (drop, email): a duplicate join
// returns the existing entry instead of an error.
func (r *postgresRepo) AddWaitlistEntry(ctx context.Context, dropID, email, locale string) (*domain.WaitlistEntry, error) {
	const stmt = `
INSERT INTO waitlist_entries (drop_id, email, locale)
VALUES ($1, $2, $3)
ON CONFLICT (drop_id, email) DO UPDATE SET locale = EXCLUDED.locale
RETURNING id::text, drop_id::text, email, locale, created_at
`
	var entry domain.WaitlistEntry
	err := db.Q(ctx, r.pool).QueryRow(ctx, stmt, dropID, email, locale).Scan(
		&entry.ID, &entry.DropID, &entry.Email, &entry.Locale, &entry.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("add waitlist entry: %w", err)
	}
	return &entry, nil
}

func (r *postgresRepo) fetchOne(ctx context.Context, q string, arg any) (*domain.LimitedDrop, error) {
	var d domain.LimitedDrop
	err := db.Q(ctx, r.pool).QueryRow(ctx, q, arg).Scan(
		&d.ID, &d.CollectionID, &d.StartsAt, &d.EndsAt, &d.WaitlistOpen, &d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get drop: %w", err)
	}
	return &d, nil
}
