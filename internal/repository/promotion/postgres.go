package promotion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"maison-commerce/internal/db"
	"maison-commerce/internal/domain"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRepo{pool: pool, logger: logger}
}

func (r *postgresRepo) GetByCode(ctx context.Context, code string) (*domain.Promotion, error) {
	const q = `
SELECT id::text, code, discount_type, value, starts_at, ends_at, usage_limit, usage_count, locale, limited_edition_only, created_at
FROM promotions
WHERE code = $1
`
	var p domain.Promotion
	err := db.Q(ctx, r.pool).QueryRow(ctx, q, code).Scan(
		&p.ID, &p.Code, &p.DiscountType, &p.Value, &p.StartsAt, &p.EndsAt,
		&p.UsageLimit, &p.UsageCount, &p.Locale, &p.LimitedEditionOnly, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrInvalidCode
		}
		return nil, fmt.Errorf("get promotion: %w", err)
	}
	return &p, nil
}

// ConsumeUsage takes one usage slot. The conditional update is the whole
// race defense: at the limit, exactly limit writers see a row affected.
func (r *postgresRepo) ConsumeUsage(ctx context.Context, promotionID, orderID string) error {
	q := db.Q(ctx, r.pool)

	const consumeStmt = `
UPDATE promotions
SET usage_count = usage_count + 1
WHERE id = $1 AND (usage_limit IS NULL OR usage_count < usage_limit)
`
	tag, err := q.Exec(ctx, consumeStmt, promotionID)
	if err != nil {
		return fmt.Errorf("consume promotion usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM promotions WHERE id = $1)`, promotionID).Scan(&exists); err != nil {
			return fmt.Errorf("check promotion: %w", err)
		}
		if !exists {
			return domain.ErrInvalidCode
		}
		return domain.ErrUsageExceeded
	}

	const redemptionStmt = `
INSERT INTO promotion_redemptions (promotion_id, order_id)
VALUES ($1, $2)
`
	if _, err := q.Exec(ctx, redemptionStmt, promotionID, orderID); err != nil {
		return fmt.Errorf("insert redemption: %w", err)
	}
	r.logger.Printf("promotion repo: consumed usage promotion=%s order=%s", promotionID, orderID)
	return nil
}

// RestoreUsage gives the slot back when a checkout cancels or expires.
// Idempotent: the redemption row is deleted exactly once.
func (r *postgresRepo) RestoreUsage(ctx context.Context, orderID string) error {
	q := db.Q(ctx, r.pool)

	const deleteStmt = `
DELETE FROM promotion_redemptions
WHERE order_id = $1
RETURNING promotion_id::text
`
	var promotionID string
	err := q.QueryRow(ctx, deleteStmt, orderID).Scan(&promotionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("delete redemption: %w", err)
	}

	if _, err := q.Exec(ctx, `UPDATE promotions SET usage_count = usage_count - 1 WHERE id = $1 AND usage_count > 0`, promotionID); err != nil {
		return fmt.Errorf("restore promotion usage: %w", err)
	}
	r.logger.Printf("promotion repo: restored usage promotion=%s order=%s", promotionID, orderID)
	return nil
}
