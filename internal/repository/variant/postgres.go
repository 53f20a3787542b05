package variant

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

const variantColumns = `
v.id::text, v.product_id::text, v.sku, v.name, v.price_cents, v.currency, v.status,
p.name, p.collection_id::text, p.limited_edition, v.created_at
`

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Variant, error) {
	q := `
SELECT ` + variantColumns + `
FROM variants v
JOIN products p ON p.id = v.product_id
WHERE v.id = $1
`
	return r.fetchOne(ctx, q, id)
}

func (r *postgresRepo) GetBySKU(ctx context.Context, sku string) (*domain.Variant, error) {
	q := `
SELECT ` + variantColumns + `
FROM variants v
JOIN products p ON p.id = v.product_id
WHERE v.sku = $1
`
	return r.fetchOne(ctx, q, sku)
}

func (r *postgresRepo) GetByIDs(ctx context.Context, ids []string) (map[string]domain.Variant, error) {
	q := `
SELECT ` + variantColumns + `
FROM variants v
JOIN products p ON p.id = v.product_id
WHERE v.id = ANY($1)
`
	rows, err := db.Q(ctx, r.pool).Query(ctx, q, ids)
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	defer rows.Close()

	result := make(map[string]domain.Variant, len(ids))
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, err
		}
		result[v.ID] = *v
	}
	return result, rows.Err()
}

func (r *postgresRepo) fetchOne(ctx context.Context, q string, arg any) (*domain.Variant, error) {
	v, err := scanVariant(db.Q(ctx, r.pool).QueryRow(ctx, q, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get variant: %w", err)
	}
	return v, nil
}

func scanVariant(row pgx.Row) (*domain.Variant, error) {
	var v domain.Variant
	err := row.Scan(
		&v.ID, &v.ProductID, &v.SKU, &v.Name, &v.PriceCents, &v.Currency, &v.Status,
		&v.ProductName, &v.CollectionID, &v.LimitedEdition, &v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
