package cart

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

func (r *postgresRepo) Create(ctx context.Context, in CreateCartInput) (*domain.Cart, error) {
	const q = `
INSERT INTO carts (customer_id, session_id, currency, locale, total_cents, state, version)
VALUES ($1, $2, $3, $4, 0, 'active', 1)
RETURNING id::text, customer_id::text, session_id::text, currency, locale, total_cents, state, version, created_at
`
	var cart domain.Cart
	err := r.pool.QueryRow(ctx, q, in.CustomerID, in.SessionID, in.Currency, in.Locale).Scan(
		&cart.ID,
		&cart.CustomerID,
		&cart.SessionID,
		&cart.Currency,
		&cart.Locale,
		&cart.TotalCents,
		&cart.State,
		&cart.Version,
		&cart.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create cart: %w", err)
	}
	return &cart, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Cart, error) {
	const cartQuery = `
SELECT id::text, customer_id::text, session_id::text, currency, locale, total_cents, state, version, created_at
FROM carts
WHERE id = $1
`
	var cart domain.Cart
	err := db.Q(ctx, r.pool).QueryRow(ctx, cartQuery, id).Scan(
		&cart.ID,
		&cart.CustomerID,
		&cart.SessionID,
		&cart.Currency,
		&cart.Locale,
		&cart.TotalCents,
		&cart.State,
		&cart.Version,
		&cart.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}

	const linesQuery = `
SELECT id::text, cart_id::text, variant_id::text, sku, product_name, quantity, unit_price_cents, total_cents, created_at
FROM cart_lines
WHERE cart_id = $1
ORDER BY created_at ASC
`
	rows, err := db.Q(ctx, r.pool).Query(ctx, linesQuery, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("get cart lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.CartLine
		if err := rows.Scan(
			&line.ID,
			&line.CartID,
			&line.VariantID,
			&line.SKU,
			&line.ProductName,
			&line.Quantity,
			&line.UnitPriceCents,
			&line.TotalCents,
			&line.CreatedAt,
		); err != nil {
			return nil, err
		}
		cart.Lines = append(cart.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *postgresRepo) AddLineItem(ctx context.Context, cartID string, variant domain.Variant, quantity int) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		q := db.Q(ctx, r.pool)

		var lineID string
		var existingQty int
		var unitPrice int64
		err := q.QueryRow(ctx, `
SELECT id::text, quantity, unit_price_cents
FROM cart_lines
WHERE cart_id = $1 AND variant_id = $2
`, cartID, variant.ID).Scan(&lineID, &existingQty, &unitPrice)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		if err == nil {
			newQty := existingQty + quantity
			if _, err := q.Exec(ctx, `
UPDATE cart_lines
SET quantity = $1, total_cents = $2
WHERE id = $3
`, newQty, unitPrice*int64(newQty), lineID); err != nil {
				return err
			}
		} else {
			unitPrice = variant.PriceCents
			if _, err := q.Exec(ctx, `
INSERT INTO cart_lines (cart_id, variant_id, sku, product_name, quantity, unit_price_cents, total_cents)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`, cartID, variant.ID, variant.SKU, variant.ProductName, quantity, unitPrice, unitPrice*int64(quantity)); err != nil {
				return err
			}
		}

		return refreshCart(ctx, q, cartID)
	})
}

func (r *postgresRepo) ChangeLineItemQuantity(ctx context.Context, cartID, lineItemID string, quantity int) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		q := db.Q(ctx, r.pool)

		if quantity <= 0 {
			return removeLine(ctx, q, cartID, lineItemID)
		}

		var unitPrice int64
		err := q.QueryRow(ctx, `
SELECT unit_price_cents
FROM cart_lines
WHERE id = $1 AND cart_id = $2
`, lineItemID, cartID).Scan(&unitPrice)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrNotFound
			}
			return err
		}
		if _, err := q.Exec(ctx, `
UPDATE cart_lines
SET quantity = $1, total_cents = $2
WHERE id = $3 AND cart_id = $4
`, quantity, unitPrice*int64(quantity), lineItemID, cartID); err != nil {
			return err
		}

		return refreshCart(ctx, q, cartID)
	})
}

func (r *postgresRepo) RemoveLineItem(ctx context.Context, cartID, lineItemID string) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		return removeLine(ctx, db.Q(ctx, r.pool), cartID, lineItemID)
	})
}

func (r *postgresRepo) SetLocale(ctx context.Context, cartID, locale string) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE carts
SET locale = $1, version = version + 1
WHERE id = $2
`, locale, cartID)
	if err != nil {
		return fmt.Errorf("set cart locale: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) SetState(ctx context.Context, cartID, state string) error {
	tag, err := db.Q(ctx, r.pool).Exec(ctx, `
UPDATE carts
SET state = $1, version = version + 1
WHERE id = $2
`, state, cartID)
	if err != nil {
		return fmt.Errorf("set cart state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func removeLine(ctx context.Context, q db.Querier, cartID, lineItemID string) error {
	cmd, err := q.Exec(ctx, `
DELETE FROM cart_lines
WHERE id = $1 AND cart_id = $2
`, lineItemID, cartID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return refreshCart(ctx, q, cartID)
}

// refreshCart recomputes the cart total and bumps the version counter.
func refreshCart(ctx context.Context, q db.Querier, cartID string) error {
	_, err := q.Exec(ctx, `
UPDATE carts
SET total_cents = COALESCE((
	SELECT SUM(total_cents)
	FROM cart_lines
	WHERE cart_id = $1
), 0),
    version = version + 1
WHERE id = $1
`, cartID)
	return err
}
