package order

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

func (r *postgresRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.WithTx(ctx, r.pool, fn)
}

const orderColumns = `
id::text, cart_id::text, email, locale, currency, status, fulfillment_status, payment_status,
subtotal_cents, discount_cents, shipping_cents, total_cents, promotion_code, tracking_code,
created_at, updated_at
`

func (r *postgresRepo) Create(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	q := db.Q(ctx, r.pool)

	const insertStmt = `
INSERT INTO orders (cart_id, email, locale, currency, status, fulfillment_status, payment_status,
                    subtotal_cents, discount_cents, shipping_cents, total_cents, promotion_code)
VALUES ($1, $2, $3, $4, 'PENDING', 'NOT_STARTED', 'UNPAID', $5, $6, $7, $8, $9)
RETURNING ` + orderColumns + `
`
	ord, err := scanOrder(q.QueryRow(ctx, insertStmt,
		in.CartID, in.Email, in.Locale, in.Currency,
		in.SubtotalCents, in.DiscountCents, in.ShippingCents, in.TotalCents, in.PromotionCode,
	))
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	const itemStmt = `
INSERT INTO order_items (order_id, variant_id, sku, product_name, quantity, unit_price_cents, total_cents)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id::text
`
	for _, item := range in.Items {
		item.OrderID = ord.ID
		if err := q.QueryRow(ctx, itemStmt,
			ord.ID, item.VariantID, item.SKU, item.ProductName, item.Quantity, item.UnitPriceCents, item.TotalCents,
		).Scan(&item.ID); err != nil {
			return nil, fmt.Errorf("insert order item: %w", err)
		}
		ord.Items = append(ord.Items, item)
	}
	r.logger.Printf("order repo: created order=%s items=%d total=%d", ord.ID, len(ord.Items), ord.TotalCents)
	return ord, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.fetch(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

// GetForUpdate locks the order row for the remainder of the surrounding
// transaction; duplicate gateway callbacks serialize here.
func (r *postgresRepo) GetForUpdate(ctx context.Context, id string) (*domain.Order, error) {
	return r.fetch(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

func (r *postgresRepo) fetch(ctx context.Context, q, id string) (*domain.Order, error) {
	ord, err := scanOrder(db.Q(ctx, r.pool).QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	const itemsQuery = `
SELECT id::text, order_id::text, variant_id::text, sku, product_name, quantity, unit_price_cents, total_cents
FROM order_items
WHERE order_id = $1
ORDER BY id ASC
`
	rows, err := db.Q(ctx, r.pool).Query(ctx, itemsQuery, ord.ID)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.VariantID, &item.SKU, &item.ProductName, &item.Quantity, &item.UnitPriceCents, &item.TotalCents); err != nil {
			return nil, err
		}
		ord.Items = append(ord.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ord, nil
}

func (r *postgresRepo) SetStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	return r.setColumn(ctx, id, `UPDATE orders SET status = $1, updated_at = now() WHERE id = $2`, string(status))
}

func (r *postgresRepo) SetFulfillment(ctx context.Context, id string, status domain.FulfillmentStatus, tracking *string) error {
	tag, err := db.Q(ctx, r.pool).Exec(ctx, `
UPDATE orders
SET fulfillment_status = $1, tracking_code = COALESCE($2, tracking_code), updated_at = now()
WHERE id = $3
`, string(status), tracking, id)
	if err != nil {
		return fmt.Errorf("set fulfillment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) SetPayment(ctx context.Context, id string, status domain.PaymentStatus) error {
	return r.setColumn(ctx, id, `UPDATE orders SET payment_status = $1, updated_at = now() WHERE id = $2`, string(status))
}

func (r *postgresRepo) setColumn(ctx context.Context, id, stmt, value string) error {
	tag, err := db.Q(ctx, r.pool).Exec(ctx, stmt, value, id)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) AppendPaymentRecord(ctx context.Context, rec domain.PaymentRecord) error {
	const stmt = `
INSERT INTO payment_records (order_id, kind, gateway_reference, amount_cents, note)
VALUES ($1, $2, $3, $4, $5)
`
	if _, err := db.Q(ctx, r.pool).Exec(ctx, stmt, rec.OrderID, rec.Kind, rec.GatewayReference, rec.AmountCents, rec.Note); err != nil {
		return fmt.Errorf("append payment record: %w", err)
	}
	return nil
}

func (r *postgresRepo) ListPaymentRecords(ctx context.Context, orderID string) ([]domain.PaymentRecord, error) {
	const q = `
SELECT id::text, order_id::text, kind, COALESCE(gateway_reference, ''), amount_cents, COALESCE(note, ''), created_at
FROM payment_records
WHERE order_id = $1
ORDER BY created_at ASC
`
	rows, err := db.Q(ctx, r.pool).Query(ctx, q, orderID)
	if err != nil {
		return nil, fmt.Errorf("list payment records: %w", err)
	}
	defer rows.Close()

	var result []domain.PaymentRecord
	for rows.Next() {
		var rec domain.PaymentRecord
		if err := rows.Scan(&rec.ID, &rec.OrderID, &rec.Kind, &rec.GatewayReference, &rec.AmountCents, &rec.Note, &rec.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// ListPendingByIDs filters ids down to orders still PENDING; the sweep
// only cancels those.
func (r *postgresRepo) ListPendingByIDs(ctx context.Context, ids []string) ([]string, error) {
	const q = `
SELECT id::text
FROM orders
WHERE id = ANY($1) AND status = 'PENDING'
`
	rows, err := db.Q(ctx, r.pool).Query(ctx, q, ids)
	if err != nil {
		return nil, fmt.Errorf("list pending orders: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result = append(result, id)
	}
	return result, rows.Err()
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var ord domain.Order
	err := row.Scan(
		&ord.ID, &ord.CartID, &ord.Email, &ord.Locale, &ord.Currency,
		&ord.Status, &ord.FulfillmentStatus, &ord.PaymentStatus,
		&ord.SubtotalCents, &ord.DiscountCents, &ord.ShippingCents, &ord.TotalCents,
		&ord.PromotionCode, &ord.TrackingCode,
		&ord.CreatedAt, &ord.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ord, nil
}
