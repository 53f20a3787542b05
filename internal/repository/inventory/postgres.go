package inventory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
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

func (r *postgresRepo) Get(ctx context.Context, variantID string) (*domain.Inventory, error) {
	const q = `
SELECT variant_id::text, quantity, reserved, low_stock_threshold, updated_at
FROM inventory
WHERE variant_id = $1
`
	var inv domain.Inventory
	err := db.Q(ctx, r.pool).QueryRow(ctx, q, variantID).Scan(
		&inv.VariantID, &inv.Quantity, &inv.Reserved, &inv.LowStockThreshold, &inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get inventory: %w", err)
	}
	return &inv, nil
}

// Reserve takes a hold with a single conditional update so two concurrent
// checkouts can never both claim the last unit.
func (r *postgresRepo) Reserve(ctx context.Context, orderID, variantID string, quantity int, expiresAt time.Time) (*domain.Reservation, error) {
	q := db.Q(ctx, r.pool)

	const reserveStmt = `
UPDATE inventory
SET reserved = reserved + $2, updated_at = now()
WHERE variant_id = $1 AND quantity - reserved >= $2
`
	tag, err := q.Exec(ctx, reserveStmt, variantID, quantity)
	if err != nil {
		return nil, fmt.Errorf("reserve stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var available int
		err := q.QueryRow(ctx, `SELECT quantity - reserved FROM inventory WHERE variant_id = $1`, variantID).Scan(&available)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, domain.ErrNotFound
			}
			return nil, fmt.Errorf("read availability: %w", err)
		}
		r.logger.Printf("inventory repo: reserve variant=%s qty=%d rejected available=%d", variantID, quantity, available)
		return nil, domain.InsufficientStockError{VariantID: variantID, Requested: quantity, Available: available}
	}

	res := domain.Reservation{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		VariantID: variantID,
		Quantity:  quantity,
		Status:    domain.ReservationHeld,
		ExpiresAt: expiresAt,
	}
	const insertStmt = `
INSERT INTO reservations (id, order_id, variant_id, quantity, status, expires_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING created_at
`
	if err := q.QueryRow(ctx, insertStmt, res.ID, res.OrderID, res.VariantID, res.Quantity, res.Status, res.ExpiresAt).Scan(&res.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert reservation: %w", err)
	}
	r.logger.Printf("inventory repo: reserved variant=%s qty=%d token=%s", variantID, quantity, res.ID)
	return &res, nil
}

// Release is idempotent: a token that is already released, committed or
// unknown is a no-op.
func (r *postgresRepo) Release(ctx context.Context, token string) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		q := db.Q(ctx, r.pool)

		const flipStmt = `
UPDATE reservations
SET status = $2
WHERE id = $1 AND status = $3
RETURNING variant_id::text, quantity
`
		var variantID string
		var quantity int
		err := q.QueryRow(ctx, flipStmt, token, domain.ReservationReleased, domain.ReservationHeld).Scan(&variantID, &quantity)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("release reservation: %w", err)
		}

		if _, err := q.Exec(ctx, `UPDATE inventory SET reserved = reserved - $2, updated_at = now() WHERE variant_id = $1`, variantID, quantity); err != nil {
			return fmt.Errorf("release stock: %w", err)
		}
		r.logger.Printf("inventory repo: released variant=%s qty=%d token=%s", variantID, quantity, token)
		return nil
	})
}

// Commit finalizes the sale: the held units leave both counters. A token
// already committed is a no-op; a released token means the hold was swept
// and the sale must not go through.
func (r *postgresRepo) Commit(ctx context.Context, token string) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		q := db.Q(ctx, r.pool)

		const flipStmt = `
UPDATE reservations
SET status = $2
WHERE id = $1 AND status = $3
RETURNING variant_id::text, quantity
`
		var variantID string
		var quantity int
		err := q.QueryRow(ctx, flipStmt, token, domain.ReservationCommitted, domain.ReservationHeld).Scan(&variantID, &quantity)
		if err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("commit reservation: %w", err)
			}
			var status domain.ReservationStatus
			err := q.QueryRow(ctx, `SELECT status FROM reservations WHERE id = $1`, token).Scan(&status)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return domain.ErrNotFound
				}
				return fmt.Errorf("read reservation status: %w", err)
			}
			if status == domain.ReservationCommitted {
				return nil
			}
			return domain.ErrReservationExpired
		}

		if _, err := q.Exec(ctx, `UPDATE inventory SET quantity = quantity - $2, reserved = reserved - $2, updated_at = now() WHERE variant_id = $1`, variantID, quantity); err != nil {
			return fmt.Errorf("commit stock: %w", err)
		}
		r.logger.Printf("inventory repo: committed variant=%s qty=%d token=%s", variantID, quantity, token)
		return nil
	})
}

func (r *postgresRepo) ListByOrder(ctx context.Context, orderID string) ([]domain.Reservation, error) {
	const q = `
SELECT id::text, order_id::text, variant_id::text, quantity, status, expires_at, created_at
FROM reservations
WHERE order_id = $1
ORDER BY created_at ASC
`
	rows, err := db.Q(ctx, r.pool).Query(ctx, q, orderID)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	var result []domain.Reservation
	for rows.Next() {
		var res domain.Reservation
		if err := rows.Scan(&res.ID, &res.OrderID, &res.VariantID, &res.Quantity, &res.Status, &res.ExpiresAt, &res.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, res)
	}
	return result, rows.Err()
}

// SweepExpired releases every overdue hold in one set-based statement and
// returns the distinct orders whose holds were reclaimed. Safe to run from
// several instances: a hold flips HELD -> RELEASED exactly once.
func (r *postgresRepo) SweepExpired(ctx context.Context, now time.Time) ([]string, error) {
	var orderIDs []string
	err := db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		q := db.Q(ctx, r.pool)

		const sweepStmt = `
UPDATE reservations
SET status = $2
WHERE status = $1 AND expires_at <= $3
RETURNING order_id::text, variant_id::text, quantity
`
		rows, err := q.Query(ctx, sweepStmt, domain.ReservationHeld, domain.ReservationReleased, now)
		if err != nil {
			return fmt.Errorf("sweep reservations: %w", err)
		}

		type swept struct {
			orderID   string
			variantID string
			quantity  int
		}
		var all []swept
		for rows.Next() {
			var s swept
			if err := rows.Scan(&s.orderID, &s.variantID, &s.quantity); err != nil {
				rows.Close()
				return err
			}
			all = append(all, s)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		seen := make(map[string]bool)
		for _, s := range all {
			if _, err := q.Exec(ctx, `UPDATE inventory SET reserved = reserved - $2, updated_at = now() WHERE variant_id = $1`, s.variantID, s.quantity); err != nil {
				return fmt.Errorf("sweep stock: %w", err)
			}
			if !seen[s.orderID] {
				seen[s.orderID] = true
				orderIDs = append(orderIDs, s.orderID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(orderIDs) > 0 {
		r.logger.Printf("inventory repo: swept %d expired orders", len(orderIDs))
	}
	return orderIDs, nil
}

// Adjust applies a manual delta, refusing to take quantity below the
// reserved count or zero, and appends an audit row.
func (r *postgresRepo) Adjust(ctx context.Context, in AdjustInput) (*domain.Inventory, error) {
	var inv domain.Inventory
	err := db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		q := db.Q(ctx, r.pool)

		const adjustStmt = `
UPDATE inventory
SET quantity = quantity + $2, updated_at = now()
WHERE variant_id = $1 AND quantity + $2 >= reserved AND quantity + $2 >= 0
RETURNING variant_id::text, quantity, reserved, low_stock_threshold, updated_at
`
		err := q.QueryRow(ctx, adjustStmt, in.VariantID, in.Delta).Scan(
			&inv.VariantID, &inv.Quantity, &inv.Reserved, &inv.LowStockThreshold, &inv.UpdatedAt,
		)
		if err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("adjust inventory: %w", err)
			}
			var exists bool
			if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM inventory WHERE variant_id = $1)`, in.VariantID).Scan(&exists); err != nil {
				return fmt.Errorf("check inventory: %w", err)
			}
			if !exists {
				return domain.ErrNotFound
			}
			return fmt.Errorf("adjustment of %d would break the reserved <= quantity invariant for variant %s", in.Delta, in.VariantID)
		}

		const auditStmt = `
INSERT INTO inventory_adjustments (variant_id, delta, reason, actor)
VALUES ($1, $2, $3, $4)
`
		if _, err := q.Exec(ctx, auditStmt, in.VariantID, in.Delta, in.Reason, in.Actor); err != nil {
			return fmt.Errorf("insert adjustment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.logger.Printf("inventory repo: adjusted variant=%s delta=%d by=%s", in.VariantID, in.Delta, in.Actor)
	return &inv, nil
}

func (r *postgresRepo) LowStock(ctx context.Context) ([]domain.Inventory, error) {
	const q = `
SELECT variant_id::text, quantity, reserved, low_stock_threshold, updated_at
FROM inventory
WHERE quantity - reserved <= low_stock_threshold
ORDER BY quantity - reserved ASC
`
	rows, err := db.Q(ctx, r.pool).Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list low stock: %w", err)
	}
	defer rows.Close()

	var result []domain.Inventory
	for rows.Next() {
		var inv domain.Inventory
		if err := rows.Scan(&inv.VariantID, &inv.Quantity, &inv.Reserved, &inv.LowStockThreshold, &inv.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, inv)
	}
	return result, rows.Err()
}
