package inventory

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"maison-commerce/internal/domain"
	"maison-commerce/internal/migrate"
)

func testPool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	return pool
}

func seedVariant(ctx context.Context, t *testing.T, pool *pgxpool.Pool, quantity int) string {
	t.Helper()
	var productID string
	err := pool.QueryRow(ctx, `
INSERT INTO products (key, name) VALUES (gen_random_uuid()::text, 'Test Product') RETURNING id::text
`).Scan(&productID)
	if err != nil {
		t.Fatalf("insert product: %v", err)
	}
	var variantID string
	err = pool.QueryRow(ctx, `
INSERT INTO variants (product_id, sku, name, price_cents) VALUES ($1, gen_random_uuid()::text, 'Test Variant', 1000) RETURNING id::text
`, productID).Scan(&variantID)
	if err != nil {
		t.Fatalf("insert variant: %v", err)
	}
	if _, err := pool.Exec(ctx, `
INSERT INTO inventory (variant_id, quantity, reserved, low_stock_threshold) VALUES ($1, $2, 0, 1)
`, variantID, quantity); err != nil {
		t.Fatalf("insert inventory: %v", err)
	}
	return variantID
}

func TestPostgres_ReserveReleaseCommit(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()

	if err := migrate.Apply(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	repo := NewPostgres(pool, nil)
	variantID := seedVariant(ctx, t, pool, 5)
	orderID := uuid.NewString()
	expires := time.Now().Add(15 * time.Minute)

	res, err := repo.Reserve(ctx, orderID, variantID, 3, expires)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	inv, err := repo.Get(ctx, variantID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if inv.Reserved != 3 || inv.Available() != 2 {
		t.Fatalf("expected reserved=3 available=2, got %+v", inv)
	}

	// More than remains must fail without touching the counters.
	_, err = repo.Reserve(ctx, orderID, variantID, 3, expires)
	var stock domain.InsufficientStockError
	if !errors.As(err, &stock) || stock.Available != 2 {
		t.Fatalf("expected InsufficientStockError available=2, got %v", err)
	}

	if err := repo.Release(ctx, res.ID); err != nil {
		t.Fatalf("Release: %v", err)
	}
	inv, _ = repo.Get(ctx, variantID)
	if inv.Reserved != 0 || inv.Quantity != 5 {
		t.Fatalf("release must give units back, got %+v", inv)
	}

	// Release twice is a no-op.
	if err := repo.Release(ctx, res.ID); err != nil {
		t.Fatalf("second Release: %v", err)
	}

	// Committing a released hold must be refused.
	if err := repo.Commit(ctx, res.ID); !errors.Is(err, domain.ErrReservationExpired) {
		t.Fatalf("expected ErrReservationExpired, got %v", err)
	}

	res2, err := repo.Reserve(ctx, orderID, variantID, 2, expires)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if err := repo.Commit(ctx, res2.ID); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	inv, _ = repo.Get(ctx, variantID)
	if inv.Quantity != 3 || inv.Reserved != 0 {
		t.Fatalf("commit must consume stock, got %+v", inv)
	}

	// Commit twice is a no-op.
	if err := repo.Commit(ctx, res2.ID); err != nil {
		t.Fatalf("second Commit: %v", err)
	}
}

func TestPostgres_ConcurrentReserveLastUnit(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()

	if err := migrate.Apply(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	repo := NewPostgres(pool, nil)
	variantID := seedVariant(ctx, t, pool, 1)
	expires := time.Now().Add(15 * time.Minute)

	// Every writer races for the single remaining unit; the conditional
	// update lets exactly one through.
	const writers = 8
	errs := make(chan error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Reserve(ctx, uuid.NewString(), variantID, 1, expires)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	won := 0
	for err := range errs {
		if err == nil {
			won++
			continue
		}
		var stock domain.InsufficientStockError
		if !errors.As(err, &stock) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 1 {
		t.Fatalf("exactly one reservation must win the last unit, got %d", won)
	}

	inv, err := repo.Get(ctx, variantID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if inv.Reserved != 1 || inv.Available() != 0 {
		t.Fatalf("expected reserved=1 available=0, got %+v", inv)
	}
}

func TestPostgres_SweepExpired(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()

	if err := migrate.Apply(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	repo := NewPostgres(pool, nil)
	variantID := seedVariant(ctx, t, pool, 4)
	orderID := uuid.NewString()

	if _, err := repo.Reserve(ctx, orderID, variantID, 2, time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	orders, err := repo.SweepExpired(ctx, time.Now())
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if len(orders) != 1 || orders[0] != orderID {
		t.Fatalf("expected order %s swept, got %v", orderID, orders)
	}

	inv, err := repo.Get(ctx, variantID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if inv.Reserved != 0 || inv.Quantity != 4 {
		t.Fatalf("sweep must return units, got %+v", inv)
	}

	// Second sweep finds nothing.
	orders, err = repo.SweepExpired(ctx, time.Now())
	if err != nil {
		t.Fatalf("second SweepExpired: %v", err)
	}
	if len(orders) != 0 {
		t.Fatalf("expected empty sweep, got %v", orders)
	}
}

func TestPostgres_Adjust(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()

	if err := migrate.Apply(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	repo := NewPostgres(pool, nil)
	variantID := seedVariant(ctx, t, pool, 5)

	inv, err := repo.Adjust(ctx, AdjustInput{VariantID: variantID, Delta: 3, Reason: "recount", Actor: "ops"})
	if err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	if inv.Quantity != 8 {
		t.Fatalf("expected quantity 8, got %+v", inv)
	}

	// Cannot drop below the reserved count.
	if _, err := repo.Reserve(ctx, uuid.NewString(), variantID, 6, time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if _, err := repo.Adjust(ctx, AdjustInput{VariantID: variantID, Delta: -4, Reason: "shrink", Actor: "ops"}); err == nil {
		t.Fatal("expected adjustment below reserved to fail")
	}
}
