package promotion

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

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

func seedPromotion(ctx context.Context, t *testing.T, pool *pgxpool.Pool, usageLimit int) string {
	t.Helper()
	var id string
	err := pool.QueryRow(ctx, `
INSERT INTO promotions (code, discount_type, value, usage_limit) VALUES (gen_random_uuid()::text, 'percentage', 10, $1) RETURNING id::text
`, usageLimit).Scan(&id)
	if err != nil {
		t.Fatalf("insert promotion: %v", err)
	}
	return id
}

func TestPostgres_ConcurrentConsumeUsageAtCeiling(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()

	if err := migrate.Apply(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	repo := NewPostgres(pool, nil)
	const limit = 3
	promotionID := seedPromotion(ctx, t, pool, limit)

	// More writers than slots; the conditional update admits exactly
	// limit of them, whatever the interleaving.
	const writers = limit + 5
	errs := make(chan error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.ConsumeUsage(ctx, promotionID, uuid.NewString())
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
		if !errors.Is(err, domain.ErrUsageExceeded) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != limit {
		t.Fatalf("expected exactly %d redemptions at the ceiling, got %d", limit, won)
	}

	var count, redemptions int
	if err := pool.QueryRow(ctx, `SELECT usage_count FROM promotions WHERE id = $1`, promotionID).Scan(&count); err != nil {
		t.Fatalf("read usage_count: %v", err)
	}
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM promotion_redemptions WHERE promotion_id = $1`, promotionID).Scan(&redemptions); err != nil {
		t.Fatalf("count redemptions: %v", err)
	}
	if count != limit || redemptions != limit {
		t.Fatalf("expected usage_count=%d and %d redemption rows, got %d and %d", limit, limit, count, redemptions)
	}
}

func TestPostgres_RestoreUsageIsIdempotent(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()

	if err := migrate.Apply(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	repo := NewPostgres(pool, nil)
	promotionID := seedPromotion(ctx, t, pool, 1)
	orderID := uuid.NewString()

	if err := repo.ConsumeUsage(ctx, promotionID, orderID); err != nil {
		t.Fatalf("ConsumeUsage: %v", err)
	}
	if err := repo.ConsumeUsage(ctx, promotionID, uuid.NewString()); !errors.Is(err, domain.ErrUsageExceeded) {
		t.Fatalf("expected ErrUsageExceeded at the ceiling, got %v", err)
	}

	if err := repo.RestoreUsage(ctx, orderID); err != nil {
		t.Fatalf("RestoreUsage: %v", err)
	}
	// Restoring the same order again must not drive the counter negative.
	if err := repo.RestoreUsage(ctx, orderID); err != nil {
		t.Fatalf("second RestoreUsage: %v", err)
	}

	var count int
	if err := pool.QueryRow(ctx, `SELECT usage_count FROM promotions WHERE id = $1`, promotionID).Scan(&count); err != nil {
		t.Fatalf("read usage_count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected usage_count 0 after restore, got %d", count)
	}
}
