package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type variantSeed struct {
	SKU        string
	Name       string
	PriceCents int64
	Quantity   int
	Threshold  int
}

type productSeed struct {
	Key            string
	Name           string
	CollectionID   string
	LimitedEdition bool
	Variants       []variantSeed
}

// Apply inserts catalog, stock, promotion and drop data for manual
// testing. It is idempotent via ON CONFLICT.
func Apply(ctx context.Context, pool *pgxpool.Pool) error {
	heritageID, err := ensureCollection(ctx, pool, "heritage", "Heritage")
	if err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}
	capsuleID, err := ensureCollection(ctx, pool, "capsule-noir", "Capsule Noir")
	if err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}

	products := []productSeed{
		{
			Key:          "sac-riviera",
			Name:         "Sac Riviera",
			CollectionID: heritageID,
			Variants: []variantSeed{
				{SKU: "RIV-CUIR-NOIR", Name: "Cuir noir", PriceCents: 289000, Quantity: 12, Threshold: 3},
				{SKU: "RIV-CUIR-COGNAC", Name: "Cuir cognac", PriceCents: 289000, Quantity: 8, Threshold: 3},
			},
		},
		{
			Key:          "foulard-jardin",
			Name:         "Foulard Jardin",
			CollectionID: heritageID,
			Variants: []variantSeed{
				{SKU: "JAR-SOIE-90", Name: "Soie 90cm", PriceCents: 42000, Quantity: 40, Threshold: 5},
			},
		},
		{
			Key:            "veste-minuit",
			Name:           "Veste Minuit",
			CollectionID:   capsuleID,
			LimitedEdition: true,
			Variants: []variantSeed{
				{SKU: "MIN-VESTE-38", Name: "Taille 38", PriceCents: 520000, Quantity: 3, Threshold: 1},
				{SKU: "MIN-VESTE-40", Name: "Taille 40", PriceCents: 520000, Quantity: 2, Threshold: 1},
			},
		},
	}

	for _, p := range products {
		if err := upsertProduct(ctx, pool, p); err != nil {
			return fmt.Errorf("upsert product %s: %w", p.Key, err)
		}
	}

	if err := upsertPromotions(ctx, pool); err != nil {
		return fmt.Errorf("upsert promotions: %w", err)
	}

	if err := upsertDrop(ctx, pool, capsuleID); err != nil {
		return fmt.Errorf("upsert drop: %w", err)
	}

	return nil
}

func ensureCollection(ctx context.Context, pool *pgxpool.Pool, key, name string) (string, error) {
	const q = `
INSERT INTO collections (key, name)
VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET name = EXCLUDED.name
RETURNING id::text
`
	var id string
	if err := pool.QueryRow(ctx, q, key, name).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

func upsertProduct(ctx context.Context, pool *pgxpool.Pool, p productSeed) error {
	const productStmt = `
INSERT INTO products (key, name, collection_id, limited_edition)
VALUES ($1, $2, $3, $4)
ON CONFLICT (key) DO UPDATE
SET name = EXCLUDED.name,
    collection_id = EXCLUDED.collection_id,
    limited_edition = EXCLUDED.limited_edition
RETURNING id::text
`
	var productID string
	if err := pool.QueryRow(ctx, productStmt, p.Key, p.Name, p.CollectionID, p.LimitedEdition).Scan(&productID); err != nil {
		return err
	}

	const variantStmt = `
INSERT INTO variants (product_id, sku, name, price_cents, currency, status)
VALUES ($1, $2, $3, $4, 'EUR', 'active')
ON CONFLICT (sku) DO UPDATE
SET name = EXCLUDED.name,
    price_cents = EXCLUDED.price_cents
RETURNING id::text
`
	const stockStmt = `
INSERT INTO inventory (variant_id, quantity, reserved, low_stock_threshold)
VALUES ($1, $2, 0, $3)
ON CONFLICT (variant_id) DO NOTHING
`
	for _, v := range p.Variants {
		var variantID string
		if err := pool.QueryRow(ctx, variantStmt, productID, v.SKU, v.Name, v.PriceCents).Scan(&variantID); err != nil {
			return err
		}
		if _, err := pool.Exec(ctx, stockStmt, variantID, v.Quantity, v.Threshold); err != nil {
			return err
		}
	}
	return nil
}

func upsertPromotions(ctx context.Context, pool *pgxpool.Pool) error {
	const q = `
INSERT INTO promotions (code, discount_type, value, starts_at, ends_at, usage_limit, locale, limited_edition_only)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (code) DO UPDATE
SET discount_type = EXCLUDED.discount_type,
    value = EXCLUDED.value,
    starts_at = EXCLUDED.starts_at,
    ends_at = EXCLUDED.ends_at,
    usage_limit = EXCLUDED.usage_limit,
    locale = EXCLUDED.locale,
    limited_edition_only = EXCLUDED.limited_edition_only
`
	launched := time.Now().Add(-24 * time.Hour)
	limit := 500
	frLocale := "fr"
	promos := []struct {
		code        string
		kind        string
		value       int64
		startsAt    time.Time
		endsAt      *time.Time
		usageLimit  *int
		locale      *string
		limitedOnly bool
	}{
		{code: "BIENVENUE", kind: "percentage", value: 10, startsAt: launched, usageLimit: &limit},
		{code: "SOLDES25", kind: "percentage", value: 25, startsAt: launched, locale: &frLocale},
		{code: "LIVRAISON", kind: "shipping", value: 0, startsAt: launched},
		{code: "PRIVILEGE", kind: "amount", value: 50000, startsAt: launched, limitedOnly: true},
	}
	for _, p := range promos {
		if _, err := pool.Exec(ctx, q, p.code, p.kind, p.value, p.startsAt, p.endsAt, p.usageLimit, p.locale, p.limitedOnly); err != nil {
			return err
		}
	}
	return nil
}

func upsertDrop(ctx context.Context, pool *pgxpool.Pool, collectionID string) error {
	const q = `
INSERT INTO limited_drops (collection_id, starts_at, ends_at, waitlist_open)
VALUES ($1, $2, $3, true)
ON CONFLICT (collection_id) DO UPDATE
SET starts_at = EXCLUDED.starts_at,
    ends_at = EXCLUDED.ends_at
`
	starts := time.Now().Add(-time.Hour)
	ends := time.Now().Add(14 * 24 * time.Hour)
	_, err := pool.Exec(ctx, q, collectionID, starts, ends)
	return err
}
