package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"maison-commerce/internal/clock"
	"maison-commerce/internal/config"
	"maison-commerce/internal/db"
	"maison-commerce/internal/events"
	"maison-commerce/internal/payment"
	cartrepo "maison-commerce/internal/repository/cart"
	droprepo "maison-commerce/internal/repository/drop"
	invrepo "maison-commerce/internal/repository/inventory"
	orderrepo "maison-commerce/internal/repository/order"
	promorepo "maison-commerce/internal/repository/promotion"
	variantrepo "maison-commerce/internal/repository/variant"
	cartsvc "maison-commerce/internal/service/cart"
	checkoutsvc "maison-commerce/internal/service/checkout"
	promotionsvc "maison-commerce/internal/service/promotion"
)

// Standalone TTL sweeper for deployments that prefer one sweeping
// process over the in-process loop inside each API instance. Running
// both is safe; a hold is reclaimed exactly once.
func main() {
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[sweeper] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DBConnString, cfg.DBMaxConns)
	if err != nil {
		logger.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	clk := clock.NewSystem()
	publisher := events.NewPublisher(cfg.KafkaBrokers, "maison-commerce-sweeper", logger)
	publisher.Start(ctx)

	variantRepo := variantrepo.NewPostgres(pool)
	inventoryRepo := invrepo.NewPostgres(pool, logger)
	cartRepo := cartrepo.NewPostgres(pool)
	promotionRepo := promorepo.NewPostgres(pool, logger)
	orderRepo := orderrepo.NewPostgres(pool, logger)
	dropRepo := droprepo.NewPostgres(pool)

	cartService := cartsvc.New(cartRepo, variantRepo, inventoryRepo, dropRepo, clk, logger)
	promotionService := promotionsvc.New(promotionRepo, variantRepo, clk)
	checkoutService := checkoutsvc.New(
		cartRepo, cartService, promotionService, promotionRepo,
		inventoryRepo, orderRepo, payment.NewRedirect(cfg.GatewayBaseURL), publisher, nil, clk, logger,
		checkoutsvc.Options{ReservationTTL: cfg.ReservationTTL, ShippingCents: cfg.ShippingCents},
	)

	go func() {
		stopCh := make(chan os.Signal, 1)
		signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-stopCh
		logger.Printf("received signal %s, stopping", sig)
		cancel()
	}()

	logger.Printf("sweeping every %s", cfg.SweepInterval)
	checkoutService.RunSweeper(ctx, cfg.SweepInterval)
	publisher.WaitClosed()
}
