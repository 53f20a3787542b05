package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"maison-commerce/internal/clock"
	"maison-commerce/internal/config"
	"maison-commerce/internal/db"
	"maison-commerce/internal/events"
	"maison-commerce/internal/httpserver"
	"maison-commerce/internal/payment"
	"maison-commerce/internal/redisx"
	cartrepo "maison-commerce/internal/repository/cart"
	droprepo "maison-commerce/internal/repository/drop"
	invrepo "maison-commerce/internal/repository/inventory"
	orderrepo "maison-commerce/internal/repository/order"
	promorepo "maison-commerce/internal/repository/promotion"
	variantrepo "maison-commerce/internal/repository/variant"
	cartsvc "maison-commerce/internal/service/cart"
	checkoutsvc "maison-commerce/internal/service/checkout"
	inventorysvc "maison-commerce/internal/service/inventory"
	ordersvc "maison-commerce/internal/service/order"
	promotionsvc "maison-commerce/internal/service/promotion"
	waitlistsvc "maison-commerce/internal/service/waitlist"
)

func main() {
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbpool, err := db.Connect(ctx, cfg.DBConnString, cfg.DBMaxConns)
	if err != nil {
		logger.Fatalf("connect to db: %v", err)
	}
	defer dbpool.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	publisher := events.NewPublisher(cfg.KafkaBrokers, "maison-commerce-api", logger)
	publisher.Start(ctx)

	clk := clock.NewSystem()

	variantRepo := variantrepo.NewPostgres(dbpool)
	inventoryRepo := invrepo.NewPostgres(dbpool, logger)
	cartRepo := cartrepo.NewPostgres(dbpool)
	promotionRepo := promorepo.NewPostgres(dbpool, logger)
	orderRepo := orderrepo.NewPostgres(dbpool, logger)
	dropRepo := droprepo.NewPostgres(dbpool)

	cartService := cartsvc.New(cartRepo, variantRepo, inventoryRepo, dropRepo, clk, logger)
	promotionService := promotionsvc.New(promotionRepo, variantRepo, clk)
	inventoryService := inventorysvc.New(inventoryRepo)
	orderService := ordersvc.New(orderRepo, publisher, logger)
	waitlistService := waitlistsvc.New(dropRepo, clk)
	gateway := payment.NewRedirect(cfg.GatewayBaseURL)
	checkoutService := checkoutsvc.New(
		cartRepo, cartService, promotionService, promotionRepo,
		inventoryRepo, orderRepo, gateway, publisher, rdb, clk, logger,
		checkoutsvc.Options{ReservationTTL: cfg.ReservationTTL, ShippingCents: cfg.ShippingCents},
	)

	go checkoutService.RunSweeper(ctx, cfg.SweepInterval)

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		CartSvc:       cartService,
		CheckoutSvc:   checkoutService,
		PromotionSvc:  promotionService,
		OrderSvc:      orderService,
		InventorySvc:  inventoryService,
		WaitlistSvc:   waitlistService,
		ShippingCents: cfg.ShippingCents,
	})
	if err != nil {
		logger.Fatalf("init server: %v", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Printf("starting http server on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Printf("received signal %s, shutting down", sig)
	case err := <-serverErr:
		logger.Printf("server error: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	} else {
		logger.Printf("server stopped")
	}

	cancel()
	publisher.WaitClosed()
}
