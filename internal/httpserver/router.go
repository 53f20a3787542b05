package httpserver

import (
	"context"
	"log"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"maison-commerce/internal/domain"
	cartsvc "maison-commerce/internal/service/cart"
	checkoutsvc "maison-commerce/internal/service/checkout"
	inventorysvc "maison-commerce/internal/service/inventory"
	ordersvc "maison-commerce/internal/service/order"
	waitlistsvc "maison-commerce/internal/service/waitlist"
)

type cartService interface {
	Create(ctx context.Context, in cartsvc.CreateInput) (*domain.Cart, error)
	Get(ctx context.Context, id string) (*domain.Cart, error)
	Update(ctx context.Context, cartID string, in cartsvc.UpdateInput) (*domain.Cart, error)
	Validate(ctx context.Context, cartID string) ([]domain.LineDiff, error)
}

type checkoutService interface {
	Begin(ctx context.Context, in checkoutsvc.BeginInput) (*checkoutsvc.BeginResult, error)
	HandlePaymentResult(ctx context.Context, orderID string, success bool, reference string) error
}

type promotionService interface {
	Evaluate(ctx context.Context, code string, lines []domain.CartLine, locale string, shippingCents int64) (*domain.Discount, error)
}

type orderService interface {
	Get(ctx context.Context, id string) (*domain.Order, error)
	PaymentRecords(ctx context.Context, orderID string) ([]domain.PaymentRecord, error)
	Transition(ctx context.Context, orderID string, in ordersvc.TransitionInput) (*domain.Order, error)
	Refund(ctx context.Context, orderID, reference string) (*domain.Order, error)
}

type inventoryService interface {
	Get(ctx context.Context, variantID string) (*domain.Inventory, error)
	Adjust(ctx context.Context, variantID string, in inventorysvc.AdjustInput) (*domain.Inventory, error)
	LowStock(ctx context.Context) ([]domain.Inventory, error)
}

type waitlistService interface {
	Status(ctx context.Context, collectionKey string) (*waitlistsvc.DropStatus, error)
	Join(ctx context.Context, collectionKey, email, locale string) (*domain.WaitlistEntry, error)
}

// Deps carries the services the router wires handlers to.
type Deps struct {
	CartSvc       cartService
	CheckoutSvc   checkoutService
	PromotionSvc  promotionService
	OrderSvc      orderService
	InventorySvc  inventoryService
	WaitlistSvc   waitlistService
	ShippingCents int64
}

// buildRouter wires routes for the API.
func buildRouter(logger *log.Logger, db *pgxpool.Pool, deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Accept-Language"},
	}))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))

	router.POST("/carts", createCartHandler(deps.CartSvc))
	router.GET("/carts/:id", getCartHandler(deps.CartSvc))
	router.POST("/carts/:id", updateCartHandler(deps.CartSvc))
	router.POST("/carts/:id/validate", validateCartHandler(deps.CartSvc))
	router.POST("/carts/:id/promotion", previewPromotionHandler(deps.CartSvc, deps.PromotionSvc, deps.ShippingCents))

	router.POST("/checkout", beginCheckoutHandler(deps.CheckoutSvc))
	router.POST("/payments/webhook", paymentWebhookHandler(deps.CheckoutSvc))

	router.GET("/orders/:id", getOrderHandler(deps.OrderSvc))

	router.GET("/drops/:key", dropStatusHandler(deps.WaitlistSvc))
	router.POST("/drops/:key/waitlist", joinWaitlistHandler(deps.WaitlistSvc))

	admin := router.Group("/admin")
	{
		admin.POST("/inventory/:variantId/adjust", adjustInventoryHandler(deps.InventorySvc))
		admin.GET("/inventory/low-stock", lowStockHandler(deps.InventorySvc))
		admin.GET("/inventory/:variantId", getInventoryHandler(deps.InventorySvc))
		admin.POST("/orders/:id/transition", transitionOrderHandler(deps.OrderSvc))
		admin.POST("/orders/:id/refund", refundOrderHandler(deps.OrderSvc))
		admin.GET("/orders/:id/payments", paymentRecordsHandler(deps.OrderSvc))
	}

	return router
}
