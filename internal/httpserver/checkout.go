package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"maison-commerce/internal/domain"
	checkoutsvc "maison-commerce/internal/service/checkout"
)

func beginCheckoutHandler(svc checkoutService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in checkoutsvc.BeginInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
		if in.CartID == "" || in.Email == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cartId and email required"})
			return
		}

		result, err := svc.Begin(c.Request.Context(), in)
		if err != nil {
			// Validation failures carry the per-line diff so the shopper
			// sees exactly which items changed or went away.
			if errors.Is(err, domain.ErrCartUnavailableItems) {
				c.JSON(http.StatusConflict, gin.H{"error": "unavailable_items", "items": result.Diffs})
				return
			}
			if errors.Is(err, domain.ErrPriceChanged) {
				c.JSON(http.StatusConflict, gin.H{"error": "price_changed", "items": result.Diffs})
				return
			}
			if errors.Is(err, domain.ErrDropNotActive) {
				c.JSON(http.StatusConflict, gin.H{"error": "drop_not_active", "items": result.Diffs})
				return
			}
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, result)
	}
}

type webhookRequest struct {
	OrderID          string `json:"orderId" binding:"required"`
	Success          bool   `json:"success"`
	GatewayReference string `json:"gatewayReference"`
}

// paymentWebhookHandler accepts the asynchronous gateway result. On a
// transient failure it answers 502 so the gateway redelivers; the
// handler is idempotent, so redelivery is always safe.
func paymentWebhookHandler(svc checkoutService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in webhookRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "orderId required"})
			return
		}
		if err := svc.HandlePaymentResult(c.Request.Context(), in.OrderID, in.Success, in.GatewayReference); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
				return
			}
			if errors.Is(err, domain.ErrReservationExpired) {
				// Rejected, not retried: the hold is gone for good.
				c.JSON(http.StatusConflict, gin.H{"error": "reservation_expired"})
				return
			}
			c.JSON(http.StatusBadGateway, gin.H{"error": "retry"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "processed"})
	}
}
