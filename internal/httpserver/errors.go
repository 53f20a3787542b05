package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"maison-commerce/internal/domain"
)

// writeError maps domain errors onto HTTP responses. Stock and promotion
// failures carry enough detail for the storefront to show the shopper the
// exact failing item or code.
func writeError(c *gin.Context, err error) {
	var stockErr domain.InsufficientStockError
	if errors.As(err, &stockErr) {
		c.JSON(http.StatusConflict, gin.H{
			"error":     "insufficient_stock",
			"variantId": stockErr.VariantID,
			"requested": stockErr.Requested,
			"available": stockErr.Available,
		})
		return
	}

	var transitionErr domain.InvalidTransitionError
	if errors.As(err, &transitionErr) {
		c.JSON(http.StatusConflict, gin.H{
			"error": "invalid_transition",
			"field": transitionErr.Field,
			"from":  transitionErr.From,
			"to":    transitionErr.To,
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, domain.ErrInvalidCode):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid_code"})
	case errors.Is(err, domain.ErrPromotionExpired):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "promotion_expired"})
	case errors.Is(err, domain.ErrPromotionNotApplicable):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "promotion_not_applicable"})
	case errors.Is(err, domain.ErrUsageExceeded):
		c.JSON(http.StatusConflict, gin.H{"error": "usage_exceeded"})
	case errors.Is(err, domain.ErrDropNotActive):
		c.JSON(http.StatusConflict, gin.H{"error": "drop_not_active"})
	case errors.Is(err, domain.ErrWaitlistClosed):
		c.JSON(http.StatusConflict, gin.H{"error": "waitlist_closed"})
	case errors.Is(err, domain.ErrCartEmpty):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "cart_empty"})
	case errors.Is(err, domain.ErrCartNotActive):
		c.JSON(http.StatusConflict, gin.H{"error": "cart_not_active"})
	case errors.Is(err, domain.ErrReservationExpired):
		c.JSON(http.StatusConflict, gin.H{"error": "reservation_expired"})
	case errors.Is(err, domain.ErrPaymentDeclined):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "payment_declined"})
	case errors.Is(err, domain.ErrGatewayUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": "gateway_unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
	}
}
