package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	cartsvc "maison-commerce/internal/service/cart"
)

func createCartHandler(svc cartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in cartsvc.CreateInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
		cart, err := svc.Create(c.Request.Context(), in)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, cart)
	}
}

func getCartHandler(svc cartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		cart, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, cart)
	}
}

func updateCartHandler(svc cartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in cartsvc.UpdateInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
		cart, err := svc.Update(c.Request.Context(), c.Param("id"), in)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, cart)
	}
}

func validateCartHandler(svc cartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		diffs, err := svc.Validate(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": diffs})
	}
}

type previewPromotionRequest struct {
	Code   string `json:"code" binding:"required"`
	Locale string `json:"locale"`
}

// previewPromotionHandler evaluates a code against the cart without
// consuming a usage slot, so the storefront can show the discount before
// checkout.
func previewPromotionHandler(carts cartService, promos promotionService, shippingCents int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in previewPromotionRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "code required"})
			return
		}
		cart, err := carts.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		locale := in.Locale
		if locale == "" {
			locale = cart.Locale
		}
		discount, err := promos.Evaluate(c.Request.Context(), in.Code, cart.Lines, locale, shippingCents)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, discount)
	}
}
