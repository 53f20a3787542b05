package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	inventorysvc "maison-commerce/internal/service/inventory"
)

func getInventoryHandler(svc inventoryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		inv, err := svc.Get(c.Request.Context(), c.Param("variantId"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, inv)
	}
}

func adjustInventoryHandler(svc inventoryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in inventorysvc.AdjustInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
		inv, err := svc.Adjust(c.Request.Context(), c.Param("variantId"), in)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, inv)
	}
}

func lowStockHandler(svc inventoryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := svc.LowStock(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}
