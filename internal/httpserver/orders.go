package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	ordersvc "maison-commerce/internal/service/order"
)

func getOrderHandler(svc orderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ord, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, ord)
	}
}

func transitionOrderHandler(svc orderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in ordersvc.TransitionInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
		if in.Field == "" || in.To == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "field and to required"})
			return
		}
		ord, err := svc.Transition(c.Request.Context(), c.Param("id"), in)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, ord)
	}
}

type refundRequest struct {
	GatewayReference string `json:"gatewayReference"`
}

func refundOrderHandler(svc orderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in refundRequest
		_ = c.ShouldBindJSON(&in)
		ord, err := svc.Refund(c.Request.Context(), c.Param("id"), in.GatewayReference)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, ord)
	}
}

func paymentRecordsHandler(svc orderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		records, err := svc.PaymentRecords(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"records": records})
	}
}
