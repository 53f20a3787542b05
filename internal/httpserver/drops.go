package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func dropStatusHandler(svc waitlistService) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, err := svc.Status(c.Request.Context(), c.Param("key"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, status)
	}
}

type joinWaitlistRequest struct {
	Email  string `json:"email" binding:"required"`
	Locale string `json:"locale"`
}

func joinWaitlistHandler(svc waitlistService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in joinWaitlistRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "email required"})
			return
		}
		entry, err := svc.Join(c.Request.Context(), c.Param("key"), in.Email, in.Locale)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, entry)
	}
}
