package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"roundkeeper/internal/db"
)

type roundReader interface {
	CurrentRoundID(ctx context.Context) (uint64, error)
}

type HealthHandler struct {
	// DB is optional; without it readiness only checks the ledger.
	DB     *db.DB
	Ledger roundReader
}

func (h *HealthHandler) Register(r *gin.Engine) {
	r.GET("/healthz", h.health)
	r.GET("/readyz", h.ready)
}

// @Summary Health check
// @Tags health
// @Success 200 {object} map[string]string
// @Router /healthz [get]
func (h *HealthHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary Readiness check
// @Tags health
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /readyz [get]
func (h *HealthHandler) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if h.DB != nil {
		if err := db.Ping(ctx, h.DB); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_unreachable"})
			return
		}
	}
	if h.Ledger == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "ledger_missing"})
		return
	}
	if _, err := h.Ledger.CurrentRoundID(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "ledger_unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
