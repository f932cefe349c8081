package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fracpool/internal/governance"
	"fracpool/internal/lifecycle"
	"fracpool/internal/storage"
)

type handlers struct {
	lifecycle    *lifecycle.Engine
	governance   *governance.Engine
	logger       *zap.Logger
	webhookToken string
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handlers) getPool(c *gin.Context) {
	pool, err := h.lifecycle.GetPool(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "pool not found"})
			return
		}
		h.logger.Error("get pool failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, pool)
}

func (h *handlers) listProposals(c *gin.Context) {
	proposals, err := h.governance.ListProposals(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("list proposals failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"proposals": proposals})
}

type graduationRequest struct {
	PoolID       string  `json:"pool_id" binding:"required"`
	TokenMint    string  `json:"token_mint"`
	MarketCapUSD float64 `json:"market_cap_usd"`
}

// graduationWebhook is the token service's inbound graduation trigger.
// Delivery is at-least-once; a repeat for an already graduated pool is
// acknowledged as success.
func (h *handlers) graduationWebhook(c *gin.Context) {
	if h.webhookToken != "" && c.GetHeader("X-Webhook-Token") != h.webhookToken {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook token"})
		return
	}

	var req graduationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pool, err := h.lifecycle.Graduate(c.Request.Context(), req.PoolID)
	if err != nil {
		switch {
		case errors.Is(err, lifecycle.ErrAlreadyGraduated):
			c.JSON(http.StatusOK, gin.H{"status": "already graduated"})
		case errors.Is(err, storage.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "pool not found"})
		case errors.Is(err, lifecycle.ErrTokenNotCreated):
			c.JSON(http.StatusConflict, gin.H{"error": "pool token not created"})
		default:
			h.logger.Error("graduation failed",
				zap.String("pool_id", req.PoolID),
				zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "graduated",
		"pool_id":    pool.PoolID,
		"market_cap": pool.GraduationMarketCap,
	})
}
