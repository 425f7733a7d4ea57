package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/marginalia-app/marginalia-api/internal/ratelimit"
	"github.com/marginalia-app/marginalia-api/internal/service"
)

type UserHandler struct {
	auth    *service.AuthService
	limiter *ratelimit.Limiter
}

func NewUserHandler(auth *service.AuthService, limiter *ratelimit.Limiter) *UserHandler {
	return &UserHandler{auth: auth, limiter: limiter}
}

// Handles PUT /admin/users/:id/tier - moves a user to a new subscription
// tier and clears their old counting buckets so the new quotas take effect
// immediately
func (h *UserHandler) UpdateTier(c *gin.Context) {
	var req struct {
		Tier string `json:"tier" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tier, err := ratelimit.ParseTier(req.Tier)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := c.Param("id")
	ctx := c.Request.Context()

	user, err := h.auth.GetUserByID(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	if err := h.auth.ChangeTier(ctx, id, string(tier)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// The old tier's buckets are stale now; clear them so nothing lingers
	// until its TTL
	if oldTier, terr := ratelimit.ParseTier(user.Tier); terr == nil && oldTier != tier {
		for _, op := range ratelimit.Operations() {
			h.limiter.Reset(ctx, op, id, oldTier)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"id":   id,
		"tier": tier,
	})
}
