package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/marginalia-app/marginalia-api/internal/ratelimit"
)

type QuotaHandler struct {
	limiter *ratelimit.Limiter
}

func NewQuotaHandler(limiter *ratelimit.Limiter) *QuotaHandler {
	return &QuotaHandler{limiter: limiter}
}

// Handles GET /v1/quota - quota status for every operation, nothing consumed
func (h *QuotaHandler) StatusAll(c *gin.Context) {
	userID := c.GetString("user_id")
	tier := callerTier(c)

	ctx := c.Request.Context()
	quotas := gin.H{}
	for _, op := range ratelimit.Operations() {
		quotas[string(op)] = h.limiter.Status(ctx, op, userID, tier)
	}

	c.JSON(http.StatusOK, gin.H{
		"tier":      tier,
		"enforcing": h.limiter.Enforcing(),
		"quotas":    quotas,
	})
}

// Handles GET /v1/quota/:operation
func (h *QuotaHandler) Status(c *gin.Context) {
	op, err := ratelimit.ParseOperation(c.Param("operation"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("user_id")
	tier := callerTier(c)

	result := h.limiter.Status(c.Request.Context(), op, userID, tier)

	for name, value := range ratelimit.Headers(result, op) {
		c.Header(name, value)
	}

	c.JSON(http.StatusOK, gin.H{
		"operation": op,
		"tier":      tier,
		"result":    result,
	})
}

// Handles POST /v1/limits/:operation/consume - spends one slot of the
// caller's quota. The platform's AI, TTS and upload services call this
// before doing metered work.
func (h *QuotaHandler) Consume(c *gin.Context) {
	op, err := ratelimit.ParseOperation(c.Param("operation"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("user_id")
	tier := callerTier(c)

	result := h.limiter.Evaluate(c.Request.Context(), op, userID, tier)

	for name, value := range ratelimit.Headers(result, op) {
		c.Header(name, value)
	}

	if !result.Success {
		status, body := ratelimit.DenialResponse(result, op)
		c.Header("Retry-After", strconv.Itoa(body.Error.RetryAfter))
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"operation": op,
		"tier":      tier,
		"result":    result,
	})
}

// Handles POST /admin/ratelimit/reset - clears one counting bucket, e.g.
// after a tier upgrade or in test fixtures
func (h *QuotaHandler) Reset(c *gin.Context) {
	var req struct {
		Operation string `json:"operation" binding:"required"`
		UserID    string `json:"user_id" binding:"required"`
		Tier      string `json:"tier" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	op, err := ratelimit.ParseOperation(req.Operation)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tier, err := ratelimit.ParseTier(req.Tier)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ok := h.limiter.Reset(c.Request.Context(), op, req.UserID, tier)

	c.JSON(http.StatusOK, gin.H{"ok": ok})
}

// The tier the caller was authenticated with; unknown values count as FREE
func callerTier(c *gin.Context) ratelimit.Tier {
	tier, err := ratelimit.ParseTier(c.GetString("tier"))
	if err != nil {
		return ratelimit.TierFree
	}

	return tier
}
