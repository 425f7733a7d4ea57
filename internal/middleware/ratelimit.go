package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/marginalia-app/marginalia-api/internal/ratelimit"
)

// Context keys set by RateLimit for downstream handlers and the usage logger.
const (
	ContextRateLimitResult    = "rate_limit_result"
	ContextRateLimitOperation = "rate_limit_operation"
)

// TierResolver decides which subscription tier a request is evaluated under.
// It is supplied explicitly at construction time; there is no implicit
// default.
type TierResolver interface {
	ResolveTier(c *gin.Context) ratelimit.Tier
}

type TierResolverFunc func(c *gin.Context) ratelimit.Tier

func (f TierResolverFunc) ResolveTier(c *gin.Context) ratelimit.Tier {
	return f(c)
}

// FixedTier evaluates every request under the given tier. Used for
// unauthenticated routes, which are all treated as FREE by choice.
func FixedTier(tier ratelimit.Tier) TierResolver {
	return TierResolverFunc(func(c *gin.Context) ratelimit.Tier {
		return tier
	})
}

// ClaimsTier reads the tier claim RequireAuth put in the context. The value
// is trusted verbatim; anything unrecognized evaluates as FREE.
func ClaimsTier() TierResolver {
	return TierResolverFunc(func(c *gin.Context) ratelimit.Tier {
		tier, err := ratelimit.ParseTier(c.GetString("tier"))
		if err != nil {
			return ratelimit.TierFree
		}
		return tier
	})
}

// RateLimit guards a route with the limiter under the given operation.
// Quota headers are applied to every response. On denial the request is
// short-circuited with the standard 429 body and a Retry-After header; on
// success the decision is attached to the context and the handler runs.
func RateLimit(limiter *ratelimit.Limiter, op ratelimit.Operation, tiers TierResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			userID = c.ClientIP()
		}

		tier := tiers.ResolveTier(c)

		result := limiter.Evaluate(c.Request.Context(), op, userID, tier)

		for name, value := range ratelimit.Headers(result, op) {
			c.Header(name, value)
		}
		c.Set(ContextRateLimitOperation, string(op))

		if !result.Success {
			status, body := ratelimit.DenialResponse(result, op)
			c.Header("Retry-After", strconv.Itoa(body.Error.RetryAfter))
			c.JSON(status, body)
			c.Abort()
			return
		}

		c.Set(ContextRateLimitResult, result)

		c.Next()
	}
}
