package server

import (
	"fmt"
	"math"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/tokengate/tokengate/internal/observability/obscontext"
)

const accountIDKey = "account_id"

// AuthRequired resolves the bearer token to an account ID and stores it on
// the request context.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		accountID, err := s.issuer.Parse(strings.TrimSpace(raw))
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(accountIDKey, accountID)
		ctx := obscontext.WithAccountID(c.Request.Context(), accountID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func currentAccountID(c *gin.Context) snowflake.ID {
	if v, ok := c.Get(accountIDKey); ok {
		if id, ok := v.(snowflake.ID); ok {
			return id
		}
	}
	return 0
}

// CompletionRateLimit throttles the relay endpoint per account.
func (s *Server) CompletionRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, retryAfter := s.completionLimiter.Allow(c.Request.Context(), currentAccountID(c))
		if !allowed {
			s.obsMetrics.IncRateLimitDenied("completions")
			if retryAfter > 0 {
				c.Header("Retry-After", fmt.Sprintf("%d", int(math.Ceil(retryAfter.Seconds()))))
			}
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
