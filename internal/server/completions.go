package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tokengate/tokengate/internal/relay"
)

// ChatCompletions relays a chat completion to the resolved upstream provider.
// Streaming responses are forwarded as SSE; the debit settles in the
// background after the response ends.
func (s *Server) ChatCompletions(c *gin.Context) {
	var req relay.CompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, relay.ErrBadRequest)
		return
	}

	// Exposed to the request logger.
	c.Set("model", req.Model)

	prepared, err := s.relaySvc.Prepare(c.Request.Context(), currentAccountID(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if !prepared.Stream {
		status, body, err := s.relaySvc.Unary(c.Request.Context(), prepared)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.Data(status, "application/json", body)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	s.relaySvc.Stream(c.Request.Context(), c.Writer, prepared)
}
