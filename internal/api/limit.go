package api

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agora-community/agora/internal/apperr"
)

// maxPeekBody bounds how much of a request body the edge limiter buffers
const maxPeekBody = 1 << 20

// Limit returns a middleware that applies the fixed-window edge limit to
// every request before authentication or decoding. Only bodies naming a known
// read method count against the read bucket; anything else counts as a write.
func (h *JSONRPCHandler) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.limiter == nil {
			c.Next()
			return
		}

		name, id := h.peek(c)
		class := ClassWrite
		if m, ok := h.methods[name]; ok {
			class = m.class
		}

		if ok, wait := h.allow(c, class); !ok {
			h.sendError(c, http.StatusTooManyRequests, id, ErrRateLimited, "Too many requests",
				&errorData{Code: "rate_limited", RetryAfter: wait})
			h.record(c, name, string(apperr.KindRateLimited), time.Now())
			c.Abort()
			return
		}
		c.Next()
	}
}

// peek reads the method and id of the request body and restores the body for
// the handlers after it
func (h *JSONRPCHandler) peek(c *gin.Context) (string, interface{}) {
	if c.Request.Body == nil {
		return "", nil
	}
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPeekBody+1))
	c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(raw), c.Request.Body))
	if err != nil || len(raw) > maxPeekBody {
		return "", nil
	}

	var head struct {
		ID     interface{} `json:"id"`
		Method string      `json:"method"`
	}
	if json.Unmarshal(raw, &head) != nil {
		return "", nil
	}
	return head.Method, head.ID
}

// allow applies the fixed-window edge limit for the client and method class.
// When limited it also returns the seconds until the window resets.
func (h *JSONRPCHandler) allow(c *gin.Context, class Class) (bool, int) {
	max := h.limits.MaxRead
	if class == ClassWrite {
		max = h.limits.MaxWrite
	}

	res := h.limiter.Check(c.ClientIP()+":"+string(class), max, h.limits.Window)
	header := c.Writer.Header()
	header.Set("X-RateLimit-Limit", strconv.Itoa(max))
	header.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	header.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
	if !res.Limited {
		return true, 0
	}

	wait := int(math.Ceil(time.Until(res.ResetAt).Seconds()))
	if wait < 1 {
		wait = 1
	}
	header.Set("Retry-After", strconv.Itoa(wait))
	return false, wait
}
