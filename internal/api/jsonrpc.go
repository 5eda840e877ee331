package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/agora-community/agora/internal/apperr"
	"github.com/agora-community/agora/internal/ratelimit"
	"github.com/agora-community/agora/pkg/config"
	"github.com/agora-community/agora/pkg/logging"
	"github.com/agora-community/agora/pkg/telemetry"
)

// JSONRPCRequest represents a JSON-RPC 2.0 request
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response
type JSONRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      interface{}   `json:"id"`
	Result  interface{}   `json:"result,omitempty"`
	Error   *JSONRPCError `json:"error,omitempty"`
}

// JSONRPCError represents a JSON-RPC error
type JSONRPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Standard JSON-RPC error codes
const (
	ErrParseError     = -32700
	ErrInvalidRequest = -32600
	ErrMethodNotFound = -32601
	ErrInvalidParams  = -32602
	ErrInternalError  = -32603
)

// MethodHandler is a function that handles a JSON-RPC method
type MethodHandler func(ctx *gin.Context, params json.RawMessage) (interface{}, error)

// Class selects the edge rate limit bucket of a method
type Class string

const (
	ClassRead  Class = "read"
	ClassWrite Class = "write"
)

type method struct {
	handler     MethodHandler
	class       Class
	requireUser bool
}

// JSONRPCHandler handles JSON-RPC requests
type JSONRPCHandler struct {
	methods  map[string]method
	limiter  *ratelimit.WindowLimiter
	limits   config.RateLimitConfig
	logger   *zap.Logger
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

// NewJSONRPCHandler creates a new JSON-RPC handler. A nil limiter disables edge limiting.
func NewJSONRPCHandler(limiter *ratelimit.WindowLimiter, limits config.RateLimitConfig) *JSONRPCHandler {
	return &JSONRPCHandler{
		methods:  make(map[string]method),
		limiter:  limiter,
		limits:   limits,
		logger:   logging.WithComponent("jsonrpc"),
		requests: telemetry.Counter("agora_rpc_requests_total", "JSON-RPC requests by method and outcome"),
		duration: telemetry.Histogram("agora_rpc_duration_seconds", "JSON-RPC handler latency"),
	}
}

// RegisterMethod registers a public method handler
func (h *JSONRPCHandler) RegisterMethod(name string, class Class, handler MethodHandler) {
	h.methods[name] = method{handler: handler, class: class}
}

// RegisterUserMethod registers a handler that requires an authenticated user
func (h *JSONRPCHandler) RegisterUserMethod(name string, class Class, handler MethodHandler) {
	h.methods[name] = method{handler: handler, class: class, requireUser: true}
}

// Handle handles a JSON-RPC request
func (h *JSONRPCHandler) Handle(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "jsonrpc.handle")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	var req JSONRPCRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.sendError(c, http.StatusOK, nil, ErrParseError, "Parse error", nil)
		return
	}

	if req.JSONRPC != "2.0" {
		h.sendError(c, http.StatusOK, req.ID, ErrInvalidRequest, "Invalid Request", nil)
		return
	}

	m, ok := h.methods[req.Method]
	if !ok {
		h.sendError(c, http.StatusOK, req.ID, ErrMethodNotFound, "Method not found", nil)
		return
	}
	span.SetAttributes(attribute.String("rpc.method", req.Method))

	if m.requireUser && UserID(c) == "" {
		h.sendAppError(c, req, apperr.Permission("login_required"))
		return
	}

	start := time.Now()
	result, err := m.handler(c, req.Params)
	if err != nil {
		h.sendAppError(c, req, err)
		h.record(c, req.Method, string(apperr.KindOf(err)), start)
		return
	}

	h.record(c, req.Method, "ok", start)
	h.sendResponse(c, req.ID, result)
}

func (h *JSONRPCHandler) record(c *gin.Context, name, outcome string, start time.Time) {
	ctx := c.Request.Context()
	attrs := metric.WithAttributes(attribute.String("method", name), attribute.String("outcome", outcome))
	h.requests.Add(ctx, 1, attrs)
	h.duration.Record(ctx, time.Since(start).Seconds(), attrs)
}

// sendResponse sends a successful JSON-RPC response
func (h *JSONRPCHandler) sendResponse(c *gin.Context, id interface{}, result interface{}) {
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	}
	c.JSON(http.StatusOK, resp)
}

func (h *JSONRPCHandler) sendAppError(c *gin.Context, req JSONRPCRequest, err error) {
	status, code, data := classify(err)
	if status == http.StatusInternalServerError {
		logging.FromContext(c.Request.Context(), h.logger).Error("JSON-RPC method failed",
			zap.String("method", req.Method), zap.Error(err))
	}
	if data.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(data.RetryAfter))
	}

	message := data.Message
	if message == "" {
		message = data.Code
	}
	h.sendError(c, status, req.ID, code, message, data)
}

// sendError sends an error JSON-RPC response
func (h *JSONRPCHandler) sendError(c *gin.Context, status int, id interface{}, code int, message string, data *errorData) {
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
		},
	}
	if data != nil {
		resp.Error.Data = data
	}
	c.JSON(status, resp)
}

// bindParams decodes params into dst. Absent params leave dst untouched.
func bindParams(params json.RawMessage, dst interface{}) error {
	if len(params) == 0 || string(params) == "null" {
		return nil
	}
	if err := json.Unmarshal(params, dst); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return apperr.Validation("invalid_params").WithMessage("malformed params")
		}
		return apperr.Validation("invalid_params").WithMessage(err.Error())
	}
	return nil
}
