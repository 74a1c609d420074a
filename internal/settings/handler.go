package settings

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/recallcontext/backend/internal/middleware"
	"github.com/recallcontext/backend/pkg/response"
)

// APIKeyRequest is the body for POST /settings/api-key.
type APIKeyRequest struct {
	APIKey string `json:"api_key" binding:"required"`
}

// APIKeyStatus is returned by every api-key endpoint.
type APIKeyStatus struct {
	Configured bool   `json:"configured"`
	Message    string `json:"message"`
}

// Handler handles settings HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a settings handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// SaveAPIKey handles POST /settings/api-key.
func (h *Handler) SaveAPIKey(c *gin.Context) {
	var req APIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: api_key is required")
		return
	}
	if err := h.svc.SaveAPIKey(c.Request.Context(), middleware.IdentityFrom(c), req.APIKey); err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, APIKeyStatus{Configured: true, Message: "API key saved successfully"})
}

// Status handles GET /settings/api-key/status.
func (h *Handler) Status(c *gin.Context) {
	ok, err := h.svc.IsConfigured(c.Request.Context(), middleware.IdentityFrom(c))
	if err != nil {
		h.logger.Error("api key status failed", zap.Error(err))
		response.FromError(c, err)
		return
	}
	msg := "API key not configured"
	if ok {
		msg = "API key is configured"
	}
	response.OK(c, APIKeyStatus{Configured: ok, Message: msg})
}

// DeleteAPIKey handles DELETE /settings/api-key.
func (h *Handler) DeleteAPIKey(c *gin.Context) {
	if err := h.svc.DeleteAPIKey(c.Request.Context(), middleware.IdentityFrom(c)); err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, APIKeyStatus{Configured: false, Message: "API key deleted successfully"})
}
