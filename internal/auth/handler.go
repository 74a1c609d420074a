package auth

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/recallcontext/backend/pkg/response"
	"github.com/recallcontext/backend/pkg/utils"
)

// TokenRequest is the body for POST /auth/token.
type TokenRequest struct {
	Password string `json:"password" binding:"required"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
	Identity  string `json:"identity"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	jwt          *JWTService
	passwordHash string
	identity     string
	logger       *zap.Logger
}

// NewHandler creates an auth handler that issues tokens for identity.
func NewHandler(jwt *JWTService, passwordHash, identity string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{jwt: jwt, passwordHash: passwordHash, identity: identity, logger: logger}
}

// Token handles POST /auth/token.
func (h *Handler) Token(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: password is required")
		return
	}
	if !utils.CheckPassword(req.Password, h.passwordHash) {
		h.logger.Warn("token request rejected", zap.String("client_ip", c.ClientIP()))
		response.Unauthorized(c, "invalid credentials")
		return
	}
	token, expires, err := h.jwt.Generate(h.identity)
	if err != nil {
		h.logger.Error("generate token failed", zap.Error(err))
		response.Internal(c, "failed to generate token")
		return
	}
	response.OK(c, TokenResponse{Token: token, ExpiresAt: expires.Unix(), Identity: h.identity})
}
