package actions

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/recallcontext/backend/internal/models"
	"github.com/recallcontext/backend/pkg/response"
)

// StatusRequest is the body for PATCH /actions/:id/status.
type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// Handler handles action item HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an action items handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// List handles GET /actions?page=&size=&status=&assignee=.
func (h *Handler) List(c *gin.Context) {
	page, size := response.Paging(c)
	f := models.ActionFilter{Status: c.Query("status"), Assignee: c.Query("assignee")}
	items, total, err := h.svc.List(c.Request.Context(), f, page, size)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, response.NewPage(items, page, size, total))
}

// Get handles GET /actions/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := actionID(c)
	if !ok {
		return
	}
	a, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, a)
}

// Update handles PUT /actions/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := actionID(c)
	if !ok {
		return
	}
	var upd models.ActionUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	a, err := h.svc.Update(c.Request.Context(), id, upd)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, a)
}

// UpdateStatus handles PATCH /actions/:id/status.
func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := actionID(c)
	if !ok {
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: status is required")
		return
	}
	a, err := h.svc.Update(c.Request.Context(), id, models.ActionUpdate{Status: &req.Status})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, a)
}

func actionID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid action item id")
		return 0, false
	}
	return id, true
}
