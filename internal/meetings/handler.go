package meetings

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/recallcontext/backend/internal/models"
	"github.com/recallcontext/backend/internal/middleware"
	"github.com/recallcontext/backend/pkg/response"
)

// UploadRequest is the body for POST /meetings.
type UploadRequest struct {
	Filename string `json:"filename" binding:"required"`
	Content  string `json:"content" binding:"required"`
}

// StatusResponse is returned by GET /meetings/:id/processing-status.
type StatusResponse struct {
	MeetingID int64                   `json:"meeting_id"`
	Status    models.ProcessingStatus `json:"status"`
	Error     string                  `json:"error,omitempty"`
}

// TranscriptURLResponse is returned by GET /meetings/:id/transcript-url.
type TranscriptURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Presigner issues temporary download URLs for archived transcripts.
type Presigner interface {
	PresignTranscript(ctx context.Context, key string) (url string, expiresAt time.Time, err error)
}

// Handler handles meetings HTTP endpoints.
type Handler struct {
	svc        *Service
	presigner  Presigner
	maxContent int
	logger     *zap.Logger
}

// NewHandler creates a meetings handler. presigner may be nil when archival is disabled.
func NewHandler(svc *Service, presigner Presigner, maxContentBytes int, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, presigner: presigner, maxContent: maxContentBytes, logger: logger}
}

// Upload handles POST /meetings.
func (h *Handler) Upload(c *gin.Context) {
	var req UploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: filename and content are required")
		return
	}
	if h.maxContent > 0 && len(req.Content) > h.maxContent {
		response.BadRequest(c, "content exceeds maximum size of "+strconv.Itoa(h.maxContent)+" bytes")
		return
	}
	m, err := h.svc.Upload(c.Request.Context(), middleware.IdentityFrom(c), req.Filename, req.Content)
	if err != nil {
		if id, ok := IsProcessingError(err); ok {
			response.FromErrorWithData(c, err, gin.H{"meeting_id": id, "processing_status": m.ProcessingStatus})
			return
		}
		response.FromError(c, err)
		return
	}
	v, err := h.svc.view(c.Request.Context(), m)
	if err != nil {
		h.logger.Error("load uploaded meeting", zap.Int64("meeting_id", m.ID), zap.Error(err))
		response.Created(c, MeetingView{Meeting: *m})
		return
	}
	response.Created(c, v)
}

// List handles GET /meetings?page=&size=&type=&series=.
func (h *Handler) List(c *gin.Context) {
	page, size := response.Paging(c)
	f := models.MeetingFilter{MeetingType: c.Query("type"), SeriesName: c.Query("series")}
	items, total, err := h.svc.List(c.Request.Context(), f, page, size)
	if err != nil {
		h.logger.Error("list meetings", zap.Error(err))
		response.FromError(c, err)
		return
	}
	response.OK(c, response.NewPage(items, page, size, total))
}

// Get handles GET /meetings/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := meetingID(c)
	if !ok {
		return
	}
	v, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, v)
}

// Status handles GET /meetings/:id/processing-status.
func (h *Handler) Status(c *gin.Context) {
	id, ok := meetingID(c)
	if !ok {
		return
	}
	ev, err := h.svc.Status(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, StatusResponse{MeetingID: ev.MeetingID, Status: ev.Status, Error: ev.Error})
}

// TranscriptURL handles GET /meetings/:id/transcript-url.
func (h *Handler) TranscriptURL(c *gin.Context) {
	id, ok := meetingID(c)
	if !ok {
		return
	}
	if h.presigner == nil {
		response.ServiceUnavailable(c, "transcript archive is not enabled")
		return
	}
	key, err := h.svc.ArchiveKey(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	url, exp, err := h.presigner.PresignTranscript(c.Request.Context(), key)
	if err != nil {
		h.logger.Error("presign transcript", zap.Int64("meeting_id", id), zap.Error(err))
		response.Internal(c, "failed to generate transcript url")
		return
	}
	response.OK(c, TranscriptURLResponse{URL: url, ExpiresAt: exp})
}

// Delete handles DELETE /meetings/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := meetingID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		response.FromError(c, err)
		return
	}
	response.NoContent(c)
}

func meetingID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid meeting id")
		return 0, false
	}
	return id, true
}
