package meetings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallcontext/backend/internal/apperr"
	"github.com/recallcontext/backend/internal/middleware"
	"github.com/recallcontext/backend/pkg/response"
)

type fakePresigner struct {
	gotKey string
	err    error
}

func (p *fakePresigner) PresignTranscript(_ context.Context, key string) (string, time.Time, error) {
	p.gotKey = key
	return "https://example.test/" + key, time.Date(2024, 3, 15, 14, 15, 0, 0, time.UTC), p.err
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Code    string          `json:"code"`
	Error   string          `json:"error"`
}

func newRouter(h *harness, presigner Presigner, maxContent int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Authenticate(nil, "default-user"))
	handler := NewHandler(h.svc, presigner, maxContent, nil)
	g := r.Group("/api/v1/meetings")
	g.POST("", handler.Upload)
	g.GET("", handler.List)
	g.GET("/:id", handler.Get)
	g.GET("/:id/processing-status", handler.Status)
	g.GET("/:id/transcript-url", handler.TranscriptURL)
	g.DELETE("/:id", handler.Delete)
	return r
}

func do(t *testing.T, r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestHandlerUploadCreated(t *testing.T) {
	h := newHarness(fakeCredentials{key: "sk"}, &fakeAnalyzer{payload: docPayload(analysisDoc)})
	r := newRouter(h, nil, 1000)

	w, env := do(t, r, http.MethodPost, "/api/v1/meetings", UploadRequest{Filename: validFilename, Content: "hello"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, env.Success)

	var v MeetingView
	require.NoError(t, json.Unmarshal(env.Data, &v))
	assert.Equal(t, "COMPLETED", string(v.ProcessingStatus))
	assert.Len(t, v.ActionItems, 3)
	assert.Len(t, v.Participants, 2)
	require.NotNil(t, v.Summary)
}

func TestHandlerUploadFailureCarriesMeetingID(t *testing.T) {
	h := newHarness(fakeCredentials{err: apperr.CredentialMissing()}, &fakeAnalyzer{})
	r := newRouter(h, nil, 1000)

	w, env := do(t, r, http.MethodPost, "/api/v1/meetings", UploadRequest{Filename: validFilename, Content: "hello"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, string(apperr.KindCredentialMissing), env.Code)

	var data struct {
		MeetingID        int64  `json:"meeting_id"`
		ProcessingStatus string `json:"processing_status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.NotZero(t, data.MeetingID)
	assert.Equal(t, "FAILED", data.ProcessingStatus)
}

func TestHandlerUploadUnexpectedFaultIsGeneric(t *testing.T) {
	h := newHarness(fakeCredentials{key: "sk"}, &fakeAnalyzer{payload: docPayload(analysisDoc)})
	h.store.failActionItems = errors.New("pq: relation action_items does not exist")
	r := newRouter(h, nil, 1000)

	w, env := do(t, r, http.MethodPost, "/api/v1/meetings", UploadRequest{Filename: validFilename, Content: "hello"})
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "An unexpected error occurred. Please try again later.", env.Error)
	assert.NotContains(t, w.Body.String(), "relation")
}

func TestHandlerUploadRejects(t *testing.T) {
	h := newHarness(fakeCredentials{key: "sk"}, &fakeAnalyzer{payload: docPayload(analysisDoc)})
	r := newRouter(h, nil, 10)

	tests := []struct {
		name string
		body any
	}{
		{"missing content", map[string]string{"filename": validFilename}},
		{"missing filename", map[string]string{"content": "hello"}},
		{"too large", UploadRequest{Filename: validFilename, Content: strings.Repeat("x", 11)}},
		{"bad filename", UploadRequest{Filename: "notes.txt", Content: "hello"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := do(t, r, http.MethodPost, "/api/v1/meetings", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, string(apperr.KindInvalidInput), env.Code)
		})
	}
	assert.Empty(t, h.store.meetings)
}

func TestHandlerListClampsSize(t *testing.T) {
	h := newHarness(fakeCredentials{key: "sk"}, &fakeAnalyzer{payload: docPayload(analysisDoc)})
	for _, name := range []string{validFilename, "2024-03-16_1400_Retro_Engineering.txt"} {
		_, err := h.svc.Upload(context.Background(), "u", name, "hello")
		require.NoError(t, err)
	}
	r := newRouter(h, nil, 1000)

	w, env := do(t, r, http.MethodGet, "/api/v1/meetings?size=500", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Items         []MeetingView `json:"items"`
		Size          int           `json:"size"`
		TotalElements int64         `json:"total_elements"`
		TotalPages    int           `json:"total_pages"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, response.MaxPageSize, page.Size)
	assert.EqualValues(t, 2, page.TotalElements)
	assert.Equal(t, 1, page.TotalPages)
	assert.Len(t, page.Items, 2)

	_, env = do(t, r, http.MethodGet, "/api/v1/meetings?type=Retro", nil)
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Retro", page.Items[0].MeetingType)

	w, env = do(t, r, http.MethodGet, "/api/v1/meetings?page=9223372036854775807&size=100", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Empty(t, page.Items)
	assert.EqualValues(t, 2, page.TotalElements)
}

func TestHandlerGetStatusDelete(t *testing.T) {
	h := newHarness(fakeCredentials{key: "sk"}, &fakeAnalyzer{payload: docPayload(analysisDoc)})
	m, err := h.svc.Upload(context.Background(), "u", validFilename, "hello")
	require.NoError(t, err)
	r := newRouter(h, nil, 1000)
	path := "/api/v1/meetings/" + itoa(m.ID)

	w, env := do(t, r, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"transcript_content":"hello"`)

	w, env = do(t, r, http.MethodGet, path+"/processing-status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var st StatusResponse
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, m.ID, st.MeetingID)
	assert.Equal(t, "COMPLETED", string(st.Status))

	w, _ = do(t, r, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, env = do(t, r, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, string(apperr.KindNotFound), env.Code)

	w, _ = do(t, r, http.MethodGet, "/api/v1/meetings/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlerTranscriptURL(t *testing.T) {
	h := newHarness(fakeCredentials{key: "sk"}, &fakeAnalyzer{payload: docPayload(analysisDoc)})
	m, err := h.svc.Upload(context.Background(), "u", validFilename, "hello")
	require.NoError(t, err)
	path := "/api/v1/meetings/" + itoa(m.ID) + "/transcript-url"

	w, _ := do(t, newRouter(h, nil, 1000), http.MethodGet, path, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	presigner := &fakePresigner{}
	r := newRouter(h, presigner, 1000)
	w, _ = do(t, r, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.NoError(t, h.store.SetArchiveKey(context.Background(), m.ID, "transcripts/Engineering/1.txt"))
	w, env := do(t, r, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var out TranscriptURLResponse
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, "https://example.test/transcripts/Engineering/1.txt", out.URL)
	assert.Equal(t, "transcripts/Engineering/1.txt", presigner.gotKey)
}

func itoa(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
