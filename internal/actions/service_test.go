package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallcontext/backend/internal/apperr"
	"github.com/recallcontext/backend/internal/models"
)

type memStore struct {
	items map[int64]*models.ActionItem
	saves int
}

func (m *memStore) List(_ context.Context, f models.ActionFilter, limit, offset int) ([]models.ActionItem, int64, error) {
	if offset < 0 {
		return nil, 0, errors.New("OFFSET must not be negative")
	}
	out := []models.ActionItem{}
	for id := int64(1); id <= int64(len(m.items)); id++ {
		a, ok := m.items[id]
		if !ok || (f.Status != "" && a.Status != f.Status) || (f.Assignee != "" && a.Assignee != f.Assignee) {
			continue
		}
		out = append(out, *a)
	}
	total := int64(len(out))
	if offset > len(out) {
		offset = len(out)
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], total, nil
}

func (m *memStore) GetByID(_ context.Context, id int64) (*models.ActionItem, error) {
	a, ok := m.items[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) Save(_ context.Context, a *models.ActionItem) error {
	m.saves++
	cp := *a
	m.items[a.ID] = &cp
	return nil
}

func newMemStore() *memStore {
	return &memStore{items: map[int64]*models.ActionItem{
		1: {ID: 1, MeetingID: 7, Description: "Write release notes", Assignee: "Alice", Status: models.ActionStatusNotStarted},
		2: {ID: 2, MeetingID: 7, Description: "Fix flaky test", Assignee: "Bob", Status: models.ActionStatusInProgress},
	}}
}

func strp(s string) *string { return &s }

func TestUpdateCompletesOnce(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, nil)
	first := time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return first }

	a, err := svc.Update(context.Background(), 1, models.ActionUpdate{Status: strp("completed")})
	require.NoError(t, err)
	assert.Equal(t, models.ActionStatusCompleted, a.Status)
	require.NotNil(t, a.CompletedAt)
	assert.Equal(t, first, *a.CompletedAt)

	svc.now = func() time.Time { return first.Add(time.Hour) }
	a, err = svc.Update(context.Background(), 1, models.ActionUpdate{Status: strp(models.ActionStatusCompleted)})
	require.NoError(t, err)
	assert.Equal(t, first, *a.CompletedAt)
}

func TestUpdateFields(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, nil)

	a, err := svc.Update(context.Background(), 2, models.ActionUpdate{
		Assignee: strp(" Carol "),
		DueDate:  strp("2024-04-01"),
		Priority: strp("HIGH"),
		Notes:    strp("blocked on CI"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Carol", a.Assignee)
	require.NotNil(t, a.DueDate)
	assert.Equal(t, "2024-04-01", a.DueDate.String())
	assert.Equal(t, "HIGH", a.Priority)
	assert.Equal(t, "blocked on CI", a.Notes)
	assert.Equal(t, models.ActionStatusInProgress, a.Status)

	a, err = svc.Update(context.Background(), 2, models.ActionUpdate{DueDate: strp("")})
	require.NoError(t, err)
	assert.Nil(t, a.DueDate)
}

func TestUpdateRejects(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, nil)

	_, err := svc.Update(context.Background(), 1, models.ActionUpdate{Status: strp("DONE")})
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidInput))
	_, err = svc.Update(context.Background(), 1, models.ActionUpdate{DueDate: strp("next week")})
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidInput))
	_, err = svc.Update(context.Background(), 99, models.ActionUpdate{Status: strp("BLOCKED")})
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	assert.Zero(t, store.saves)
}

func TestListValidatesStatus(t *testing.T) {
	svc := NewService(newMemStore(), nil)
	_, _, err := svc.List(context.Background(), models.ActionFilter{Status: "nope"}, 0, 20)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidInput))

	items, total, err := svc.List(context.Background(), models.ActionFilter{Assignee: "Bob"}, 0, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, int64(2), items[0].ID)
}

func TestHandlerRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := newMemStore()
	h := NewHandler(NewService(store, nil), nil)
	r := gin.New()
	r.GET("/actions", h.List)
	r.GET("/actions/:id", h.Get)
	r.PUT("/actions/:id", h.Update)
	r.PATCH("/actions/:id/status", h.UpdateStatus)

	send := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := send(http.MethodPatch, "/actions/1/status", `{"status":"BLOCKED"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data models.ActionItem `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, models.ActionStatusBlocked, body.Data.Status)

	assert.Equal(t, http.StatusBadRequest, send(http.MethodPatch, "/actions/1/status", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, send(http.MethodPut, "/actions/1", `{"due_date":"2024-02-30"}`).Code)
	assert.Equal(t, http.StatusNotFound, send(http.MethodGet, "/actions/42", "").Code)
	assert.Equal(t, http.StatusBadRequest, send(http.MethodGet, "/actions/x", "").Code)
	assert.Equal(t, http.StatusBadRequest, send(http.MethodGet, "/actions?status=nope", "").Code)

	w = send(http.MethodGet, "/actions?page=9223372036854775807&size=100", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"items":[]`)

	w = send(http.MethodPut, "/actions/2", `{"due_date":"2024-04-01","notes":"ok"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"due_date":"2024-04-01"`)
}
