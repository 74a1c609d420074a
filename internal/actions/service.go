// Package actions serves and updates the action items extracted from meetings.
package actions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/recallcontext/backend/internal/apperr"
	"github.com/recallcontext/backend/internal/models"
	"github.com/recallcontext/backend/pkg/response"
)

// Store is the action item persistence the service needs.
type Store interface {
	List(ctx context.Context, f models.ActionFilter, limit, offset int) ([]models.ActionItem, int64, error)
	GetByID(ctx context.Context, id int64) (*models.ActionItem, error)
	Save(ctx context.Context, a *models.ActionItem) error
}

// Service manages action items.
type Service struct {
	store  Store
	now    func() time.Time
	logger *zap.Logger
}

// NewService creates an action items service.
func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, now: time.Now, logger: logger}
}

// List returns a page of action items.
func (s *Service) List(ctx context.Context, f models.ActionFilter, page, size int) ([]models.ActionItem, int64, error) {
	if f.Status != "" && !models.IsValidActionStatus(f.Status) {
		return nil, 0, apperr.InvalidInput("invalid status: %s", f.Status)
	}
	list, total, err := s.store.List(ctx, f, size, response.Offset(page, size))
	if err != nil {
		return nil, 0, fmt.Errorf("list action items: %w", err)
	}
	return list, total, nil
}

// Get returns one action item.
func (s *Service) Get(ctx context.Context, id int64) (*models.ActionItem, error) {
	a, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load action item: %w", err)
	}
	if a == nil {
		return nil, apperr.NotFound("action item %d not found", id)
	}
	return a, nil
}

// Update applies a partial update. completed_at is stamped the first time the item becomes COMPLETED.
func (s *Service) Update(ctx context.Context, id int64, upd models.ActionUpdate) (*models.ActionItem, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Status != nil {
		st := strings.ToUpper(strings.TrimSpace(*upd.Status))
		if !models.IsValidActionStatus(st) {
			return nil, apperr.InvalidInput("invalid status: %s", *upd.Status)
		}
		a.Status = st
		if st == models.ActionStatusCompleted && a.CompletedAt == nil {
			now := s.now().UTC()
			a.CompletedAt = &now
		}
	}
	if upd.Assignee != nil {
		a.Assignee = strings.TrimSpace(*upd.Assignee)
	}
	if upd.DueDate != nil {
		if v := strings.TrimSpace(*upd.DueDate); v == "" {
			a.DueDate = nil
		} else {
			d, err := models.ParseDate(v)
			if err != nil {
				return nil, apperr.InvalidInput("invalid due_date: %s, expected YYYY-MM-DD", v)
			}
			a.DueDate = &d
		}
	}
	if upd.Priority != nil {
		a.Priority = strings.TrimSpace(*upd.Priority)
	}
	if upd.Notes != nil {
		a.Notes = *upd.Notes
	}
	if err := s.store.Save(ctx, a); err != nil {
		return nil, fmt.Errorf("save action item: %w", err)
	}
	s.logger.Info("action item updated", zap.Int64("action_item_id", id), zap.String("status", a.Status))
	return a, nil
}
