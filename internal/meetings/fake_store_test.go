package meetings

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/recallcontext/backend/internal/models"
)

// fakeStore is an in-memory Store. Writes made through WithinTx are staged and applied only on success.
type fakeStore struct {
	mu           sync.Mutex
	nextID       int64
	series       map[string]*models.MeetingSeries
	meetings     map[int64]*models.Meeting
	summaries    map[int64]*models.Summary
	participants map[int64][]models.Participant
	actions      map[int64][]models.ActionItem
	logs         []models.ProcessingLog

	failActionItems error
	failMarkFailed  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		series:       map[string]*models.MeetingSeries{},
		meetings:     map[int64]*models.Meeting{},
		summaries:    map[int64]*models.Summary{},
		participants: map[int64][]models.Participant{},
		actions:      map[int64][]models.ActionItem{},
	}
}

func (s *fakeStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *fakeStore) FindOrCreateSeries(_ context.Context, name, meetingType string) (*models.MeetingSeries, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := name + "|" + meetingType
	if sr, ok := s.series[key]; ok {
		return sr, nil
	}
	sr := &models.MeetingSeries{ID: s.id(), SeriesName: name, MeetingType: meetingType, CreatedAt: time.Now()}
	s.series[key] = sr
	return sr, nil
}

func (s *fakeStore) CreateMeeting(_ context.Context, m *models.Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = s.id()
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt
	cp := *m
	s.meetings[m.ID] = &cp
	return nil
}

func (s *fakeStore) GetMeeting(_ context.Context, id int64) (*models.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (s *fakeStore) ListMeetings(_ context.Context, f models.MeetingFilter, limit, offset int) ([]models.Meeting, int64, error) {
	if offset < 0 {
		return nil, 0, errors.New("OFFSET must not be negative")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []models.Meeting
	for _, m := range s.meetings {
		if f.MeetingType != "" && m.MeetingType != f.MeetingType {
			continue
		}
		if f.SeriesName != "" && m.SeriesName != f.SeriesName {
			continue
		}
		all = append(all, *m)
	}
	total := int64(len(all))
	if offset >= len(all) {
		return []models.Meeting{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (s *fakeStore) DeleteMeeting(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.meetings[id]; !ok {
		return false, nil
	}
	delete(s.meetings, id)
	delete(s.summaries, id)
	delete(s.participants, id)
	delete(s.actions, id)
	return true, nil
}

func (s *fakeStore) SetArchiveKey(_ context.Context, id int64, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.meetings[id]; ok {
		m.ArchiveKey = key
	}
	return nil
}

func (s *fakeStore) MarkFailed(ctx context.Context, id int64, message string) error {
	if s.failMarkFailed != nil {
		return s.failMarkFailed
	}
	return s.WithinTx(ctx, func(tx UnitOfWork) error {
		if err := tx.TransitionStatus(ctx, id, models.StatusProcessing, models.StatusFailed, &message); err != nil {
			return err
		}
		return tx.AddProcessingLog(ctx, &models.ProcessingLog{MeetingID: id, Operation: models.OperationAIAnalysis, Status: models.LogStatusFailure, ErrorMessage: message})
	})
}

func (s *fakeStore) FailInterrupted(_ context.Context, olderThan time.Duration, message string) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	var ids []int64
	for id, m := range s.meetings {
		if m.ProcessingStatus != models.StatusProcessing || !m.UpdatedAt.Before(cutoff) {
			continue
		}
		msg := message
		m.ProcessingStatus = models.StatusFailed
		m.ProcessingError = &msg
		m.UpdatedAt = time.Now()
		s.logs = append(s.logs, models.ProcessingLog{MeetingID: id, Operation: models.OperationAIAnalysis, Status: models.LogStatusFailure, ErrorMessage: message})
		ids = append(ids, id)
	}
	return ids, nil
}

// WithinTx fails on a cancelled context like pgx.BeginFunc does.
func (s *fakeStore) WithinTx(ctx context.Context, fn func(tx UnitOfWork) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &fakeTx{store: s, participants: map[int64][]models.Participant{}, actions: map[int64][]models.ActionItem{}}
	if err := fn(tx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sum := range tx.summaries {
		s.summaries[sum.MeetingID] = sum
	}
	for id, ps := range tx.participants {
		s.participants[id] = append(s.participants[id], ps...)
	}
	for id, as := range tx.actions {
		s.actions[id] = append(s.actions[id], as...)
	}
	s.logs = append(s.logs, tx.logs...)
	for _, st := range tx.statuses {
		m := s.meetings[st.id]
		m.ProcessingStatus = st.to
		m.ProcessingError = st.errMsg
	}
	return nil
}

func (s *fakeStore) GetSummary(_ context.Context, meetingID int64) (*models.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaries[meetingID], nil
}

func (s *fakeStore) ListParticipants(_ context.Context, meetingID int64) ([]models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Participant{}, s.participants[meetingID]...), nil
}

func (s *fakeStore) ListActionItems(_ context.Context, meetingID int64) ([]models.ActionItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ActionItem{}, s.actions[meetingID]...), nil
}

func (s *fakeStore) logsFor(meetingID int64) []models.ProcessingLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ProcessingLog
	for _, l := range s.logs {
		if l.MeetingID == meetingID {
			out = append(out, l)
		}
	}
	return out
}

type statusChange struct {
	id     int64
	to     models.ProcessingStatus
	errMsg *string
}

type fakeTx struct {
	store        *fakeStore
	summaries    []*models.Summary
	participants map[int64][]models.Participant
	actions      map[int64][]models.ActionItem
	logs         []models.ProcessingLog
	statuses     []statusChange
}

func (t *fakeTx) CreateSummary(_ context.Context, s *models.Summary) error {
	t.summaries = append(t.summaries, s)
	return nil
}

func (t *fakeTx) CreateParticipants(_ context.Context, meetingID int64, ps []models.Participant) error {
	t.participants[meetingID] = append(t.participants[meetingID], ps...)
	return nil
}

func (t *fakeTx) CreateActionItems(_ context.Context, meetingID int64, items []models.ActionItem) error {
	if t.store.failActionItems != nil {
		return t.store.failActionItems
	}
	t.actions[meetingID] = append(t.actions[meetingID], items...)
	return nil
}

func (t *fakeTx) AddProcessingLog(_ context.Context, l *models.ProcessingLog) error {
	t.logs = append(t.logs, *l)
	return nil
}

func (t *fakeTx) TransitionStatus(_ context.Context, id int64, from, to models.ProcessingStatus, errMsg *string) error {
	if !models.CanTransition(from, to) {
		return errors.New("invalid transition")
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	m, ok := t.store.meetings[id]
	if !ok || m.ProcessingStatus != from {
		return ErrStaleStatus
	}
	t.statuses = append(t.statuses, statusChange{id: id, to: to, errMsg: errMsg})
	return nil
}
