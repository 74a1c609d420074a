// Package meetings ingests transcripts and serves meetings with their derived records.
package meetings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/recallcontext/backend/internal/analysis"
	"github.com/recallcontext/backend/internal/apperr"
	"github.com/recallcontext/backend/internal/events"
	"github.com/recallcontext/backend/internal/models"
	"github.com/recallcontext/backend/internal/transcript"
	"github.com/recallcontext/backend/pkg/queue"
	"github.com/recallcontext/backend/pkg/response"
)

// Store is the meeting persistence the service needs.
type Store interface {
	FindOrCreateSeries(ctx context.Context, seriesName, meetingType string) (*models.MeetingSeries, error)
	CreateMeeting(ctx context.Context, m *models.Meeting) error
	GetMeeting(ctx context.Context, id int64) (*models.Meeting, error)
	ListMeetings(ctx context.Context, f models.MeetingFilter, limit, offset int) ([]models.Meeting, int64, error)
	DeleteMeeting(ctx context.Context, id int64) (bool, error)
	SetArchiveKey(ctx context.Context, id int64, key string) error
	MarkFailed(ctx context.Context, id int64, message string) error
	FailInterrupted(ctx context.Context, olderThan time.Duration, message string) ([]int64, error)
	WithinTx(ctx context.Context, fn func(tx UnitOfWork) error) error
	GetSummary(ctx context.Context, meetingID int64) (*models.Summary, error)
	ListParticipants(ctx context.Context, meetingID int64) ([]models.Participant, error)
	ListActionItems(ctx context.Context, meetingID int64) ([]models.ActionItem, error)
}

// UnitOfWork holds the writes committed together with the COMPLETED transition.
type UnitOfWork interface {
	CreateSummary(ctx context.Context, s *models.Summary) error
	CreateParticipants(ctx context.Context, meetingID int64, ps []models.Participant) error
	CreateActionItems(ctx context.Context, meetingID int64, items []models.ActionItem) error
	AddProcessingLog(ctx context.Context, l *models.ProcessingLog) error
	TransitionStatus(ctx context.Context, id int64, from, to models.ProcessingStatus, errMsg *string) error
}

// CredentialSource resolves the analysis API key for an identity.
type CredentialSource interface {
	APIKey(ctx context.Context, identity string) (string, error)
}

// Analyzer calls the analysis service.
type Analyzer interface {
	Analyze(ctx context.Context, transcript, apiKey string) (*analysis.Payload, error)
}

// ResultExtractor turns an analysis payload into a typed result.
type ResultExtractor interface {
	Extract(p *analysis.Payload) (*analysis.Result, error)
}

// StatusPublisher broadcasts status transitions. Optional.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, ev events.StatusEvent) error
}

// ArchiveEnqueuer schedules transcript archival. Optional.
type ArchiveEnqueuer interface {
	EnqueueTranscriptArchive(ctx context.Context, payload queue.TranscriptArchivePayload) error
}

// InterruptedMessage is recorded on meetings whose processing was cut off by a restart.
const InterruptedMessage = "processing interrupted"

// ProcessingError is returned by Upload when a meeting record exists but its analysis failed.
// The meeting is FAILED and Err is the classified cause.
type ProcessingError struct {
	MeetingID int64
	Err       error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("failed to process transcript for meeting %d: %v", e.MeetingID, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// Service runs the ingestion flow and meeting reads.
type Service struct {
	store       Store
	credentials CredentialSource
	analyzer    Analyzer
	extractor   ResultExtractor
	publisher   StatusPublisher
	archive     ArchiveEnqueuer
	logger      *zap.Logger
}

// Option configures optional Service collaborators.
type Option func(*Service)

// WithStatusPublisher publishes every status transition.
func WithStatusPublisher(p StatusPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithArchive enqueues completed transcripts for archival.
func WithArchive(q ArchiveEnqueuer) Option {
	return func(s *Service) { s.archive = q }
}

// NewService creates a meetings service.
func NewService(store Store, credentials CredentialSource, analyzer Analyzer, extractor ResultExtractor, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{store: store, credentials: credentials, analyzer: analyzer, extractor: extractor, logger: logger}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Upload ingests one transcript. An invalid filename fails before any record is created.
// Otherwise the meeting ends COMPLETED with its derived records, or FAILED with none and a *ProcessingError is returned.
func (s *Service) Upload(ctx context.Context, identity, filename, content string) (*models.Meeting, error) {
	md, err := transcript.ParseFilename(filename)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, apperr.InvalidInput("content is required")
	}

	series, err := s.store.FindOrCreateSeries(ctx, md.SeriesName, md.MeetingType)
	if err != nil {
		return nil, fmt.Errorf("find or create series: %w", err)
	}
	m := &models.Meeting{
		SeriesID:          &series.ID,
		MeetingDate:       md.MeetingDate,
		MeetingType:       md.MeetingType,
		SeriesName:        md.SeriesName,
		OriginalFilename:  filename,
		TranscriptContent: content,
		ProcessingStatus:  models.StatusProcessing,
	}
	if err := s.store.CreateMeeting(ctx, m); err != nil {
		return nil, fmt.Errorf("create meeting: %w", err)
	}
	log := s.logger.With(zap.Int64("meeting_id", m.ID), zap.String("filename", filename))
	log.Info("meeting created, starting analysis")
	s.publish(ctx, m.ID, models.StatusProcessing, "")

	// Once the record exists it must reach COMPLETED or FAILED even if the caller goes away.
	// The analysis call carries its own timeout.
	pctx := context.WithoutCancel(ctx)
	if err := s.process(pctx, identity, m); err != nil {
		msg := err.Error()
		if ferr := s.store.MarkFailed(pctx, m.ID, msg); ferr != nil {
			log.Error("mark meeting failed", zap.Error(ferr))
		} else {
			m.ProcessingStatus = models.StatusFailed
			m.ProcessingError = &msg
			s.publish(ctx, m.ID, models.StatusFailed, msg)
		}
		log.Error("transcript processing failed", zap.Error(err))
		return m, &ProcessingError{MeetingID: m.ID, Err: err}
	}

	m.ProcessingStatus = models.StatusCompleted
	log.Info("transcript processed")
	s.publish(ctx, m.ID, models.StatusCompleted, "")
	s.enqueueArchive(ctx, m)
	return m, nil
}

// FailInterrupted fails meetings stuck in PROCESSING for longer than olderThan, which happens when
// the process stopped mid-analysis. Returns how many meetings were failed.
func (s *Service) FailInterrupted(ctx context.Context, olderThan time.Duration) (int, error) {
	ids, err := s.store.FailInterrupted(ctx, olderThan, InterruptedMessage)
	if err != nil {
		return 0, fmt.Errorf("fail interrupted meetings: %w", err)
	}
	for _, id := range ids {
		s.logger.Warn("meeting processing interrupted", zap.Int64("meeting_id", id))
		s.publish(ctx, id, models.StatusFailed, InterruptedMessage)
	}
	return len(ids), nil
}

func (s *Service) process(ctx context.Context, identity string, m *models.Meeting) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected fault during processing: %v", r)
		}
	}()

	apiKey, err := s.credentials.APIKey(ctx, identity)
	if err != nil {
		return err
	}
	payload, err := s.analyzer.Analyze(ctx, m.TranscriptContent, apiKey)
	if err != nil {
		return err
	}
	result, err := s.extractor.Extract(payload)
	if err != nil {
		return err
	}
	return s.store.WithinTx(ctx, func(tx UnitOfWork) error {
		return s.saveResult(ctx, tx, m.ID, result)
	})
}

func (s *Service) saveResult(ctx context.Context, tx UnitOfWork, meetingID int64, r *analysis.Result) error {
	sum := &models.Summary{
		MeetingID:   meetingID,
		KeyPoints:   r.KeyPoints,
		Decisions:   r.Decisions,
		SummaryText: r.SummaryText,
		Sentiment:   r.Sentiment,
		Tone:        r.Tone,
		AIMetadata:  r.AIMetadata.Map(),
	}
	if err := tx.CreateSummary(ctx, sum); err != nil {
		return fmt.Errorf("save summary: %w", err)
	}

	participants := make([]models.Participant, 0, len(r.Participants))
	for _, p := range r.Participants {
		participants = append(participants, models.Participant{MeetingID: meetingID, Name: p.Name, Role: p.Role})
	}
	if err := tx.CreateParticipants(ctx, meetingID, participants); err != nil {
		return fmt.Errorf("save participants: %w", err)
	}

	items := make([]models.ActionItem, 0, len(r.ActionItems))
	for _, a := range r.ActionItems {
		items = append(items, models.ActionItem{
			MeetingID:   meetingID,
			Description: a.Description,
			Assignee:    a.Assignee,
			DueDate:     a.DueDate,
			Priority:    a.Priority,
			Status:      models.ActionStatusNotStarted,
		})
	}
	if err := tx.CreateActionItems(ctx, meetingID, items); err != nil {
		return fmt.Errorf("save action items: %w", err)
	}

	if err := tx.AddProcessingLog(ctx, &models.ProcessingLog{
		MeetingID: meetingID,
		Operation: models.OperationAIAnalysis,
		Status:    models.LogStatusSuccess,
	}); err != nil {
		return fmt.Errorf("save processing log: %w", err)
	}
	if err := tx.TransitionStatus(ctx, meetingID, models.StatusProcessing, models.StatusCompleted, nil); err != nil {
		return fmt.Errorf("complete meeting: %w", err)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, meetingID int64, status models.ProcessingStatus, msg string) {
	if s.publisher == nil {
		return
	}
	ev := events.StatusEvent{MeetingID: meetingID, Status: status, Error: msg}
	if err := s.publisher.PublishStatus(ctx, ev); err != nil {
		s.logger.Warn("publish status event failed", zap.Int64("meeting_id", meetingID), zap.String("status", string(status)), zap.Error(err))
	}
}

func (s *Service) enqueueArchive(ctx context.Context, m *models.Meeting) {
	if s.archive == nil {
		return
	}
	payload := queue.TranscriptArchivePayload{MeetingID: m.ID, SeriesName: m.SeriesName}
	if err := s.archive.EnqueueTranscriptArchive(context.WithoutCancel(ctx), payload); err != nil {
		s.logger.Warn("enqueue transcript archive failed", zap.Int64("meeting_id", m.ID), zap.Error(err))
	}
}

// MeetingView is a meeting with the records derived from its analysis.
type MeetingView struct {
	models.Meeting
	Summary      *models.Summary      `json:"summary"`
	Participants []models.Participant `json:"participants"`
	ActionItems  []models.ActionItem  `json:"action_items"`
}

// Get returns a meeting with transcript, summary, participants and action items.
func (s *Service) Get(ctx context.Context, id int64) (*MeetingView, error) {
	m, err := s.getMeeting(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, m)
}

// view loads the derived records of an already loaded meeting.
func (s *Service) view(ctx context.Context, m *models.Meeting) (*MeetingView, error) {
	v := &MeetingView{Meeting: *m}
	var err error
	if v.Summary, err = s.store.GetSummary(ctx, m.ID); err != nil {
		return nil, fmt.Errorf("load summary: %w", err)
	}
	if v.Participants, err = s.store.ListParticipants(ctx, m.ID); err != nil {
		return nil, fmt.Errorf("load participants: %w", err)
	}
	if v.ActionItems, err = s.store.ListActionItems(ctx, m.ID); err != nil {
		return nil, fmt.Errorf("load action items: %w", err)
	}
	return v, nil
}

// List returns a page of meetings, newest first, each with its summary.
func (s *Service) List(ctx context.Context, f models.MeetingFilter, page, size int) ([]MeetingView, int64, error) {
	list, total, err := s.store.ListMeetings(ctx, f, size, response.Offset(page, size))
	if err != nil {
		return nil, 0, fmt.Errorf("list meetings: %w", err)
	}
	views := make([]MeetingView, 0, len(list))
	for i := range list {
		sum, err := s.store.GetSummary(ctx, list[i].ID)
		if err != nil {
			return nil, 0, fmt.Errorf("load summary: %w", err)
		}
		views = append(views, MeetingView{Meeting: list[i], Summary: sum})
	}
	return views, total, nil
}

// Status returns the meeting's current processing status as a status event.
func (s *Service) Status(ctx context.Context, id int64) (events.StatusEvent, error) {
	m, err := s.getMeeting(ctx, id)
	if err != nil {
		return events.StatusEvent{}, err
	}
	ev := events.StatusEvent{MeetingID: m.ID, Status: m.ProcessingStatus, At: m.UpdatedAt.Unix()}
	if m.ProcessingError != nil {
		ev.Error = *m.ProcessingError
	}
	return ev, nil
}

// ArchiveKey returns the S3 key of the archived transcript, or NOT_FOUND when it has not been archived.
func (s *Service) ArchiveKey(ctx context.Context, id int64) (string, error) {
	m, err := s.getMeeting(ctx, id)
	if err != nil {
		return "", err
	}
	if m.ArchiveKey == "" {
		return "", apperr.NotFound("transcript for meeting %d has not been archived", id)
	}
	return m.ArchiveKey, nil
}

// Delete removes a meeting and everything derived from it.
func (s *Service) Delete(ctx context.Context, id int64) error {
	ok, err := s.store.DeleteMeeting(ctx, id)
	if err != nil {
		return fmt.Errorf("delete meeting: %w", err)
	}
	if !ok {
		return apperr.NotFound("meeting %d not found", id)
	}
	s.logger.Info("meeting deleted", zap.Int64("meeting_id", id))
	return nil
}

func (s *Service) getMeeting(ctx context.Context, id int64) (*models.Meeting, error) {
	m, err := s.store.GetMeeting(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load meeting: %w", err)
	}
	if m == nil {
		return nil, apperr.NotFound("meeting %d not found", id)
	}
	return m, nil
}

// IsProcessingError reports whether err came from a failed analysis of an existing meeting, and returns its id.
func IsProcessingError(err error) (int64, bool) {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.MeetingID, true
	}
	return 0, false
}
