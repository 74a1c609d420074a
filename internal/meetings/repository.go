package meetings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/recallcontext/backend/internal/models"
)

// ErrStaleStatus is returned when a status update finds the meeting in a different status than expected.
var ErrStaleStatus = errors.New("meeting status changed concurrently")

const meetingColumns = `id, series_id, meeting_date, meeting_type, series_name, original_filename,
	processing_status, processing_error, COALESCE(archive_key,''), created_at, updated_at`

// Repository handles meetings and the records derived from their analysis.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a meetings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindOrCreateSeries returns the series for (name, type), creating it on first use.
func (r *Repository) FindOrCreateSeries(ctx context.Context, seriesName, meetingType string) (*models.MeetingSeries, error) {
	const q = `INSERT INTO meeting_series (series_name, meeting_type)
		VALUES ($1, $2)
		ON CONFLICT (series_name, meeting_type) DO UPDATE SET updated_at = meeting_series.updated_at
		RETURNING id, series_name, meeting_type, COALESCE(description,''), created_at, updated_at`
	var s models.MeetingSeries
	err := r.pool.QueryRow(ctx, q, seriesName, meetingType).
		Scan(&s.ID, &s.SeriesName, &s.MeetingType, &s.Description, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateMeeting inserts m and fills its id and timestamps.
func (r *Repository) CreateMeeting(ctx context.Context, m *models.Meeting) error {
	const q = `INSERT INTO meetings (series_id, meeting_date, meeting_type, series_name, original_filename, transcript_content, processing_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, m.SeriesID, m.MeetingDate, m.MeetingType, m.SeriesName, m.OriginalFilename, m.TranscriptContent, m.ProcessingStatus).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
}

// GetMeeting returns a meeting with its transcript, or nil when it does not exist.
func (r *Repository) GetMeeting(ctx context.Context, id int64) (*models.Meeting, error) {
	q := `SELECT ` + meetingColumns + `, transcript_content FROM meetings WHERE id = $1`
	var m models.Meeting
	err := r.pool.QueryRow(ctx, q, id).Scan(&m.ID, &m.SeriesID, &m.MeetingDate, &m.MeetingType, &m.SeriesName, &m.OriginalFilename,
		&m.ProcessingStatus, &m.ProcessingError, &m.ArchiveKey, &m.CreatedAt, &m.UpdatedAt, &m.TranscriptContent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// ListMeetings returns a page of meetings (without transcripts) ordered by meeting date, newest first, and the total count.
func (r *Repository) ListMeetings(ctx context.Context, f models.MeetingFilter, limit, offset int) ([]models.Meeting, int64, error) {
	var where []string
	var args []any
	if f.MeetingType != "" {
		args = append(args, f.MeetingType)
		where = append(where, fmt.Sprintf("meeting_type = $%d", len(args)))
	}
	if f.SeriesName != "" {
		args = append(args, f.SeriesName)
		where = append(where, fmt.Sprintf("series_name = $%d", len(args)))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM meetings`+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	q := fmt.Sprintf(`SELECT %s FROM meetings%s ORDER BY meeting_date DESC, id DESC LIMIT $%d OFFSET $%d`,
		meetingColumns, cond, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	list := []models.Meeting{}
	for rows.Next() {
		var m models.Meeting
		if err := rows.Scan(&m.ID, &m.SeriesID, &m.MeetingDate, &m.MeetingType, &m.SeriesName, &m.OriginalFilename,
			&m.ProcessingStatus, &m.ProcessingError, &m.ArchiveKey, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, 0, err
		}
		list = append(list, m)
	}
	return list, total, rows.Err()
}

// DeleteMeeting removes a meeting; derived rows go with it. Reports whether a row was deleted.
func (r *Repository) DeleteMeeting(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM meetings WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SetArchiveKey records where the transcript was archived.
func (r *Repository) SetArchiveKey(ctx context.Context, id int64, key string) error {
	const q = `UPDATE meetings SET archive_key = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, key, id)
	return err
}

// MarkFailed moves a PROCESSING meeting to FAILED and logs the failed attempt, in one transaction.
func (r *Repository) MarkFailed(ctx context.Context, id int64, message string) error {
	return r.WithinTx(ctx, func(tx UnitOfWork) error {
		if err := tx.TransitionStatus(ctx, id, models.StatusProcessing, models.StatusFailed, &message); err != nil {
			return err
		}
		return tx.AddProcessingLog(ctx, &models.ProcessingLog{
			MeetingID:    id,
			Operation:    models.OperationAIAnalysis,
			Status:       models.LogStatusFailure,
			ErrorMessage: message,
		})
	})
}

// FailInterrupted moves meetings left in PROCESSING for longer than olderThan to FAILED with message
// and logs a FAILURE for each, in one statement. Returns the ids it failed.
func (r *Repository) FailInterrupted(ctx context.Context, olderThan time.Duration, message string) ([]int64, error) {
	const q = `WITH failed AS (
			UPDATE meetings SET processing_status = $1, processing_error = $2, updated_at = NOW()
			WHERE processing_status = $3 AND updated_at < NOW() - make_interval(secs => $4)
			RETURNING id
		), logged AS (
			INSERT INTO processing_logs (meeting_id, operation, status, error_message)
			SELECT id, $5, $6, $2 FROM failed
		)
		SELECT id FROM failed ORDER BY id`
	rows, err := r.pool.Query(ctx, q, models.StatusFailed, message, models.StatusProcessing, olderThan.Seconds(),
		models.OperationAIAnalysis, models.LogStatusFailure)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

// WithinTx runs fn in one transaction. Nothing fn wrote is visible unless it returns nil.
func (r *Repository) WithinTx(ctx context.Context, fn func(tx UnitOfWork) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&txStore{tx: tx})
	})
}

// GetSummary returns the meeting's summary, or nil when none exists.
func (r *Repository) GetSummary(ctx context.Context, meetingID int64) (*models.Summary, error) {
	const q = `SELECT id, meeting_id, key_points, decisions, summary_text, COALESCE(sentiment,''), COALESCE(tone,''), ai_metadata, created_at
		FROM summaries WHERE meeting_id = $1`
	var s models.Summary
	err := r.pool.QueryRow(ctx, q, meetingID).Scan(&s.ID, &s.MeetingID, &s.KeyPoints, &s.Decisions, &s.SummaryText, &s.Sentiment, &s.Tone, &s.AIMetadata, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// ListParticipants returns the meeting's participants in insertion order.
func (r *Repository) ListParticipants(ctx context.Context, meetingID int64) ([]models.Participant, error) {
	const q = `SELECT id, meeting_id, name, COALESCE(role,''), created_at FROM participants WHERE meeting_id = $1 ORDER BY id`
	rows, err := r.pool.Query(ctx, q, meetingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Participant{}
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.ID, &p.MeetingID, &p.Name, &p.Role, &p.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// ListActionItems returns the meeting's action items in insertion order.
func (r *Repository) ListActionItems(ctx context.Context, meetingID int64) ([]models.ActionItem, error) {
	const q = `SELECT id, meeting_id, description, COALESCE(assignee,''), due_date, status, COALESCE(priority,''), COALESCE(notes,''), completed_at, created_at, updated_at
		FROM action_items WHERE meeting_id = $1 ORDER BY id`
	rows, err := r.pool.Query(ctx, q, meetingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.ActionItem{}
	for rows.Next() {
		var a models.ActionItem
		var due *time.Time
		if err := rows.Scan(&a.ID, &a.MeetingID, &a.Description, &a.Assignee, &due, &a.Status, &a.Priority, &a.Notes, &a.CompletedAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		a.DueDate = models.DateFromTime(due)
		list = append(list, a)
	}
	return list, rows.Err()
}

// txStore is the UnitOfWork backed by a pgx transaction.
type txStore struct {
	tx pgx.Tx
}

func (s *txStore) CreateSummary(ctx context.Context, sum *models.Summary) error {
	const q = `INSERT INTO summaries (meeting_id, key_points, decisions, summary_text, sentiment, tone, ai_metadata)
		VALUES ($1, $2, $3, $4, NULLIF($5,''), NULLIF($6,''), $7)
		RETURNING id, created_at`
	return s.tx.QueryRow(ctx, q, sum.MeetingID, sum.KeyPoints, sum.Decisions, sum.SummaryText, sum.Sentiment, sum.Tone, sum.AIMetadata).
		Scan(&sum.ID, &sum.CreatedAt)
}

func (s *txStore) CreateParticipants(ctx context.Context, meetingID int64, ps []models.Participant) error {
	if len(ps) == 0 {
		return nil
	}
	const q = `INSERT INTO participants (meeting_id, name, role) VALUES ($1, $2, NULLIF($3,''))`
	b := &pgx.Batch{}
	for _, p := range ps {
		b.Queue(q, meetingID, p.Name, p.Role)
	}
	return s.sendBatch(ctx, b)
}

func (s *txStore) CreateActionItems(ctx context.Context, meetingID int64, items []models.ActionItem) error {
	if len(items) == 0 {
		return nil
	}
	const q = `INSERT INTO action_items (meeting_id, description, assignee, due_date, status, priority)
		VALUES ($1, $2, NULLIF($3,''), $4, $5, NULLIF($6,''))`
	b := &pgx.Batch{}
	for _, a := range items {
		b.Queue(q, meetingID, a.Description, a.Assignee, a.DueDate.TimePtr(), a.Status, a.Priority)
	}
	return s.sendBatch(ctx, b)
}

func (s *txStore) sendBatch(ctx context.Context, b *pgx.Batch) error {
	br := s.tx.SendBatch(ctx, b)
	for i := 0; i < b.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return err
		}
	}
	return br.Close()
}

func (s *txStore) AddProcessingLog(ctx context.Context, l *models.ProcessingLog) error {
	const q = `INSERT INTO processing_logs (meeting_id, operation, status, error_message)
		VALUES ($1, $2, $3, NULLIF($4,''))
		RETURNING id, created_at`
	return s.tx.QueryRow(ctx, q, l.MeetingID, l.Operation, l.Status, l.ErrorMessage).Scan(&l.ID, &l.CreatedAt)
}

// TransitionStatus moves a meeting from one status to another. errMsg must be set exactly when to is FAILED.
func (s *txStore) TransitionStatus(ctx context.Context, id int64, from, to models.ProcessingStatus, errMsg *string) error {
	if !models.CanTransition(from, to) {
		return fmt.Errorf("invalid status transition %s -> %s", from, to)
	}
	if (to == models.StatusFailed) != (errMsg != nil) {
		return fmt.Errorf("processing error must be set only for %s", models.StatusFailed)
	}
	const q = `UPDATE meetings SET processing_status = $1, processing_error = $2, updated_at = NOW()
		WHERE id = $3 AND processing_status = $4`
	tag, err := s.tx.Exec(ctx, q, to, errMsg, id, from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleStatus
	}
	return nil
}
