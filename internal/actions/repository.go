package actions

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

const selectActionItems = `SELECT a.id, a.meeting_id, m.meeting_type, m.meeting_date, a.description, COALESCE(a.assignee,''), a.due_date,
	a.status, COALESCE(a.priority,''), COALESCE(a.notes,''), a.completed_at, a.created_at, a.updated_at
	FROM action_items a JOIN meetings m ON m.id = a.meeting_id`

// Repository handles action item persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an action items repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns a page of action items and the total count. Filtered listings are ordered by due date, others by newest first.
func (r *Repository) List(ctx context.Context, f models.ActionFilter, limit, offset int) ([]models.ActionItem, int64, error) {
	var where []string
	var args []any
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("a.status = $%d", len(args)))
	}
	if f.Assignee != "" {
		args = append(args, f.Assignee)
		where = append(where, fmt.Sprintf("a.assignee = $%d", len(args)))
	}
	cond := ""
	order := "a.created_at DESC, a.id DESC"
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
		order = "a.due_date ASC NULLS LAST, a.id"
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM action_items a`+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	q := fmt.Sprintf(`%s%s ORDER BY %s LIMIT $%d OFFSET $%d`, selectActionItems, cond, order, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	list := []models.ActionItem{}
	for rows.Next() {
		a, err := scanActionItem(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *a)
	}
	return list, total, rows.Err()
}

// GetByID returns an action item, or nil when it does not exist.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.ActionItem, error) {
	a, err := scanActionItem(r.pool.QueryRow(ctx, selectActionItems+` WHERE a.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

// Save writes the mutable fields of a.
func (r *Repository) Save(ctx context.Context, a *models.ActionItem) error {
	const q = `UPDATE action_items
		SET status = $1, assignee = NULLIF($2,''), due_date = $3, priority = NULLIF($4,''), notes = NULLIF($5,''), completed_at = $6, updated_at = NOW()
		WHERE id = $7
		RETURNING updated_at`
	return r.pool.QueryRow(ctx, q, a.Status, a.Assignee, a.DueDate.TimePtr(), a.Priority, a.Notes, a.CompletedAt, a.ID).Scan(&a.UpdatedAt)
}

func scanActionItem(row pgx.Row) (*models.ActionItem, error) {
	var a models.ActionItem
	var due *time.Time
	var meetingDate time.Time
	if err := row.Scan(&a.ID, &a.MeetingID, &a.MeetingType, &meetingDate, &a.Description, &a.Assignee, &due,
		&a.Status, &a.Priority, &a.Notes, &a.CompletedAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.MeetingDate = &meetingDate
	a.DueDate = models.DateFromTime(due)
	return &a, nil
}
