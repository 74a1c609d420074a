package models

import "time"

// Action item statuses.
const (
	ActionStatusNotStarted = "NOT_STARTED"
	ActionStatusInProgress = "IN_PROGRESS"
	ActionStatusCompleted  = "COMPLETED"
	ActionStatusBlocked    = "BLOCKED"
)

// IsValidActionStatus reports whether s is a known action item status.
func IsValidActionStatus(s string) bool {
	switch s {
	case ActionStatusNotStarted, ActionStatusInProgress, ActionStatusCompleted, ActionStatusBlocked:
		return true
	}
	return false
}

// ActionItem is a follow-up extracted from a meeting.
type ActionItem struct {
	ID          int64      `json:"id"`
	MeetingID   int64      `json:"meeting_id"`
	MeetingType string     `json:"meeting_type,omitempty"`
	MeetingDate *time.Time `json:"meeting_date,omitempty"`
	Description string     `json:"description"`
	Assignee    string     `json:"assignee,omitempty"`
	DueDate     *Date      `json:"due_date"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ActionFilter narrows an action item listing.
type ActionFilter struct {
	Status   string
	Assignee string
}

// ActionUpdate is a partial update; nil fields are left unchanged.
// DueDate is YYYY-MM-DD, or empty to clear the date.
type ActionUpdate struct {
	Status   *string `json:"status"`
	Assignee *string `json:"assignee"`
	DueDate  *string `json:"due_date"`
	Priority *string `json:"priority"`
	Notes    *string `json:"notes"`
}
