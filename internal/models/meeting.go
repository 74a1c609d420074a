package models

import (
	"time"
)

// ProcessingStatus is the persisted ingestion state of a meeting.
type ProcessingStatus string

// Meeting processing lifecycle. Records are created directly in PROCESSING.
const (
	StatusPending    ProcessingStatus = "PENDING"
	StatusProcessing ProcessingStatus = "PROCESSING"
	StatusCompleted  ProcessingStatus = "COMPLETED"
	StatusFailed     ProcessingStatus = "FAILED"
)

// IsTerminal reports whether no further transition is allowed.
func (s ProcessingStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether from -> to is a forward move.
func CanTransition(from, to ProcessingStatus) bool {
	switch from {
	case StatusPending:
		return to == StatusProcessing || to == StatusFailed
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}

// MeetingSeries groups meetings sharing a series name and meeting type.
type MeetingSeries struct {
	ID          int64     `json:"id"`
	SeriesName  string    `json:"series_name"`
	MeetingType string    `json:"meeting_type"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Meeting is an uploaded transcript and its processing state.
// ProcessingError is set iff ProcessingStatus is FAILED.
type Meeting struct {
	ID                int64            `json:"id"`
	SeriesID          *int64           `json:"series_id,omitempty"`
	MeetingDate       time.Time        `json:"meeting_date"`
	MeetingType       string           `json:"meeting_type"`
	SeriesName        string           `json:"series_name"`
	OriginalFilename  string           `json:"original_filename"`
	TranscriptContent string           `json:"transcript_content,omitempty"`
	ProcessingStatus  ProcessingStatus `json:"processing_status"`
	ProcessingError   *string          `json:"processing_error,omitempty"`
	ArchiveKey        string           `json:"-"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// MeetingFilter narrows a meeting listing.
type MeetingFilter struct {
	MeetingType string
	SeriesName  string
}

// Summary is the analysis text for a meeting (one per meeting).
type Summary struct {
	ID          int64          `json:"-"`
	MeetingID   int64          `json:"-"`
	KeyPoints   []string       `json:"key_points"`
	Decisions   []string       `json:"decisions"`
	SummaryText string         `json:"summary_text"`
	Sentiment   string         `json:"sentiment,omitempty"`
	Tone        string         `json:"tone,omitempty"`
	AIMetadata  map[string]any `json:"-"`
	CreatedAt   time.Time      `json:"-"`
}

// Participant is a person identified in a meeting transcript.
type Participant struct {
	ID        int64     `json:"id"`
	MeetingID int64     `json:"-"`
	Name      string    `json:"name"`
	Role      string    `json:"role,omitempty"`
	CreatedAt time.Time `json:"-"`
}

// Processing log operations and outcomes.
const (
	OperationAIAnalysis = "AI_ANALYSIS"
	LogStatusSuccess    = "SUCCESS"
	LogStatusFailure    = "FAILURE"
)

// ProcessingLog records one processing attempt against a meeting.
type ProcessingLog struct {
	ID           int64     `json:"id"`
	MeetingID    int64     `json:"meeting_id"`
	Operation    string    `json:"operation"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
