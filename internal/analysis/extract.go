package analysis

import (
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/recallcontext/backend/internal/apperr"
	"github.com/recallcontext/backend/internal/models"
)

// Result is the typed analysis of one transcript.
type Result struct {
	KeyPoints    []string
	Decisions    []string
	SummaryText  string
	Sentiment    string
	Tone         string
	Participants []Participant
	ActionItems  []ActionItem
	AIMetadata   Metadata
}

// Participant is a name/role pair found in the transcript.
type Participant struct {
	Name string
	Role string
}

// ActionItem is a follow-up found in the transcript. DueDate is nil when absent or unparseable.
type ActionItem struct {
	Description string
	Assignee    string
	DueDate     *models.Date
	Priority    string
}

// Metadata is provenance copied from the response envelope.
type Metadata struct {
	Model      string
	Usage      map[string]any
	StopReason string
}

// Map returns the metadata in the shape stored with the summary.
func (m Metadata) Map() map[string]any {
	usage := m.Usage
	if usage == nil {
		usage = map[string]any{}
	}
	return map[string]any{
		"model":       m.Model,
		"usage":       usage,
		"stop_reason": m.StopReason,
	}
}

type rawAnalysis struct {
	Participants []rawParticipant `json:"participants"`
	KeyPoints    []string         `json:"keyPoints"`
	Decisions    []string         `json:"decisions"`
	ActionItems  []rawActionItem  `json:"actionItems"`
	Sentiment    string           `json:"sentiment"`
	Tone         string           `json:"tone"`
	SummaryText  string           `json:"summaryText"`
}

type rawParticipant struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

type rawActionItem struct {
	Description string          `json:"description"`
	Assignee    string          `json:"assignee"`
	DueDate     json.RawMessage `json:"dueDate"`
	Priority    string          `json:"priority"`
}

// Extractor validates payloads and maps them into Results.
type Extractor struct {
	logger *zap.Logger
}

// NewExtractor creates an extractor.
func NewExtractor(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

// Extract reads the first content block as a JSON analysis document.
// Structural problems return a MALFORMED_RESPONSE *apperr.Error; a bad due date only nulls that item's date.
func (e *Extractor) Extract(p *Payload) (*Result, error) {
	if p == nil || len(p.Content) == 0 {
		return nil, apperr.Malformed("invalid response format: no content array found", nil)
	}
	text := strings.TrimSpace(p.Content[0].Text)
	if text == "" {
		return nil, apperr.Malformed("invalid response format: no text content found", nil)
	}

	var raw rawAnalysis
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &raw); err != nil {
		return nil, apperr.Malformed("failed to parse analysis document", err)
	}
	if strings.TrimSpace(raw.SummaryText) == "" {
		return nil, apperr.Malformed("invalid analysis document", errors.New("summaryText is empty"))
	}

	res := &Result{
		KeyPoints:    nonNil(raw.KeyPoints),
		Decisions:    nonNil(raw.Decisions),
		SummaryText:  raw.SummaryText,
		Sentiment:    raw.Sentiment,
		Tone:         raw.Tone,
		Participants: make([]Participant, 0, len(raw.Participants)),
		ActionItems:  make([]ActionItem, 0, len(raw.ActionItems)),
		AIMetadata: Metadata{
			Model:      p.Model,
			Usage:      p.Usage,
			StopReason: p.StopReason,
		},
	}
	for _, rp := range raw.Participants {
		res.Participants = append(res.Participants, Participant{Name: rp.Name, Role: rp.Role})
	}
	for _, ra := range raw.ActionItems {
		res.ActionItems = append(res.ActionItems, ActionItem{
			Description: ra.Description,
			Assignee:    ra.Assignee,
			DueDate:     e.parseDueDate(ra.DueDate),
			Priority:    ra.Priority,
		})
	}

	e.logger.Info("parsed meeting analysis",
		zap.Int("key_points", len(res.KeyPoints)),
		zap.Int("decisions", len(res.Decisions)),
		zap.Int("participants", len(res.Participants)),
		zap.Int("action_items", len(res.ActionItems)),
	)
	return res, nil
}

func (e *Extractor) parseDueDate(raw json.RawMessage) *models.Date {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		e.logger.Warn("invalid due date", zap.String("due_date", string(raw)))
		return nil
	}
	if s == "" {
		return nil
	}
	d, err := models.ParseDate(s)
	if err != nil {
		e.logger.Warn("invalid due date", zap.String("due_date", s))
		return nil
	}
	return &d
}

// stripCodeFence removes a surrounding ``` or ```json fence.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		return s
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
