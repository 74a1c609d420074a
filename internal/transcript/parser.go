// Package transcript derives meeting metadata from transcript filenames.
//
// Filenames follow YYYY-MM-DD_HHmm_<MeetingType>_<SeriesName>.txt, for example
// 2024-03-15_1400_Standup_Engineering.txt.
package transcript

import (
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/recallcontext/backend/internal/apperr"
)

// ExpectedFormat is shown to callers whose filename does not match.
const ExpectedFormat = "YYYY-MM-DD_HHmm_MeetingType_SeriesName.txt"

var filenamePattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})_(\d{4})_(\w+)_(\w+)\.txt$`)

// validMeetingTypes is closed and case-sensitive.
var validMeetingTypes = []string{
	"OneOnOne", "Standup", "Programme", "Retro", "Governance", "Leadership",
	"Vendor", "Adhoc", "Incident", "Interview", "Review", "Dictation",
}

// Metadata is what a transcript filename says about its meeting.
type Metadata struct {
	MeetingDate time.Time // date and time of day, no zone conversion (UTC wall clock)
	MeetingType string
	SeriesName  string
}

// ParseFilename extracts Metadata or returns an INVALID_INPUT *apperr.Error.
func ParseFilename(filename string) (Metadata, error) {
	m := filenamePattern.FindStringSubmatch(filename)
	if m == nil {
		return Metadata{}, apperr.InvalidInput("Invalid filename format: %s. Expected format: %s", filename, ExpectedFormat)
	}
	dateStr, timeStr, meetingType, seriesName := m[1], m[2], m[3], m[4]

	if !IsValidMeetingType(meetingType) {
		return Metadata{}, apperr.InvalidInput("Invalid meeting type: %s. Valid types: %s", meetingType, strings.Join(validMeetingTypes, ", "))
	}

	day, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return Metadata{}, apperr.InvalidInput("Invalid date/time format in filename: %s", filename)
	}
	clock, err := time.Parse("1504", timeStr)
	if err != nil {
		return Metadata{}, apperr.InvalidInput("Invalid date/time format in filename: %s", filename)
	}

	return Metadata{
		MeetingDate: time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, time.UTC),
		MeetingType: meetingType,
		SeriesName:  seriesName,
	}, nil
}

// IsValidMeetingType reports whether t is one of the known meeting types.
func IsValidMeetingType(t string) bool {
	return slices.Contains(validMeetingTypes, t)
}

// ValidMeetingTypes returns a copy of the known meeting types.
func ValidMeetingTypes() []string {
	return slices.Clone(validMeetingTypes)
}
