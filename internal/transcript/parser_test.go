package transcript

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallcontext/backend/internal/apperr"
)

func TestParseFilename(t *testing.T) {
	md, err := ParseFilename("2024-03-15_0930_Standup_Backend.txt")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, time.March, 15, 9, 30, 0, 0, time.UTC), md.MeetingDate)
	assert.Equal(t, "2024-03-15", md.MeetingDate.Format("2006-01-02"))
	assert.Equal(t, "09:30", md.MeetingDate.Format("15:04"))
	assert.Equal(t, "Standup", md.MeetingType)
	assert.Equal(t, "Backend", md.SeriesName)
}

func TestParseFilenameEveryMeetingType(t *testing.T) {
	for _, mt := range ValidMeetingTypes() {
		md, err := ParseFilename("2024-12-31_2359_" + mt + "_Series1.txt")
		require.NoError(t, err, mt)
		assert.Equal(t, mt, md.MeetingType)
		assert.Equal(t, "Series1", md.SeriesName)
		assert.Equal(t, time.Date(2024, time.December, 31, 23, 59, 0, 0, time.UTC), md.MeetingDate)
	}
}

func TestParseFilenameInvalidMeetingType(t *testing.T) {
	_, err := ParseFilename("2024-03-15_0930_Sprint_Backend.txt")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidInput))
	assert.Contains(t, err.Error(), "Sprint")
	assert.Contains(t, err.Error(), "Standup")
}

func TestParseFilenameRejects(t *testing.T) {
	cases := map[string]string{
		"empty":                "",
		"wrong extension":      "2024-03-15_0930_Standup_Backend.md",
		"missing series":       "2024-03-15_0930_Standup.txt",
		"extra segment":        "2024-03-15_0930_Standup_Backend_Extra.txt",
		"non numeric date":     "2024-AB-15_0930_Standup_Backend.txt",
		"short time":           "2024-03-15_930_Standup_Backend.txt",
		"day 32":               "2024-03-32_0930_Standup_Backend.txt",
		"february 30":          "2024-02-30_0930_Standup_Backend.txt",
		"month 13":             "2024-13-01_0930_Standup_Backend.txt",
		"hour 25":              "2024-03-15_2500_Standup_Backend.txt",
		"minute 60":            "2024-03-15_0960_Standup_Backend.txt",
		"lowercase type":       "2024-03-15_0930_standup_Backend.txt",
		"disallowed character": "2024-03-15_0930_Standup_Back-end.txt",
		"leading path":         "dir/2024-03-15_0930_Standup_Backend.txt",
		"trailing text":        "2024-03-15_0930_Standup_Backend.txt.bak",
		"space":                "2024-03-15_0930_Standup_Back end.txt",
	}
	for name, filename := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseFilename(filename)
			require.Error(t, err)
			assert.True(t, apperr.IsKind(err, apperr.KindInvalidInput), "got %v", err)
		})
	}
}

func TestParseFilenameFormatMessage(t *testing.T) {
	_, err := ParseFilename("notes.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ExpectedFormat)
}

func TestValidMeetingTypesIsCopy(t *testing.T) {
	types := ValidMeetingTypes()
	types[0] = "Mutated"
	assert.True(t, IsValidMeetingType("OneOnOne"))
	assert.False(t, IsValidMeetingType("Mutated"))
}
