package queue

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetriesExhausted(t *testing.T) {
	// First attempt plus MaxRetries retries before the DLQ.
	for attempt := 1; attempt <= MaxRetries; attempt++ {
		assert.False(t, retriesExhausted(attempt), "attempt %d", attempt)
	}
	assert.True(t, retriesExhausted(MaxRetries+1))
}

func TestNewJob(t *testing.T) {
	job, err := NewJob(JobTypeTranscriptArchive, TranscriptArchivePayload{MeetingID: 7, SeriesName: "Engineering"})
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, JobTypeTranscriptArchive, job.Type)
	assert.Zero(t, job.Attempt)

	var p TranscriptArchivePayload
	require.NoError(t, json.Unmarshal(job.Payload, &p))
	assert.Equal(t, int64(7), p.MeetingID)
	assert.Equal(t, "Engineering", p.SeriesName)
}
