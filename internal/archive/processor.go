// Package archive copies completed transcripts to S3 from the background worker.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/recallcontext/backend/internal/models"
	"github.com/recallcontext/backend/pkg/queue"
	"github.com/recallcontext/backend/pkg/storage"
)

// MeetingStore is the meeting persistence the processor needs.
type MeetingStore interface {
	GetMeeting(ctx context.Context, id int64) (*models.Meeting, error)
	SetArchiveKey(ctx context.Context, id int64, key string) error
}

// Uploader stores transcript objects.
type Uploader interface {
	UploadTranscript(ctx context.Context, key string, body io.Reader, contentLength int64) error
}

// JobQueue supplies jobs and takes back failed ones.
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// Processor processes transcript archive jobs: load the meeting, upload its transcript, record the key.
type Processor struct {
	meetings MeetingStore
	uploader Uploader
	queue    JobQueue
	backoff  time.Duration
	logger   *zap.Logger
}

// NewProcessor creates a transcript archive processor.
func NewProcessor(meetings MeetingStore, uploader Uploader, q JobQueue, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{meetings: meetings, uploader: uploader, queue: q, backoff: queue.RetryBackoff, logger: logger}
}

// Process executes one archive job. Meetings that are gone, not COMPLETED or already archived are skipped.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeTranscriptArchive {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.TranscriptArchivePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	m, err := p.meetings.GetMeeting(ctx, payload.MeetingID)
	if err != nil {
		return fmt.Errorf("load meeting %d: %w", payload.MeetingID, err)
	}
	log := p.logger.With(zap.Int64("meeting_id", payload.MeetingID), zap.String("job_id", job.ID))
	if m == nil {
		log.Info("meeting deleted before archival, skipping")
		return nil
	}
	if m.ProcessingStatus != models.StatusCompleted {
		log.Warn("meeting not completed, skipping archival", zap.String("status", string(m.ProcessingStatus)))
		return nil
	}
	if m.ArchiveKey != "" {
		log.Info("transcript already archived", zap.String("s3_key", m.ArchiveKey))
		return nil
	}

	key := storage.TranscriptKey(m.SeriesName, m.ID)
	if err := p.uploader.UploadTranscript(ctx, key, strings.NewReader(m.TranscriptContent), int64(len(m.TranscriptContent))); err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}
	if err := p.meetings.SetArchiveKey(ctx, m.ID, key); err != nil {
		return fmt.Errorf("update db: %w", err)
	}
	log.Info("transcript archived", zap.String("s3_key", key))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error. It returns when ctx is done.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("archive worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.queue.Retry(context.WithoutCancel(ctx), job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *Processor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
