// Package events broadcasts meeting processing-status changes over Redis pub/sub and websockets.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/recallcontext/backend/internal/models"
)

const (
	channelPrefix = "meeting:"
	publishTTL    = 5 * time.Second
)

// StatusEvent is published on every processing-status transition.
type StatusEvent struct {
	MeetingID int64                   `json:"meeting_id"`
	Status    models.ProcessingStatus `json:"status"`
	Error     string                  `json:"error,omitempty"`
	At        int64                   `json:"at"`
}

// Channel returns the Redis channel for a meeting.
func Channel(meetingID int64) string {
	return channelPrefix + strconv.FormatInt(meetingID, 10)
}

// RedisPubSub publishes and subscribes to meeting status events.
type RedisPubSub struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPubSub creates a Redis pub/sub bridge for meeting status events.
func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPubSub{client: client, logger: logger}
}

// PublishStatus publishes ev to the meeting's channel.
func (r *RedisPubSub) PublishStatus(ctx context.Context, ev StatusEvent) error {
	if ev.At == 0 {
		ev.At = time.Now().Unix()
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTTL)
	defer cancel()
	return r.client.Publish(ctx, Channel(ev.MeetingID), body).Err()
}

// Subscribe calls handler for each status event of meetingID until the returned cancel is called.
func (r *RedisPubSub) Subscribe(meetingID int64, handler func(StatusEvent)) (cancel func(), err error) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	pubsub := r.client.Subscribe(ctx, Channel(meetingID))
	if _, err = pubsub.Receive(ctx); err != nil {
		cancelCtx()
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev StatusEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					r.logger.Warn("invalid status event", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				handler(ev)
			}
		}
	}()
	return cancelCtx, nil
}
