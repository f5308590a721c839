// Package events publishes user lifecycle events to a Redis stream.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/userapi/userapi/internal/metrics"
	"github.com/userapi/userapi/internal/model"
)

const (
	// StreamKey is the Redis stream for user lifecycle events.
	StreamKey = "stream:user_events"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000

	// PublishTimeout is the max time to wait for Redis publish.
	PublishTimeout = 100 * time.Millisecond
)

// Type names a user lifecycle transition.
type Type string

// Event types.
const (
	UserCreated     Type = "user.created"
	UserUpdated     Type = "user.updated"
	UserDeleted     Type = "user.deleted"
	UserActivated   Type = "user.activated"
	UserDeactivated Type = "user.deactivated"
)

// UserEvent is the payload stored under the "payload" field of a stream entry.
type UserEvent struct {
	Type       Type   `json:"type"`
	UserID     int64  `json:"user_id"`
	Username   string `json:"username,omitempty"`
	Email      string `json:"email,omitempty"`
	Active     bool   `json:"active"`
	OccurredAt int64  `json:"t"` // Unix milliseconds
}

// NewUserEvent builds an event from a user snapshot.
func NewUserEvent(typ Type, user *model.User, at time.Time) UserEvent {
	return UserEvent{
		Type:       typ,
		UserID:     user.ID,
		Username:   user.Username,
		Email:      user.Email,
		Active:     user.Active,
		OccurredAt: at.UnixMilli(),
	}
}

// Publisher appends user events to the Redis stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
	timeout time.Duration
}

// NewPublisher creates a new user event publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "events.publisher"),
		metrics: recorder,
		timeout: PublishTimeout,
	}
}

// Publish adds an event to the stream synchronously and returns its stream ID.
func (p *Publisher) Publish(ctx context.Context, event UserEvent) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	id, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"type":    string(event.Type),
			"payload": string(data),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	return id, nil
}

// PublishAsync publishes without blocking the caller.
// Failures are logged and counted as dropped.
func (p *Publisher) PublishAsync(event UserEvent) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()

		streamID, err := p.Publish(ctx, event)
		if err != nil {
			p.logger.Warn("failed to publish user event",
				"type", event.Type,
				"user_id", event.UserID,
				"error", err,
			)
			p.metrics.IncUserEventPublished("dropped")
			return
		}

		p.logger.Debug("user event published",
			"type", event.Type,
			"user_id", event.UserID,
			"stream_id", streamID,
		)
		p.metrics.IncUserEventPublished("success")
	}()
}

// Decode parses the payload field of a stream entry.
func Decode(values map[string]interface{}) (UserEvent, error) {
	raw, ok := values["payload"].(string)
	if !ok {
		return UserEvent{}, fmt.Errorf("missing payload field")
	}

	var event UserEvent
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		return UserEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return event, nil
}
