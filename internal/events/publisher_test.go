package events

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/userapi/userapi/internal/metrics"
	"github.com/userapi/userapi/internal/model"
)

func newTestPublisher(t *testing.T) (*Publisher, *redis.Client, *miniredis.Miniredis, *metrics.InMemoryRecorder) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	rec := metrics.NewInMemory()
	return NewPublisher(client, nil, rec), client, mr, rec
}

func TestNewUserEvent(t *testing.T) {
	at := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	u := &model.User{ID: 7, Username: "jane", Email: "jane@example.com", Active: true}

	e := NewUserEvent(UserCreated, u, at)

	assert.Equal(t, UserEvent{
		Type:       UserCreated,
		UserID:     7,
		Username:   "jane",
		Email:      "jane@example.com",
		Active:     true,
		OccurredAt: at.UnixMilli(),
	}, e)
}

func TestPublish_AppendsToStream(t *testing.T) {
	ctx := context.Background()
	p, client, _, _ := newTestPublisher(t)

	event := UserEvent{Type: UserDeleted, UserID: 3, OccurredAt: 1700000000000}
	id, err := p.Publish(ctx, event)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	entries, err := client.XRange(ctx, StreamKey, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ID)
	assert.Equal(t, "user.deleted", entries[0].Values["type"])

	decoded, err := Decode(entries[0].Values)
	require.NoError(t, err)
	assert.Equal(t, event, decoded)
}

func TestPublish_RedisDown(t *testing.T) {
	p, _, mr, _ := newTestPublisher(t)
	mr.Close()

	_, err := p.Publish(context.Background(), UserEvent{Type: UserCreated, UserID: 1})
	assert.Error(t, err)
}

func TestPublishAsync_CountsOutcome(t *testing.T) {
	p, client, mr, rec := newTestPublisher(t)

	p.PublishAsync(UserEvent{Type: UserActivated, UserID: 1})
	require.Eventually(t, func() bool {
		return rec.Snapshot().EventsPublished == 1
	}, time.Second, 5*time.Millisecond)

	n, err := client.XLen(context.Background(), StreamKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	mr.Close()
	p.PublishAsync(UserEvent{Type: UserDeactivated, UserID: 1})
	require.Eventually(t, func() bool {
		return rec.Snapshot().EventsDropped == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestDecode_Malformed(t *testing.T) {
	_, err := Decode(map[string]interface{}{})
	assert.Error(t, err)

	_, err = Decode(map[string]interface{}{"payload": "{"})
	assert.Error(t, err)
}
