package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"agora/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw []byte) Event {
	t.Helper()
	var ev Event
	require.NoError(t, json.Unmarshal(raw, &ev))
	return ev
}

func TestNotifier_NilRedisIsNoop(t *testing.T) {
	n := NewNotifier(nil)
	assert.NotPanics(t, func() {
		n.PublishPostCreated(context.Background(), &models.Post{ID: 1})
	})
	var nilNotifier *Notifier
	assert.NotPanics(t, func() { nilNotifier.Publish(context.Background(), "x", nil) })
}

func TestHub_LocalWiringWithoutRedis(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()
	n := NewNotifier(nil)
	require.NoError(t, hub.StartWiring(ctx, n))

	c, err := hub.Register(1, nil, Filter{})
	require.NoError(t, err)

	n.PublishCommentCreated(ctx, &models.Comment{ID: 9, Text: "blocked", IsBlocked: true}, "comment_created")
	n.PublishCommentCreated(ctx, &models.Comment{ID: 10, Text: "thanks!"}, "auto_reply_created")

	ev := decode(t, <-c.send)
	assert.Equal(t, "auto_reply_created", ev.Type)
	assert.Len(t, c.send, 0)
}

func TestHub_RedisWiring(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	n := NewNotifier(rdb)
	require.NoError(t, hub.StartWiring(ctx, n))

	c, err := hub.Register(1, nil, Filter{})
	require.NoError(t, err)

	n.PublishPostCreated(ctx, &models.Post{ID: 3, Title: "hello"})

	select {
	case raw := <-c.send:
		ev := decode(t, raw)
		assert.Equal(t, "post_created", ev.Type)
		payload, ok := ev.Payload.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "hello", payload["title"])
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}
