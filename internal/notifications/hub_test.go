package notifications

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_RegisterLimits(t *testing.T) {
	hub := NewHub()

	for i := 0; i < maxConnsPerUser; i++ {
		_, err := hub.Register(1, nil, Filter{})
		require.NoError(t, err)
	}
	_, err := hub.Register(1, nil, Filter{})
	assert.ErrorIs(t, err, ErrUserFull)

	_, err = hub.Register(2, nil, Filter{})
	assert.NoError(t, err)
	assert.Equal(t, maxConnsPerUser+1, hub.Count())

	require.NoError(t, hub.Shutdown(context.Background()))
	assert.Zero(t, hub.Count())
	_, err = hub.Register(3, nil, Filter{})
	assert.ErrorIs(t, err, ErrServerFull)
}

func TestHub_BroadcastAndUnregister(t *testing.T) {
	hub := NewHub()
	a, err := hub.Register(1, nil, Filter{})
	require.NoError(t, err)
	b, err := hub.Register(2, nil, Filter{})
	require.NoError(t, err)

	hub.Broadcast(`{"type":"post_created"}`)
	assert.Equal(t, `{"type":"post_created"}`, string(<-a.send))
	assert.Equal(t, `{"type":"post_created"}`, string(<-b.send))

	hub.UnregisterClient(a)
	hub.UnregisterClient(a)
	_, open := <-a.send
	assert.False(t, open)
	assert.Equal(t, 1, hub.Count())

	hub.Broadcast("again")
	assert.Equal(t, "again", string(<-b.send))
}

func TestClient_OfferDropsWhenFull(t *testing.T) {
	hub := NewHub()
	c, err := hub.Register(1, nil, Filter{})
	require.NoError(t, err)

	for i := 0; i < cap(c.send)+5; i++ {
		c.offer([]byte("x"))
	}
	assert.Len(t, c.send, cap(c.send))

	hub.UnregisterClient(c)
	assert.NotPanics(t, func() { c.offer([]byte("late")) })
}

func TestHub_BroadcastHonoursFilters(t *testing.T) {
	hub := NewHub()
	everything, err := hub.Register(1, nil, Filter{})
	require.NoError(t, err)
	postSeven, err := ParseFilter("", "7")
	require.NoError(t, err)
	onPost, err := hub.Register(2, nil, postSeven)
	require.NoError(t, err)
	postsOnly, err := ParseFilter("post_created", "")
	require.NoError(t, err)
	newPosts, err := hub.Register(3, nil, postsOnly)
	require.NoError(t, err)

	hub.Broadcast(`{"type":"comment_created","payload":{"id":40,"post_id":7}}`)
	hub.Broadcast(`{"type":"comment_created","payload":{"id":41,"post_id":8}}`)
	hub.Broadcast(`{"type":"post_created","payload":{"id":7}}`)
	hub.Broadcast("not json")

	assert.Len(t, everything.send, 4)
	assert.Len(t, onPost.send, 2)
	assert.Contains(t, string(<-onPost.send), `"id":40`)
	assert.Contains(t, string(<-onPost.send), `"post_created"`)
	assert.Len(t, newPosts.send, 1)
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter(" comment_created , auto_reply_created ", "12")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"comment_created": true, "auto_reply_created": true}, f.Types)
	assert.Equal(t, uint(12), f.PostID)

	f, err = ParseFilter("", "")
	require.NoError(t, err)
	assert.True(t, f.all())

	_, err = ParseFilter("post_deleted", "")
	assert.ErrorContains(t, err, "post_deleted")
	_, err = ParseFilter("", "abc")
	assert.Error(t, err)
	_, err = ParseFilter("", "0")
	assert.Error(t, err)
}
