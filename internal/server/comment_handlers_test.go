package server

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"agora/internal/autoreply"
	"agora/internal/models"
	"agora/internal/queue"
	"agora/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const delayedKey = "queue:auto_reply:delayed"

func TestCreateComment_SchedulesAutoReply(t *testing.T) {
	h := newHarness(t, true)
	owner := testutil.CreateUser(t, h.db, "owner", false)
	reader := testutil.CreateUser(t, h.db, "reader", false)
	post := testutil.CreatePost(t, h.db, owner, func(p *models.Post) {
		p.AutoReplyEnabled = true
		p.AutoReplyDelay = 5
	})
	path := fmt.Sprintf("/api/posts/%d/comments/", post.ID)

	before := time.Now()
	var comment models.Comment
	resp := h.do("POST", path, h.token(reader), map[string]string{"comment": "Great read"}, &comment)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, post.ID, comment.PostID)
	assert.Equal(t, reader.ID, comment.UserID)
	assert.False(t, comment.IsBlocked)

	members, err := h.mr.ZMembers(delayedKey)
	require.NoError(t, err)
	require.Len(t, members, 1)

	var task queue.Task
	require.NoError(t, json.Unmarshal([]byte(members[0]), &task))
	assert.Equal(t, autoreply.TaskType, task.Type)
	var payload autoreply.Payload
	require.NoError(t, task.Decode(&payload))
	assert.Equal(t, post.ID, payload.PostID)
	assert.Equal(t, "Great read", payload.CommentText)

	score, err := h.mr.ZScore(delayedKey, members[0])
	require.NoError(t, err)
	runAt := time.UnixMilli(int64(score))
	assert.WithinDuration(t, before.Add(5*time.Minute), runAt, 5*time.Second)

	t.Run("owner's own comment is not answered", func(t *testing.T) {
		resp := h.do("POST", path, h.token(owner), map[string]string{"comment": "Thanks all"}, nil)
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)
		members, err := h.mr.ZMembers(delayedKey)
		require.NoError(t, err)
		assert.Len(t, members, 1)
	})

	t.Run("profane comment is stored blocked and not answered", func(t *testing.T) {
		var body models.ErrorResponse
		resp := h.do("POST", path, h.token(reader), map[string]string{"comment": "damn this"}, &body)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Comment contains profanity", body.Message)

		var stored models.Comment
		require.NoError(t, h.db.Where("comment = ?", "damn this").First(&stored).Error)
		assert.True(t, stored.IsBlocked)

		members, err := h.mr.ZMembers(delayedKey)
		require.NoError(t, err)
		assert.Len(t, members, 1)
	})
}

func TestCreateComment_Errors(t *testing.T) {
	h := newHarness(t, true)
	user := testutil.CreateUser(t, h.db, "user", false)

	resp := h.do("POST", "/api/posts/9999/comments/", h.token(user), map[string]string{"comment": "hi"}, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	post := testutil.CreatePost(t, h.db, user)
	resp = h.do("POST", fmt.Sprintf("/api/posts/%d/comments/", post.ID), h.token(user), map[string]string{"comment": " "}, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCreateComment_WithoutRedis(t *testing.T) {
	h := newHarness(t, false)
	owner := testutil.CreateUser(t, h.db, "owner", false)
	reader := testutil.CreateUser(t, h.db, "reader", false)
	post := testutil.CreatePost(t, h.db, owner, func(p *models.Post) { p.AutoReplyEnabled = true })

	resp := h.do("POST", fmt.Sprintf("/api/posts/%d/comments/", post.ID), h.token(reader),
		map[string]string{"comment": "still works"}, nil)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
}

func TestListComments_HidesBlocked(t *testing.T) {
	h := newHarness(t, true)
	owner := testutil.CreateUser(t, h.db, "owner", false)
	post := testutil.CreatePost(t, h.db, owner)
	visible := testutil.CreateComment(t, h.db, post.ID, owner.ID, "visible", false, time.Time{})
	testutil.CreateComment(t, h.db, post.ID, owner.ID, "hidden", true, time.Time{})

	var comments []models.Comment
	resp := h.do("GET", fmt.Sprintf("/api/posts/%d/comments/", post.ID), "", nil, &comments)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Len(t, comments, 1)
	assert.Equal(t, visible.ID, comments[0].ID)

	resp = h.do("GET", "/api/posts/9999/comments/", "", nil, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestUpdateAndDeleteComment(t *testing.T) {
	h := newHarness(t, true)
	owner := testutil.CreateUser(t, h.db, "owner", false)
	other := testutil.CreateUser(t, h.db, "other", false)
	staff := testutil.CreateUser(t, h.db, "staff", true)
	post := testutil.CreatePost(t, h.db, owner)
	otherPost := testutil.CreatePost(t, h.db, owner)
	comment := testutil.CreateComment(t, h.db, post.ID, owner.ID, "first", false, time.Time{})
	path := fmt.Sprintf("/api/posts/%d/comments/%d/", post.ID, comment.ID)

	t.Run("stranger cannot edit", func(t *testing.T) {
		resp := h.do("PATCH", path, h.token(other), map[string]string{"comment": "hijack"}, nil)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("owner edits", func(t *testing.T) {
		var got models.Comment
		resp := h.do("PATCH", path, h.token(owner), map[string]string{"comment": "edited"}, &got)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "edited", got.Text)
	})

	t.Run("profane edit", func(t *testing.T) {
		resp := h.do("PATCH", path, h.token(owner), map[string]string{"comment": "crap"}, nil)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		var stored models.Comment
		require.NoError(t, h.db.First(&stored, comment.ID).Error)
		assert.True(t, stored.IsBlocked)
	})

	t.Run("comment under another post", func(t *testing.T) {
		wrong := fmt.Sprintf("/api/posts/%d/comments/%d/", otherPost.ID, comment.ID)
		resp := h.do("PATCH", wrong, h.token(owner), map[string]string{"comment": "x"}, nil)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	})

	t.Run("stranger cannot delete", func(t *testing.T) {
		resp := h.do("DELETE", path, h.token(other), nil, nil)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("staff deletes", func(t *testing.T) {
		var body map[string]string
		resp := h.do("DELETE", path, h.token(staff), nil, &body)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "Comment was deleted", body["message"])

		resp = h.do("DELETE", path, h.token(staff), nil, nil)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	})
}

func TestCommentsDailyBreakdown(t *testing.T) {
	h := newHarness(t, true)
	staff := testutil.CreateUser(t, h.db, "staff", true)
	user := testutil.CreateUser(t, h.db, "user", false)
	post := testutil.CreatePost(t, h.db, user)

	day := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	testutil.CreateComment(t, h.db, post.ID, user.ID, "one", false, day)
	testutil.CreateComment(t, h.db, post.ID, user.ID, "two", true, day.Add(time.Hour))
	testutil.CreateComment(t, h.db, post.ID, user.ID, "later", false, day.AddDate(0, 0, 5))

	const path = "/api/posts/comments-daily-breakdown/?date_from=2024-03-10&date_to=2024-03-10"

	t.Run("staff gets exactly one row", func(t *testing.T) {
		var body struct {
			Results []models.DailyBreakdown `json:"results"`
		}
		resp := h.do("GET", path, h.token(staff), nil, &body)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		require.Len(t, body.Results, 1)
		assert.Equal(t, models.DailyBreakdown{Day: "2024-03-10", CreatedCount: 2, BlockedCount: 1}, body.Results[0])
	})

	t.Run("non-staff forbidden", func(t *testing.T) {
		resp := h.do("GET", path, h.token(user), nil, nil)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})

	t.Run("non-staff forbidden before dates are checked", func(t *testing.T) {
		for _, q := range []string{"", "?date_from=10-03-2024", "?date_from=2024-03-10&date_to=nope"} {
			var body models.ErrorResponse
			resp := h.do("GET", "/api/posts/comments-daily-breakdown/"+q, h.token(user), nil, &body)
			assert.Equal(t, fiber.StatusForbidden, resp.StatusCode, q)
			assert.Equal(t, models.CodeForbidden, body.Code, q)
		}
	})

	t.Run("bad dates", func(t *testing.T) {
		for _, q := range []string{
			"",
			"?date_from=10-03-2024",
			"?date_from=2024-03-10&date_to=nope",
			"?date_from=2024-03-11&date_to=2024-03-10",
		} {
			resp := h.do("GET", "/api/posts/comments-daily-breakdown/"+q, h.token(staff), nil, nil)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, q)
		}
	})
}
