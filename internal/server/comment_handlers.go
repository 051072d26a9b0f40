package server

import (
	"time"

	"agora/internal/authz"
	"agora/internal/models"
	"agora/internal/service"

	"github.com/gofiber/fiber/v2"
)

const dateLayout = "2006-01-02"

// GetComments handles GET /api/posts/:id/comments
// @Summary List comments of a post
// @Description Blocked comments are hidden
// @Tags comments
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {array} models.Comment
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comments/ [get]
func (s *Server) GetComments(c *fiber.Ctx) error {
	postID, err := pathID(c, "id", "post")
	if err != nil {
		return nil
	}

	comments, err := s.commentService.ListComments(c.UserContext(), postID)
	if err != nil {
		return respondError(c, err, fiber.StatusUnauthorized)
	}
	return c.JSON(comments)
}

// CreateComment handles POST /api/posts/:id/comments
// @Summary Comment on a post
// @Description Flagged comments are stored blocked and answered with 400. Clean comments may schedule an auto-reply.
// @Tags comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body service.CreateCommentInput true "Comment"
// @Success 201 {object} models.Comment
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comments/ [post]
func (s *Server) CreateComment(c *fiber.Ctx) error {
	postID, err := pathID(c, "id", "post")
	if err != nil {
		return nil
	}

	var req service.CreateCommentInput
	if err := bindJSON(c, &req); err != nil {
		return nil
	}
	req.UserID = userID(c)
	req.PostID = postID

	comment, err := s.commentService.CreateComment(c.UserContext(), req)
	if err != nil {
		return respondError(c, err, fiber.StatusUnauthorized)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// UpdateComment handles PATCH /api/posts/:id/comments/:commentId
// @Summary Update a comment
// @Tags comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param commentId path int true "Comment ID"
// @Param request body service.UpdateCommentInput true "Fields to change"
// @Success 200 {object} models.Comment
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comments/{commentId}/ [patch]
func (s *Server) UpdateComment(c *fiber.Ctx) error {
	postID, err := pathID(c, "id", "post")
	if err != nil {
		return nil
	}
	commentID, err := pathID(c, "commentId", "comment")
	if err != nil {
		return nil
	}
	principal, err := s.principal(c)
	if err != nil {
		return nil
	}

	var req service.UpdateCommentInput
	if err := bindJSON(c, &req); err != nil {
		return nil
	}
	req.Principal = principal
	req.PostID = postID
	req.CommentID = commentID

	comment, err := s.commentService.UpdateComment(c.UserContext(), req)
	if err != nil {
		return respondError(c, err, fiber.StatusUnauthorized)
	}
	return c.JSON(comment)
}

// DeleteComment handles DELETE /api/posts/:id/comments/:commentId
// @Summary Delete a comment
// @Description A caller who is neither the author nor staff gets 400
// @Tags comments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param commentId path int true "Comment ID"
// @Success 200 {object} object{message=string}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comments/{commentId}/ [delete]
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	postID, err := pathID(c, "id", "post")
	if err != nil {
		return nil
	}
	commentID, err := pathID(c, "commentId", "comment")
	if err != nil {
		return nil
	}
	principal, err := s.principal(c)
	if err != nil {
		return nil
	}

	if err := s.commentService.DeleteComment(c.UserContext(), service.DeleteCommentInput{
		Principal: principal,
		PostID:    postID,
		CommentID: commentID,
	}); err != nil {
		return respondError(c, err, fiber.StatusBadRequest)
	}
	return c.JSON(fiber.Map{"message": "Comment was deleted"})
}

// GetCommentsDailyBreakdown handles GET /api/posts/comments-daily-breakdown
// @Summary Daily comment breakdown
// @Description Per-day created and blocked comment counts. Staff only.
// @Tags analytics
// @Produce json
// @Security BearerAuth
// @Param date_from query string true "First day (YYYY-MM-DD)"
// @Param date_to query string false "Last day (YYYY-MM-DD), defaults to today"
// @Success 200 {object} object{results=[]models.DailyBreakdown}
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /posts/comments-daily-breakdown/ [get]
func (s *Server) GetCommentsDailyBreakdown(c *fiber.Ctx) error {
	principal, err := s.principal(c)
	if err != nil {
		return nil
	}

	if !authz.CanViewAnalytics(principal) {
		return respondError(c, service.ErrAnalyticsForbidden, fiber.StatusForbidden)
	}

	in := service.DailyBreakdownInput{Principal: principal}
	if in.From, err = parseDate(c, "date_from"); err != nil {
		return nil
	}
	if in.To, err = parseDate(c, "date_to"); err != nil {
		return nil
	}

	rows, err := s.analyticsService.DailyBreakdown(c.UserContext(), in)
	if err != nil {
		return respondError(c, err, fiber.StatusForbidden)
	}
	return c.JSON(fiber.Map{"results": rows})
}

// parseDate reads an optional YYYY-MM-DD query parameter; absent yields the
// zero time.
func parseDate(c *fiber.Ctx, key string) (time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(dateLayout, raw, time.UTC)
	if err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(key+": enter a valid date (YYYY-MM-DD)"))
		return time.Time{}, errResponseWritten
	}
	return t, nil
}
