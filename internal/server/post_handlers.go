package server

import (
	"agora/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetPosts handles GET /api/posts
// @Summary List posts
// @Description Newest first, including blocked posts
// @Tags posts
// @Produce json
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset"
// @Success 200 {array} models.Post
// @Router /posts/ [get]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	limit, offset := pageParams(c, 20)

	posts, err := s.postService.ListPosts(c.UserContext(), limit, offset)
	if err != nil {
		return respondError(c, err, fiber.StatusUnauthorized)
	}
	return c.JSON(posts)
}

// CreatePost handles POST /api/posts
// @Summary Create a post
// @Description Flagged posts are stored blocked and answered with 400
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.CreatePostInput true "Post"
// @Success 201 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /posts/ [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req service.CreatePostInput
	if err := bindJSON(c, &req); err != nil {
		return nil
	}
	req.UserID = userID(c)

	post, err := s.postService.CreatePost(c.UserContext(), req)
	if err != nil {
		return respondError(c, err, fiber.StatusUnauthorized)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// GetPost handles GET /api/posts/:id
// @Summary Get a post
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/ [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := pathID(c, "id", "post")
	if err != nil {
		return nil
	}

	post, err := s.postService.GetPost(c.UserContext(), id)
	if err != nil {
		return respondError(c, err, fiber.StatusUnauthorized)
	}
	return c.JSON(post)
}

// UpdatePost handles PATCH /api/posts/:id
// @Summary Update a post
// @Description Partial update by the author or staff. Absent fields are left unchanged.
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body service.UpdatePostInput true "Fields to change"
// @Success 200 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/ [patch]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	postID, err := pathID(c, "id", "post")
	if err != nil {
		return nil
	}
	principal, err := s.principal(c)
	if err != nil {
		return nil
	}

	var req service.UpdatePostInput
	if err := bindJSON(c, &req); err != nil {
		return nil
	}
	req.Principal = principal
	req.PostID = postID

	post, err := s.postService.UpdatePost(c.UserContext(), req)
	if err != nil {
		return respondError(c, err, fiber.StatusUnauthorized)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
// @Summary Delete a post
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} object{message=string}
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/ [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	postID, err := pathID(c, "id", "post")
	if err != nil {
		return nil
	}
	principal, err := s.principal(c)
	if err != nil {
		return nil
	}

	if err := s.postService.DeletePost(c.UserContext(), service.DeletePostInput{
		Principal: principal,
		PostID:    postID,
	}); err != nil {
		return respondError(c, err, fiber.StatusUnauthorized)
	}
	return c.JSON(fiber.Map{"message": "Post was deleted"})
}
