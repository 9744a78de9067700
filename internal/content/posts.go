package content

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/odinbook/backend/internal/authz"
	"github.com/odinbook/backend/internal/models"
	"github.com/odinbook/backend/internal/repositories"
)

// PostInput carries the caller-editable fields of a post.
type PostInput struct {
	Content string `json:"content" validate:"required,max=100"`
	Image   string `json:"image" validate:"omitempty,max=2048"`
	Public  bool   `json:"public"`
}

// CreatePost publishes a post authored by caller.
func (s *Service) CreatePost(ctx context.Context, caller models.UserProjection, in PostInput) (models.Post, error) {
	in.Content = strings.TrimSpace(in.Content)
	if err := s.check(in); err != nil {
		return models.Post{}, err
	}

	id, err := s.id()
	if err != nil {
		return models.Post{}, fmt.Errorf("generate post id: %w", err)
	}
	post := models.Post{
		ID:      id,
		Author:  caller.ID,
		Date:    s.now(),
		Content: in.Content,
		Image:   in.Image,
		Likes:   []string{},
		Public:  in.Public,
	}
	if err := s.Posts.Create(ctx, post); err != nil {
		return models.Post{}, fmt.Errorf("create post: %w", err)
	}
	return post, nil
}

// UpdatePost replaces the editable fields of a post. Id, author, date and
// likes always come from the stored document.
func (s *Service) UpdatePost(ctx context.Context, caller models.UserProjection, postID string, in PostInput) (models.Post, error) {
	post, err := s.GetPost(ctx, postID)
	if err != nil {
		return models.Post{}, err
	}
	if err := authz.Require(authz.CanActOnPost(caller, post)); err != nil {
		return models.Post{}, err
	}

	in.Content = strings.TrimSpace(in.Content)
	if err := s.check(in); err != nil {
		return models.Post{}, err
	}

	post.Content = in.Content
	post.Image = in.Image
	post.Public = in.Public
	if err := s.Posts.Replace(ctx, post); err != nil {
		return models.Post{}, fmt.Errorf("update post: %w", err)
	}
	return post, nil
}

// DeletePost removes a post. Its comments are left in place.
func (s *Service) DeletePost(ctx context.Context, caller models.UserProjection, postID string) (models.Post, error) {
	post, err := s.GetPost(ctx, postID)
	if err != nil {
		return models.Post{}, err
	}
	if err := authz.Require(authz.CanActOnPost(caller, post)); err != nil {
		return models.Post{}, err
	}
	if err := s.Posts.Delete(ctx, post.ID); err != nil {
		return models.Post{}, fmt.Errorf("delete post: %w", err)
	}
	return post, nil
}

// GetPost loads a post by id.
func (s *Service) GetPost(ctx context.Context, postID string) (models.Post, error) {
	post, err := s.Posts.FindByID(ctx, postID)
	if err != nil {
		return models.Post{}, fmt.Errorf("post %s: %w", postID, err)
	}
	return post, nil
}

// ListPosts returns every post.
func (s *Service) ListPosts(ctx context.Context, opts repositories.ListOptions) ([]models.Post, error) {
	return s.Posts.List(ctx, repositories.PostFilter{}, opts)
}

// ListUserPosts returns the posts authored by userID.
func (s *Service) ListUserPosts(ctx context.Context, userID string, opts repositories.ListOptions) ([]models.Post, error) {
	return s.Posts.List(ctx, repositories.PostFilter{Author: userID}, opts)
}

// SearchPosts runs a text search over post content.
func (s *Service) SearchPosts(ctx context.Context, query string, opts repositories.ListOptions) ([]models.Post, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, Invalid("q", "query", "Search query is required.", query)
	}
	return s.Posts.Search(ctx, query, opts)
}

// UploadPostImage stores an image and attaches it to the post.
func (s *Service) UploadPostImage(ctx context.Context, caller models.UserProjection, postID string, r io.Reader) (models.Post, error) {
	post, err := s.GetPost(ctx, postID)
	if err != nil {
		return models.Post{}, err
	}
	if err := authz.Require(authz.CanActOnPost(caller, post)); err != nil {
		return models.Post{}, err
	}

	url, err := s.storeImage(ctx, "posts", post.ID, "image", r)
	if err != nil {
		return models.Post{}, err
	}
	post.Image = url
	if err := s.Posts.Replace(ctx, post); err != nil {
		return models.Post{}, fmt.Errorf("update post image: %w", err)
	}
	return post, nil
}
