package content

import (
	"context"
	"fmt"
	"strings"

	"github.com/odinbook/backend/internal/authz"
	"github.com/odinbook/backend/internal/models"
	"github.com/odinbook/backend/internal/repositories"
)

// CommentInput carries the caller-editable fields of a comment.
type CommentInput struct {
	Content string `json:"content" validate:"required,max=100"`
}

// CreateComment attaches a comment by caller to postID.
func (s *Service) CreateComment(ctx context.Context, caller models.UserProjection, postID string, in CommentInput) (models.Comment, error) {
	if _, err := s.GetPost(ctx, postID); err != nil {
		return models.Comment{}, err
	}

	in.Content = strings.TrimSpace(in.Content)
	if err := s.check(in); err != nil {
		return models.Comment{}, err
	}

	id, err := s.id()
	if err != nil {
		return models.Comment{}, fmt.Errorf("generate comment id: %w", err)
	}
	comment := models.Comment{
		ID:      id,
		Post:    postID,
		Author:  caller.ID,
		Date:    s.now(),
		Content: in.Content,
		Likes:   []string{},
	}
	if err := s.Comments.Create(ctx, comment); err != nil {
		return models.Comment{}, fmt.Errorf("create comment: %w", err)
	}
	return comment, nil
}

// UpdateComment replaces the content of a comment.
func (s *Service) UpdateComment(ctx context.Context, caller models.UserProjection, postID, commentID string, in CommentInput) (models.Comment, error) {
	comment, err := s.commentOnPost(ctx, postID, commentID)
	if err != nil {
		return models.Comment{}, err
	}
	if err := authz.Require(authz.CanActOnComment(caller, comment)); err != nil {
		return models.Comment{}, err
	}

	in.Content = strings.TrimSpace(in.Content)
	if err := s.check(in); err != nil {
		return models.Comment{}, err
	}

	comment.Content = in.Content
	if err := s.Comments.Replace(ctx, comment); err != nil {
		return models.Comment{}, fmt.Errorf("update comment: %w", err)
	}
	return comment, nil
}

// DeleteComment removes a comment. An empty postID skips the post check.
func (s *Service) DeleteComment(ctx context.Context, caller models.UserProjection, postID, commentID string) (models.Comment, error) {
	comment, err := s.commentOnPost(ctx, postID, commentID)
	if err != nil {
		return models.Comment{}, err
	}
	if err := authz.Require(authz.CanActOnComment(caller, comment)); err != nil {
		return models.Comment{}, err
	}
	if err := s.Comments.Delete(ctx, comment.ID); err != nil {
		return models.Comment{}, fmt.Errorf("delete comment: %w", err)
	}
	return comment, nil
}

// GetComment loads a comment by id.
func (s *Service) GetComment(ctx context.Context, commentID string) (models.Comment, error) {
	comment, err := s.Comments.FindByID(ctx, commentID)
	if err != nil {
		return models.Comment{}, fmt.Errorf("comment %s: %w", commentID, err)
	}
	return comment, nil
}

func (s *Service) commentOnPost(ctx context.Context, postID, commentID string) (models.Comment, error) {
	comment, err := s.GetComment(ctx, commentID)
	if err != nil {
		return models.Comment{}, err
	}
	if postID != "" && comment.Post != postID {
		return models.Comment{}, fmt.Errorf("comment %s on post %s: %w", commentID, postID, repositories.ErrNotFound)
	}
	return comment, nil
}

// ListComments returns every comment.
func (s *Service) ListComments(ctx context.Context, opts repositories.ListOptions) ([]models.Comment, error) {
	return s.Comments.List(ctx, repositories.CommentFilter{}, opts)
}

// ListPostComments returns the comments on postID.
func (s *Service) ListPostComments(ctx context.Context, postID string, opts repositories.ListOptions) ([]models.Comment, error) {
	if _, err := s.GetPost(ctx, postID); err != nil {
		return nil, err
	}
	return s.Comments.List(ctx, repositories.CommentFilter{Post: postID}, opts)
}
