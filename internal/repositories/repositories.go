package repositories

import (
	"context"

	"github.com/odinbook/backend/internal/models"
)

// UserRepository defines the data access contract for users.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	// FindByIDs returns the users that exist among ids; missing ids are skipped.
	FindByIDs(ctx context.Context, ids []string) ([]models.User, error)
	List(ctx context.Context, opts ListOptions) ([]models.User, error)
	Search(ctx context.Context, query string, opts ListOptions) ([]models.User, error)
	// Update overwrites profile fields only; relationship sets are left untouched.
	Update(ctx context.Context, user models.User) error
	Delete(ctx context.Context, id string) error
	// UpdateSets applies every op in one atomic single-document write and
	// returns the document as it is after the write.
	UpdateSets(ctx context.Context, id string, ops ...models.SetOp) (models.User, error)
}

// PostRepository defines the data access contract for posts.
type PostRepository interface {
	Create(ctx context.Context, post models.Post) error
	FindByID(ctx context.Context, id string) (models.Post, error)
	List(ctx context.Context, filter PostFilter, opts ListOptions) ([]models.Post, error)
	Search(ctx context.Context, query string, opts ListOptions) ([]models.Post, error)
	// Replace overwrites the mutable fields of an existing post.
	Replace(ctx context.Context, post models.Post) error
	Delete(ctx context.Context, id string) error
	UpdateLikes(ctx context.Context, id string, action models.SetAction, userID string) (models.Post, error)
}

// CommentRepository defines the data access contract for comments.
type CommentRepository interface {
	Create(ctx context.Context, comment models.Comment) error
	FindByID(ctx context.Context, id string) (models.Comment, error)
	List(ctx context.Context, filter CommentFilter, opts ListOptions) ([]models.Comment, error)
	// Replace overwrites the mutable fields of an existing comment.
	Replace(ctx context.Context, comment models.Comment) error
	Delete(ctx context.Context, id string) error
	UpdateLikes(ctx context.Context, id string, action models.SetAction, userID string) (models.Comment, error)
}

// PostFilter narrows post listings. Zero values match everything.
type PostFilter struct {
	Author string
}

// CommentFilter narrows comment listings. Zero values match everything.
type CommentFilter struct {
	Post string
}
