// Package content manages the lifecycle of users, posts and comments:
// validation, authorization checks, listing, search and uploads.
package content

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/odinbook/backend/internal/repositories"
	"github.com/odinbook/backend/internal/storage"
)

// PasswordHasher hashes plaintext passwords for storage.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// Service implements the content operations on top of the repositories.
type Service struct {
	Users    repositories.UserRepository
	Posts    repositories.PostRepository
	Comments repositories.CommentRepository
	Hasher   PasswordHasher
	Blobs    storage.BlobStore

	NowFunc func() time.Time
	NewID   func() (string, error)

	validate *validator.Validate
}

// NewService wires a Service with time-ordered ids and the real clock.
func NewService(users repositories.UserRepository, posts repositories.PostRepository, comments repositories.CommentRepository, hasher PasswordHasher, blobs storage.BlobStore) *Service {
	return &Service{
		Users:    users,
		Posts:    posts,
		Comments: comments,
		Hasher:   hasher,
		Blobs:    blobs,
		NowFunc:  time.Now,
		NewID:    newID,
		validate: newValidator(),
	}
}

func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (s *Service) now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) id() (string, error) {
	if s.NewID != nil {
		return s.NewID()
	}
	return newID()
}
