package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/odinbook/backend/internal/authz"
	"github.com/odinbook/backend/internal/models"
	"github.com/odinbook/backend/internal/repositories"
	"github.com/odinbook/backend/internal/storage"
)

var (
	// ErrUsernameTaken indicates another account already uses the username.
	ErrUsernameTaken = fmt.Errorf("username already exists: %w", repositories.ErrConflict)
	// ErrEmailTaken indicates another account already uses the email address.
	ErrEmailTaken = fmt.Errorf("email already exists: %w", repositories.ErrConflict)
)

// NewUser is the sign-up payload.
type NewUser struct {
	Email     string           `json:"email" validate:"required,max=100,email"`
	Username  string           `json:"username" validate:"required,max=20"`
	Password  string           `json:"password" validate:"required,min=5"`
	FirstName string           `json:"firstName" validate:"required,max=100"`
	LastName  string           `json:"lastName" validate:"required,max=100"`
	Bio       string           `json:"bio" validate:"max=100"`
	Pic       string           `json:"pic" validate:"omitempty,url"`
	Contact   []models.Contact `json:"contact" validate:"max=10,dive"`
	Public    bool             `json:"public"`
	Admin     bool             `json:"admin"`
}

// UserUpdate is a partial profile update. Nil fields are left unchanged.
// Relationship sets are deliberately absent.
type UserUpdate struct {
	Email     *string           `json:"email" validate:"omitempty,max=100,email"`
	Username  *string           `json:"username" validate:"omitempty,min=1,max=20"`
	Password  *string           `json:"password" validate:"omitempty,min=5"`
	FirstName *string           `json:"firstName" validate:"omitempty,min=1,max=100"`
	LastName  *string           `json:"lastName" validate:"omitempty,min=1,max=100"`
	Bio       *string           `json:"bio" validate:"omitempty,max=100"`
	Pic       *string           `json:"pic" validate:"omitempty,max=2048"`
	Contact   *[]models.Contact `json:"contact" validate:"omitempty,max=10,dive"`
	Public    *bool             `json:"public"`
	Admin     *bool             `json:"admin"`
}

func (in *NewUser) normalize() {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Bio = strings.TrimSpace(in.Bio)
}

func (in *UserUpdate) normalize() {
	trim := func(s *string, lower bool) {
		if s == nil {
			return
		}
		*s = strings.TrimSpace(*s)
		if lower {
			*s = strings.ToLower(*s)
		}
	}
	trim(in.Email, true)
	trim(in.Username, false)
	trim(in.FirstName, false)
	trim(in.LastName, false)
	trim(in.Bio, false)
}

// CreateUser registers a new account.
func (s *Service) CreateUser(ctx context.Context, in NewUser) (models.User, error) {
	in.normalize()
	if err := s.check(in); err != nil {
		return models.User{}, err
	}
	if err := s.ensureAvailable(ctx, "", in.Username, in.Email); err != nil {
		return models.User{}, err
	}

	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return models.User{}, err
	}
	id, err := s.id()
	if err != nil {
		return models.User{}, fmt.Errorf("generate user id: %w", err)
	}

	now := s.now()
	user := models.User{
		ID:           id,
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Contact:      in.Contact,
		Pic:          in.Pic,
		Bio:          in.Bio,
		Public:       in.Public,
		Admin:        in.Admin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}.Normalize()

	if err := s.Users.Create(ctx, user); err != nil {
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// ensureAvailable rejects a username or email used by an account other than
// selfID.
func (s *Service) ensureAvailable(ctx context.Context, selfID, username, email string) error {
	if username != "" {
		existing, err := s.Users.FindByUsername(ctx, username)
		switch {
		case err == nil && existing.ID != selfID:
			return ErrUsernameTaken
		case err != nil && !errors.Is(err, repositories.ErrNotFound):
			return fmt.Errorf("check username: %w", err)
		}
	}
	if email != "" {
		existing, err := s.Users.FindByEmail(ctx, email)
		switch {
		case err == nil && existing.ID != selfID:
			return ErrEmailTaken
		case err != nil && !errors.Is(err, repositories.ErrNotFound):
			return fmt.Errorf("check email: %w", err)
		}
	}
	return nil
}

// UpdateUser applies a partial profile update to username on behalf of
// caller. Only admins may change the admin flag.
func (s *Service) UpdateUser(ctx context.Context, caller models.UserProjection, username string, in UserUpdate) (models.User, error) {
	user, err := s.GetUser(ctx, username)
	if err != nil {
		return models.User{}, err
	}
	if err := authz.Require(authz.CanActOnSelf(caller, user.Username)); err != nil {
		return models.User{}, err
	}

	in.normalize()
	if err := s.check(in); err != nil {
		return models.User{}, err
	}
	if in.Admin != nil && *in.Admin != user.Admin && !caller.Admin {
		return models.User{}, authz.ErrForbidden
	}

	var newUsername, newEmail string
	if in.Username != nil && *in.Username != user.Username {
		newUsername = *in.Username
	}
	if in.Email != nil && *in.Email != user.Email {
		newEmail = *in.Email
	}
	if err := s.ensureAvailable(ctx, user.ID, newUsername, newEmail); err != nil {
		return models.User{}, err
	}

	if in.Password != nil {
		hash, err := s.Hasher.Hash(*in.Password)
		if err != nil {
			return models.User{}, err
		}
		user.PasswordHash = hash
	}
	assign(&user.Email, in.Email)
	assign(&user.Username, in.Username)
	assign(&user.FirstName, in.FirstName)
	assign(&user.LastName, in.LastName)
	assign(&user.Bio, in.Bio)
	assign(&user.Pic, in.Pic)
	assign(&user.Contact, in.Contact)
	assign(&user.Public, in.Public)
	assign(&user.Admin, in.Admin)
	user.UpdatedAt = s.now()

	return s.saveProfile(ctx, user)
}

func assign[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// saveProfile writes the profile fields of user and returns the stored
// document, relationship sets included.
func (s *Service) saveProfile(ctx context.Context, user models.User) (models.User, error) {
	if err := s.Users.Update(ctx, user); err != nil {
		return models.User{}, fmt.Errorf("update user: %w", err)
	}
	return s.Users.FindByID(ctx, user.ID)
}

// DeleteUser removes the account username. Peers keep any references to it.
func (s *Service) DeleteUser(ctx context.Context, caller models.UserProjection, username string) (models.User, error) {
	user, err := s.GetUser(ctx, username)
	if err != nil {
		return models.User{}, err
	}
	if err := authz.Require(authz.CanActOnSelf(caller, user.Username)); err != nil {
		return models.User{}, err
	}
	if err := s.Users.Delete(ctx, user.ID); err != nil {
		return models.User{}, fmt.Errorf("delete user: %w", err)
	}
	return user, nil
}

// GetUser loads a user by username.
func (s *Service) GetUser(ctx context.Context, username string) (models.User, error) {
	user, err := s.Users.FindByUsername(ctx, username)
	if err != nil {
		return models.User{}, fmt.Errorf("user %q: %w", username, err)
	}
	return user, nil
}

// GetUserByID loads a user by id.
func (s *Service) GetUserByID(ctx context.Context, id string) (models.User, error) {
	user, err := s.Users.FindByID(ctx, id)
	if err != nil {
		return models.User{}, fmt.Errorf("user %s: %w", id, err)
	}
	return user, nil
}

// ListUsers returns every user.
func (s *Service) ListUsers(ctx context.Context, opts repositories.ListOptions) ([]models.User, error) {
	return s.Users.List(ctx, opts)
}

// GetFriends resolves the friends of username. Ids that no longer resolve
// to an account are skipped.
func (s *Service) GetFriends(ctx context.Context, username string) ([]models.User, error) {
	user, err := s.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.Users.FindByIDs(ctx, user.Friends)
}

// SearchUsers runs a text search over usernames, names and bios.
func (s *Service) SearchUsers(ctx context.Context, query string, opts repositories.ListOptions) ([]models.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, Invalid("q", "query", "Search query is required.", query)
	}
	return s.Users.Search(ctx, query, opts)
}

// UploadUserPhoto stores an image and sets it as the profile picture of
// username.
func (s *Service) UploadUserPhoto(ctx context.Context, caller models.UserProjection, username string, r io.Reader) (models.User, error) {
	user, err := s.GetUser(ctx, username)
	if err != nil {
		return models.User{}, err
	}
	if err := authz.Require(authz.CanActOnSelf(caller, user.Username)); err != nil {
		return models.User{}, err
	}

	url, err := s.storeImage(ctx, "users", user.ID, "photo", r)
	if err != nil {
		return models.User{}, err
	}
	user.Pic = url
	user.UpdatedAt = s.now()
	return s.saveProfile(ctx, user)
}

func (s *Service) storeImage(ctx context.Context, prefix, ownerID, param string, r io.Reader) (string, error) {
	if s.Blobs == nil {
		return "", errors.New("uploads are not configured")
	}
	contentType, body, err := storage.SniffImage(r)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedType) {
			return "", Invalid(param, "body", "File must be a jpeg, png, gif or webp image.", nil)
		}
		return "", err
	}
	return s.Blobs.Save(ctx, storage.ObjectKey(prefix, ownerID, contentType), contentType, body)
}
