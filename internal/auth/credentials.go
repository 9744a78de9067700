package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/odinbook/backend/internal/config"
	"github.com/odinbook/backend/internal/models"
	"github.com/odinbook/backend/internal/repositories"
)

// UserLookup is the subset of the user repository the credential store reads.
type UserLookup interface {
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
}

// Login is one log-in attempt. Email takes precedence over Username when
// both are set.
type Login struct {
	Email     string
	Username  string
	Password  string
	AdminOnly bool
}

// Credentials verifies passwords against stored bcrypt hashes.
type Credentials struct {
	users UserLookup
	cost  int
}

// NewCredentials constructs a credential store hashing at cfg.BcryptCost.
func NewCredentials(users UserLookup, cfg config.AuthConfig) *Credentials {
	cost := cfg.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Credentials{users: users, cost: cost}
}

// Hash returns the bcrypt hash of password.
func (c *Credentials) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), c.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify resolves the account named by login and checks its password.
func (c *Credentials) Verify(ctx context.Context, login Login) (models.User, error) {
	var (
		user models.User
		err  error
	)
	switch email, username := strings.TrimSpace(login.Email), strings.TrimSpace(login.Username); {
	case email != "":
		user, err = c.users.FindByEmail(ctx, strings.ToLower(email))
	case username != "":
		user, err = c.users.FindByUsername(ctx, username)
	default:
		return models.User{}, ErrIncorrectIdentifier
	}
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.User{}, ErrIncorrectIdentifier
		}
		return models.User{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(login.Password)); err != nil {
		return models.User{}, ErrIncorrectPassword
	}
	if login.AdminOnly && !user.Admin {
		return models.User{}, ErrNotAuthorizedRole
	}
	return user, nil
}
