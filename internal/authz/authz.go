// Package authz decides whether an authenticated caller may act on a target
// resource. The predicates are pure; callers turn a false result into
// ErrForbidden.
package authz

import (
	"errors"

	"github.com/odinbook/backend/internal/models"
)

// ErrForbidden indicates the caller is authenticated but not permitted.
var ErrForbidden = errors.New("forbidden")

// CanActOnSelf reports whether caller may act on the profile of username.
func CanActOnSelf(caller models.UserProjection, username string) bool {
	return caller.Admin || (caller.Username != "" && caller.Username == username)
}

// CanActOnPost reports whether caller may modify post.
func CanActOnPost(caller models.UserProjection, post models.Post) bool {
	return caller.Admin || (caller.ID != "" && caller.ID == post.Author)
}

// CanActOnComment reports whether caller may modify comment.
func CanActOnComment(caller models.UserProjection, comment models.Comment) bool {
	return caller.Admin || (caller.ID != "" && caller.ID == comment.Author)
}

// Require converts a predicate result into ErrForbidden.
func Require(allowed bool) error {
	if !allowed {
		return ErrForbidden
	}
	return nil
}
