package auth

import "errors"

var (
	// ErrIncorrectIdentifier indicates no account matches the supplied email or username.
	ErrIncorrectIdentifier = errors.New("incorrect username or email")
	// ErrIncorrectPassword indicates the password does not match the stored hash.
	ErrIncorrectPassword = errors.New("incorrect password")
	// ErrNotAuthorizedRole indicates a non-admin used the admin log-in path.
	ErrNotAuthorizedRole = errors.New("not authorized for this role")

	// ErrTokenMissing indicates the request carried no bearer token.
	ErrTokenMissing = errors.New("token missing")
	// ErrTokenExpired indicates the bearer token is past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid indicates a malformed token or a bad signature.
	ErrTokenInvalid = errors.New("token invalid")
)
