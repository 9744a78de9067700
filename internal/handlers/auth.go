package handlers

import (
	"errors"
	"net/http"

	"github.com/odinbook/backend/internal/auth"
	"github.com/odinbook/backend/internal/content"
	"github.com/odinbook/backend/internal/logging"
	"github.com/odinbook/backend/internal/middleware"
	"github.com/odinbook/backend/internal/models"
)

// AuthHandler implements log-in, log-out and token inspection.
type AuthHandler struct {
	Credentials CredentialVerifier
	Tokens      TokenIssuer
}

type loginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	Admin    bool   `json:"admin"`
}

// Login handles POST /api/log-in.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}

	user, err := h.Credentials.Verify(ctx, auth.Login{
		Email:     req.Email,
		Username:  req.Username,
		Password:  req.Password,
		AdminOnly: req.Admin,
	})
	if err != nil {
		param := "username"
		if req.Email != "" {
			param = "email"
		}
		var field content.FieldError
		switch {
		case errors.Is(err, auth.ErrIncorrectIdentifier):
			field = content.FieldError{Msg: "Incorrect username or email.", Param: param, Location: "body"}
		case errors.Is(err, auth.ErrIncorrectPassword):
			field = content.FieldError{Msg: "Incorrect password.", Param: "password", Location: "body"}
		case errors.Is(err, auth.ErrNotAuthorizedRole):
			field = content.FieldError{Msg: "Not authorized as an admin.", Param: "admin", Location: "body"}
		default:
			respondError(ctx, w, err)
			return
		}
		logger.Warn("log-in rejected", "reason", err)
		respondJSON(ctx, w, http.StatusBadRequest, validationBody{Errors: []content.FieldError{field}})
		return
	}

	token, err := h.Tokens.Issue(user)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	logger.Info("user logged in", "userId", user.ID)
	respondJSON(ctx, w, http.StatusOK, ok(envelope{"user": user.Project(), "token": token}))
}

// Logout handles GET /api/log-out. Tokens are stateless, so the client
// discarding its token is the whole of logging out.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	respondJSON(r.Context(), w, http.StatusOK, ok(envelope{}))
}

// Current handles GET /api/auth and echoes the token's user projection.
func (h AuthHandler) Current(w http.ResponseWriter, r *http.Request) {
	caller, found := middleware.Caller(r.Context())
	if !found {
		respondError(r.Context(), w, auth.ErrTokenMissing)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, ok(envelope{"user": caller}))
}

func callerFrom(w http.ResponseWriter, r *http.Request) (models.UserProjection, bool) {
	caller, found := middleware.Caller(r.Context())
	if !found {
		respondError(r.Context(), w, auth.ErrTokenMissing)
	}
	return caller, found
}

func projectUsers(users []models.User) []models.UserProjection {
	out := make([]models.UserProjection, 0, len(users))
	for _, u := range users {
		out = append(out, u.Project())
	}
	return out
}

func normalizePosts(posts []models.Post) []models.Post {
	for i := range posts {
		posts[i] = posts[i].Normalize()
	}
	return posts
}

func normalizeComments(comments []models.Comment) []models.Comment {
	for i := range comments {
		comments[i] = comments[i].Normalize()
	}
	return comments
}
