package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/odinbook/backend/internal/auth"
	"github.com/odinbook/backend/internal/authz"
	"github.com/odinbook/backend/internal/content"
	"github.com/odinbook/backend/internal/logging"
	"github.com/odinbook/backend/internal/relations"
	"github.com/odinbook/backend/internal/repositories"
)

const successMessage = "Success"

// envelope is a success body. "message" is always "Success".
type envelope map[string]any

func ok(fields envelope) envelope {
	fields["message"] = successMessage
	return fields
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

type validationBody struct {
	Errors []content.FieldError `json:"errors"`
}

// respondError maps err onto a status code and a body that never carries
// internal error text.
func respondError(ctx context.Context, w http.ResponseWriter, err error) {
	var (
		verr    *content.ValidationError
		cerr    *relations.ConsistencyError
		tooBig  *http.MaxBytesError
		message string
		status  int
	)

	switch {
	case errors.As(err, &verr):
		respondJSON(ctx, w, http.StatusBadRequest, validationBody{Errors: verr.Fields})
		return
	case errors.As(err, &tooBig):
		status, message = http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", tooBig.Limit)
	case errors.Is(err, auth.ErrTokenMissing), errors.Is(err, auth.ErrTokenExpired), errors.Is(err, auth.ErrTokenInvalid):
		status, message = http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, authz.ErrForbidden):
		status, message = http.StatusForbidden, "Forbidden"
	case errors.Is(err, repositories.ErrNotFound):
		status, message = http.StatusNotFound, "Not found"
	case errors.Is(err, content.ErrUsernameTaken):
		status, message = http.StatusConflict, "Username already exists."
	case errors.Is(err, content.ErrEmailTaken):
		status, message = http.StatusConflict, "Email already exists."
	case errors.Is(err, repositories.ErrConflict):
		status, message = http.StatusConflict, "Conflict"
	case errors.Is(err, relations.ErrSelfRelationship):
		status, message = http.StatusBadRequest, "You cannot target yourself."
	case errors.Is(err, relations.ErrAlreadyFriends):
		status, message = http.StatusConflict, "Already friends."
	case errors.Is(err, relations.ErrNoPendingRequest):
		status, message = http.StatusConflict, "No pending friend request."
	case errors.As(err, &cerr):
		logging.FromContext(ctx).Error("paired mutation incomplete", "op", cerr.Op, "error", err)
		status, message = http.StatusInternalServerError, "The operation was only partially applied. Retry the request."
	default:
		logging.FromContext(ctx).Error("unhandled error", "error", err)
		status, message = http.StatusInternalServerError, "Internal server error"
	}

	respondJSON(ctx, w, status, errorBody{Error: message})
}

// decodeJSON reads a JSON body into dst. Unknown fields are ignored.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return content.Invalid("body", "body", "Request body is required.", nil)
		}
		return content.Invalid("body", "body", "Request body must be valid JSON.", nil)
	}
	return nil
}

func notFound(w http.ResponseWriter, r *http.Request) {
	respondJSON(r.Context(), w, http.StatusNotFound, errorBody{Error: "Not found"})
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respondJSON(r.Context(), w, http.StatusMethodNotAllowed, errorBody{Error: "Method not allowed"})
}
