package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/odinbook/backend/internal/content"
	"github.com/odinbook/backend/internal/models"
	"github.com/odinbook/backend/internal/relations"
)

// UserHandler serves the /api/users routes.
type UserHandler struct {
	Content        *content.Service
	Relations      *relations.Protocol
	Tokens         TokenIssuer
	MaxUploadBytes int64
}

// List handles GET /api/users.
func (h UserHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	users, err := h.Content.ListUsers(r.Context(), content.ListOptions(content.UserListing, q.Get("sort"), q.Get("order")))
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, ok(envelope{"users": projectUsers(users)}))
}

// Get handles GET /api/users/{username}.
func (h UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.Content.GetUser(r.Context(), mux.Vars(r)["username"])
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, ok(envelope{"user": user.Project()}))
}

// GetByID handles GET /api/users/id/{userId}.
func (h UserHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	user, err := h.Content.GetUserByID(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, ok(envelope{"user": user.Project()}))
}

// Create handles POST /api/users/create.
func (h UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req content.NewUser
	if err := decodeJSON(r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}
	user, err := h.Content.CreateUser(ctx, req)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusCreated, ok(envelope{"user": user.Project()}))
}

// Update handles POST /api/users/{username}/update.
func (h UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, found := callerFrom(w, r)
	if !found {
		return
	}

	var req content.UserUpdate
	if err := decodeJSON(r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}
	user, err := h.Content.UpdateUser(ctx, caller, mux.Vars(r)["username"], req)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	h.respondWithToken(ctx, w, caller, user, envelope{"user": user.Project()})
}

// Delete handles POST /api/users/{username}/delete.
func (h UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, found := callerFrom(w, r)
	if !found {
		return
	}
	user, err := h.Content.DeleteUser(r.Context(), caller, mux.Vars(r)["username"])
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, ok(envelope{"user": user.Project()}))
}

// GetFriends handles GET /api/users/{username}/get-friends.
func (h UserHandler) GetFriends(w http.ResponseWriter, r *http.Request) {
	friends, err := h.Content.GetFriends(r.Context(), mux.Vars(r)["username"])
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, ok(envelope{"friends": projectUsers(friends)}))
}

// UploadPhoto handles POST /api/users/{username}/upload-photo with a
// multipart "photo" file.
func (h UserHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, found := callerFrom(w, r)
	if !found {
		return
	}

	file, err := formFile(w, r, "photo", h.MaxUploadBytes)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	defer file.Close()

	user, err := h.Content.UploadUserPhoto(ctx, caller, mux.Vars(r)["username"], file)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	h.respondWithToken(ctx, w, caller, user, envelope{"user": user.Project()})
}

// SendRequest handles POST /api/users/{username}/send-request.
func (h UserHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	h.friendship(w, r, func(ctx context.Context, callerID, username string) (relations.Friendship, error) {
		return h.Relations.SendRequest(ctx, callerID, username)
	})
}

// DeleteRequest handles POST /api/users/{username}/delete-request/{type}.
func (h UserHandler) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	kind, err := relations.ParseRequestKind(mux.Vars(r)["type"])
	if err != nil {
		notFound(w, r)
		return
	}
	h.friendship(w, r, func(ctx context.Context, callerID, username string) (relations.Friendship, error) {
		return h.Relations.DeleteRequest(ctx, callerID, username, kind)
	})
}

// AddFriend handles POST /api/users/{username}/add-friend, accepting the
// request username sent the caller.
func (h UserHandler) AddFriend(w http.ResponseWriter, r *http.Request) {
	h.friendship(w, r, func(ctx context.Context, callerID, username string) (relations.Friendship, error) {
		return h.Relations.AcceptRequest(ctx, callerID, username)
	})
}

// DeleteFriend handles POST /api/users/{username}/delete-friend.
func (h UserHandler) DeleteFriend(w http.ResponseWriter, r *http.Request) {
	h.friendship(w, r, func(ctx context.Context, callerID, username string) (relations.Friendship, error) {
		return h.Relations.RemoveFriend(ctx, callerID, username)
	})
}

func (h UserHandler) friendship(w http.ResponseWriter, r *http.Request, op func(context.Context, string, string) (relations.Friendship, error)) {
	ctx := r.Context()
	caller, found := callerFrom(w, r)
	if !found {
		return
	}

	res, err := op(ctx, caller.ID, mux.Vars(r)["username"])
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	token, err := h.Tokens.Issue(res.Self)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, ok(envelope{
		"user":  res.Other.Project(),
		"self":  res.Self.Project(),
		"token": token,
	}))
}

// respondWithToken adds a token for the caller to body. When the caller
// edited their own account the token carries the updated document.
func (h UserHandler) respondWithToken(ctx context.Context, w http.ResponseWriter, caller models.UserProjection, updated models.User, body envelope) {
	self := updated
	if updated.ID != caller.ID {
		var err error
		self, err = h.Content.GetUserByID(ctx, caller.ID)
		if err != nil {
			respondError(ctx, w, err)
			return
		}
	}
	token, err := h.Tokens.Issue(self)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	body["token"] = token
	respondJSON(ctx, w, http.StatusOK, ok(body))
}
