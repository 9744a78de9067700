package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/odinbook/backend/internal/content"
	"github.com/odinbook/backend/internal/relations"
)

// CommentHandler serves comment routes, both nested under a post and the
// flat /api/comments collection.
type CommentHandler struct {
	Content   *content.Service
	Relations *relations.Protocol
	Tokens    TokenIssuer
}

// List handles GET /api/comments.
func (h CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	comments, err := h.Content.ListComments(r.Context(), content.ListOptions(content.CommentListing, q.Get("sort"), q.Get("order")))
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, ok(envelope{"comments": normalizeComments(comments)}))
}

// ListForPost handles GET /api/posts/{postId}/comments.
func (h CommentHandler) ListForPost(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := content.ListOptions(content.CommentListing, q.Get("sort"), q.Get("order"))
	comments, err := h.Content.ListPostComments(r.Context(), mux.Vars(r)["postId"], opts)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, ok(envelope{"comments": normalizeComments(comments)}))
}

// Get handles GET /api/comments/{commentId} and
// GET /api/posts/{postId}/comments/{commentId}.
func (h CommentHandler) Get(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	comment, err := h.Content.GetComment(r.Context(), vars["commentId"])
	if err == nil && vars["postId"] != "" && comment.Post != vars["postId"] {
		notFound(w, r)
		return
	}
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, ok(envelope{"comment": comment.Normalize()}))
}

// Create handles POST /api/posts/{postId}/comments/create.
func (h CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, found := callerFrom(w, r)
	if !found {
		return
	}

	var req content.CommentInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}
	comment, err := h.Content.CreateComment(ctx, caller, mux.Vars(r)["postId"], req)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusCreated, ok(envelope{"comment": comment.Normalize()}))
}

// Update handles POST /api/posts/{postId}/comments/{commentId}/update.
func (h CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, found := callerFrom(w, r)
	if !found {
		return
	}

	var req content.CommentInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}
	vars := mux.Vars(r)
	comment, err := h.Content.UpdateComment(ctx, caller, vars["postId"], vars["commentId"], req)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, ok(envelope{"comment": comment.Normalize()}))
}

// Delete handles both POST /api/posts/{postId}/comments/{commentId}/delete
// and POST /api/comments/{commentId}/delete. The flat route has no postId
// and skips the parent check.
func (h CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, found := callerFrom(w, r)
	if !found {
		return
	}
	vars := mux.Vars(r)
	comment, err := h.Content.DeleteComment(r.Context(), caller, vars["postId"], vars["commentId"])
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, ok(envelope{"comment": comment.Normalize()}))
}

// Like handles POST /api/posts/{postId}/comments/{commentId}/like.
func (h CommentHandler) Like(w http.ResponseWriter, r *http.Request) {
	h.like(w, r, h.Relations.LikeComment)
}

// Unlike handles POST /api/posts/{postId}/comments/{commentId}/unlike.
func (h CommentHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	h.like(w, r, h.Relations.UnlikeComment)
}

func (h CommentHandler) like(w http.ResponseWriter, r *http.Request, op func(context.Context, string, string, string) (relations.CommentLike, error)) {
	ctx := r.Context()
	caller, found := callerFrom(w, r)
	if !found {
		return
	}

	vars := mux.Vars(r)
	res, err := op(ctx, caller.ID, vars["postId"], vars["commentId"])
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
		"comment": res.Comment.Normalize(),
		"user":    res.Self.Project(),
		"token":   token,
	}))
}
