package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/odinbook/backend/internal/content"
	"github.com/odinbook/backend/internal/relations"
)

// PostHandler serves the /api/posts routes.
type PostHandler struct {
	Content        *content.Service
	Relations      *relations.Protocol
	Tokens         TokenIssuer
	MaxUploadBytes int64
}

// List handles GET /api/posts.
func (h PostHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	posts, err := h.Content.ListPosts(r.Context(), content.ListOptions(content.PostListing, q.Get("sort"), q.Get("order")))
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, ok(envelope{"posts": normalizePosts(posts)}))
}

// ListByUser handles GET /api/posts/users/{userId}.
func (h PostHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := content.ListOptions(content.PostListing, q.Get("sort"), q.Get("order"))
	posts, err := h.Content.ListUserPosts(r.Context(), mux.Vars(r)["userId"], opts)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, ok(envelope{"posts": normalizePosts(posts)}))
}

// Get handles GET /api/posts/{postId}.
func (h PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	post, err := h.Content.GetPost(r.Context(), mux.Vars(r)["postId"])
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, ok(envelope{"post": post.Normalize()}))
}

// Create handles POST /api/posts/create.
func (h PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, found := callerFrom(w, r)
	if !found {
		return
	}

	var req content.PostInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}
	post, err := h.Content.CreatePost(ctx, caller, req)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusCreated, ok(envelope{"post": post.Normalize()}))
}

// Update handles POST /api/posts/{postId}/update.
func (h PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, found := callerFrom(w, r)
	if !found {
		return
	}

	var req content.PostInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}
	post, err := h.Content.UpdatePost(ctx, caller, mux.Vars(r)["postId"], req)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, ok(envelope{"post": post.Normalize()}))
}

// Delete handles POST /api/posts/{postId}/delete.
func (h PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, found := callerFrom(w, r)
	if !found {
		return
	}
	post, err := h.Content.DeletePost(r.Context(), caller, mux.Vars(r)["postId"])
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, ok(envelope{"post": post.Normalize()}))
}

// UploadImage handles POST /api/posts/{postId}/upload-image with a
// multipart "image" file.
func (h PostHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, found := callerFrom(w, r)
	if !found {
		return
	}

	file, err := formFile(w, r, "image", h.MaxUploadBytes)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	defer file.Close()

	post, err := h.Content.UploadPostImage(ctx, caller, mux.Vars(r)["postId"], file)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, ok(envelope{"post": post.Normalize()}))
}

// Like handles POST /api/posts/{postId}/like.
func (h PostHandler) Like(w http.ResponseWriter, r *http.Request) {
	h.like(w, r, h.Relations.LikePost)
}

// Unlike handles POST /api/posts/{postId}/unlike.
func (h PostHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	h.like(w, r, h.Relations.UnlikePost)
}

func (h PostHandler) like(w http.ResponseWriter, r *http.Request, op func(context.Context, string, string) (relations.PostLike, error)) {
	ctx := r.Context()
	caller, found := callerFrom(w, r)
	if !found {
		return
	}

	res, err := op(ctx, caller.ID, mux.Vars(r)["postId"])
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
		"post":  res.Post.Normalize(),
		"user":  res.Self.Project(),
		"token": token,
	}))
}
