package handlers

import (
	"net/http"

	"github.com/odinbook/backend/internal/content"
)

// SearchHandler serves full-text search over users and posts.
type SearchHandler struct {
	Content *content.Service
}

// Users handles GET /api/search/users?q=.
func (h SearchHandler) Users(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	users, err := h.Content.SearchUsers(r.Context(), q.Get("q"), content.ListOptions(content.UserSearch, q.Get("sort"), q.Get("order")))
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, ok(envelope{"users": projectUsers(users)}))
}

// Posts handles GET /api/search/posts?q=.
func (h SearchHandler) Posts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	posts, err := h.Content.SearchPosts(r.Context(), q.Get("q"), content.ListOptions(content.PostSearch, q.Get("sort"), q.Get("order")))
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, ok(envelope{"posts": normalizePosts(posts)}))
}
