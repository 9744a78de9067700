package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/odinbook/backend/internal/middleware"
)

// NewRouter wires HTTP handlers into a gorilla/mux router. Routes that act
// on behalf of a user are wrapped with bearer-token authentication.
func NewRouter(deps Dependencies) *mux.Router {
	health := HealthHandler{}
	auth := AuthHandler{Credentials: deps.Credentials, Tokens: deps.Tokens}
	users := UserHandler{Content: deps.Content, Relations: deps.Relations, Tokens: deps.Tokens, MaxUploadBytes: deps.MaxUploadBytes}
	posts := PostHandler{Content: deps.Content, Relations: deps.Relations, Tokens: deps.Tokens, MaxUploadBytes: deps.MaxUploadBytes}
	comments := CommentHandler{Content: deps.Content, Relations: deps.Relations, Tokens: deps.Tokens}
	search := SearchHandler{Content: deps.Content}

	authenticate := middleware.Authenticate(deps.Tokens)
	protected := func(h http.HandlerFunc) http.Handler { return authenticate(h) }
	limited := func(scope string, h http.HandlerFunc) http.Handler {
		return middleware.RateLimit(deps.LoginLimiter, scope)(h)
	}

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	r.HandleFunc("/healthz", health.Handle).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.NotFoundHandler = r.NotFoundHandler
	api.MethodNotAllowedHandler = r.MethodNotAllowedHandler

	api.Handle("/log-in", limited("log-in", auth.Login)).Methods(http.MethodPost)
	api.HandleFunc("/log-out", auth.Logout).Methods(http.MethodGet)
	api.Handle("/auth", protected(auth.Current)).Methods(http.MethodGet)

	api.HandleFunc("/users", users.List).Methods(http.MethodGet)
	api.Handle("/users/create", limited("sign-up", users.Create)).Methods(http.MethodPost)
	api.HandleFunc("/users/id/{userId}", users.GetByID).Methods(http.MethodGet)
	api.HandleFunc("/users/{username}", users.Get).Methods(http.MethodGet)
	api.HandleFunc("/users/{username}/get-friends", users.GetFriends).Methods(http.MethodGet)
	api.Handle("/users/{username}/update", protected(users.Update)).Methods(http.MethodPost)
	api.Handle("/users/{username}/delete", protected(users.Delete)).Methods(http.MethodPost)
	api.Handle("/users/{username}/upload-photo", protected(users.UploadPhoto)).Methods(http.MethodPost)
	api.Handle("/users/{username}/send-request", protected(users.SendRequest)).Methods(http.MethodPost)
	api.Handle("/users/{username}/delete-request/{type:sent|received}", protected(users.DeleteRequest)).Methods(http.MethodPost)
	api.Handle("/users/{username}/add-friend", protected(users.AddFriend)).Methods(http.MethodPost)
	api.Handle("/users/{username}/delete-friend", protected(users.DeleteFriend)).Methods(http.MethodPost)

	api.HandleFunc("/posts", posts.List).Methods(http.MethodGet)
	api.Handle("/posts/create", protected(posts.Create)).Methods(http.MethodPost)
	api.Handle("/posts/users/{userId}", protected(posts.ListByUser)).Methods(http.MethodGet)
	api.HandleFunc("/posts/{postId}", posts.Get).Methods(http.MethodGet)
	api.Handle("/posts/{postId}/update", protected(posts.Update)).Methods(http.MethodPost)
	api.Handle("/posts/{postId}/delete", protected(posts.Delete)).Methods(http.MethodPost)
	api.Handle("/posts/{postId}/upload-image", protected(posts.UploadImage)).Methods(http.MethodPost)
	api.Handle("/posts/{postId}/like", protected(posts.Like)).Methods(http.MethodPost)
	api.Handle("/posts/{postId}/unlike", protected(posts.Unlike)).Methods(http.MethodPost)

	api.HandleFunc("/posts/{postId}/comments", comments.ListForPost).Methods(http.MethodGet)
	api.Handle("/posts/{postId}/comments/create", protected(comments.Create)).Methods(http.MethodPost)
	api.HandleFunc("/posts/{postId}/comments/{commentId}", comments.Get).Methods(http.MethodGet)
	api.Handle("/posts/{postId}/comments/{commentId}/update", protected(comments.Update)).Methods(http.MethodPost)
	api.Handle("/posts/{postId}/comments/{commentId}/delete", protected(comments.Delete)).Methods(http.MethodPost)
	api.Handle("/posts/{postId}/comments/{commentId}/like", protected(comments.Like)).Methods(http.MethodPost)
	api.Handle("/posts/{postId}/comments/{commentId}/unlike", protected(comments.Unlike)).Methods(http.MethodPost)

	api.HandleFunc("/comments", comments.List).Methods(http.MethodGet)
	api.HandleFunc("/comments/{commentId}", comments.Get).Methods(http.MethodGet)
	api.Handle("/comments/{commentId}/delete", protected(comments.Delete)).Methods(http.MethodPost)

	api.HandleFunc("/search/users", search.Users).Methods(http.MethodGet)
	api.HandleFunc("/search/posts", search.Posts).Methods(http.MethodGet)

	return r
}
