package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/odinbook/backend/internal/auth"
	"github.com/odinbook/backend/internal/config"
	"github.com/odinbook/backend/internal/content"
	"github.com/odinbook/backend/internal/middleware"
	"github.com/odinbook/backend/internal/models"
	"github.com/odinbook/backend/internal/relations"
	"github.com/odinbook/backend/internal/repositories"
	"github.com/odinbook/backend/internal/storage"
)

type testAPI struct {
	t      *testing.T
	router http.Handler
}

func newTestAPI(t *testing.T, limiter middleware.RateLimiter) *testAPI {
	t.Helper()

	store := repositories.NewMemoryStore()
	authCfg := config.AuthConfig{JWTSecret: "test-secret", TokenTTL: time.Hour, BcryptCost: bcrypt.MinCost}
	creds := auth.NewCredentials(store.Users(), authCfg)
	issuer, err := auth.NewIssuer(authCfg)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}

	deps := Dependencies{
		Content:        content.NewService(store.Users(), store.Posts(), store.Comments(), creds, storage.NewMemoryStorage("https://cdn.test")),
		Relations:      &relations.Protocol{Users: store.Users(), Posts: store.Posts(), Comments: store.Comments()},
		Credentials:    creds,
		Tokens:         issuer,
		LoginLimiter:   limiter,
		MaxUploadBytes: 1 << 20,
	}
	return &testAPI{t: t, router: NewRouter(deps)}
}

type response struct {
	Message  string                  `json:"message"`
	Error    string                  `json:"error"`
	Errors   []content.FieldError    `json:"errors"`
	Token    string                  `json:"token"`
	User     models.UserProjection   `json:"user"`
	Self     models.UserProjection   `json:"self"`
	Users    []models.UserProjection `json:"users"`
	Friends  []models.UserProjection `json:"friends"`
	Post     models.Post             `json:"post"`
	Posts    []models.Post           `json:"posts"`
	Comment  models.Comment          `json:"comment"`
	Comments []models.Comment        `json:"comments"`
}

func (a *testAPI) do(method, path, token string, body any) (int, response) {
	a.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			a.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	return a.send(req, token)
}

func (a *testAPI) send(req *http.Request, token string) (int, response) {
	a.t.Helper()

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	var out response
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		a.t.Fatalf("%s %s: decode body %q: %v", req.Method, req.URL.Path, rec.Body.String(), err)
	}
	return rec.Code, out
}

// signUpAndLogIn creates username and returns its session token and id.
func (a *testAPI) signUpAndLogIn(username string, admin bool) (string, string) {
	a.t.Helper()

	status, body := a.do(http.MethodPost, "/api/users/create", "", map[string]any{
		"email":     username + "@example.com",
		"username":  username,
		"password":  "hunter22",
		"firstName": "First",
		"lastName":  "Last",
		"admin":     admin,
	})
	if status != http.StatusCreated {
		a.t.Fatalf("sign up %s: status %d body %+v", username, status, body)
	}

	status, body = a.do(http.MethodPost, "/api/log-in", "", map[string]string{"username": username, "password": "hunter22"})
	if status != http.StatusOK || body.Token == "" {
		a.t.Fatalf("log in %s: status %d body %+v", username, status, body)
	}
	return body.Token, body.User.ID
}

func TestSignUpLogInAndCurrentUser(t *testing.T) {
	api := newTestAPI(t, nil)
	token, id := api.signUpAndLogIn("alice", false)

	status, body := api.do(http.MethodGet, "/api/auth", token, nil)
	if status != http.StatusOK || body.User.ID != id || body.Message != "Success" {
		t.Fatalf("unexpected /api/auth response %d %+v", status, body)
	}

	status, body = api.do(http.MethodGet, "/api/auth", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", status)
	}

	status, body = api.do(http.MethodPost, "/api/users/create", "", map[string]any{
		"email": "other@example.com", "username": "alice", "password": "hunter22",
		"firstName": "A", "lastName": "B",
	})
	if status != http.StatusConflict || body.Error != "Username already exists." {
		t.Fatalf("expected username conflict, got %d %+v", status, body)
	}

	status, body = api.do(http.MethodPost, "/api/log-in", "", map[string]string{"email": "alice@example.com", "password": "wrong"})
	if status != http.StatusBadRequest || len(body.Errors) != 1 || body.Errors[0].Param != "password" {
		t.Fatalf("expected password error, got %d %+v", status, body)
	}

	status, body = api.do(http.MethodPost, "/api/log-in", "", map[string]string{"username": "nobody", "password": "hunter22"})
	if status != http.StatusBadRequest || len(body.Errors) != 1 || body.Errors[0].Param != "username" {
		t.Fatalf("expected username error, got %d %+v", status, body)
	}

	status, _ = api.do(http.MethodGet, "/api/log-out", "", nil)
	if status != http.StatusOK {
		t.Fatalf("expected log-out to succeed, got %d", status)
	}
}

func TestLogInAdminOnly(t *testing.T) {
	api := newTestAPI(t, nil)
	api.signUpAndLogIn("alice", false)
	api.signUpAndLogIn("root", true)

	status, body := api.do(http.MethodPost, "/api/log-in", "", map[string]any{"username": "alice", "password": "hunter22", "admin": true})
	if status != http.StatusBadRequest || body.Errors[0].Param != "admin" {
		t.Fatalf("expected admin rejection, got %d %+v", status, body)
	}

	status, body = api.do(http.MethodPost, "/api/log-in", "", map[string]any{"username": "root", "password": "hunter22", "admin": true})
	if status != http.StatusOK || !body.User.Admin {
		t.Fatalf("expected admin log-in, got %d %+v", status, body)
	}
}

func TestSignUpValidation(t *testing.T) {
	api := newTestAPI(t, nil)

	status, body := api.do(http.MethodPost, "/api/users/create", "", map[string]any{
		"email": "not-an-email", "username": "alice", "password": "pw",
		"firstName": "A", "lastName": "B",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	var params []string
	for _, fe := range body.Errors {
		params = append(params, fe.Param)
		if fe.Param == "password" && fe.Value != nil {
			t.Fatalf("password value echoed back: %+v", fe)
		}
	}
	if !slices.Contains(params, "email") || !slices.Contains(params, "password") {
		t.Fatalf("expected email and password errors, got %v", params)
	}
}

func TestFriendLifecycle(t *testing.T) {
	api := newTestAPI(t, nil)
	aliceToken, aliceID := api.signUpAndLogIn("alice", false)
	bobToken, bobID := api.signUpAndLogIn("bob", false)

	status, body := api.do(http.MethodPost, "/api/users/bob/send-request", aliceToken, nil)
	if status != http.StatusOK {
		t.Fatalf("send-request: %d %+v", status, body)
	}
	if !slices.Equal(body.Self.Requests.Sent, []string{bobID}) || !slices.Equal(body.User.Requests.Received, []string{aliceID}) {
		t.Fatalf("unexpected request sets self=%+v other=%+v", body.Self.Requests, body.User.Requests)
	}
	if body.Token == "" {
		t.Fatal("expected a refreshed token")
	}

	status, _ = api.do(http.MethodPost, "/api/users/alice/send-request", aliceToken, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for self request, got %d", status)
	}

	status, body = api.do(http.MethodPost, "/api/users/alice/add-friend", bobToken, nil)
	if status != http.StatusOK {
		t.Fatalf("add-friend: %d %+v", status, body)
	}
	if !slices.Equal(body.Self.Friends, []string{aliceID}) || len(body.Self.Requests.Received) != 0 {
		t.Fatalf("unexpected accepter state %+v", body.Self)
	}
	if !slices.Equal(body.User.Friends, []string{bobID}) || len(body.User.Requests.Sent) != 0 {
		t.Fatalf("unexpected requester state %+v", body.User)
	}

	status, _ = api.do(http.MethodPost, "/api/users/alice/send-request", bobToken, nil)
	if status != http.StatusConflict {
		t.Fatalf("expected 409 when already friends, got %d", status)
	}

	status, body = api.do(http.MethodGet, "/api/users/alice/get-friends", "", nil)
	if status != http.StatusOK || len(body.Friends) != 1 || body.Friends[0].ID != bobID {
		t.Fatalf("get-friends: %d %+v", status, body.Friends)
	}

	status, body = api.do(http.MethodPost, "/api/users/bob/delete-friend", aliceToken, nil)
	if status != http.StatusOK || len(body.Self.Friends) != 0 || len(body.User.Friends) != 0 {
		t.Fatalf("delete-friend: %d %+v", status, body)
	}

	status, _ = api.do(http.MethodPost, "/api/users/bob/delete-request/bogus", aliceToken, nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown request type, got %d", status)
	}
}

func TestDeleteRequestKinds(t *testing.T) {
	api := newTestAPI(t, nil)
	aliceToken, _ := api.signUpAndLogIn("alice", false)
	bobToken, _ := api.signUpAndLogIn("bob", false)

	if status, _ := api.do(http.MethodPost, "/api/users/bob/send-request", aliceToken, nil); status != http.StatusOK {
		t.Fatalf("send-request: %d", status)
	}
	status, body := api.do(http.MethodPost, "/api/users/alice/delete-request/received", bobToken, nil)
	if status != http.StatusOK || len(body.Self.Requests.Received) != 0 || len(body.User.Requests.Sent) != 0 {
		t.Fatalf("decline: %d %+v", status, body)
	}

	if status, _ := api.do(http.MethodPost, "/api/users/bob/send-request", aliceToken, nil); status != http.StatusOK {
		t.Fatalf("send-request again: %d", status)
	}
	status, body = api.do(http.MethodPost, "/api/users/bob/delete-request/sent", aliceToken, nil)
	if status != http.StatusOK || len(body.Self.Requests.Sent) != 0 || len(body.User.Requests.Received) != 0 {
		t.Fatalf("cancel: %d %+v", status, body)
	}

	status, _ = api.do(http.MethodPost, "/api/users/alice/add-friend", bobToken, nil)
	if status != http.StatusConflict {
		t.Fatalf("expected 409 accepting a cancelled request, got %d", status)
	}
}

func TestPostAndCommentLifecycle(t *testing.T) {
	api := newTestAPI(t, nil)
	aliceToken, aliceID := api.signUpAndLogIn("alice", false)
	bobToken, bobID := api.signUpAndLogIn("bob", false)

	status, body := api.do(http.MethodPost, "/api/posts/create", aliceToken, map[string]any{"content": "hello world", "public": true})
	if status != http.StatusCreated || body.Post.Author != aliceID {
		t.Fatalf("create post: %d %+v", status, body)
	}
	postID := body.Post.ID

	status, _ = api.do(http.MethodPost, "/api/posts/create", aliceToken, map[string]any{"content": strings.Repeat("x", 101)})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for long content, got %d", status)
	}

	status, _ = api.do(http.MethodPost, "/api/posts/"+postID+"/update", bobToken, map[string]any{"content": "hijacked"})
	if status != http.StatusForbidden {
		t.Fatalf("expected 403 for non-author update, got %d", status)
	}

	status, _ = api.do(http.MethodPost, "/api/posts/"+postID+"/like", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 liking without a token, got %d", status)
	}

	for i := 0; i < 2; i++ {
		status, body = api.do(http.MethodPost, "/api/posts/"+postID+"/like", bobToken, nil)
		if status != http.StatusOK {
			t.Fatalf("like attempt %d: %d %+v", i, status, body)
		}
	}
	if !slices.Equal(body.Post.Likes, []string{bobID}) || !slices.Equal(body.User.LikedPosts, []string{postID}) {
		t.Fatalf("unexpected like state post=%v user=%v", body.Post.Likes, body.User.LikedPosts)
	}

	status, body = api.do(http.MethodPost, "/api/posts/"+postID+"/unlike", bobToken, nil)
	if status != http.StatusOK || len(body.Post.Likes) != 0 || len(body.User.LikedPosts) != 0 {
		t.Fatalf("unlike: %d %+v", status, body)
	}

	status, body = api.do(http.MethodPost, "/api/posts/"+postID+"/comments/create", bobToken, map[string]any{"content": "nice"})
	if status != http.StatusCreated || body.Comment.Post != postID {
		t.Fatalf("create comment: %d %+v", status, body)
	}
	commentID := body.Comment.ID

	status, body = api.do(http.MethodPost, "/api/posts/"+postID+"/comments/"+commentID+"/like", aliceToken, nil)
	if status != http.StatusOK || !slices.Equal(body.Comment.Likes, []string{aliceID}) || !slices.Equal(body.User.LikedComments, []string{commentID}) {
		t.Fatalf("like comment: %d %+v", status, body)
	}

	status, body = api.do(http.MethodGet, "/api/posts/"+postID+"/comments", "", nil)
	if status != http.StatusOK || len(body.Comments) != 1 {
		t.Fatalf("list comments: %d %+v", status, body)
	}

	status, _ = api.do(http.MethodPost, "/api/comments/"+commentID+"/delete", aliceToken, nil)
	if status != http.StatusForbidden {
		t.Fatalf("expected 403 deleting someone else's comment, got %d", status)
	}
	status, _ = api.do(http.MethodPost, "/api/comments/"+commentID+"/delete", bobToken, nil)
	if status != http.StatusOK {
		t.Fatalf("delete comment: %d", status)
	}
	status, _ = api.do(http.MethodGet, "/api/comments/"+commentID, "", nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", status)
	}

	status, body = api.do(http.MethodGet, "/api/posts/users/"+aliceID, aliceToken, nil)
	if status != http.StatusOK || len(body.Posts) != 1 {
		t.Fatalf("posts by user: %d %+v", status, body)
	}

	status, body = api.do(http.MethodGet, "/api/search/posts?q=hello", "", nil)
	if status != http.StatusOK || len(body.Posts) != 1 || body.Posts[0].ID != postID {
		t.Fatalf("search posts: %d %+v", status, body)
	}
}

func TestUpdateUserReturnsFreshToken(t *testing.T) {
	api := newTestAPI(t, nil)
	token, _ := api.signUpAndLogIn("alice", false)

	status, body := api.do(http.MethodPost, "/api/users/alice/update", token, map[string]any{"bio": "climber"})
	if status != http.StatusOK || body.User.Bio != "climber" || body.Token == "" {
		t.Fatalf("update: %d %+v", status, body)
	}

	status, body = api.do(http.MethodGet, "/api/auth", body.Token, nil)
	if status != http.StatusOK || body.User.Bio != "climber" {
		t.Fatalf("expected refreshed token to carry the new bio, got %d %+v", status, body)
	}
}

func TestUploadPhoto(t *testing.T) {
	api := newTestAPI(t, nil)
	token, _ := api.signUpAndLogIn("alice", false)

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("photo", "me.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)
	if _, err := part.Write(png); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := form.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/users/alice/upload-photo", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	status, body := api.send(req, token)
	if status != http.StatusOK || !strings.HasPrefix(body.User.Pic, "https://cdn.test/") {
		t.Fatalf("upload: %d %+v", status, body)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/users/alice/upload-photo", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	status, _ = api.send(req, token)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-multipart upload, got %d", status)
	}
}

func TestUnknownRoute(t *testing.T) {
	api := newTestAPI(t, nil)

	status, body := api.do(http.MethodGet, "/api/nothing-here", "", nil)
	if status != http.StatusNotFound || body.Error != "Not found" {
		t.Fatalf("expected 404, got %d %+v", status, body)
	}
}

func TestLogInRateLimited(t *testing.T) {
	api := newTestAPI(t, middleware.NewIPRateLimiter(1, time.Hour, 1, time.Hour))

	login := map[string]string{"username": "ghost", "password": "hunter22"}
	if status, _ := api.do(http.MethodPost, "/api/log-in", "", login); status != http.StatusBadRequest {
		t.Fatalf("expected first attempt to reach the handler, got %d", status)
	}
	status, body := api.do(http.MethodPost, "/api/log-in", "", login)
	if status != http.StatusTooManyRequests || body.Error == "" {
		t.Fatalf("expected 429, got %d %+v", status, body)
	}
}
