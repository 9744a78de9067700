package repositories

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/odinbook/backend/internal/models"
)

// MemoryStore keeps users, posts and comments in process memory. Each update
// holds the store lock for exactly one document, mirroring the single
// document atomicity of the real stores. Intended for tests and local
// development.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]models.User
	posts    map[string]models.Post
	comments map[string]models.Comment
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]models.User),
		posts:    make(map[string]models.Post),
		comments: make(map[string]models.Comment),
	}
}

// Users returns a UserRepository view over the store.
func (s *MemoryStore) Users() *MemoryUserRepository { return &MemoryUserRepository{s: s} }

// Posts returns a PostRepository view over the store.
func (s *MemoryStore) Posts() *MemoryPostRepository { return &MemoryPostRepository{s: s} }

// Comments returns a CommentRepository view over the store.
func (s *MemoryStore) Comments() *MemoryCommentRepository { return &MemoryCommentRepository{s: s} }

// MemoryUserRepository implements UserRepository on a MemoryStore.
type MemoryUserRepository struct{ s *MemoryStore }

func (r *MemoryUserRepository) Create(_ context.Context, user models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.users[user.ID]; exists {
		return ErrConflict
	}
	for _, existing := range r.s.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return ErrConflict
		}
	}
	r.s.users[user.ID] = user.Clone()
	return nil
}

func (r *MemoryUserRepository) FindByID(_ context.Context, id string) (models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	user, ok := r.s.users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return user.Clone(), nil
}

func (r *MemoryUserRepository) FindByUsername(_ context.Context, username string) (models.User, error) {
	return r.findBy(func(u models.User) bool { return u.Username == username })
}

func (r *MemoryUserRepository) FindByEmail(_ context.Context, email string) (models.User, error) {
	return r.findBy(func(u models.User) bool { return u.Email == email })
}

func (r *MemoryUserRepository) findBy(match func(models.User) bool) (models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, user := range r.s.users {
		if match(user) {
			return user.Clone(), nil
		}
	}
	return models.User{}, ErrNotFound
}

func (r *MemoryUserRepository) FindByIDs(_ context.Context, ids []string) ([]models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if user, ok := r.s.users[id]; ok {
			out = append(out, user.Clone())
		}
	}
	return out, nil
}

func (r *MemoryUserRepository) List(_ context.Context, opts ListOptions) ([]models.User, error) {
	r.s.mu.RLock()
	out := make([]models.User, 0, len(r.s.users))
	for _, user := range r.s.users {
		out = append(out, user.Clone())
	}
	r.s.mu.RUnlock()

	sortUsers(out, opts)
	return out, nil
}

func (r *MemoryUserRepository) Search(_ context.Context, query string, opts ListOptions) ([]models.User, error) {
	terms := searchTerms(query)

	r.s.mu.RLock()
	out := []models.User{}
	for _, user := range r.s.users {
		score := matchScore(terms, user.Username, user.FirstName, user.LastName, user.Bio)
		if score == 0 {
			continue
		}
		user = user.Clone()
		user.Score = score
		out = append(out, user)
	}
	r.s.mu.RUnlock()

	sortUsers(out, opts)
	return out, nil
}

func (r *MemoryUserRepository) Update(_ context.Context, user models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.users[user.ID]
	if !ok {
		return ErrNotFound
	}
	for id, other := range r.s.users {
		if id != user.ID && (other.Username == user.Username || other.Email == user.Email) {
			return ErrConflict
		}
	}

	updated := user.Clone()
	updated.Friends = existing.Friends
	updated.Requests = existing.Requests
	updated.LikedPosts = existing.LikedPosts
	updated.LikedComments = existing.LikedComments
	updated.CreatedAt = existing.CreatedAt
	r.s.users[user.ID] = updated
	return nil
}

func (r *MemoryUserRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[id]; !ok {
		return ErrNotFound
	}
	delete(r.s.users, id)
	return nil
}

func (r *MemoryUserRepository) UpdateSets(_ context.Context, id string, ops ...models.SetOp) (models.User, error) {
	if err := models.ValidateSetOps(ops); err != nil {
		return models.User{}, fmt.Errorf("%w: %v", ErrInvalidUpdate, err)
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	user = user.Clone()
	models.ApplySetOps(&user, ops)
	r.s.users[id] = user
	return user.Clone(), nil
}

// MemoryPostRepository implements PostRepository on a MemoryStore.
type MemoryPostRepository struct{ s *MemoryStore }

func (r *MemoryPostRepository) Create(_ context.Context, post models.Post) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.posts[post.ID]; exists {
		return ErrConflict
	}
	post.Likes = slices.Clone(post.Likes)
	r.s.posts[post.ID] = post
	return nil
}

func (r *MemoryPostRepository) FindByID(_ context.Context, id string) (models.Post, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	post, ok := r.s.posts[id]
	if !ok {
		return models.Post{}, ErrNotFound
	}
	post.Likes = slices.Clone(post.Likes)
	return post, nil
}

func (r *MemoryPostRepository) List(_ context.Context, filter PostFilter, opts ListOptions) ([]models.Post, error) {
	r.s.mu.RLock()
	out := []models.Post{}
	for _, post := range r.s.posts {
		if filter.Author != "" && post.Author != filter.Author {
			continue
		}
		post.Likes = slices.Clone(post.Likes)
		out = append(out, post)
	}
	r.s.mu.RUnlock()

	sortPosts(out, opts)
	return out, nil
}

func (r *MemoryPostRepository) Search(_ context.Context, query string, opts ListOptions) ([]models.Post, error) {
	terms := searchTerms(query)

	r.s.mu.RLock()
	out := []models.Post{}
	for _, post := range r.s.posts {
		score := matchScore(terms, post.Content)
		if score == 0 {
			continue
		}
		post.Likes = slices.Clone(post.Likes)
		post.Score = score
		out = append(out, post)
	}
	r.s.mu.RUnlock()

	sortPosts(out, opts)
	return out, nil
}

func (r *MemoryPostRepository) Replace(_ context.Context, post models.Post) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.posts[post.ID]; !ok {
		return ErrNotFound
	}
	post.Likes = slices.Clone(post.Likes)
	r.s.posts[post.ID] = post
	return nil
}

func (r *MemoryPostRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.posts[id]; !ok {
		return ErrNotFound
	}
	delete(r.s.posts, id)
	return nil
}

func (r *MemoryPostRepository) UpdateLikes(_ context.Context, id string, action models.SetAction, userID string) (models.Post, error) {
	if userID == "" {
		return models.Post{}, fmt.Errorf("%w: empty user id", ErrInvalidUpdate)
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	post, ok := r.s.posts[id]
	if !ok {
		return models.Post{}, ErrNotFound
	}
	post.Likes = action.Apply(slices.Clone(post.Likes), userID)
	r.s.posts[id] = post

	post.Likes = slices.Clone(post.Likes)
	return post, nil
}

// MemoryCommentRepository implements CommentRepository on a MemoryStore.
type MemoryCommentRepository struct{ s *MemoryStore }

func (r *MemoryCommentRepository) Create(_ context.Context, comment models.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.comments[comment.ID]; exists {
		return ErrConflict
	}
	comment.Likes = slices.Clone(comment.Likes)
	r.s.comments[comment.ID] = comment
	return nil
}

func (r *MemoryCommentRepository) FindByID(_ context.Context, id string) (models.Comment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	comment, ok := r.s.comments[id]
	if !ok {
		return models.Comment{}, ErrNotFound
	}
	comment.Likes = slices.Clone(comment.Likes)
	return comment, nil
}

func (r *MemoryCommentRepository) List(_ context.Context, filter CommentFilter, opts ListOptions) ([]models.Comment, error) {
	r.s.mu.RLock()
	out := []models.Comment{}
	for _, comment := range r.s.comments {
		if filter.Post != "" && comment.Post != filter.Post {
			continue
		}
		comment.Likes = slices.Clone(comment.Likes)
		out = append(out, comment)
	}
	r.s.mu.RUnlock()

	dir := opts.direction()
	slices.SortFunc(out, func(a, b models.Comment) int {
		if opts.sortKey() == SortDate {
			if c := a.Date.Compare(b.Date); c != 0 {
				return dir * c
			}
		}
		return dir * cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (r *MemoryCommentRepository) Replace(_ context.Context, comment models.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.comments[comment.ID]; !ok {
		return ErrNotFound
	}
	comment.Likes = slices.Clone(comment.Likes)
	r.s.comments[comment.ID] = comment
	return nil
}

func (r *MemoryCommentRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.comments[id]; !ok {
		return ErrNotFound
	}
	delete(r.s.comments, id)
	return nil
}

func (r *MemoryCommentRepository) UpdateLikes(_ context.Context, id string, action models.SetAction, userID string) (models.Comment, error) {
	if userID == "" {
		return models.Comment{}, fmt.Errorf("%w: empty user id", ErrInvalidUpdate)
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	comment, ok := r.s.comments[id]
	if !ok {
		return models.Comment{}, ErrNotFound
	}
	comment.Likes = action.Apply(slices.Clone(comment.Likes), userID)
	r.s.comments[id] = comment

	comment.Likes = slices.Clone(comment.Likes)
	return comment, nil
}

func sortUsers(users []models.User, opts ListOptions) {
	dir := opts.direction()
	key := opts.sortKey()
	slices.SortFunc(users, func(a, b models.User) int {
		switch key {
		case SortUsername:
			if c := cmp.Compare(a.Username, b.Username); c != 0 {
				return dir * c
			}
		case SortScore:
			// Highest relevance first unless ascending was asked for explicitly.
			if c := cmp.Compare(b.Score, a.Score); c != 0 {
				return dir * c
			}
		}
		return dir * cmp.Compare(a.ID, b.ID)
	})
}

func sortPosts(posts []models.Post, opts ListOptions) {
	dir := opts.direction()
	key := opts.sortKey()
	slices.SortFunc(posts, func(a, b models.Post) int {
		switch key {
		case SortDate:
			if c := a.Date.Compare(b.Date); c != 0 {
				return dir * c
			}
		case SortScore:
			if c := cmp.Compare(b.Score, a.Score); c != 0 {
				return dir * c
			}
		}
		return dir * cmp.Compare(a.ID, b.ID)
	})
}

func searchTerms(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// matchScore counts how many query terms occur in any of the fields.
func matchScore(terms []string, fields ...string) float64 {
	if len(terms) == 0 {
		return 0
	}
	haystack := strings.ToLower(strings.Join(fields, " "))
	var score float64
	for _, term := range terms {
		if strings.Contains(haystack, term) {
			score++
		}
	}
	return score
}

var (
	_ UserRepository    = (*MemoryUserRepository)(nil)
	_ PostRepository    = (*MemoryPostRepository)(nil)
	_ CommentRepository = (*MemoryCommentRepository)(nil)
)
