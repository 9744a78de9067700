package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/odinbook/backend/internal/db"
	"github.com/odinbook/backend/internal/models"
)

const userColumns = `id, email, username, password_hash, first_name, last_name, contact, pic, bio,
        friends, requests_sent, requests_received, liked_posts, liked_comments,
        public, admin, created_at, updated_at`

const postColumns = `id, author_id, date, content, image, likes, public`

const commentColumns = `id, post_id, author_id, date, content, likes`

// userSearchDocument is the text the users full-text search runs against.
const userSearchDocument = `to_tsvector('simple', username || ' ' || first_name || ' ' || last_name || ' ' || bio)`

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
// Relationship sets live in TEXT[] columns so each set update stays a single
// row write.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create persists a new user record.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO users (`+userColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
    `, user.ID, user.Email, user.Username, user.PasswordHash, user.FirstName, user.LastName,
		contacts(user.Contact), user.Pic, user.Bio,
		ids(user.Friends), ids(user.Requests.Sent), ids(user.Requests.Received),
		ids(user.LikedPosts), ids(user.LikedComments),
		user.Public, user.Admin, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// FindByID fetches a user by id.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	return r.findOne(ctx, "id", id)
}

// FindByUsername fetches a user by username.
func (r *PostgresUserRepository) FindByUsername(ctx context.Context, username string) (models.User, error) {
	return r.findOne(ctx, "username", username)
}

// FindByEmail fetches a user by their email address.
func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return r.findOne(ctx, "email", email)
}

func (r *PostgresUserRepository) findOne(ctx context.Context, column, value string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+column+` = $1`, value)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("select user by %s: %w", column, err)
	}
	return user, nil
}

// FindByIDs returns the users that exist among ids, in the order of ids.
func (r *PostgresUserRepository) FindByIDs(ctx context.Context, userIDs []string) ([]models.User, error) {
	if len(userIDs) == 0 {
		return []models.User{}, nil
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1::TEXT[])`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("query users by id: %w", err)
	}
	found, err := collectUsers(rows, false)
	if err != nil {
		return nil, err
	}

	return orderUsersByIDs(found, userIDs), nil
}

// List returns every user ordered by opts.
func (r *PostgresUserRepository) List(ctx context.Context, opts ListOptions) ([]models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY `+userOrderBy(opts))
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	return collectUsers(rows, false)
}

// Search ranks users whose names or bio match query.
func (r *PostgresUserRepository) Search(ctx context.Context, query string, opts ListOptions) ([]models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+userColumns+`, ts_rank(`+userSearchDocument+`, plainto_tsquery('simple', $1)) AS score
        FROM users
        WHERE `+userSearchDocument+` @@ plainto_tsquery('simple', $1)
        ORDER BY `+userOrderBy(opts), query)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}

	return collectUsers(rows, true)
}

// Update overwrites the profile fields of an existing user.
func (r *PostgresUserRepository) Update(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users
        SET email = $2, username = $3, password_hash = $4, first_name = $5, last_name = $6,
            contact = $7, pic = $8, bio = $9, public = $10, admin = $11, updated_at = $12
        WHERE id = $1
    `, user.ID, user.Email, user.Username, user.PasswordHash, user.FirstName, user.LastName,
		contacts(user.Contact), user.Pic, user.Bio, user.Public, user.Admin, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("update user: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes a user. Ids held by other documents are left dangling.
func (r *PostgresUserRepository) Delete(ctx context.Context, id string) error {
	return deleteRow(ctx, r.pool, "users", id)
}

// UpdateSets applies every op in a single UPDATE and returns the new row.
func (r *PostgresUserRepository) UpdateSets(ctx context.Context, id string, ops ...models.SetOp) (models.User, error) {
	if err := models.ValidateSetOps(ops); err != nil {
		return models.User{}, fmt.Errorf("%w: %v", ErrInvalidUpdate, err)
	}

	assignments := make([]string, 0, len(ops)+1)
	args := []any{id}
	for _, op := range ops {
		args = append(args, op.Value)
		assignments = append(assignments, setAssignment(userColumn(op.Field), op.Action, len(args)))
	}
	assignments = append(assignments, "updated_at = now()")

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        UPDATE users
        SET `+strings.Join(assignments, ", ")+`
        WHERE id = $1
        RETURNING `+userColumns, args...)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("update user sets: %w", err)
	}
	return user, nil
}

// PostgresPostRepository provides PostgreSQL-backed persistence for posts.
type PostgresPostRepository struct {
	pool db.Pool
}

// NewPostgresPostRepository constructs a post repository backed by PostgreSQL.
func NewPostgresPostRepository(pool db.Pool) *PostgresPostRepository {
	return &PostgresPostRepository{pool: pool}
}

// Create stores a new post.
func (r *PostgresPostRepository) Create(ctx context.Context, post models.Post) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO posts (`+postColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, post.ID, post.Author, post.Date, post.Content, post.Image, ids(post.Likes), post.Public)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert post: %w", err)
	}

	return nil
}

// FindByID fetches a post by id.
func (r *PostgresPostRepository) FindByID(ctx context.Context, id string) (models.Post, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Post{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	post, err := scanPost(conn.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Post{}, ErrNotFound
		}
		return models.Post{}, fmt.Errorf("select post: %w", err)
	}
	return post, nil
}

// List returns posts matching filter ordered by opts.
func (r *PostgresPostRepository) List(ctx context.Context, filter PostFilter, opts ListOptions) ([]models.Post, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+postColumns+`
        FROM posts
        WHERE ($1::TEXT = '' OR author_id = $1)
        ORDER BY `+postOrderBy(opts), filter.Author)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	return collectPosts(rows, false)
}

// Search ranks posts whose content matches query.
func (r *PostgresPostRepository) Search(ctx context.Context, query string, opts ListOptions) ([]models.Post, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+postColumns+`, ts_rank(to_tsvector('simple', content), plainto_tsquery('simple', $1)) AS score
        FROM posts
        WHERE to_tsvector('simple', content) @@ plainto_tsquery('simple', $1)
        ORDER BY `+postOrderBy(opts), query)
	if err != nil {
		return nil, fmt.Errorf("search posts: %w", err)
	}
	return collectPosts(rows, true)
}

// Replace overwrites the content, image and visibility of a post.
func (r *PostgresPostRepository) Replace(ctx context.Context, post models.Post) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE posts
        SET content = $2, image = $3, public = $4
        WHERE id = $1
    `, post.ID, post.Content, post.Image, post.Public)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a post. Its comments are left in place.
func (r *PostgresPostRepository) Delete(ctx context.Context, id string) error {
	return deleteRow(ctx, r.pool, "posts", id)
}

// UpdateLikes adds or removes userID from the post's likes in one write.
func (r *PostgresPostRepository) UpdateLikes(ctx context.Context, id string, action models.SetAction, userID string) (models.Post, error) {
	if userID == "" {
		return models.Post{}, fmt.Errorf("%w: empty user id", ErrInvalidUpdate)
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Post{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	post, err := scanPost(conn.QueryRow(ctx, `
        UPDATE posts
        SET `+setAssignment("likes", action, 2)+`
        WHERE id = $1
        RETURNING `+postColumns, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Post{}, ErrNotFound
		}
		return models.Post{}, fmt.Errorf("update post likes: %w", err)
	}
	return post, nil
}

// PostgresCommentRepository provides PostgreSQL-backed persistence for comments.
type PostgresCommentRepository struct {
	pool db.Pool
}

// NewPostgresCommentRepository constructs a comment repository backed by PostgreSQL.
func NewPostgresCommentRepository(pool db.Pool) *PostgresCommentRepository {
	return &PostgresCommentRepository{pool: pool}
}

// Create stores a new comment.
func (r *PostgresCommentRepository) Create(ctx context.Context, comment models.Comment) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO comments (`+commentColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, comment.ID, comment.Post, comment.Author, comment.Date, comment.Content, ids(comment.Likes))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert comment: %w", err)
	}

	return nil
}

// FindByID fetches a comment by id.
func (r *PostgresCommentRepository) FindByID(ctx context.Context, id string) (models.Comment, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Comment{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	comment, err := scanComment(conn.QueryRow(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Comment{}, ErrNotFound
		}
		return models.Comment{}, fmt.Errorf("select comment: %w", err)
	}
	return comment, nil
}

// List returns comments matching filter ordered by opts.
func (r *PostgresCommentRepository) List(ctx context.Context, filter CommentFilter, opts ListOptions) ([]models.Comment, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+commentColumns+`
        FROM comments
        WHERE ($1::TEXT = '' OR post_id = $1)
        ORDER BY `+postOrderBy(opts), filter.Post)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	comments := []models.Comment{}
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, comment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return comments, nil
}

// Replace overwrites the content of a comment.
func (r *PostgresCommentRepository) Replace(ctx context.Context, comment models.Comment) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `UPDATE comments SET content = $2 WHERE id = $1`, comment.ID, comment.Content)
	if err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a comment.
func (r *PostgresCommentRepository) Delete(ctx context.Context, id string) error {
	return deleteRow(ctx, r.pool, "comments", id)
}

// UpdateLikes adds or removes userID from the comment's likes in one write.
func (r *PostgresCommentRepository) UpdateLikes(ctx context.Context, id string, action models.SetAction, userID string) (models.Comment, error) {
	if userID == "" {
		return models.Comment{}, fmt.Errorf("%w: empty user id", ErrInvalidUpdate)
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Comment{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	comment, err := scanComment(conn.QueryRow(ctx, `
        UPDATE comments
        SET `+setAssignment("likes", action, 2)+`
        WHERE id = $1
        RETURNING `+commentColumns, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Comment{}, ErrNotFound
		}
		return models.Comment{}, fmt.Errorf("update comment likes: %w", err)
	}
	return comment, nil
}

// userColumn maps a relationship field to its array column.
func userColumn(field models.RelationshipField) string {
	switch field {
	case models.SentRequests:
		return "requests_sent"
	case models.ReceivedRequests:
		return "requests_received"
	case models.Friends:
		return "friends"
	case models.LikedPosts:
		return "liked_posts"
	case models.LikedComments:
		return "liked_comments"
	default:
		panic(fmt.Sprintf("repositories: unmapped relationship field %s", field))
	}
}

// setAssignment renders an add-to-set or remove-all assignment for column
// using positional parameter n as the value.
func setAssignment(column string, action models.SetAction, n int) string {
	if action == models.Pull {
		return fmt.Sprintf("%[1]s = array_remove(%[1]s, $%[2]d::TEXT)", column, n)
	}
	return fmt.Sprintf("%[1]s = CASE WHEN $%[2]d::TEXT = ANY(%[1]s) THEN %[1]s ELSE array_append(%[1]s, $%[2]d::TEXT) END", column, n)
}

func userOrderBy(opts ListOptions) string {
	dir := sqlDirection(opts)
	switch opts.sortKey() {
	case SortUsername:
		return "username " + dir + ", id " + dir
	case SortScore:
		return "score " + invert(dir) + ", id ASC"
	default:
		return "id " + dir
	}
}

func postOrderBy(opts ListOptions) string {
	dir := sqlDirection(opts)
	switch opts.sortKey() {
	case SortDate:
		return "date " + dir + ", id " + dir
	case SortScore:
		return "score " + invert(dir) + ", id ASC"
	default:
		return "id " + dir
	}
}

func sqlDirection(opts ListOptions) string {
	if opts.Order == Descending {
		return "DESC"
	}
	return "ASC"
}

// invert flips the direction so relevance lists best matches first by default.
func invert(dir string) string {
	if dir == "ASC" {
		return "DESC"
	}
	return "ASC"
}

func deleteRow(ctx context.Context, pool db.Pool, table, id string) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row, extra ...any) (models.User, error) {
	var user models.User
	dest := []any{
		&user.ID, &user.Email, &user.Username, &user.PasswordHash, &user.FirstName, &user.LastName,
		&user.Contact, &user.Pic, &user.Bio,
		&user.Friends, &user.Requests.Sent, &user.Requests.Received, &user.LikedPosts, &user.LikedComments,
		&user.Public, &user.Admin, &user.CreatedAt, &user.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return models.User{}, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	return user, nil
}

// collectUsers drains rows; scored rows carry a trailing rank column.
func collectUsers(rows pgx.Rows, scored bool) ([]models.User, error) {
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var (
			user  models.User
			score float32
			err   error
		)
		if scored {
			user, err = scanUser(rows, &score)
			user.Score = float64(score)
		} else {
			user, err = scanUser(rows)
		}
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

func scanPost(row pgx.Row, extra ...any) (models.Post, error) {
	var post models.Post
	dest := []any{&post.ID, &post.Author, &post.Date, &post.Content, &post.Image, &post.Likes, &post.Public}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return models.Post{}, err
	}
	post.Date = post.Date.UTC()
	return post, nil
}

func collectPosts(rows pgx.Rows, scored bool) ([]models.Post, error) {
	defer rows.Close()

	posts := []models.Post{}
	for rows.Next() {
		var (
			post  models.Post
			score float32
			err   error
		)
		if scored {
			post, err = scanPost(rows, &score)
			post.Score = float64(score)
		} else {
			post, err = scanPost(rows)
		}
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return posts, nil
}

func scanComment(row pgx.Row) (models.Comment, error) {
	var comment models.Comment
	if err := row.Scan(&comment.ID, &comment.Post, &comment.Author, &comment.Date, &comment.Content, &comment.Likes); err != nil {
		return models.Comment{}, err
	}
	comment.Date = comment.Date.UTC()
	return comment, nil
}

func orderUsersByIDs(users []models.User, order []string) []models.User {
	byID := make(map[string]models.User, len(users))
	for _, user := range users {
		byID[user.ID] = user
	}
	out := make([]models.User, 0, len(users))
	for _, id := range order {
		if user, ok := byID[id]; ok {
			out = append(out, user)
			delete(byID, id)
		}
	}
	return out
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func ids(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func contacts(values []models.Contact) []models.Contact {
	if values == nil {
		return []models.Contact{}
	}
	return values
}

var (
	_ UserRepository    = (*PostgresUserRepository)(nil)
	_ PostRepository    = (*PostgresPostRepository)(nil)
	_ CommentRepository = (*PostgresCommentRepository)(nil)
)
