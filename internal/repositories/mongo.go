package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/odinbook/backend/internal/models"
)

const (
	usersCollection    = "users"
	postsCollection    = "posts"
	commentsCollection = "comments"
)

// EnsureIndexes creates the unique and text indexes the Mongo repositories
// rely on. It is safe to call repeatedly.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	users := []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true).SetName("users_username_key")},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("users_email_key")},
		{
			Keys: bson.D{
				{Key: "username", Value: "text"},
				{Key: "firstName", Value: "text"},
				{Key: "lastName", Value: "text"},
				{Key: "bio", Value: "text"},
			},
			Options: options.Index().SetName("users_search"),
		},
	}
	if _, err := database.Collection(usersCollection).Indexes().CreateMany(ctx, users); err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}

	posts := []mongo.IndexModel{
		{Keys: bson.D{{Key: "author", Value: 1}}, Options: options.Index().SetName("posts_author_idx")},
		{Keys: bson.D{{Key: "content", Value: "text"}}, Options: options.Index().SetName("posts_search")},
	}
	if _, err := database.Collection(postsCollection).Indexes().CreateMany(ctx, posts); err != nil {
		return fmt.Errorf("create post indexes: %w", err)
	}

	comments := []mongo.IndexModel{
		{Keys: bson.D{{Key: "post", Value: 1}}, Options: options.Index().SetName("comments_post_idx")},
	}
	if _, err := database.Collection(commentsCollection).Indexes().CreateMany(ctx, comments); err != nil {
		return fmt.Errorf("create comment indexes: %w", err)
	}
	return nil
}

// MongoUserRepository stores users as documents in the users collection.
// Relationship sets are arrays updated with $addToSet and $pull.
type MongoUserRepository struct {
	coll *mongo.Collection
}

// NewMongoUserRepository constructs a user repository on database.
func NewMongoUserRepository(database *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{coll: database.Collection(usersCollection)}
}

// Create inserts user. Sets are written as empty arrays, never null, so the
// set operators always have an array to work on.
func (r *MongoUserRepository) Create(ctx context.Context, user models.User) error {
	user = user.Normalize()
	user.Score = 0
	if _, err := r.coll.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *MongoUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoUserRepository) FindByUsername(ctx context.Context, username string) (models.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *MongoUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M) (models.User, error) {
	var user models.User
	if err := r.coll.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

// FindByIDs returns the users that exist among ids, in the order of ids.
func (r *MongoUserRepository) FindByIDs(ctx context.Context, userIDs []string) ([]models.User, error) {
	if len(userIDs) == 0 {
		return []models.User{}, nil
	}
	cursor, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": userIDs}})
	if err != nil {
		return nil, fmt.Errorf("find users by id: %w", err)
	}
	found := []models.User{}
	if err := cursor.All(ctx, &found); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return orderUsersByIDs(found, userIDs), nil
}

func (r *MongoUserRepository) List(ctx context.Context, opts ListOptions) ([]models.User, error) {
	findOpts := options.Find().SetSort(mongoSort(opts, map[SortKey]string{SortUsername: "username"}))
	cursor, err := r.coll.Find(ctx, bson.M{}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	out := []models.User{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return out, nil
}

// Search runs a $text query and orders the matches in process.
func (r *MongoUserRepository) Search(ctx context.Context, query string, opts ListOptions) ([]models.User, error) {
	findOpts := options.Find().SetProjection(bson.M{"score": bson.M{"$meta": "textScore"}})
	cursor, err := r.coll.Find(ctx, bson.M{"$text": bson.M{"$search": query}}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	out := []models.User{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	sortUsers(out, opts)
	return out, nil
}

// Update overwrites the profile fields of user. Relationship sets and the
// creation time are not part of the write.
func (r *MongoUserRepository) Update(ctx context.Context, user models.User) error {
	update := bson.M{"$set": bson.M{
		"email":     user.Email,
		"username":  user.Username,
		"password":  user.PasswordHash,
		"firstName": user.FirstName,
		"lastName":  user.LastName,
		"contact":   user.Normalize().Contact,
		"pic":       user.Pic,
		"bio":       user.Bio,
		"public":    user.Public,
		"admin":     user.Admin,
		"updatedAt": user.UpdatedAt,
	}}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": user.ID}, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConflict
		}
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoUserRepository) Delete(ctx context.Context, id string) error {
	return deleteDocument(ctx, r.coll, id)
}

// UpdateSets applies ops with a single findOneAndUpdate.
func (r *MongoUserRepository) UpdateSets(ctx context.Context, id string, ops ...models.SetOp) (models.User, error) {
	if err := models.ValidateSetOps(ops); err != nil {
		return models.User{}, fmt.Errorf("%w: %v", ErrInvalidUpdate, err)
	}

	addToSet := bson.M{}
	pull := bson.M{}
	for _, op := range ops {
		switch op.Action {
		case models.AddToSet:
			addToSet[op.Field.String()] = op.Value
		case models.Pull:
			pull[op.Field.String()] = op.Value
		}
	}
	update := bson.M{"$set": bson.M{"updatedAt": time.Now().UTC()}}
	if len(addToSet) > 0 {
		update["$addToSet"] = addToSet
	}
	if len(pull) > 0 {
		update["$pull"] = pull
	}

	var user models.User
	findOpts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, findOpts).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("update user sets: %w", err)
	}
	return user, nil
}

// MongoPostRepository stores posts in the posts collection.
type MongoPostRepository struct {
	coll *mongo.Collection
}

// NewMongoPostRepository constructs a post repository on database.
func NewMongoPostRepository(database *mongo.Database) *MongoPostRepository {
	return &MongoPostRepository{coll: database.Collection(postsCollection)}
}

func (r *MongoPostRepository) Create(ctx context.Context, post models.Post) error {
	post = post.Normalize()
	post.Score = 0
	if _, err := r.coll.InsertOne(ctx, post); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (r *MongoPostRepository) FindByID(ctx context.Context, id string) (models.Post, error) {
	var post models.Post
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&post); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Post{}, ErrNotFound
		}
		return models.Post{}, fmt.Errorf("find post: %w", err)
	}
	return post, nil
}

func (r *MongoPostRepository) List(ctx context.Context, filter PostFilter, opts ListOptions) ([]models.Post, error) {
	query := bson.M{}
	if filter.Author != "" {
		query["author"] = filter.Author
	}
	findOpts := options.Find().SetSort(mongoSort(opts, map[SortKey]string{SortDate: "date"}))
	cursor, err := r.coll.Find(ctx, query, findOpts)
	if err != nil {
		return nil, fmt.Errorf("find posts: %w", err)
	}
	out := []models.Post{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode posts: %w", err)
	}
	return out, nil
}

func (r *MongoPostRepository) Search(ctx context.Context, query string, opts ListOptions) ([]models.Post, error) {
	findOpts := options.Find().SetProjection(bson.M{"score": bson.M{"$meta": "textScore"}})
	cursor, err := r.coll.Find(ctx, bson.M{"$text": bson.M{"$search": query}}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("search posts: %w", err)
	}
	out := []models.Post{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode posts: %w", err)
	}
	sortPosts(out, opts)
	return out, nil
}

// Replace overwrites content, image and visibility of an existing post.
func (r *MongoPostRepository) Replace(ctx context.Context, post models.Post) error {
	update := bson.M{"$set": bson.M{
		"content": post.Content,
		"image":   post.Image,
		"public":  post.Public,
	}}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": post.ID}, update)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoPostRepository) Delete(ctx context.Context, id string) error {
	return deleteDocument(ctx, r.coll, id)
}

func (r *MongoPostRepository) UpdateLikes(ctx context.Context, id string, action models.SetAction, userID string) (models.Post, error) {
	update, err := likesUpdate(action, userID)
	if err != nil {
		return models.Post{}, err
	}
	var post models.Post
	findOpts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, findOpts).Decode(&post); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Post{}, ErrNotFound
		}
		return models.Post{}, fmt.Errorf("update post likes: %w", err)
	}
	return post, nil
}

// MongoCommentRepository stores comments in the comments collection.
type MongoCommentRepository struct {
	coll *mongo.Collection
}

// NewMongoCommentRepository constructs a comment repository on database.
func NewMongoCommentRepository(database *mongo.Database) *MongoCommentRepository {
	return &MongoCommentRepository{coll: database.Collection(commentsCollection)}
}

func (r *MongoCommentRepository) Create(ctx context.Context, comment models.Comment) error {
	if _, err := r.coll.InsertOne(ctx, comment.Normalize()); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (r *MongoCommentRepository) FindByID(ctx context.Context, id string) (models.Comment, error) {
	var comment models.Comment
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&comment); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Comment{}, ErrNotFound
		}
		return models.Comment{}, fmt.Errorf("find comment: %w", err)
	}
	return comment, nil
}

func (r *MongoCommentRepository) List(ctx context.Context, filter CommentFilter, opts ListOptions) ([]models.Comment, error) {
	query := bson.M{}
	if filter.Post != "" {
		query["post"] = filter.Post
	}
	findOpts := options.Find().SetSort(mongoSort(opts, map[SortKey]string{SortDate: "date"}))
	cursor, err := r.coll.Find(ctx, query, findOpts)
	if err != nil {
		return nil, fmt.Errorf("find comments: %w", err)
	}
	out := []models.Comment{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode comments: %w", err)
	}
	return out, nil
}

func (r *MongoCommentRepository) Replace(ctx context.Context, comment models.Comment) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": comment.ID}, bson.M{"$set": bson.M{"content": comment.Content}})
	if err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoCommentRepository) Delete(ctx context.Context, id string) error {
	return deleteDocument(ctx, r.coll, id)
}

func (r *MongoCommentRepository) UpdateLikes(ctx context.Context, id string, action models.SetAction, userID string) (models.Comment, error) {
	update, err := likesUpdate(action, userID)
	if err != nil {
		return models.Comment{}, err
	}
	var comment models.Comment
	findOpts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, findOpts).Decode(&comment); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Comment{}, ErrNotFound
		}
		return models.Comment{}, fmt.Errorf("update comment likes: %w", err)
	}
	return comment, nil
}

func likesUpdate(action models.SetAction, userID string) (bson.M, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", ErrInvalidUpdate)
	}
	switch action {
	case models.AddToSet:
		return bson.M{"$addToSet": bson.M{"likes": userID}}, nil
	case models.Pull:
		return bson.M{"$pull": bson.M{"likes": userID}}, nil
	default:
		return nil, fmt.Errorf("%w: unknown action %s", ErrInvalidUpdate, action)
	}
}

func deleteDocument(ctx context.Context, coll *mongo.Collection, id string) error {
	res, err := coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete from %s: %w", coll.Name(), err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// mongoSort translates opts into a sort document. fields maps the extra sort
// keys a collection supports to their document paths; _id is always the
// final tiebreak.
func mongoSort(opts ListOptions, fields map[SortKey]string) bson.D {
	dir := opts.direction()
	sort := bson.D{}
	if path, ok := fields[opts.sortKey()]; ok {
		sort = append(sort, bson.E{Key: path, Value: dir})
	}
	return append(sort, bson.E{Key: "_id", Value: dir})
}

var (
	_ UserRepository    = (*MongoUserRepository)(nil)
	_ PostRepository    = (*MongoPostRepository)(nil)
	_ CommentRepository = (*MongoCommentRepository)(nil)
)
