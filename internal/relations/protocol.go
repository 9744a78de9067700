// Package relations performs the two-sided set mutations behind friend
// requests, friendships and likes.
//
// The store only offers single-document atomic updates, so every operation is
// two writes issued in a fixed order: the other document first, then the
// caller's own. If the second write fails the caller gets a ConsistencyError
// and the other party sees a dangling reference rather than the caller
// believing a lost write succeeded. Every write is an add-to-set or a
// remove-all-matching, so retrying a failed operation finishes the missing
// side without duplicating the first.
package relations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/odinbook/backend/internal/logging"
	"github.com/odinbook/backend/internal/models"
	"github.com/odinbook/backend/internal/repositories"
)

// RequestKind selects which side of a pending request delete-request removes.
type RequestKind string

const (
	// RequestSent cancels a request the caller sent.
	RequestSent RequestKind = "sent"
	// RequestReceived declines a request the caller received.
	RequestReceived RequestKind = "received"
)

// ParseRequestKind validates a path parameter.
func ParseRequestKind(s string) (RequestKind, error) {
	switch RequestKind(s) {
	case RequestSent, RequestReceived:
		return RequestKind(s), nil
	default:
		return "", fmt.Errorf("unknown request kind %q", s)
	}
}

// Protocol runs paired mutations against the repositories.
type Protocol struct {
	Users    repositories.UserRepository
	Posts    repositories.PostRepository
	Comments repositories.CommentRepository
}

// Friendship is the outcome of a user-to-user operation. Self is the caller.
type Friendship struct {
	Self  models.User
	Other models.User
}

// PostLike is the outcome of liking or unliking a post.
type PostLike struct {
	Self models.User
	Post models.Post
}

// CommentLike is the outcome of liking or unliking a comment.
type CommentLike struct {
	Self    models.User
	Comment models.Comment
}

// pair performs the ordered two-step mutation. other runs first; self runs
// only if other succeeded. It is the only place either step is issued.
func pair[T any](
	ctx context.Context,
	op, otherRef, selfRef string,
	other func(context.Context) (T, error),
	self func(context.Context) (models.User, error),
) (T, models.User, error) {
	ctx, span := logging.StartSpan(ctx, "relations."+op,
		slog.String("other", otherRef),
		slog.String("self", selfRef),
	)
	defer span.End()

	otherDoc, err := other(ctx)
	if err != nil {
		span.Fail(err)
		var zero T
		return zero, models.User{}, fmt.Errorf("%s: update %s: %w", op, otherRef, err)
	}

	selfDoc, err := self(ctx)
	if err != nil {
		cerr := &ConsistencyError{Op: op, Completed: otherRef, Pending: selfRef, Err: err}
		span.Fail(cerr)
		logging.FromContext(ctx).Error("paired mutation partially applied",
			slog.String("op", op),
			slog.String("completed", otherRef),
			slog.String("pending", selfRef),
			slog.Any("error", err),
		)
		return otherDoc, models.User{}, cerr
	}

	return otherDoc, selfDoc, nil
}

// resolve loads the caller and the user named username.
func (p *Protocol) resolve(ctx context.Context, selfID, username string) (models.User, models.User, error) {
	self, err := p.Users.FindByID(ctx, selfID)
	if err != nil {
		return models.User{}, models.User{}, fmt.Errorf("load caller: %w", err)
	}
	other, err := p.Users.FindByUsername(ctx, username)
	if err != nil {
		return models.User{}, models.User{}, fmt.Errorf("load %s: %w", username, err)
	}
	if self.ID == other.ID {
		return models.User{}, models.User{}, ErrSelfRelationship
	}
	return self, other, nil
}

// mirror applies otherOps to the other user and selfOps to the caller.
func (p *Protocol) mirror(ctx context.Context, op string, self, other models.User, otherOps, selfOps []models.SetOp) (Friendship, error) {
	otherDoc, selfDoc, err := pair(ctx, op, "user:"+other.ID, "user:"+self.ID,
		func(ctx context.Context) (models.User, error) {
			return p.Users.UpdateSets(ctx, other.ID, otherOps...)
		},
		func(ctx context.Context) (models.User, error) {
			return p.Users.UpdateSets(ctx, self.ID, selfOps...)
		},
	)
	if err != nil {
		return Friendship{}, err
	}
	return Friendship{Self: selfDoc, Other: otherDoc}, nil
}

// SendRequest records a friend request from the caller to username.
func (p *Protocol) SendRequest(ctx context.Context, selfID, username string) (Friendship, error) {
	self, other, err := p.resolve(ctx, selfID, username)
	if err != nil {
		return Friendship{}, err
	}
	if models.Friends.Contains(self, other.ID) {
		return Friendship{}, ErrAlreadyFriends
	}

	return p.mirror(ctx, "send-request", self, other,
		[]models.SetOp{models.Add(models.ReceivedRequests, self.ID)},
		[]models.SetOp{models.Add(models.SentRequests, other.ID)},
	)
}

// DeleteRequest cancels (RequestSent) or declines (RequestReceived) the
// pending request between the caller and username. Deleting a request that
// does not exist is a no-op.
func (p *Protocol) DeleteRequest(ctx context.Context, selfID, username string, kind RequestKind) (Friendship, error) {
	self, other, err := p.resolve(ctx, selfID, username)
	if err != nil {
		return Friendship{}, err
	}

	switch kind {
	case RequestSent:
		return p.mirror(ctx, "delete-request", self, other,
			[]models.SetOp{models.Remove(models.ReceivedRequests, self.ID)},
			[]models.SetOp{models.Remove(models.SentRequests, other.ID)},
		)
	case RequestReceived:
		return p.mirror(ctx, "delete-request", self, other,
			[]models.SetOp{models.Remove(models.SentRequests, self.ID)},
			[]models.SetOp{models.Remove(models.ReceivedRequests, other.ID)},
		)
	default:
		return Friendship{}, fmt.Errorf("unknown request kind %q", kind)
	}
}

// AcceptRequest turns the request username sent the caller into a
// friendship. Each side gains the friend and drops both pending directions in
// one write. Accepting again after success is a no-op.
func (p *Protocol) AcceptRequest(ctx context.Context, selfID, username string) (Friendship, error) {
	self, other, err := p.resolve(ctx, selfID, username)
	if err != nil {
		return Friendship{}, err
	}
	if !models.ReceivedRequests.Contains(self, other.ID) && !models.Friends.Contains(self, other.ID) {
		return Friendship{}, ErrNoPendingRequest
	}

	return p.mirror(ctx, "add-friend", self, other, befriend(self.ID), befriend(other.ID))
}

func befriend(peer string) []models.SetOp {
	return []models.SetOp{
		models.Add(models.Friends, peer),
		models.Remove(models.SentRequests, peer),
		models.Remove(models.ReceivedRequests, peer),
	}
}

// RemoveFriend ends the friendship between the caller and username.
func (p *Protocol) RemoveFriend(ctx context.Context, selfID, username string) (Friendship, error) {
	self, other, err := p.resolve(ctx, selfID, username)
	if err != nil {
		return Friendship{}, err
	}

	return p.mirror(ctx, "delete-friend", self, other,
		[]models.SetOp{models.Remove(models.Friends, self.ID)},
		[]models.SetOp{models.Remove(models.Friends, other.ID)},
	)
}

// LikePost adds the caller to the post's likes and the post to the caller's
// likedPosts.
func (p *Protocol) LikePost(ctx context.Context, selfID, postID string) (PostLike, error) {
	return p.postLike(ctx, "like-post", models.AddToSet, selfID, postID)
}

// UnlikePost reverses LikePost. Unliking a post that was never liked is a
// no-op.
func (p *Protocol) UnlikePost(ctx context.Context, selfID, postID string) (PostLike, error) {
	return p.postLike(ctx, "unlike-post", models.Pull, selfID, postID)
}

func (p *Protocol) postLike(ctx context.Context, op string, action models.SetAction, selfID, postID string) (PostLike, error) {
	if _, err := p.Users.FindByID(ctx, selfID); err != nil {
		return PostLike{}, fmt.Errorf("load caller: %w", err)
	}

	post, self, err := pair(ctx, op, "post:"+postID, "user:"+selfID,
		func(ctx context.Context) (models.Post, error) {
			return p.Posts.UpdateLikes(ctx, postID, action, selfID)
		},
		func(ctx context.Context) (models.User, error) {
			return p.Users.UpdateSets(ctx, selfID, models.SetOp{Action: action, Field: models.LikedPosts, Value: postID})
		},
	)
	if err != nil {
		return PostLike{}, err
	}
	return PostLike{Self: self, Post: post}, nil
}

// LikeComment adds the caller to the comment's likes and the comment to the
// caller's likedComments. The comment must belong to postID.
func (p *Protocol) LikeComment(ctx context.Context, selfID, postID, commentID string) (CommentLike, error) {
	return p.commentLike(ctx, "like-comment", models.AddToSet, selfID, postID, commentID)
}

// UnlikeComment reverses LikeComment.
func (p *Protocol) UnlikeComment(ctx context.Context, selfID, postID, commentID string) (CommentLike, error) {
	return p.commentLike(ctx, "unlike-comment", models.Pull, selfID, postID, commentID)
}

func (p *Protocol) commentLike(ctx context.Context, op string, action models.SetAction, selfID, postID, commentID string) (CommentLike, error) {
	if _, err := p.Users.FindByID(ctx, selfID); err != nil {
		return CommentLike{}, fmt.Errorf("load caller: %w", err)
	}
	existing, err := p.Comments.FindByID(ctx, commentID)
	if err != nil {
		return CommentLike{}, fmt.Errorf("load comment: %w", err)
	}
	if existing.Post != postID {
		return CommentLike{}, fmt.Errorf("comment %s on post %s: %w", commentID, postID, repositories.ErrNotFound)
	}

	comment, self, err := pair(ctx, op, "comment:"+commentID, "user:"+selfID,
		func(ctx context.Context) (models.Comment, error) {
			return p.Comments.UpdateLikes(ctx, commentID, action, selfID)
		},
		func(ctx context.Context) (models.User, error) {
			return p.Users.UpdateSets(ctx, selfID, models.SetOp{Action: action, Field: models.LikedComments, Value: commentID})
		},
	)
	if err != nil {
		return CommentLike{}, err
	}
	return CommentLike{Self: self, Comment: comment}, nil
}

// IsConsistencyError reports whether err came from a half-applied operation.
func IsConsistencyError(err error) bool {
	var cerr *ConsistencyError
	return errors.As(err, &cerr)
}
