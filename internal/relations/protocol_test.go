package relations

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/odinbook/backend/internal/models"
	"github.com/odinbook/backend/internal/repositories"
)

// flakyUsers fails UpdateSets for failID and records the order of set
// updates.
type flakyUsers struct {
	repositories.UserRepository
	failID string
	calls  []string
}

var errStoreDown = errors.New("store unavailable")

func (f *flakyUsers) UpdateSets(ctx context.Context, id string, ops ...models.SetOp) (models.User, error) {
	f.calls = append(f.calls, id)
	if id == f.failID {
		return models.User{}, errStoreDown
	}
	return f.UserRepository.UpdateSets(ctx, id, ops...)
}

type fixture struct {
	protocol *Protocol
	users    *flakyUsers
	store    *repositories.MemoryStore
	alice    models.User
	bob      models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := repositories.NewMemoryStore()
	users := &flakyUsers{UserRepository: store.Users()}
	f := &fixture{
		protocol: &Protocol{Users: users, Posts: store.Posts(), Comments: store.Comments()},
		users:    users,
		store:    store,
	}

	ctx := context.Background()
	f.alice = models.User{ID: "u1", Username: "alice", Email: "alice@example.com"}
	f.bob = models.User{ID: "u2", Username: "bob", Email: "bob@example.com"}
	for _, u := range []models.User{f.alice, f.bob} {
		if err := store.Users().Create(ctx, u); err != nil {
			t.Fatalf("create %s: %v", u.Username, err)
		}
	}
	return f
}

func (f *fixture) user(t *testing.T, id string) models.User {
	t.Helper()
	u, err := f.store.Users().FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("find %s: %v", id, err)
	}
	return u
}

func assertFriendsSymmetric(t *testing.T, a, b models.User) {
	t.Helper()
	if models.Friends.Contains(a, b.ID) != models.Friends.Contains(b, a.ID) {
		t.Fatalf("friendship asymmetric: %s=%v %s=%v", a.Username, a.Friends, b.Username, b.Friends)
	}
}

func TestFriendshipLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.protocol.SendRequest(ctx, f.alice.ID, "bob")
	if err != nil {
		t.Fatalf("send request: %v", err)
	}
	if !slices.Equal(res.Self.Requests.Sent, []string{"u2"}) || !slices.Equal(res.Other.Requests.Received, []string{"u1"}) {
		t.Fatalf("unexpected request state self=%+v other=%+v", res.Self.Requests, res.Other.Requests)
	}
	if f.users.calls[0] != f.bob.ID || f.users.calls[1] != f.alice.ID {
		t.Fatalf("expected other side written first, got %v", f.users.calls)
	}

	res, err = f.protocol.AcceptRequest(ctx, f.bob.ID, "alice")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	alice, bob := f.user(t, f.alice.ID), f.user(t, f.bob.ID)
	if !slices.Equal(alice.Friends, []string{"u2"}) || !slices.Equal(bob.Friends, []string{"u1"}) {
		t.Fatalf("expected mutual friendship, alice=%v bob=%v", alice.Friends, bob.Friends)
	}
	if len(alice.Requests.Sent) != 0 || len(bob.Requests.Received) != 0 {
		t.Fatalf("expected pending requests cleared, alice=%+v bob=%+v", alice.Requests, bob.Requests)
	}
	assertFriendsSymmetric(t, alice, bob)

	if _, err := f.protocol.SendRequest(ctx, f.alice.ID, "bob"); !errors.Is(err, ErrAlreadyFriends) {
		t.Fatalf("expected ErrAlreadyFriends, got %v", err)
	}

	if _, err := f.protocol.RemoveFriend(ctx, f.alice.ID, "bob"); err != nil {
		t.Fatalf("remove friend: %v", err)
	}
	alice, bob = f.user(t, f.alice.ID), f.user(t, f.bob.ID)
	if len(alice.Friends) != 0 || len(bob.Friends) != 0 {
		t.Fatalf("expected friendship removed, alice=%v bob=%v", alice.Friends, bob.Friends)
	}
	assertFriendsSymmetric(t, alice, bob)
}

func TestAcceptClearsMutualRequests(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.protocol.SendRequest(ctx, f.alice.ID, "bob"); err != nil {
		t.Fatalf("alice -> bob: %v", err)
	}
	if _, err := f.protocol.SendRequest(ctx, f.bob.ID, "alice"); err != nil {
		t.Fatalf("bob -> alice: %v", err)
	}
	if _, err := f.protocol.AcceptRequest(ctx, f.alice.ID, "bob"); err != nil {
		t.Fatalf("accept: %v", err)
	}

	for _, u := range []models.User{f.user(t, f.alice.ID), f.user(t, f.bob.ID)} {
		if len(u.Requests.Sent) != 0 || len(u.Requests.Received) != 0 {
			t.Fatalf("%s still has pending requests: %+v", u.Username, u.Requests)
		}
		if len(u.Friends) != 1 {
			t.Fatalf("%s expected one friend, got %v", u.Username, u.Friends)
		}
	}
}

func TestAcceptWithoutRequestIsRejected(t *testing.T) {
	f := newFixture(t)

	if _, err := f.protocol.AcceptRequest(context.Background(), f.bob.ID, "alice"); !errors.Is(err, ErrNoPendingRequest) {
		t.Fatalf("expected ErrNoPendingRequest, got %v", err)
	}
	if len(f.users.calls) != 0 {
		t.Fatalf("expected no writes, got %v", f.users.calls)
	}
}

func TestSelfTargetIsRejected(t *testing.T) {
	f := newFixture(t)
	if _, err := f.protocol.SendRequest(context.Background(), f.alice.ID, "alice"); !errors.Is(err, ErrSelfRelationship) {
		t.Fatalf("expected ErrSelfRelationship, got %v", err)
	}
}

func TestUnknownTargetIsNotFound(t *testing.T) {
	f := newFixture(t)
	if _, err := f.protocol.SendRequest(context.Background(), f.alice.ID, "nobody"); !errors.Is(err, repositories.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteRequestBothDirections(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name  string
		actor func(f *fixture) (string, string)
		kind  RequestKind
	}{
		{name: "senderCancels", actor: func(f *fixture) (string, string) { return f.alice.ID, "bob" }, kind: RequestSent},
		{name: "recipientDeclines", actor: func(f *fixture) (string, string) { return f.bob.ID, "alice" }, kind: RequestReceived},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			if _, err := f.protocol.SendRequest(ctx, f.alice.ID, "bob"); err != nil {
				t.Fatalf("send: %v", err)
			}

			selfID, target := tc.actor(f)
			for i := 0; i < 2; i++ {
				if _, err := f.protocol.DeleteRequest(ctx, selfID, target, tc.kind); err != nil {
					t.Fatalf("delete attempt %d: %v", i, err)
				}
			}

			alice, bob := f.user(t, f.alice.ID), f.user(t, f.bob.ID)
			if len(alice.Requests.Sent) != 0 || len(bob.Requests.Received) != 0 {
				t.Fatalf("expected request removed, alice=%+v bob=%+v", alice.Requests, bob.Requests)
			}
		})
	}
}

func TestPartialFailureIsReportedAndRetryable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.users.failID = f.alice.ID
	_, err := f.protocol.SendRequest(ctx, f.alice.ID, "bob")

	var cerr *ConsistencyError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConsistencyError, got %v", err)
	}
	if cerr.Completed != "user:u2" || cerr.Pending != "user:u1" || !errors.Is(err, errStoreDown) {
		t.Fatalf("unexpected consistency error %+v", cerr)
	}
	if !IsConsistencyError(err) {
		t.Fatal("expected IsConsistencyError to match")
	}

	bob := f.user(t, f.bob.ID)
	if !slices.Equal(bob.Requests.Received, []string{"u1"}) {
		t.Fatalf("expected other side already written, got %v", bob.Requests.Received)
	}

	f.users.failID = ""
	if _, err := f.protocol.SendRequest(ctx, f.alice.ID, "bob"); err != nil {
		t.Fatalf("retry: %v", err)
	}
	alice, bob := f.user(t, f.alice.ID), f.user(t, f.bob.ID)
	if !slices.Equal(alice.Requests.Sent, []string{"u2"}) || !slices.Equal(bob.Requests.Received, []string{"u1"}) {
		t.Fatalf("expected retry to complete without duplicates, alice=%+v bob=%+v", alice.Requests, bob.Requests)
	}
}

func TestFailureOnOtherSideWritesNothing(t *testing.T) {
	f := newFixture(t)
	f.users.failID = f.bob.ID

	_, err := f.protocol.SendRequest(context.Background(), f.alice.ID, "bob")
	if err == nil || IsConsistencyError(err) {
		t.Fatalf("expected plain store error, got %v", err)
	}
	if alice := f.user(t, f.alice.ID); len(alice.Requests.Sent) != 0 {
		t.Fatalf("self side must not be written, got %v", alice.Requests.Sent)
	}
}

func TestPostLikesAreIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	post := models.Post{ID: "p1", Author: f.alice.ID, Date: time.Now().UTC(), Content: "hello"}
	if err := f.store.Posts().Create(ctx, post); err != nil {
		t.Fatalf("create post: %v", err)
	}

	for i := 0; i < 2; i++ {
		res, err := f.protocol.LikePost(ctx, f.bob.ID, post.ID)
		if err != nil {
			t.Fatalf("like %d: %v", i, err)
		}
		if !slices.Equal(res.Post.Likes, []string{"u2"}) || !slices.Equal(res.Self.LikedPosts, []string{"p1"}) {
			t.Fatalf("like %d: post=%v self=%v", i, res.Post.Likes, res.Self.LikedPosts)
		}
	}

	res, err := f.protocol.UnlikePost(ctx, f.bob.ID, post.ID)
	if err != nil {
		t.Fatalf("unlike: %v", err)
	}
	if len(res.Post.Likes) != 0 || len(res.Self.LikedPosts) != 0 {
		t.Fatalf("expected both sets empty, post=%v self=%v", res.Post.Likes, res.Self.LikedPosts)
	}

	if _, err := f.protocol.UnlikePost(ctx, f.alice.ID, post.ID); err != nil {
		t.Fatalf("unlike without prior like should be a no-op, got %v", err)
	}

	if _, err := f.protocol.LikePost(ctx, f.bob.ID, "missing"); !errors.Is(err, repositories.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing post, got %v", err)
	}
	if bob := f.user(t, f.bob.ID); len(bob.LikedPosts) != 0 {
		t.Fatalf("missing post must not be recorded on the user, got %v", bob.LikedPosts)
	}
}

func TestCommentLikesRequireMatchingPost(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	comment := models.Comment{ID: "c1", Post: "p1", Author: f.alice.ID, Date: time.Now().UTC(), Content: "hi"}
	if err := f.store.Comments().Create(ctx, comment); err != nil {
		t.Fatalf("create comment: %v", err)
	}

	if _, err := f.protocol.LikeComment(ctx, f.bob.ID, "p2", comment.ID); !errors.Is(err, repositories.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for mismatched post, got %v", err)
	}

	res, err := f.protocol.LikeComment(ctx, f.bob.ID, "p1", comment.ID)
	if err != nil {
		t.Fatalf("like comment: %v", err)
	}
	if !slices.Equal(res.Comment.Likes, []string{"u2"}) || !slices.Equal(res.Self.LikedComments, []string{"c1"}) {
		t.Fatalf("unexpected like state comment=%v self=%v", res.Comment.Likes, res.Self.LikedComments)
	}

	res, err = f.protocol.UnlikeComment(ctx, f.bob.ID, "p1", comment.ID)
	if err != nil {
		t.Fatalf("unlike comment: %v", err)
	}
	if len(res.Comment.Likes) != 0 || len(res.Self.LikedComments) != 0 {
		t.Fatalf("expected like removed, comment=%v self=%v", res.Comment.Likes, res.Self.LikedComments)
	}
}

func TestParseRequestKind(t *testing.T) {
	if kind, err := ParseRequestKind("sent"); err != nil || kind != RequestSent {
		t.Fatalf("unexpected %v %v", kind, err)
	}
	if _, err := ParseRequestKind("pending"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
