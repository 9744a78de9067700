package repositories

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/odinbook/backend/internal/models"
)

func TestMemoryUserRepository_ConflictsAndProfileUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	repo := store.Users()

	alice := createTestUser(t, repo, "alice")
	bob := createTestUser(t, repo, "bob")

	dup := newTestUser("alice")
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate username, got %v", err)
	}

	if _, err := repo.UpdateSets(ctx, alice.ID, models.Add(models.Friends, bob.ID)); err != nil {
		t.Fatalf("update sets: %v", err)
	}

	renamed := alice
	renamed.Username = "bob"
	if err := repo.Update(ctx, renamed); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict renaming onto bob, got %v", err)
	}

	renamed.Username = "alicia"
	renamed.Friends = nil
	if err := repo.Update(ctx, renamed); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := repo.FindByUsername(ctx, "alicia")
	if err != nil {
		t.Fatalf("find renamed: %v", err)
	}
	if !slices.Equal(got.Friends, []string{bob.ID}) {
		t.Fatalf("expected friends preserved, got %v", got.Friends)
	}
}

func TestMemoryUserRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStore().Users()
	alice := createTestUser(t, repo, "alice")

	updated, err := repo.UpdateSets(ctx, alice.ID, models.Add(models.LikedPosts, "p1"))
	if err != nil {
		t.Fatalf("update sets: %v", err)
	}
	updated.LikedPosts[0] = "tampered"

	fetched, err := repo.FindByID(ctx, alice.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if fetched.LikedPosts[0] != "p1" {
		t.Fatalf("stored set was aliased: %v", fetched.LikedPosts)
	}
}

func TestMemoryUserRepository_SearchOrdering(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStore().Users()

	strong := newTestUser("hiker")
	strong.Bio = "hiker and climber"
	weak := newTestUser("reader")
	weak.Bio = "climber"
	for _, u := range []models.User{weak, strong} {
		if err := repo.Create(ctx, u); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	createTestUser(t, repo, "unrelated")

	results, err := repo.Search(ctx, "hiker climber", ListOptions{Sort: SortScore})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 || results[0].ID != strong.ID {
		t.Fatalf("expected best match first, got %+v", results)
	}
	if results[0].Score <= results[1].Score {
		t.Fatalf("expected descending scores, got %v then %v", results[0].Score, results[1].Score)
	}

	results, err = repo.Search(ctx, "hiker climber", ListOptions{Sort: SortScore, Order: Descending})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if results[0].ID != weak.ID {
		t.Fatalf("expected weakest match first when inverted, got %+v", results)
	}
}

func TestMemoryPostRepository_FilterSortAndLikes(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStore().Posts()
	now := time.Now().UTC()

	older := models.Post{ID: newID(t), Author: "alice", Date: now, Content: "older"}
	newer := models.Post{ID: newID(t), Author: "bob", Date: now.Add(time.Hour), Content: "newer"}
	for _, p := range []models.Post{older, newer} {
		if err := repo.Create(ctx, p); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	posts, err := repo.List(ctx, PostFilter{}, ListOptions{Sort: SortDate, Order: Descending})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if posts[0].ID != newer.ID {
		t.Fatalf("expected newer first, got %+v", posts)
	}

	posts, err = repo.List(ctx, PostFilter{Author: "alice"}, ListOptions{})
	if err != nil {
		t.Fatalf("list by author: %v", err)
	}
	if len(posts) != 1 || posts[0].ID != older.ID {
		t.Fatalf("expected alice's post only, got %+v", posts)
	}

	for i := 0; i < 3; i++ {
		if _, err := repo.UpdateLikes(ctx, older.ID, models.AddToSet, "carol"); err != nil {
			t.Fatalf("like: %v", err)
		}
	}
	liked, err := repo.FindByID(ctx, older.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !slices.Equal(liked.Likes, []string{"carol"}) {
		t.Fatalf("expected one like after repeated adds, got %v", liked.Likes)
	}

	if _, err := repo.UpdateLikes(ctx, "missing", models.AddToSet, "carol"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.UpdateLikes(ctx, older.ID, models.AddToSet, ""); !errors.Is(err, ErrInvalidUpdate) {
		t.Fatalf("expected ErrInvalidUpdate, got %v", err)
	}
}

func TestMemoryCommentRepository_ListByPost(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStore().Comments()

	first := models.Comment{ID: newID(t), Post: "p1", Author: "alice", Date: time.Now().UTC(), Content: "one"}
	second := models.Comment{ID: newID(t), Post: "p1", Author: "bob", Date: time.Now().UTC(), Content: "two"}
	elsewhere := models.Comment{ID: newID(t), Post: "p2", Author: "bob", Date: time.Now().UTC(), Content: "three"}
	for _, c := range []models.Comment{first, second, elsewhere} {
		if err := repo.Create(ctx, c); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	comments, err := repo.List(ctx, CommentFilter{Post: "p1"}, ListOptions{Order: Descending})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(comments) != 2 || comments[0].ID != second.ID {
		t.Fatalf("expected p1 comments newest id first, got %+v", comments)
	}

	if err := repo.Delete(ctx, first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.Delete(ctx, first.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}
