package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/edustudy/edustudy-agent/internal/adapters/storage/memory"
	"github.com/edustudy/edustudy-agent/internal/domain"
)

func TestCreateAppendGet(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSessionStore()

	id, err := store.Create(ctx, "owner-1", "Chat - 1/2/2026")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	msg := domain.NewUserText("hi", time.Now())
	if err := store.Append(ctx, id, msg, domain.AppendOptions{}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	sess, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if sess.Title != "Chat - 1/2/2026" {
		t.Fatalf("unexpected title %q", sess.Title)
	}
	if sess.MessageCount != 1 || len(sess.Messages) != 1 {
		t.Fatalf("expected 1 message, got count=%d len=%d", sess.MessageCount, len(sess.Messages))
	}
	if sess.ConversationID != "" {
		t.Fatalf("conversation id must start unset")
	}
	if !sess.UpdatedAt.After(sess.CreatedAt) && !sess.UpdatedAt.Equal(sess.CreatedAt) {
		t.Fatalf("updated_at must move forward on append")
	}
}

func TestAppendConditionalUpdates(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSessionStore()

	id, _ := store.Create(ctx, "owner-1", "placeholder")

	err := store.Append(ctx, id, domain.NewUserText("first", time.Now()), domain.AppendOptions{
		ConversationID: "conv-1",
	})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	sess, _ := store.Get(ctx, id)
	if sess.ConversationID != "conv-1" {
		t.Fatalf("expected conversation id update, got %q", sess.ConversationID)
	}
	if sess.Title != "placeholder" {
		t.Fatalf("title must be untouched without an option, got %q", sess.Title)
	}

	err = store.Append(ctx, id, domain.NewAgentText("reply", time.Now()), domain.AppendOptions{
		ConversationID: "conv-2",
		Title:          "first",
	})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	sess, _ = store.Get(ctx, id)
	if sess.ConversationID != "conv-2" || sess.Title != "first" {
		t.Fatalf("expected both fields updated, got conv=%q title=%q", sess.ConversationID, sess.Title)
	}
}

func TestAppendPreservesCallOrder(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSessionStore()

	id, _ := store.Create(ctx, "owner-1", "t")
	contents := []string{"a", "b", "c", "d"}
	for _, c := range contents {
		if err := store.Append(ctx, id, domain.NewAgentText(c, time.Now()), domain.AppendOptions{}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	sess, _ := store.Get(ctx, id)
	for i, c := range contents {
		if sess.Messages[i].Content != c {
			t.Fatalf("message %d: want %q, got %q", i, c, sess.Messages[i].Content)
		}
	}
}

func TestListByOwnerRecencyOrder(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSessionStore()

	first, _ := store.Create(ctx, "owner-1", "first")
	second, _ := store.Create(ctx, "owner-1", "second")
	if _, err := store.Create(ctx, "owner-2", "other"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Touch the older session so it becomes the most recent.
	time.Sleep(time.Millisecond)
	if err := store.Append(ctx, first, domain.NewUserText("bump", time.Now()), domain.AppendOptions{}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	sessions, err := store.ListByOwner(ctx, "owner-1", 0)
	if err != nil {
		t.Fatalf("ListByOwner failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions for owner-1, got %d", len(sessions))
	}
	if sessions[0].ID != first || sessions[1].ID != second {
		t.Fatalf("expected most-recently-updated first, got %v then %v", sessions[0].ID, sessions[1].ID)
	}

	limited, _ := store.ListByOwner(ctx, "owner-1", 1)
	if len(limited) != 1 {
		t.Fatalf("limit must apply, got %d", len(limited))
	}
}

func TestGetCopiesMessageLog(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSessionStore()

	id, _ := store.Create(ctx, "owner-1", "t")
	_ = store.Append(ctx, id, domain.NewUserText("one", time.Now()), domain.AppendOptions{})

	before, _ := store.Get(ctx, id)
	_ = store.Append(ctx, id, domain.NewAgentText("two", time.Now()), domain.AppendOptions{})

	if len(before.Messages) != 1 {
		t.Fatalf("earlier snapshot must not grow, got %d messages", len(before.Messages))
	}
}

func TestNotFound(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSessionStore()

	if _, err := store.Get(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get: expected ErrNotFound, got %v", err)
	}
	err := store.Append(ctx, "nope", domain.NewUserText("hi", time.Now()), domain.AppendOptions{})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Append: expected ErrNotFound, got %v", err)
	}
	if err := store.Delete(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Delete: expected ErrNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSessionStore()

	id, _ := store.Create(ctx, "owner-1", "t")
	if err := store.Delete(ctx, id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, id); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
