package state

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestSQLiteStore(t *testing.T, limit int) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sessions.db")
	store, err := NewSQLiteStore(context.Background(), SQLiteConfig{Path: path}, limit)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStoreAppendAndHistory(t *testing.T) {
	t.Parallel()

	store := newTestSQLiteStore(t, 0)
	ctx := context.Background()

	if err := store.Append(ctx, "u1", UserMessage("hola"), AgentMessage("buenas")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := store.Append(ctx, "u2", UserMessage("otro usuario")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	got, err := store.History(ctx, "u1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	if got[0].Role != RoleUser || got[1].Role != RoleAgent || got[1].Seq != 2 {
		t.Fatalf("unexpected log: %#v", got)
	}
}

func TestSQLiteStoreRetention(t *testing.T) {
	t.Parallel()

	store := newTestSQLiteStore(t, 2)
	ctx := context.Background()
	for _, text := range []string{"a", "b", "c", "d"} {
		if err := store.Append(ctx, "u1", UserMessage(text)); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	got, err := store.History(ctx, "u1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(got) != 2 || got[0].Text != "c" || got[1].Text != "d" {
		t.Fatalf("unexpected retained log: %#v", got)
	}
}

func TestSQLiteStoreCursor(t *testing.T) {
	t.Parallel()

	store := newTestSQLiteStore(t, 0)
	ctx := context.Background()

	c, err := store.Cursor(ctx, "u1")
	if err != nil {
		t.Fatalf("Cursor() error = %v", err)
	}
	if c.Page != 1 || c.PageSize != DefaultPageSize {
		t.Fatalf("unexpected initial cursor: %#v", c)
	}

	if err := store.SaveCursor(ctx, "u1", Cursor{LastQuery: "camisa", Page: 2, PageSize: 5}); err != nil {
		t.Fatalf("SaveCursor() error = %v", err)
	}
	if err := store.SaveCursor(ctx, "u1", Cursor{LastQuery: "camisa", Page: 3, PageSize: 5}); err != nil {
		t.Fatalf("SaveCursor() error = %v", err)
	}
	c, err = store.Cursor(ctx, "u1")
	if err != nil {
		t.Fatalf("Cursor() error = %v", err)
	}
	if c.Page != 3 || c.LastQuery != "camisa" {
		t.Fatalf("unexpected cursor: %#v", c)
	}
}
