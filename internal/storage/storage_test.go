package storage

import (
	"context"
	"path/filepath"
	"testing"

	logx "ticketwatch/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{}, logx.Nop())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if st != nil {
		t.Fatal("disabled storage should return nil store")
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func roundTrip(t *testing.T, st Store) {
	t.Helper()
	ctx := context.Background()

	for _, id := range []int64{100, 200, 100, 300} {
		if err := st.AddChat(ctx, id); err != nil {
			t.Fatalf("AddChat(%d): %v", id, err)
		}
	}
	if err := st.RemoveChat(ctx, 200); err != nil {
		t.Fatalf("RemoveChat: %v", err)
	}
	// Removing an absent chat is a no-op.
	if err := st.RemoveChat(ctx, 999); err != nil {
		t.Fatalf("RemoveChat absent: %v", err)
	}

	got, err := st.ListChats(ctx)
	if err != nil {
		t.Fatalf("ListChats: %v", err)
	}
	want := []int64{100, 300}
	if len(got) != len(want) {
		t.Fatalf("chats = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("chats = %v, want %v", got, want)
		}
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "chats.json")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("open file store: %v", err)
	}
	roundTrip(t, st)
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Reopen and verify persistence.
	st2, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen file store: %v", err)
	}
	got, err := st2.ListChats(context.Background())
	if err != nil {
		t.Fatalf("ListChats after reopen: %v", err)
	}
	if len(got) != 2 || got[0] != 100 || got[1] != 300 {
		t.Fatalf("persisted chats = %v", got)
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "chats.db")
	st, err := Open(Config{Driver: "sqlite", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	defer st.Close()
	roundTrip(t, st)
}
