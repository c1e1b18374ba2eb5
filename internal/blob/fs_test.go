package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func TestFSStore_PutGetDelete(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	payload := []byte("hello blob")
	if err := store.Put(ctx, "uploads/abc123", bytes.NewReader(payload), int64(len(payload))); err != nil {
		t.Fatalf("put: %v", err)
	}

	body, err := store.Get(ctx, "uploads/abc123")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got, err := io.ReadAll(body)
	body.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("round trip mismatch: %q", got)
	}

	if err := store.Delete(ctx, "uploads/abc123"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "uploads/abc123"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, "uploads/abc123"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestFSStore_GetMissingKey(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if _, err := store.Get(context.Background(), "uploads/never-written"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFSStore_RejectsTraversalKeys(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	for _, key := range []string{"../escape", "uploads/../../etc/passwd"} {
		if err := store.Put(ctx, key, bytes.NewReader([]byte("x")), 1); err == nil {
			t.Fatalf("expected rejection for key %q", key)
		}
	}
}

func TestFSStore_PresignUnsupported(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if _, err := store.Presign(context.Background(), "uploads/abc", time.Minute); !errors.Is(err, ErrPresignUnsupported) {
		t.Fatalf("expected ErrPresignUnsupported, got %v", err)
	}
}
