package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"roomsync/internal/models"
	"roomsync/internal/store"
	"roomsync/internal/store/memory"
)

func TestWriterCoalescesAndFlushes(t *testing.T) {
	mem := memory.New()
	ctx := context.Background()
	if err := mem.Create(ctx, &models.RoomRecord{RoomID: "abc123", Language: "python"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	w := store.NewWriter(mem, zap.NewNop(), time.Hour)

	for _, content := range []string{"a", "ab", "abc"} {
		doc := content
		w.Enqueue("abc123", store.SavePatch{Document: &doc})
	}
	lang := "java"
	w.Enqueue("abc123", store.SavePatch{Language: &lang})

	// nothing hits the store until a flush
	rec, _ := mem.Load(ctx, "abc123")
	if rec.Document != "" {
		t.Fatalf("expected no write before flush, got %q", rec.Document)
	}

	w.Flush()

	rec, _ = mem.Load(ctx, "abc123")
	if rec.Document != "abc" {
		t.Fatalf("expected last enqueued document to win, got %q", rec.Document)
	}
	if rec.Language != "java" {
		t.Fatalf("expected merged language patch, got %q", rec.Language)
	}
}

func TestWriterStopFlushesPending(t *testing.T) {
	mem := memory.New()
	ctx := context.Background()
	_ = mem.Create(ctx, &models.RoomRecord{RoomID: "abc123"})

	w := store.NewWriter(mem, zap.NewNop(), time.Hour)
	w.Start()

	doc := "print(1)"
	w.Enqueue("abc123", store.SavePatch{Document: &doc})
	w.Stop()

	rec, _ := mem.Load(ctx, "abc123")
	if rec.Document != "print(1)" {
		t.Fatalf("expected stop to flush pending writes, got %q", rec.Document)
	}
}

// flakyStore fails saves until told otherwise.
type flakyStore struct {
	store.RoomStore
	mu   sync.Mutex
	fail bool
}

func (f *flakyStore) setFail(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

func (f *flakyStore) Save(ctx context.Context, roomID string, patch store.SavePatch) error {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	if fail {
		return errors.New("store unavailable")
	}
	return f.RoomStore.Save(ctx, roomID, patch)
}

func TestWriterRequeuesFailedSaves(t *testing.T) {
	mem := memory.New()
	ctx := context.Background()
	_ = mem.Create(ctx, &models.RoomRecord{RoomID: "abc123"})

	flaky := &flakyStore{RoomStore: mem, fail: true}
	w := store.NewWriter(flaky, zap.NewNop(), time.Hour)

	doc := "print(1)"
	w.Enqueue("abc123", store.SavePatch{Document: &doc})
	w.Flush()

	rec, _ := mem.Load(ctx, "abc123")
	if rec.Document != "" {
		t.Fatalf("failed save should not reach the store, got %q", rec.Document)
	}

	// the dirty entry survives the failure and lands on the next flush
	flaky.setFail(false)
	w.Flush()

	rec, _ = mem.Load(ctx, "abc123")
	if rec.Document != "print(1)" {
		t.Fatalf("expected requeued write to land, got %q", rec.Document)
	}
}

// countingStore counts Save attempts so tests can observe retries.
type countingStore struct {
	store.RoomStore
	mu    sync.Mutex
	saves int
}

func (c *countingStore) Save(ctx context.Context, roomID string, patch store.SavePatch) error {
	c.mu.Lock()
	c.saves++
	c.mu.Unlock()
	return c.RoomStore.Save(ctx, roomID, patch)
}

func (c *countingStore) saveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saves
}

func TestWriterDropsSavesForUnknownRooms(t *testing.T) {
	cs := &countingStore{RoomStore: memory.New()}
	w := store.NewWriter(cs, zap.NewNop(), time.Hour)

	doc := "orphan"
	w.Enqueue("never-created", store.SavePatch{Document: &doc})
	w.Flush()
	w.Flush()

	// a room that does not exist cannot appear by retrying; the patch must be
	// dropped after the first failure instead of living in the dirty map
	if got := cs.saveCount(); got != 1 {
		t.Fatalf("expected exactly one save attempt for an unknown room, got %d", got)
	}
}

func TestWriterNewerPatchWinsOverRequeue(t *testing.T) {
	mem := memory.New()
	ctx := context.Background()
	_ = mem.Create(ctx, &models.RoomRecord{RoomID: "abc123"})

	flaky := &flakyStore{RoomStore: mem, fail: true}
	w := store.NewWriter(flaky, zap.NewNop(), time.Hour)

	oldDoc := "old"
	w.Enqueue("abc123", store.SavePatch{Document: &oldDoc})
	w.Flush()

	newDoc := "new"
	w.Enqueue("abc123", store.SavePatch{Document: &newDoc})

	flaky.setFail(false)
	w.Flush()

	rec, _ := mem.Load(ctx, "abc123")
	if rec.Document != "new" {
		t.Fatalf("newer enqueued document must win over a requeued one, got %q", rec.Document)
	}
}
