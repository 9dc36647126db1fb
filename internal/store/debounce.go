package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Writer coalesces rapid document saves per room and flushes them on an
// interval. A failed flush is logged, never retried synchronously; the dirty
// entry stays queued for the next tick so the registry remains authoritative
// until a write succeeds.
type Writer struct {
	store    RoomStore
	log      *zap.Logger
	interval time.Duration

	mu    sync.Mutex
	dirty map[string]SavePatch

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func NewWriter(st RoomStore, log *zap.Logger, interval time.Duration) *Writer {
	return &Writer{
		store:    st,
		log:      log,
		interval: interval,
		dirty:    make(map[string]SavePatch),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (w *Writer) Start() {
	go w.run()
}

// Stop flushes any pending writes and halts the loop.
func (w *Writer) Stop() {
	w.once.Do(func() { close(w.stop) })
	<-w.done
}

// Enqueue merges the patch into the pending write for the room. Later fields
// win, matching the last-delivered-wins snapshot model.
func (w *Writer) Enqueue(roomID string, patch SavePatch) {
	w.mu.Lock()
	defer w.mu.Unlock()
	pending := w.dirty[roomID]
	if patch.Document != nil {
		pending.Document = patch.Document
	}
	if patch.Language != nil {
		pending.Language = patch.Language
	}
	w.dirty[roomID] = pending
}

func (w *Writer) run() {
	defer close(w.done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.stop:
			w.Flush()
			return
		case <-ticker.C:
			w.Flush()
		}
	}
}

// Flush writes all pending patches. Exported so tests and shutdown can force
// a write without waiting out the interval.
func (w *Writer) Flush() {
	w.mu.Lock()
	batch := w.dirty
	w.dirty = make(map[string]SavePatch)
	w.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for roomID, patch := range batch {
		if err := w.store.Save(ctx, roomID, patch); err != nil {
			// a missing room cannot be repaired by retrying; only transient
			// failures are requeued
			if errors.Is(err, ErrRoomNotFound) {
				w.log.Warn("dropping save for unknown room", zap.String("roomId", roomID))
				continue
			}
			w.log.Warn("debounced save failed",
				zap.String("roomId", roomID), zap.Error(err))
			w.requeue(roomID, patch)
		}
	}
}

// requeue restores a failed patch without clobbering newer pending fields.
func (w *Writer) requeue(roomID string, patch SavePatch) {
	w.mu.Lock()
	defer w.mu.Unlock()
	pending, ok := w.dirty[roomID]
	if !ok {
		w.dirty[roomID] = patch
		return
	}
	if pending.Document == nil {
		pending.Document = patch.Document
	}
	if pending.Language == nil {
		pending.Language = patch.Language
	}
	w.dirty[roomID] = pending
}
