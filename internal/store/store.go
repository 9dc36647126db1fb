package store

import (
	"context"
	"errors"
	"time"

	"roomsync/internal/models"
)

// ErrRoomNotFound is returned when no durable record exists for a room ID.
var ErrRoomNotFound = errors.New("room not found")

// ErrRoomExists is returned by Create when the room ID is already taken.
var ErrRoomExists = errors.New("room already exists")

// ErrFileNotFound is returned by SaveFile when no file record has the ID.
var ErrFileNotFound = errors.New("file not found")

// SavePatch is a partial update to a room record. Nil fields are left
// untouched; a patch with no fields set only refreshes lastActive.
type SavePatch struct {
	Document *string
	Language *string
}

// RoomStore is the durable collaborator behind the persistence bridge.
// Writes on the hot edit path are best-effort: callers log failures and keep
// serving from the in-memory registry.
type RoomStore interface {
	Create(ctx context.Context, rec *models.RoomRecord) error
	Load(ctx context.Context, roomID string) (*models.RoomRecord, error)
	Save(ctx context.Context, roomID string, patch SavePatch) error
	Touch(ctx context.Context, roomID string) error
	// Close marks the room closed by explicit action (isActive=false, closedAt set).
	Close(ctx context.Context, roomID string) error
	// SetInactive marks the room idle without closing it.
	SetInactive(ctx context.Context, roomID string) error
	Delete(ctx context.Context, roomID string) error
	// ListIdle returns rooms whose lastActive is before the cutoff. With
	// activeOnly set, only records still marked active are returned.
	ListIdle(ctx context.Context, cutoff time.Time, activeOnly bool) ([]models.RoomRecord, error)

	LoadFiles(ctx context.Context, roomID string) ([]models.RoomFile, error)
	SaveFile(ctx context.Context, fileID, content string) error
}
