package memory

import (
	"context"
	"sync"
	"time"

	"roomsync/internal/models"
	"roomsync/internal/store"
)

// Store is an in-memory RoomStore used for tests and local development.
type Store struct {
	mu    sync.RWMutex
	rooms map[string]models.RoomRecord
	files map[string]models.RoomFile
}

func New() *Store {
	return &Store{
		rooms: make(map[string]models.RoomRecord),
		files: make(map[string]models.RoomFile),
	}
}

func (s *Store) Create(_ context.Context, rec *models.RoomRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[rec.RoomID]; ok {
		return store.ErrRoomExists
	}
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.LastActive.IsZero() {
		rec.LastActive = now
	}
	rec.IsActive = true
	s.rooms[rec.RoomID] = *rec
	return nil
}

func (s *Store) Load(_ context.Context, roomID string) (*models.RoomRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.rooms[roomID]
	if !ok {
		return nil, store.ErrRoomNotFound
	}
	out := rec
	return &out, nil
}

func (s *Store) Save(_ context.Context, roomID string, patch store.SavePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.rooms[roomID]
	if !ok {
		return store.ErrRoomNotFound
	}
	if patch.Document != nil {
		rec.Document = *patch.Document
	}
	if patch.Language != nil {
		rec.Language = *patch.Language
	}
	rec.LastActive = time.Now()
	s.rooms[roomID] = rec
	return nil
}

func (s *Store) Touch(ctx context.Context, roomID string) error {
	return s.Save(ctx, roomID, store.SavePatch{})
}

func (s *Store) Close(_ context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.rooms[roomID]
	if !ok {
		return store.ErrRoomNotFound
	}
	now := time.Now()
	rec.IsActive = false
	rec.ClosedAt = &now
	s.rooms[roomID] = rec
	return nil
}

func (s *Store) SetInactive(_ context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.rooms[roomID]
	if !ok {
		return store.ErrRoomNotFound
	}
	rec.IsActive = false
	s.rooms[roomID] = rec
	return nil
}

func (s *Store) Delete(_ context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
	for id, f := range s.files {
		if f.RoomID == roomID {
			delete(s.files, id)
		}
	}
	return nil
}

func (s *Store) ListIdle(_ context.Context, cutoff time.Time, activeOnly bool) ([]models.RoomRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.RoomRecord
	for _, rec := range s.rooms {
		if activeOnly && !rec.IsActive {
			continue
		}
		if rec.LastActive.Before(cutoff) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *Store) LoadFiles(_ context.Context, roomID string) ([]models.RoomFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.RoomFile{}
	for _, f := range s.files {
		if f.RoomID == roomID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *Store) SaveFile(_ context.Context, fileID, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[fileID]
	if !ok {
		return store.ErrFileNotFound
	}
	f.Content = content
	f.UpdatedAt = time.Now()
	s.files[fileID] = f
	return nil
}

// PutFile seeds a file record; it exists so tests and the REST layer can
// create files before SaveFile updates them.
func (s *Store) PutFile(f models.RoomFile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.UpdatedAt.IsZero() {
		f.UpdatedAt = time.Now()
	}
	s.files[f.FileID] = f
}
