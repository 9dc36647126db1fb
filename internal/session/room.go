package session

import (
	"sync"
	"time"

	"roomsync/internal/models"
)

// Room holds the authoritative live state for one collaboration session:
// the connected clients keyed by connection ID, plus the current document
// snapshot and language. All mutations go through the room mutex, which is
// what serializes concurrent handlers for the same room.
type Room struct {
	ID string

	mu         sync.Mutex
	clients    map[string]*Client
	document   string
	language   string
	lastActive time.Time
	emptySince time.Time
}

func NewRoom(id string) *Room {
	now := time.Now()
	return &Room{
		ID:         id,
		clients:    make(map[string]*Client),
		lastActive: now,
		emptySince: now,
	}
}

// Seed populates the document state from the durable record on read-through.
// Live state wins: fields already set are left alone, so a racing seed can
// never clobber an edit that arrived first.
func (r *Room) Seed(document, language string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.document == "" {
		r.document = document
	}
	if r.language == "" {
		r.language = language
	}
}

// Join registers the client, evicting any entry with the same username but a
// different connection ID (a stale or reconnecting session). The evicted
// client, if any, is returned so the caller can notify it.
func (r *Room) Join(c *Client) (evicted *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	username := c.Username()
	for id, existing := range r.clients {
		if existing.Username() == username && id != c.ID {
			evicted = existing
			delete(r.clients, id)
			break
		}
	}
	r.clients[c.ID] = c
	r.lastActive = time.Now()
	return evicted
}

// Leave removes the connection if present. It reports whether anything was
// removed and how many clients remain; removing an unknown connection is a
// no-op.
func (r *Room) Leave(connID string) (removed bool, left int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[connID]; ok {
		delete(r.clients, connID)
		removed = true
		r.lastActive = time.Now()
		if len(r.clients) == 0 {
			r.emptySince = r.lastActive
		}
	}
	return removed, len(r.clients)
}

func (r *Room) Has(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.clients[connID]
	return ok
}

func (r *Room) ClientCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

func (r *Room) Participants() []models.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Participant, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c.Participant())
	}
	return out
}

func (r *Room) Snapshot() models.DocumentSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return models.DocumentSnapshot{Document: r.document, Language: r.language}
}

// SetDocument replaces the whole document snapshot (last-delivered-wins).
func (r *Room) SetDocument(content string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.document = content
	r.lastActive = time.Now()
}

func (r *Room) SetLanguage(language string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.language = language
	r.lastActive = time.Now()
}

func (r *Room) Touch() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastActive = time.Now()
}

func (r *Room) LastActive() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastActive
}

// EmptyFor returns how long the room has had no participants, or zero if it
// currently has any.
func (r *Room) EmptyFor(now time.Time) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.clients) > 0 {
		return 0
	}
	return now.Sub(r.emptySince)
}

// Status reports the live view of the room for the redis directory and the
// REST status endpoint.
func (r *Room) Status() models.RoomStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	participants := make([]models.Participant, 0, len(r.clients))
	for _, c := range r.clients {
		participants = append(participants, c.Participant())
	}
	return models.RoomStatus{
		RoomID:       r.ID,
		Language:     r.language,
		Participants: participants,
		UserCount:    len(participants),
		LastActive:   r.lastActive,
		IsActive:     true,
	}
}

// Broadcast delivers the frame to every client in the room except the sender.
// The originator already holds the authoritative local copy, so self-echo is
// forbidden.
func (r *Room) Broadcast(senderID string, frame models.WSFrame) {
	r.mu.Lock()
	targets := make([]*Client, 0, len(r.clients))
	for id, c := range r.clients {
		if id == senderID {
			continue
		}
		targets = append(targets, c)
	}
	r.mu.Unlock()

	for _, c := range targets {
		c.Send(frame)
	}
}

// BroadcastAll delivers the frame to every client, sender included. Used for
// shared state such as the participant list.
func (r *Room) BroadcastAll(frame models.WSFrame) {
	r.Broadcast("", frame)
}
