package session

import "roomsync/internal/models"

// Presence operations on the registry. Within one room no two live entries
// share a username (stale sessions are evicted on join) and no two entries
// ever share a connection ID.

// AddParticipant registers the client in the room, returning the evicted
// same-username client if a stale session was displaced.
func (h *Hub) AddParticipant(roomID string, c *Client) (evicted *Client) {
	return h.GetOrCreate(roomID).Join(c)
}

// RemoveConnection removes the connection from every room that tracks it and
// returns the IDs of the rooms that lost a member. A connection belongs to at
// most one room, but the removal path scans all rooms so it stays correct
// even against inconsistent state. Removing an unknown connection is a no-op.
func (h *Hub) RemoveConnection(connID string) []string {
	var affected []string
	for _, room := range h.Rooms() {
		if removed, _ := room.Leave(connID); removed {
			affected = append(affected, room.ID)
		}
	}
	return affected
}

// Participants returns the canonical participant list for the room, or an
// empty list if the room is not live.
func (h *Hub) Participants(roomID string) []models.Participant {
	room, ok := h.Get(roomID)
	if !ok {
		return []models.Participant{}
	}
	return room.Participants()
}
