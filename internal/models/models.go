package models

import "time"

// WSFrame is the envelope for every message on the collaboration socket.
type WSFrame struct {
	Type string      `json:"type"` // "join-room","leave-room","get-room-users","room-users","code-change","code-update","language-change","load-document","save-document","room-closed","error"
	Data interface{} `json:"data,omitempty"`
}

// Participant binds a live connection to a display username within a room.
type Participant struct {
	ConnectionID string    `json:"connectionId"`
	Username     string    `json:"username"`
	JoinedAt     time.Time `json:"joinedAt"`
}

type JoinRequest struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

type LeaveRequest struct {
	RoomID string `json:"roomId"`
}

type RoomQuery struct {
	RoomID string `json:"roomId"`
}

// CodeChange carries a whole-snapshot document replacement, never a diff.
// FileID is forwarded verbatim so clients can scope the change to the file
// they are viewing; the server does not filter on it.
type CodeChange struct {
	RoomID  string `json:"roomId"`
	Content string `json:"content"`
	Sender  string `json:"sender,omitempty"`
	FileID  string `json:"fileId,omitempty"`
}

type LanguageChange struct {
	RoomID   string `json:"roomId"`
	Language string `json:"language"`
	FileID   string `json:"fileId,omitempty"`
}

// DocumentSnapshot is sent to a joining connection only ("load-document").
type DocumentSnapshot struct {
	Document string `json:"document"`
	Language string `json:"language"`
}

type SaveDocumentRequest struct {
	RoomID   string `json:"roomId"`
	Document string `json:"document"`
	FileID   string `json:"fileId,omitempty"`
}

// WSError is the payload of an "error" frame, delivered to the origin
// connection only.
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

/*** Durable store records ***/

// RoomRecord is the durable room document. The in-memory registry is a
// write-back cache over this record, never the canonical store.
type RoomRecord struct {
	RoomID     string     `bson:"roomId" json:"roomId"`
	Document   string     `bson:"document" json:"document"`
	Language   string     `bson:"language" json:"language"`
	CreatedBy  string     `bson:"createdBy" json:"createdBy"`
	CreatedAt  time.Time  `bson:"createdAt" json:"createdAt"`
	LastActive time.Time  `bson:"lastActive" json:"lastActive"`
	IsActive   bool       `bson:"isActive" json:"isActive"`
	ClosedAt   *time.Time `bson:"closedAt,omitempty" json:"closedAt,omitempty"`
}

// RoomFile is one entry of a room's persisted file tree.
type RoomFile struct {
	FileID    string    `bson:"fileId" json:"fileId"`
	RoomID    string    `bson:"roomId" json:"roomId"`
	Name      string    `bson:"name" json:"name"`
	Content   string    `bson:"content" json:"content"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

/*** REST payloads ***/

type CreateRoomRequest struct {
	RoomID    string `json:"roomId"`
	CreatedBy string `json:"createdBy"`
	Language  string `json:"language,omitempty"`
}

type SaveFileRequest struct {
	Content string `json:"content"`
}

// RoomStatus combines the durable record with live presence info.
type RoomStatus struct {
	RoomID       string        `json:"roomId"`
	Language     string        `json:"language"`
	Participants []Participant `json:"participants"`
	UserCount    int           `json:"userCount"`
	LastActive   time.Time     `json:"lastActive"`
	IsActive     bool          `json:"isActive"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
