package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"roomsync/internal/directory"
	"roomsync/internal/metrics"
	"roomsync/internal/models"
	"roomsync/internal/reconcile"
	"roomsync/internal/session"
	"roomsync/internal/store"
	"roomsync/internal/utils"
)

type Handlers struct {
	log    *zap.Logger
	hub    *session.Hub
	st     store.RoomStore
	writer *store.Writer
	dir    *directory.Directory
	rec    *reconcile.Reconciler
}

func NewHandlers(log *zap.Logger, hub *session.Hub, st store.RoomStore,
	writer *store.Writer, dir *directory.Directory, rec *reconcile.Reconciler) *Handlers {
	return &Handlers{log: log, hub: hub, st: st, writer: writer, dir: dir, rec: rec}
}

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

/*** Room lifecycle REST API ***/

func (h *Handlers) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RoomID == "" {
		utils.JSON(w, http.StatusBadRequest, models.ErrorResponse{
			Code: "invalid_request", Message: "roomId is required",
		})
		return
	}

	rec := &models.RoomRecord{
		RoomID:    req.RoomID,
		Language:  req.Language,
		CreatedBy: req.CreatedBy,
	}
	if err := h.st.Create(r.Context(), rec); err != nil {
		if errors.Is(err, store.ErrRoomExists) {
			utils.JSON(w, http.StatusConflict, models.ErrorResponse{
				Code: "room_exists", Message: "room already exists",
			})
			return
		}
		h.log.Error("room create failed", zap.String("roomId", req.RoomID), zap.Error(err))
		utils.JSON(w, http.StatusInternalServerError, models.ErrorResponse{
			Code: "internal_error", Message: "failed to create room",
		})
		return
	}
	utils.JSON(w, http.StatusCreated, rec)
}

func (h *Handlers) GetRoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// live registry first, then the redis mirror, then the durable record
	if room, ok := h.hub.Get(id); ok && room.ClientCount() > 0 {
		utils.JSON(w, http.StatusOK, room.Status())
		return
	}
	if status, err := h.dir.Get(r.Context(), id); err == nil && status != nil {
		utils.JSON(w, http.StatusOK, status)
		return
	}

	rec, err := h.st.Load(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrRoomNotFound) {
			utils.JSON(w, http.StatusNotFound, models.ErrorResponse{
				Code: "room_not_found", Message: "room does not exist",
			})
			return
		}
		h.log.Error("room load failed", zap.String("roomId", id), zap.Error(err))
		utils.JSON(w, http.StatusInternalServerError, models.ErrorResponse{
			Code: "internal_error", Message: "failed to load room",
		})
		return
	}
	utils.JSON(w, http.StatusOK, models.RoomStatus{
		RoomID:       rec.RoomID,
		Language:     rec.Language,
		Participants: []models.Participant{},
		LastActive:   rec.LastActive,
		IsActive:     rec.IsActive,
	})
}

func (h *Handlers) CloseRoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.st.Close(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrRoomNotFound) {
			utils.JSON(w, http.StatusNotFound, models.ErrorResponse{
				Code: "room_not_found", Message: "room does not exist",
			})
			return
		}
		h.log.Error("room close failed", zap.String("roomId", id), zap.Error(err))
		utils.JSON(w, http.StatusInternalServerError, models.ErrorResponse{
			Code: "internal_error", Message: "failed to close room",
		})
		return
	}

	if room, ok := h.hub.Get(id); ok {
		room.BroadcastAll(models.WSFrame{Type: "room-closed", Data: models.RoomQuery{RoomID: id}})
	}
	h.hub.Delete(id)
	if err := h.dir.Remove(r.Context(), id); err != nil {
		h.log.Warn("directory remove failed", zap.String("roomId", id), zap.Error(err))
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ListFiles(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	files, err := h.st.LoadFiles(r.Context(), id)
	if err != nil {
		h.log.Error("file list failed", zap.String("roomId", id), zap.Error(err))
		utils.JSON(w, http.StatusInternalServerError, models.ErrorResponse{
			Code: "internal_error", Message: "failed to load files",
		})
		return
	}
	utils.JSON(w, http.StatusOK, files)
}

func (h *Handlers) SaveFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req models.SaveFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSON(w, http.StatusBadRequest, models.ErrorResponse{
			Code: "invalid_request", Message: "invalid request payload",
		})
		return
	}
	if err := h.st.SaveFile(r.Context(), id, req.Content); err != nil {
		if errors.Is(err, store.ErrFileNotFound) {
			utils.JSON(w, http.StatusNotFound, models.ErrorResponse{
				Code: "file_not_found", Message: "file does not exist",
			})
			return
		}
		h.log.Error("file save failed", zap.String("fileId", id), zap.Error(err))
		utils.JSON(w, http.StatusInternalServerError, models.ErrorResponse{
			Code: "internal_error", Message: "failed to save file",
		})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

/*** Collaboration WebSocket ***/

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// connSession is the per-connection state: the client plus the room it is
// currently joined to, if any.
type connSession struct {
	client *session.Client
	roomID string
}

func (h *Handlers) CollabWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// handshake identity is best-effort: a signed room token wins over plain
	// query params, both may be absent
	roomID := r.URL.Query().Get("roomId")
	username := r.URL.Query().Get("username")
	if token := r.URL.Query().Get("token"); token != "" {
		if claims, err := utils.ValidateRoomToken(token); err == nil {
			roomID, username = claims.RoomID, claims.Username
		} else {
			h.log.Warn("room token rejected", zap.Error(err))
		}
	}

	sess := &connSession{client: session.NewClient(conn, username)}
	defer h.rec.HandleDisconnect(sess.client.ID)

	if roomID != "" && username != "" {
		h.joinRoom(sess, models.JoinRequest{RoomID: roomID, Username: username})
	}

	for {
		var frame models.WSFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		h.dispatch(sess, frame)
	}
}

func (h *Handlers) dispatch(sess *connSession, frame models.WSFrame) {
	switch frame.Type {
	case "join-room":
		var req models.JoinRequest
		if err := unmarshalData(frame.Data, &req); err != nil {
			sess.client.Send(errFrame("invalid_request", "malformed data payload"))
			return
		}
		h.joinRoom(sess, req)

	case "leave-room":
		var req models.LeaveRequest
		if err := unmarshalData(frame.Data, &req); err != nil {
			sess.client.Send(errFrame("invalid_request", "malformed data payload"))
			return
		}
		if req.RoomID == "" {
			req.RoomID = sess.roomID
		}
		h.leaveRoom(sess, req.RoomID)

	case "get-room-users":
		var q models.RoomQuery
		if err := unmarshalData(frame.Data, &q); err != nil {
			sess.client.Send(errFrame("invalid_request", "malformed data payload"))
			return
		}
		if q.RoomID == "" {
			q.RoomID = sess.roomID
		}
		sess.client.Send(models.WSFrame{Type: "room-users", Data: h.hub.Participants(q.RoomID)})

	case "code-change", "code-update":
		// two historical aliases with identical semantics; the relay keeps
		// whichever the sender used
		var change models.CodeChange
		if err := unmarshalData(frame.Data, &change); err != nil {
			sess.client.Send(errFrame("invalid_request", "malformed data payload"))
			return
		}
		h.codeChange(sess, frame.Type, change)

	case "language-change":
		var change models.LanguageChange
		if err := unmarshalData(frame.Data, &change); err != nil {
			sess.client.Send(errFrame("invalid_request", "malformed data payload"))
			return
		}
		h.languageChange(sess, change)

	case "save-document":
		var req models.SaveDocumentRequest
		if err := unmarshalData(frame.Data, &req); err != nil {
			sess.client.Send(errFrame("invalid_request", "malformed data payload"))
			return
		}
		h.saveDocument(sess, req)

	default:
		sess.client.Send(errFrame("unknown_type", "unsupported event type"))
	}
}

func (h *Handlers) joinRoom(sess *connSession, req models.JoinRequest) {
	if req.RoomID == "" || req.Username == "" {
		sess.client.Send(errFrame("invalid_request", "roomId and username are required"))
		return
	}

	room, ok := h.hub.Get(req.RoomID)
	if !ok {
		// read-through: the durable record decides whether the room exists;
		// joins never auto-create rooms
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rec, err := h.st.Load(ctx, req.RoomID)
		cancel()
		switch {
		case errors.Is(err, store.ErrRoomNotFound):
			sess.client.Send(errFrame("room_not_found", "room does not exist"))
			return
		case err != nil:
			// a degraded store must not kill the session; serve an empty
			// document and let write-back repair the record later
			h.log.Warn("room load failed", zap.String("roomId", req.RoomID), zap.Error(err))
			metrics.IncPersistenceFailure()
			room = h.hub.GetOrCreate(req.RoomID)
		default:
			room = h.hub.GetOrCreate(req.RoomID)
			room.Seed(rec.Document, rec.Language)
		}
	}

	if sess.roomID != "" && sess.roomID != req.RoomID {
		h.leaveRoom(sess, sess.roomID)
	}
	sess.client.SetUsername(req.Username)

	if evicted := room.Join(sess.client); evicted != nil {
		evicted.Send(errFrame("session_replaced", "a newer connection joined with this username"))
	}
	sess.roomID = req.RoomID

	// document snapshot goes to the joiner only; the participant list goes to
	// the whole room, sender included
	sess.client.Send(models.WSFrame{Type: "load-document", Data: room.Snapshot()})
	room.BroadcastAll(models.WSFrame{Type: "room-users", Data: room.Participants()})
	h.rec.PublishStatus(room)
	h.writer.Enqueue(req.RoomID, store.SavePatch{})
}

func (h *Handlers) leaveRoom(sess *connSession, roomID string) {
	if roomID == "" {
		sess.client.Send(errFrame("invalid_request", "roomId is required"))
		return
	}
	if sess.roomID == roomID {
		sess.roomID = ""
	}
	room, ok := h.hub.Get(roomID)
	if !ok {
		return
	}
	removed, _ := room.Leave(sess.client.ID)
	if !removed {
		return
	}
	room.BroadcastAll(models.WSFrame{Type: "room-users", Data: room.Participants()})
	h.rec.PublishStatus(room)
	h.writer.Enqueue(roomID, store.SavePatch{})
}

func (h *Handlers) codeChange(sess *connSession, frameType string, change models.CodeChange) {
	if change.RoomID == "" {
		change.RoomID = sess.roomID
	}
	room, ok := h.hub.Get(change.RoomID)
	if !ok || !room.Has(sess.client.ID) {
		sess.client.Send(errFrame("not_in_room", "join the room before editing"))
		return
	}
	if change.Sender == "" {
		change.Sender = sess.client.Username()
	}

	room.SetDocument(change.Content)
	room.Broadcast(sess.client.ID, models.WSFrame{Type: frameType, Data: change})
	metrics.IncMutationRelayed("document")

	doc := change.Content
	h.writer.Enqueue(change.RoomID, store.SavePatch{Document: &doc})
}

func (h *Handlers) languageChange(sess *connSession, change models.LanguageChange) {
	if change.RoomID == "" {
		change.RoomID = sess.roomID
	}
	room, ok := h.hub.Get(change.RoomID)
	if !ok || !room.Has(sess.client.ID) {
		sess.client.Send(errFrame("not_in_room", "join the room before editing"))
		return
	}
	if change.Language == "" {
		sess.client.Send(errFrame("invalid_request", "language is required"))
		return
	}

	room.SetLanguage(change.Language)
	room.Broadcast(sess.client.ID, models.WSFrame{Type: "language-change", Data: change})
	metrics.IncMutationRelayed("language")

	lang := change.Language
	h.writer.Enqueue(change.RoomID, store.SavePatch{Language: &lang})
}

// saveDocument is an explicit best-effort durable write, no broadcast.
func (h *Handlers) saveDocument(sess *connSession, req models.SaveDocumentRequest) {
	if req.RoomID == "" {
		req.RoomID = sess.roomID
	}
	if req.RoomID == "" {
		sess.client.Send(errFrame("invalid_request", "roomId is required"))
		return
	}

	if req.FileID != "" {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := h.st.SaveFile(ctx, req.FileID, req.Document); err != nil {
				h.log.Warn("file save failed",
					zap.String("fileId", req.FileID), zap.Error(err))
				metrics.IncPersistenceFailure()
			}
		}()
		return
	}

	if room, ok := h.hub.Get(req.RoomID); ok && room.Has(sess.client.ID) {
		room.SetDocument(req.Document)
	}
	doc := req.Document
	h.writer.Enqueue(req.RoomID, store.SavePatch{Document: &doc})
}

func unmarshalData(in interface{}, out interface{}) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func errFrame(code, msg string) models.WSFrame {
	return models.WSFrame{Type: "error", Data: models.WSError{Code: code, Message: msg}}
}
