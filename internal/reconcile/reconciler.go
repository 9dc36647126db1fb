package reconcile

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"roomsync/internal/directory"
	"roomsync/internal/metrics"
	"roomsync/internal/models"
	"roomsync/internal/session"
	"roomsync/internal/store"
)

// Reconciler keeps the registry, the durable store and the redis directory
// converging: it handles disconnects, evicts empty rooms after a reconnect
// grace period, marks long-idle durable records inactive and purges records
// idle beyond the long threshold.
type Reconciler struct {
	hub *session.Hub
	st  store.RoomStore
	dir *directory.Directory
	log *zap.Logger

	grace         time.Duration
	inactiveAfter time.Duration
	purgeAfter    time.Duration

	cron *cron.Cron
}

func New(hub *session.Hub, st store.RoomStore, dir *directory.Directory, log *zap.Logger,
	grace, inactiveAfter, purgeAfter time.Duration) *Reconciler {
	return &Reconciler{
		hub:           hub,
		st:            st,
		dir:           dir,
		log:           log,
		grace:         grace,
		inactiveAfter: inactiveAfter,
		purgeAfter:    purgeAfter,
	}
}

// HandleDisconnect removes the connection from presence and re-broadcasts the
// participant list for every room that lost a member. Empty rooms keep their
// registry entry until the sweep so a quick reconnect finds the document
// still hot. Safe to call for connections that were never tracked.
func (r *Reconciler) HandleDisconnect(connID string) []string {
	affected := r.hub.RemoveConnection(connID)
	for _, roomID := range affected {
		room, ok := r.hub.Get(roomID)
		if !ok {
			continue
		}
		room.BroadcastAll(models.WSFrame{Type: "room-users", Data: room.Participants()})
		r.PublishStatus(room)
	}
	r.updateGauges()
	return affected
}

// PublishStatus mirrors the room's live status into the redis directory,
// best-effort.
func (r *Reconciler) PublishStatus(room *session.Room) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.dir.Publish(ctx, room.Status()); err != nil {
		r.log.Warn("directory publish failed",
			zap.String("roomId", room.ID), zap.Error(err))
	}
}

// Start schedules the periodic sweep. The schedule uses cron syntax,
// e.g. "@every 10m".
func (r *Reconciler) Start(schedule string) error {
	r.cron = cron.New()
	if _, err := r.cron.AddFunc(schedule, r.Sweep); err != nil {
		return err
	}
	r.cron.Start()
	return nil
}

func (r *Reconciler) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
}

// Sweep runs one reconciliation pass. Every delete re-checks the live
// participant count immediately beforehand so a late-arriving join wins.
func (r *Reconciler) Sweep() {
	now := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, room := range r.hub.Rooms() {
		if room.EmptyFor(now) < r.grace {
			continue
		}
		if r.hub.DeleteIfEmpty(room.ID) {
			if err := r.dir.Remove(ctx, room.ID); err != nil {
				r.log.Warn("directory remove failed",
					zap.String("roomId", room.ID), zap.Error(err))
			}
		}
	}

	if recs, err := r.st.ListIdle(ctx, now.Add(-r.inactiveAfter), true); err != nil {
		r.log.Warn("idle room scan failed", zap.Error(err))
	} else {
		for _, rec := range recs {
			if r.liveCount(rec.RoomID) > 0 {
				continue
			}
			if err := r.st.SetInactive(ctx, rec.RoomID); err != nil {
				r.log.Warn("mark inactive failed",
					zap.String("roomId", rec.RoomID), zap.Error(err))
			}
		}
	}

	if recs, err := r.st.ListIdle(ctx, now.Add(-r.purgeAfter), false); err != nil {
		r.log.Warn("purge scan failed", zap.Error(err))
	} else {
		for _, rec := range recs {
			// the eviction under the hub lock is the authoritative emptiness
			// check; a join landing after the idle scan keeps the record
			if _, live := r.hub.Get(rec.RoomID); live && !r.hub.DeleteIfEmpty(rec.RoomID) {
				continue
			}
			if err := r.st.Delete(ctx, rec.RoomID); err != nil {
				r.log.Warn("purge failed",
					zap.String("roomId", rec.RoomID), zap.Error(err))
				continue
			}
			_ = r.dir.Remove(ctx, rec.RoomID)
			r.log.Info("purged idle room", zap.String("roomId", rec.RoomID))
		}
	}

	r.updateGauges()
}

func (r *Reconciler) liveCount(roomID string) int {
	if room, ok := r.hub.Get(roomID); ok {
		return room.ClientCount()
	}
	return 0
}

func (r *Reconciler) updateGauges() {
	rooms := r.hub.Rooms()
	total := 0
	for _, room := range rooms {
		total += room.ClientCount()
	}
	metrics.SetActiveRooms(len(rooms))
	metrics.SetParticipants(total)
}
