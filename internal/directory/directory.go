package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"roomsync/internal/models"
)

const keyPrefix = "roomsync:room:"

// Directory mirrors live room status into redis hashes so sibling services
// can inspect active rooms without coupling to this process. It is a
// best-effort mirror; the in-memory registry stays authoritative.
type Directory struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(rdb *redis.Client) *Directory {
	return &Directory{rdb: rdb, ttl: 24 * time.Hour}
}

func NewWithTTL(rdb *redis.Client, ttl time.Duration) *Directory {
	return &Directory{rdb: rdb, ttl: ttl}
}

func (d *Directory) Publish(ctx context.Context, status models.RoomStatus) error {
	participants, err := json.Marshal(status.Participants)
	if err != nil {
		return fmt.Errorf("marshal participants: %w", err)
	}

	key := keyPrefix + status.RoomID
	if err := d.rdb.HSet(ctx, key, map[string]interface{}{
		"roomId":       status.RoomID,
		"language":     status.Language,
		"userCount":    status.UserCount,
		"participants": string(participants),
		"lastActive":   status.LastActive.Format(time.RFC3339),
		"isActive":     strconv.FormatBool(status.IsActive),
	}).Err(); err != nil {
		return err
	}
	return d.rdb.Expire(ctx, key, d.ttl).Err()
}

func (d *Directory) Get(ctx context.Context, roomID string) (*models.RoomStatus, error) {
	fields, err := d.rdb.HGetAll(ctx, keyPrefix+roomID).Result()
	if err != nil {
		return nil, fmt.Errorf("read room status: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	status := &models.RoomStatus{
		RoomID:       fields["roomId"],
		Language:     fields["language"],
		Participants: []models.Participant{},
	}
	status.UserCount, _ = strconv.Atoi(fields["userCount"])
	status.IsActive, _ = strconv.ParseBool(fields["isActive"])
	if ts := fields["lastActive"]; ts != "" {
		status.LastActive, _ = time.Parse(time.RFC3339, ts)
	}
	if raw := fields["participants"]; raw != "" {
		_ = json.Unmarshal([]byte(raw), &status.Participants)
	}
	return status, nil
}

func (d *Directory) Remove(ctx context.Context, roomID string) error {
	return d.rdb.Del(ctx, keyPrefix+roomID).Err()
}
