package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"roomsync/internal/models"
	"roomsync/internal/store"
)

// Store is the MongoDB-backed RoomStore. Rooms live in one collection keyed
// by roomId; the file tree lives in a separate collection keyed by fileId and
// linked back through roomId.
type Store struct {
	rooms *mongo.Collection
	files *mongo.Collection
}

func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is empty")
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	db := client.Database(dbName)
	s := &Store{
		rooms: db.Collection("rooms"),
		files: db.Collection("files"),
	}

	_, _ = s.rooms.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "roomId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	_, _ = s.files.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "roomId", Value: 1}},
	})
	return s, nil
}

func (s *Store) Create(ctx context.Context, rec *models.RoomRecord) error {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.LastActive.IsZero() {
		rec.LastActive = now
	}
	rec.IsActive = true
	if _, err := s.rooms.InsertOne(ctx, rec); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrRoomExists
		}
		return err
	}
	return nil
}

func (s *Store) Load(ctx context.Context, roomID string) (*models.RoomRecord, error) {
	var rec models.RoomRecord
	err := s.rooms.FindOne(ctx, bson.M{"roomId": roomID}).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrRoomNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (s *Store) Save(ctx context.Context, roomID string, patch store.SavePatch) error {
	set := bson.M{"lastActive": time.Now().UTC()}
	if patch.Document != nil {
		set["document"] = *patch.Document
	}
	if patch.Language != nil {
		set["language"] = *patch.Language
	}
	res, err := s.rooms.UpdateOne(ctx, bson.M{"roomId": roomID}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrRoomNotFound
	}
	return nil
}

func (s *Store) Touch(ctx context.Context, roomID string) error {
	return s.Save(ctx, roomID, store.SavePatch{})
}

func (s *Store) Close(ctx context.Context, roomID string) error {
	now := time.Now().UTC()
	return s.update(ctx, roomID, bson.M{"isActive": false, "closedAt": now})
}

func (s *Store) SetInactive(ctx context.Context, roomID string) error {
	return s.update(ctx, roomID, bson.M{"isActive": false})
}

func (s *Store) update(ctx context.Context, roomID string, set bson.M) error {
	res, err := s.rooms.UpdateOne(ctx, bson.M{"roomId": roomID}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrRoomNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, roomID string) error {
	if _, err := s.rooms.DeleteOne(ctx, bson.M{"roomId": roomID}); err != nil {
		return err
	}
	_, err := s.files.DeleteMany(ctx, bson.M{"roomId": roomID})
	return err
}

func (s *Store) ListIdle(ctx context.Context, cutoff time.Time, activeOnly bool) ([]models.RoomRecord, error) {
	filter := bson.M{"lastActive": bson.M{"$lt": cutoff.UTC()}}
	if activeOnly {
		filter["isActive"] = true
	}
	cur, err := s.rooms.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.RoomRecord
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) LoadFiles(ctx context.Context, roomID string) ([]models.RoomFile, error) {
	cur, err := s.files.Find(ctx, bson.M{"roomId": roomID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.RoomFile{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) SaveFile(ctx context.Context, fileID, content string) error {
	res, err := s.files.UpdateOne(ctx, bson.M{"fileId": fileID}, bson.M{
		"$set": bson.M{"content": content, "updatedAt": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrFileNotFound
	}
	return nil
}
