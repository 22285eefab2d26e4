package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/MacPhobos/audio-ident/internal/dedup"
)

const tracksCollection = "tracks"

// Store is the MongoDB-backed Track store.
type Store struct {
	client *mongo.Client
	tracks *mongo.Collection
}

// NewClient connects to uri and ensures the tracks collection's indexes
// exist: a unique index on file_hash (spec.md §3's invariant) and a
// chromaprint-duration index backing the phase-2 dedup window query.
func NewClient(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	tracks := client.Database(database).Collection(tracksCollection)

	_, err = tracks.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "file_hash", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "chromaprint_duration", Value: 1}}},
		{Keys: bson.D{{Key: "title", Value: "text"}, {Key: "artist", Value: "text"}, {Key: "album", Value: "text"}}},
	})
	if err != nil {
		return nil, fmt.Errorf("store: create indexes: %w", err)
	}

	return &Store{client: client, tracks: tracks}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping verifies the MongoDB connection is live, used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// FindByHash returns the track with the given file hash, if any.
func (s *Store) FindByHash(ctx context.Context, fileHash string) (*Track, error) {
	var t Track
	err := s.tracks.FindOne(ctx, bson.M{"file_hash": fileHash}).Decode(&t)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: find by hash: %w", err)
	}
	return &t, nil
}

// Insert persists a new Track row — the atomic "ingestion succeeded" marker
// per spec.md §4.9 step 7.
func (s *Store) Insert(ctx context.Context, t Track) error {
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	_, err := s.tracks.InsertOne(ctx, t)
	if err != nil {
		return fmt.Errorf("store: insert: %w", err)
	}
	return nil
}

// Delete removes the track row, per the cascading-delete lifecycle of
// spec.md §3 (the caller is responsible for also deleting from the
// fingerprint and vector stores).
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.tracks.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("store: delete: %w", err)
	}
	return nil
}

// GetByID returns full track detail, or nil if not found.
func (s *Store) GetByID(ctx context.Context, id string) (*TrackDetail, error) {
	var t Track
	err := s.tracks.FindOne(ctx, bson.M{"_id": id}).Decode(&t)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get by id: %w", err)
	}
	detail := t.toDetail()
	return &detail, nil
}

// GetManyByID resolves track_info for exact/vibe lane results; tracks not
// present are silently omitted from the returned map, per spec.md §4.5/§4.7
// ("silently drop/skip candidates not found there").
func (s *Store) GetManyByID(ctx context.Context, ids []string) (map[string]TrackInfo, error) {
	if len(ids) == 0 {
		return map[string]TrackInfo{}, nil
	}
	cursor, err := s.tracks.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("store: get many by id: %w", err)
	}
	defer cursor.Close(ctx)

	out := make(map[string]TrackInfo, len(ids))
	for cursor.Next(ctx) {
		var t Track
		if err := cursor.Decode(&t); err != nil {
			return nil, fmt.Errorf("store: decode track: %w", err)
		}
		out[t.ID] = t.toInfo()
	}
	return out, cursor.Err()
}

// List returns a page of tracks, optionally filtered by a case-insensitive
// substring search against title/artist/album.
func (s *Store) List(ctx context.Context, page, pageSize int, search string) ([]TrackInfo, int64, error) {
	filter := bson.M{}
	if strings.TrimSpace(search) != "" {
		pattern := bson.M{"$regex": search, "$options": "i"}
		filter["$or"] = bson.A{
			bson.M{"title": pattern},
			bson.M{"artist": pattern},
			bson.M{"album": pattern},
		}
	}

	total, err := s.tracks.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("store: count: %w", err)
	}

	opts := options.Find().
		SetSkip(int64((page - 1) * pageSize)).
		SetLimit(int64(pageSize)).
		SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := s.tracks.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list: %w", err)
	}
	defer cursor.Close(ctx)

	var infos []TrackInfo
	for cursor.Next(ctx) {
		var t Track
		if err := cursor.Decode(&t); err != nil {
			return nil, 0, fmt.Errorf("store: decode track: %w", err)
		}
		infos = append(infos, t.toInfo())
	}
	return infos, total, cursor.Err()
}

// CandidatesInDurationWindow returns every track whose stored chromaprint
// duration falls within [min, max] and has a non-null chromaprint, for
// phase-2 content dedup (spec.md §4.2).
func (s *Store) CandidatesInDurationWindow(ctx context.Context, min, max float64) ([]dedup.DurationCandidate, error) {
	filter := bson.M{
		"chromaprint_duration": bson.M{"$gte": min, "$lte": max},
		"chromaprint_fingerprint": bson.M{"$ne": nil},
	}
	cursor, err := s.tracks.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("store: candidates: %w", err)
	}
	defer cursor.Close(ctx)

	var out []dedup.DurationCandidate
	for cursor.Next(ctx) {
		var t Track
		if err := cursor.Decode(&t); err != nil {
			return nil, fmt.Errorf("store: decode track: %w", err)
		}
		if t.ChromaprintFingerprint == nil || t.ChromaprintDuration == nil {
			continue
		}
		out = append(out, dedup.DurationCandidate{
			TrackID:     t.ID,
			Chromaprint: *t.ChromaprintFingerprint,
			DurationSec: *t.ChromaprintDuration,
		})
	}
	return out, cursor.Err()
}

// DropAll removes every track. Used by the CLI's "erase" subcommand, the
// generalization of cmdHandlers.go's dbClient.DeleteCollection("songs").
func (s *Store) DropAll(ctx context.Context) error {
	return s.tracks.Drop(ctx)
}
