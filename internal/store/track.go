// Package store is the relational store for Track records, backed by
// MongoDB via the teacher's own direct dependency on the official driver
// (go.mongodb.org/mongo-driver), generalizing the inferred db.NewDBClient /
// RegisterSong / GetSongByKey / DeleteSongByID / TotalSongs / GetAllSongs /
// DeleteCollection call shape from cmdHandlers.go and handlers.go to the
// Track schema of spec.md §3.
package store

import "time"

// Track is the authoritative record for one ingested audio file, per
// spec.md §3. Invariants: FileHash is unique; ChromaprintFingerprint and
// ChromaprintDuration are both set or both nil; FingerprintIndexed reflects
// success at ingestion time only; if EmbeddingDim != nil, at least one vector
// exists under this track's ID in the vector store.
type Track struct {
	ID         string `bson:"_id"`
	Title      string `bson:"title"`
	Artist     *string `bson:"artist"`
	Album      *string `bson:"album"`
	Genre      *string `bson:"genre"`
	Format     *string `bson:"format"`
	DurationSec float64 `bson:"duration_sec"`
	SampleRate *int    `bson:"sample_rate"`
	Channels   *int    `bson:"channels"`
	BitrateKbps *int   `bson:"bitrate_kbps"`

	FileHash string `bson:"file_hash"`
	FileSizeBytes int64 `bson:"file_size_bytes"`
	StoredPath    string `bson:"stored_path"`

	ChromaprintFingerprint *string  `bson:"chromaprint_fingerprint"`
	ChromaprintDuration    *float64 `bson:"chromaprint_duration"`

	FingerprintIndexed bool `bson:"fingerprint_indexed"`

	EmbeddingModel *string `bson:"embedding_model"`
	EmbeddingDim   *int    `bson:"embedding_dim"`

	CreatedAt  time.Time `bson:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

// TrackInfo is the summary projection returned by search lanes and track
// listing.
type TrackInfo struct {
	ID          string
	Title       string
	Artist      *string
	Album       *string
	DurationSec float64
	Format      *string
}

// TrackDetail is the full projection returned by the single-track endpoint.
type TrackDetail struct {
	TrackInfo
	Genre       *string
	SampleRate  *int
	Channels    *int
	BitrateKbps *int
	FileSizeBytes int64
	StoredPath  string
	FingerprintIndexed bool
	EmbeddingModel *string
	EmbeddingDim   *int
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (t Track) toInfo() TrackInfo {
	return TrackInfo{
		ID:          t.ID,
		Title:       t.Title,
		Artist:      t.Artist,
		Album:       t.Album,
		DurationSec: t.DurationSec,
		Format:      t.Format,
	}
}

func (t Track) toDetail() TrackDetail {
	return TrackDetail{
		TrackInfo:          t.toInfo(),
		Genre:              t.Genre,
		SampleRate:         t.SampleRate,
		Channels:           t.Channels,
		BitrateKbps:        t.BitrateKbps,
		FileSizeBytes:      t.FileSizeBytes,
		StoredPath:         t.StoredPath,
		FingerprintIndexed: t.FingerprintIndexed,
		EmbeddingModel:     t.EmbeddingModel,
		EmbeddingDim:       t.EmbeddingDim,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
	}
}
