package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Loader loads Settings from environment variables. Tests substitute Lookup
// with a map-backed function instead of the real environment.
type Loader struct {
	Lookup func(string) (string, bool)
}

// LoadDotEnv loads a .env file into the process environment if present,
// exactly as main.go's godotenv.Load() does; a missing file is not an error.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// Load resolves Settings, applying defaults first and then environment
// overrides.
func (l Loader) Load() (Settings, error) {
	if l.Lookup == nil {
		l.Lookup = os.LookupEnv
	}

	s := Settings{
		ServicePort:           DefaultServicePort,
		ServiceHost:           DefaultServiceHost,
		StorageRoot:           DefaultStorageRoot,
		FingerprintDBPath:     DefaultFingerprintDBPath,
		VectorStoreURL:        DefaultVectorStoreURL,
		EmbeddingServiceURL:   DefaultEmbeddingServiceURL,
		MongoURI:              DefaultMongoURI,
		MongoDatabase:         DefaultMongoDatabase,
		MinSearchDurationSec:  DefaultMinSearchDurationSec,
		MinIngestDurationSec:  DefaultMinIngestDurationSec,
		MaxIngestDurationSec:  DefaultMaxIngestDurationSec,
		ExactLaneTimeout:      DefaultExactLaneTimeout,
		VibeLaneTimeout:       DefaultVibeLaneTimeout,
		VibeMatchThreshold:    DefaultVibeMatchThreshold,
		QdrantSearchLimit:     DefaultQdrantSearchLimit,
		TopKPerTrack:          DefaultTopKPerTrack,
		DiversityWeight:       DefaultDiversityWeight,
		MinAlignedHashes:      DefaultMinAlignedHashes,
		StrongMatchHashes:     DefaultStrongMatchHashes,
		ShortClipThresholdSec: DefaultShortClipThresholdSec,
		ContentDedupThreshold: DefaultContentDedupThreshold,
		SearchMaxUploadBytes:  DefaultSearchMaxUploadBytes,
		IngestMaxUploadBytes:  DefaultIngestMaxUploadBytes,
		ReconcileDBPath:       "",
	}

	overrideString(l.Lookup, "SERVICE_PORT", &s.ServicePort)
	overrideString(l.Lookup, "SERVICE_HOST", &s.ServiceHost)
	overrideString(l.Lookup, "STORAGE_ROOT", &s.StorageRoot)
	overrideString(l.Lookup, "FINGERPRINT_DB_PATH", &s.FingerprintDBPath)
	overrideString(l.Lookup, "VECTOR_STORE_URL", &s.VectorStoreURL)
	overrideString(l.Lookup, "EMBEDDING_SERVICE_URL", &s.EmbeddingServiceURL)
	overrideString(l.Lookup, "MONGO_URI", &s.MongoURI)
	overrideString(l.Lookup, "MONGO_DATABASE", &s.MongoDatabase)
	overrideString(l.Lookup, "ADMIN_KEY", &s.AdminKey)

	if raw, ok := l.Lookup("CORS_ORIGINS"); ok && strings.TrimSpace(raw) != "" {
		parts := strings.Split(raw, ",")
		origins := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
		s.CORSOrigins = origins
	}

	if err := overrideFloat(l.Lookup, "MIN_SEARCH_DURATION_SEC", &s.MinSearchDurationSec); err != nil {
		return Settings{}, err
	}
	if err := overrideFloat(l.Lookup, "MIN_INGEST_DURATION_SEC", &s.MinIngestDurationSec); err != nil {
		return Settings{}, err
	}
	if err := overrideFloat(l.Lookup, "MAX_INGEST_DURATION_SEC", &s.MaxIngestDurationSec); err != nil {
		return Settings{}, err
	}
	if err := overrideDuration(l.Lookup, "EXACT_LANE_TIMEOUT_SEC", &s.ExactLaneTimeout); err != nil {
		return Settings{}, err
	}
	if err := overrideDuration(l.Lookup, "VIBE_LANE_TIMEOUT_SEC", &s.VibeLaneTimeout); err != nil {
		return Settings{}, err
	}
	if err := overrideFloat(l.Lookup, "VIBE_MATCH_THRESHOLD", &s.VibeMatchThreshold); err != nil {
		return Settings{}, err
	}
	if err := overrideInt(l.Lookup, "QDRANT_SEARCH_LIMIT", &s.QdrantSearchLimit); err != nil {
		return Settings{}, err
	}
	if err := overrideInt(l.Lookup, "TOP_K_PER_TRACK", &s.TopKPerTrack); err != nil {
		return Settings{}, err
	}
	if err := overrideFloat(l.Lookup, "DIVERSITY_WEIGHT", &s.DiversityWeight); err != nil {
		return Settings{}, err
	}
	if err := overrideInt(l.Lookup, "MIN_ALIGNED_HASHES", &s.MinAlignedHashes); err != nil {
		return Settings{}, err
	}
	if err := overrideInt(l.Lookup, "STRONG_MATCH_HASHES", &s.StrongMatchHashes); err != nil {
		return Settings{}, err
	}
	if err := overrideFloat(l.Lookup, "SHORT_CLIP_THRESHOLD_SEC", &s.ShortClipThresholdSec); err != nil {
		return Settings{}, err
	}
	if err := overrideFloat(l.Lookup, "CONTENT_DEDUP_THRESHOLD", &s.ContentDedupThreshold); err != nil {
		return Settings{}, err
	}

	if raw, ok := l.Lookup("SEARCH_MAX_UPLOAD_BYTES"); ok && strings.TrimSpace(raw) != "" {
		v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return Settings{}, fmt.Errorf("config: invalid value for SEARCH_MAX_UPLOAD_BYTES: %w", err)
		}
		s.SearchMaxUploadBytes = v
	}
	if raw, ok := l.Lookup("INGEST_MAX_UPLOAD_BYTES"); ok && strings.TrimSpace(raw) != "" {
		v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return Settings{}, fmt.Errorf("config: invalid value for INGEST_MAX_UPLOAD_BYTES: %w", err)
		}
		s.IngestMaxUploadBytes = v
	}

	overrideString(l.Lookup, "RECONCILE_DB_PATH", &s.ReconcileDBPath)
	if s.ReconcileDBPath == "" {
		s.ReconcileDBPath = s.StorageRoot + "/reconcile.sqlite3"
	}

	return s, nil
}

func overrideString(lookup func(string) (string, bool), key string, target *string) {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

func overrideFloat(lookup func(string) (string, bool), key string, target *float64) error {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return fmt.Errorf("config: invalid value for %s: %w", key, err)
		}
		*target = parsed
	}
	return nil
}

func overrideInt(lookup func(string) (string, bool), key string, target *int) error {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("config: invalid value for %s: %w", key, err)
		}
		*target = parsed
	}
	return nil
}

func overrideDuration(lookup func(string) (string, bool), key string, target *time.Duration) error {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		seconds, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return fmt.Errorf("config: invalid value for %s: %w", key, err)
		}
		*target = time.Duration(seconds * float64(time.Second))
	}
	return nil
}
