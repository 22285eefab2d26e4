// Package config defines the Settings surface for audio-ident and loads it
// from the environment (.env via godotenv, then real env vars), the same
// flat-env-var convention the teacher's wav.ConvertToWAV reads FINGERPRINT_STEREO
// from. No YAML, no viper: every setting below is a scalar with a sane default.
package config

import (
	"time"

	"github.com/MacPhobos/audio-ident/internal/dedup"
)

const (
	DefaultServicePort         = "8080"
	DefaultServiceHost         = "0.0.0.0"
	DefaultStorageRoot         = "./data"
	DefaultFingerprintDBPath   = "./data/olaf"
	DefaultVectorStoreURL      = "http://localhost:6333"
	DefaultEmbeddingServiceURL = "http://localhost:8081"
	DefaultMongoURI            = "mongodb://localhost:27017"
	DefaultMongoDatabase       = "audioident"

	DefaultMinSearchDurationSec = 3.0
	DefaultMinIngestDurationSec = 3.0
	DefaultMaxIngestDurationSec = 1800.0

	DefaultExactLaneTimeout = 3 * time.Second
	DefaultVibeLaneTimeout  = 4 * time.Second

	DefaultVibeMatchThreshold = 0.60
	DefaultQdrantSearchLimit  = 50
	DefaultTopKPerTrack       = 3
	DefaultDiversityWeight    = 0.05

	DefaultMinAlignedHashes  = 8
	DefaultStrongMatchHashes = 20
	DefaultShortClipThresholdSec = 5.0

	DefaultContentDedupThreshold = dedup.DefaultSimilarityThreshold

	DefaultSearchMaxUploadBytes = 10 << 20
	DefaultIngestMaxUploadBytes = 50 << 20
)

// Settings is the fully resolved configuration for one process.
type Settings struct {
	ServicePort string
	ServiceHost string
	CORSOrigins []string

	StorageRoot       string
	FingerprintDBPath string
	VectorStoreURL    string
	EmbeddingServiceURL string

	MongoURI      string
	MongoDatabase string

	AdminKey string

	MinSearchDurationSec float64
	MinIngestDurationSec float64
	MaxIngestDurationSec float64

	ExactLaneTimeout time.Duration
	VibeLaneTimeout  time.Duration

	VibeMatchThreshold   float64
	QdrantSearchLimit    int
	TopKPerTrack         int
	DiversityWeight      float64
	MinAlignedHashes     int
	StrongMatchHashes    int
	ShortClipThresholdSec float64
	ContentDedupThreshold float64

	SearchMaxUploadBytes int64
	IngestMaxUploadBytes int64

	ReconcileDBPath string
}
