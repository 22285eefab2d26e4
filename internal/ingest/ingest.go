// Package ingest implements the end-to-end ingestion pipeline of spec.md
// §4.9: hash-based dedup, metadata extraction, dual-rate decode with
// duration validation, canonical storage, content-based dedup, parallel
// indexing into the fingerprint and vector stores, and track persistence.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/MacPhobos/audio-ident/internal/apierr"
	"github.com/MacPhobos/audio-ident/internal/chunker"
	"github.com/MacPhobos/audio-ident/internal/decode"
	"github.com/MacPhobos/audio-ident/internal/dedup"
	"github.com/MacPhobos/audio-ident/internal/metadata"
	"github.com/MacPhobos/audio-ident/internal/reconcile"
	"github.com/MacPhobos/audio-ident/internal/store"
	"github.com/MacPhobos/audio-ident/internal/vectorstore"
)

// Status is the terminal classification of one ingestion attempt.
type Status string

const (
	StatusIngested  Status = "ingested"
	StatusDuplicate Status = "duplicate"
	StatusSkipped   Status = "skipped"
)

// Result is the outcome of one Ingest call.
type Result struct {
	Status         Status
	TrackID        string
	DuplicateOf    string
	SkipReason     string
	OlafIndexed    bool
	EmbeddingModel string
	EmbeddingDim   int
}

// DurationToleranceRatio bounds the phase-2 dedup candidate window to
// [0.9d, 1.1d], per spec.md §4.2.
const DurationToleranceRatio = 0.1

// TrackStore is the subset of *store.Store the pipeline depends on.
type TrackStore interface {
	FindByHash(ctx context.Context, fileHash string) (*store.Track, error)
	CandidatesInDurationWindow(ctx context.Context, min, max float64) ([]dedup.DurationCandidate, error)
	Insert(ctx context.Context, t store.Track) error
}

// FingerprintStore is the subset of *olaf.Client the pipeline depends on.
type FingerprintStore interface {
	Store(ctx context.Context, trackID string, pcm16kF32 []byte) error
}

// Embedder is the subset of *embedding.Caller the pipeline depends on.
type Embedder interface {
	Embed(ctx context.Context, samples []float32) ([]float32, error)
}

// VectorUpserter is the subset of *vectorstore.Adapter the pipeline depends on.
type VectorUpserter interface {
	Upsert(ctx context.Context, points []vectorstore.Point) error
}

// Journal records side-index failures for later reconciliation.
type Journal interface {
	Record(ctx context.Context, trackID string, side reconcile.Side, reason string) error
}

// Pipeline wires the external collaborators used by Ingest.
type Pipeline struct {
	StorageRoot      string
	MinDurationSec   float64
	MaxDurationSec   float64
	EmbeddingModel   string

	// ContentDedupThreshold is the fingerprint-similarity floor for treating
	// two tracks as the same content, per spec.md §4.2. Zero defaults to
	// dedup.DefaultSimilarityThreshold.
	ContentDedupThreshold float64

	Tracks      TrackStore
	Fingerprint FingerprintStore
	Embedder    Embedder
	Vectors     VectorUpserter
	Journal     Journal

	writerGate *semaphore.Weighted
}

func New(p Pipeline) *Pipeline {
	if p.ContentDedupThreshold == 0 {
		p.ContentDedupThreshold = dedup.DefaultSimilarityThreshold
	}
	p.writerGate = semaphore.NewWeighted(1)
	return &p
}

// Ingest runs the 7-step sequence of spec.md §4.9 over raw (the unmodified
// bytes of an uploaded or CLI-supplied file) with originalExt (including the
// leading dot) used for the canonical filename.
//
// The single-writer mutex is acquired up front with TryAcquire: contention
// returns apierr.Contention immediately rather than queueing, per spec.md's
// "HTTP ingest endpoint returns 429 rather than queue."
func (p *Pipeline) Ingest(ctx context.Context, raw []byte, originalExt string) (Result, error) {
	if !p.writerGate.TryAcquire(1) {
		return Result{}, apierr.Contention("INGEST_BUSY", "another ingestion is in progress")
	}
	defer p.writerGate.Release(1)

	// Step 1: hash & fast-path dedup.
	hash := dedup.FileHash(raw)
	existing, err := p.Tracks.FindByHash(ctx, hash)
	if err != nil {
		return Result{}, apierr.Internal("INGEST_HASH_LOOKUP_FAILED", "hash lookup failed", err)
	}
	if existing != nil {
		return Result{Status: StatusDuplicate, DuplicateOf: existing.ID}, nil
	}

	// Step 2: metadata (best-effort; absence is tolerated by the caller
	// holding a temp path, not attempted here since ffprobe needs a path —
	// the canonical file is written first in step 4 and metadata read from
	// it, matching the teacher's saveEntry ordering of write-then-tag-read).

	// Step 3: decode & duration validation.
	pcm16k, pcm48k, err := decode.DecodeDualRate(ctx, raw)
	if err != nil {
		return Result{}, apierr.Validation("UNSUPPORTED_FORMAT", fmt.Sprintf("could not decode audio: %v", err))
	}
	durationSec := decode.PCMDurationSeconds(len(pcm16k)*4, decode.RateFingerprint, 4)
	if durationSec < p.MinDurationSec || durationSec > p.MaxDurationSec {
		return Result{Status: StatusSkipped, SkipReason: fmt.Sprintf("duration %.2fs outside [%.0f, %.0f]", durationSec, p.MinDurationSec, p.MaxDurationSec)}, nil
	}

	// Step 4: canonical storage.
	canonicalPath := p.canonicalPath(hash, originalExt)
	if err := os.MkdirAll(filepath.Dir(canonicalPath), 0o755); err != nil {
		return Result{}, apierr.Internal("INGEST_STORAGE_FAILED", "create storage directory", err)
	}
	if err := os.WriteFile(canonicalPath, raw, 0o644); err != nil {
		return Result{}, apierr.Internal("INGEST_STORAGE_FAILED", "write canonical file", err)
	}
	cleanupCanonical := func() { _ = os.Remove(canonicalPath) }

	info, err := metadata.Extract(ctx, canonicalPath)
	if err != nil {
		// Missing tags are tolerated; an unreadable file at this point means
		// the decode step above already disagreed with ffprobe, which
		// should not happen in practice. Treat conservatively as an error.
		cleanupCanonical()
		return Result{}, apierr.Internal("INGEST_METADATA_FAILED", "extract metadata", err)
	}

	// Step 5: content dedup.
	pcmS16 := dedup.F32ToS16(pcm16k)
	chromaprint, err := dedup.GenerateChromaprint(ctx, pcmS16, decode.RateFingerprint)
	if err != nil {
		cleanupCanonical()
		return Result{}, apierr.Internal("INGEST_CHROMAPRINT_FAILED", "generate chromaprint", err)
	}

	if chromaprint != "" {
		minDur := durationSec * (1 - DurationToleranceRatio)
		maxDur := durationSec * (1 + DurationToleranceRatio)
		candidates, err := p.Tracks.CandidatesInDurationWindow(ctx, minDur, maxDur)
		if err != nil {
			cleanupCanonical()
			return Result{}, apierr.Internal("INGEST_DEDUP_LOOKUP_FAILED", "content dedup candidate lookup", err)
		}
		if dupID, found := dedup.FindContentDuplicate(candidates, chromaprint, p.ContentDedupThreshold); found {
			cleanupCanonical()
			return Result{Status: StatusDuplicate, DuplicateOf: dupID}, nil
		}
	}

	// Step 6: parallel indexing under a freshly minted track id.
	trackID := uuid.New().String()

	olafIndexed := false
	var embeddingModel string
	var embeddingDim int

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := p.Fingerprint.Store(gctx, trackID, decode.F32ToBytes(pcm16k)); err != nil {
			if p.Journal != nil {
				_ = p.Journal.Record(context.Background(), trackID, reconcile.SideFingerprint, err.Error())
			}
			return nil // partial success, per spec.md: pipeline continues.
		}
		olafIndexed = true
		return nil
	})
	g.Go(func() error {
		dim, err := p.indexEmbeddings(gctx, trackID, pcm48k, info)
		if err != nil {
			if p.Journal != nil {
				_ = p.Journal.Record(context.Background(), trackID, reconcile.SideEmbedding, err.Error())
			}
			return nil
		}
		embeddingModel = p.EmbeddingModel
		embeddingDim = dim
		return nil
	})
	_ = g.Wait() // both sub-tasks always return nil; failures are recorded, not propagated.

	// Step 7: persist track.
	track := store.Track{
		ID:                 trackID,
		Title:              firstNonEmpty(info.Title, filepath.Base(canonicalPath)),
		DurationSec:        durationSec,
		FileHash:           hash,
		FileSizeBytes:      int64(len(raw)),
		StoredPath:         canonicalPath,
		FingerprintIndexed: olafIndexed,
	}
	if info.Artist != "" {
		track.Artist = &info.Artist
	}
	if info.Album != "" {
		track.Album = &info.Album
	}
	if info.Genre != "" {
		track.Genre = &info.Genre
	}
	if info.Format != "" {
		track.Format = &info.Format
	}
	if info.SampleRate > 0 {
		track.SampleRate = &info.SampleRate
	}
	if info.Channels > 0 {
		track.Channels = &info.Channels
	}
	if info.BitrateKbps > 0 {
		track.BitrateKbps = &info.BitrateKbps
	}
	if chromaprint != "" {
		track.ChromaprintFingerprint = &chromaprint
		track.ChromaprintDuration = &durationSec
	}
	if embeddingDim > 0 {
		track.EmbeddingModel = &embeddingModel
		track.EmbeddingDim = &embeddingDim
	}

	if err := p.Tracks.Insert(ctx, track); err != nil {
		// Canonical file and any vector-store points are orphaned here, per
		// spec.md §4.9's explicit allowance ("reconcilable by an offline
		// sweep not specified here").
		return Result{}, apierr.Internal("INGEST_PERSIST_FAILED", "insert track", err)
	}

	return Result{
		Status:         StatusIngested,
		TrackID:        trackID,
		OlafIndexed:    olafIndexed,
		EmbeddingModel: embeddingModel,
		EmbeddingDim:   embeddingDim,
	}, nil
}

func (p *Pipeline) indexEmbeddings(ctx context.Context, trackID string, pcm48k []float32, info metadata.Info) (int, error) {
	chunks := chunker.Chunk(pcm48k)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("ingest: clip too short to chunk for embedding")
	}

	var points []vectorstore.Point
	dim := 0
	for _, c := range chunks {
		vector, err := p.Embedder.Embed(ctx, c.Samples)
		if err != nil {
			return 0, fmt.Errorf("ingest: embed chunk %d: %w", c.Index, err)
		}
		dim = len(vector)
		points = append(points, vectorstore.Point{
			TrackID:     trackID,
			OffsetSec:   c.OffsetSec,
			ChunkIndex:  c.Index,
			DurationSec: c.ActualDurationSec,
			Artist:      info.Artist,
			Title:       info.Title,
			Genre:       info.Genre,
			Vector:      vector,
		})
	}

	if err := p.Vectors.Upsert(ctx, points); err != nil {
		return 0, fmt.Errorf("ingest: upsert vectors: %w", err)
	}
	return dim, nil
}

func (p *Pipeline) canonicalPath(hash, ext string) string {
	return filepath.Join(p.StorageRoot, "raw", hash[:2], hash+ext)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
