// Package vibe implements the embedding-similarity lane of spec.md §4.7: one
// query-clip embedding, an ANN search against the vector store, aggregation
// via internal/aggregation, threshold filtering, and track enrichment.
package vibe

import (
	"context"
	"fmt"

	"github.com/MacPhobos/audio-ident/internal/aggregation"
	"github.com/MacPhobos/audio-ident/internal/store"
	"github.com/MacPhobos/audio-ident/internal/vectorstore"
)

// ErrModelUnavailable signals the embedding model has not finished loading,
// per spec.md §4.7 step 1: "If the model is not yet loaded, the vibe lane is
// unavailable and returns immediately."
var ErrModelUnavailable = fmt.Errorf("vibe: embedding model not loaded")

// Embedder produces a single embedding vector for a query clip.
type Embedder interface {
	Embed(ctx context.Context, samples []float32) ([]float32, error)
}

// Searcher runs an ANN query against the vector store.
type Searcher interface {
	Search(ctx context.Context, vector []float32, ef, limit int) ([]vectorstore.ChunkHit, error)
}

// TrackResolver resolves track_info by id.
type TrackResolver interface {
	GetManyByID(ctx context.Context, ids []string) (map[string]store.TrackInfo, error)
}

// Match is one vibe-lane result.
type Match struct {
	Track          store.TrackInfo
	Similarity     float64
	MatchingChunks int
}

// Config carries the tunables spec.md §4.7 leaves adjustable.
type Config struct {
	SearchEf         int
	SearchLimit      int
	TopKPerTrack     int
	DiversityWeight  float64
	MatchThreshold   float64
	MaxResults       int
}

func DefaultConfig() Config {
	return Config{
		SearchEf:        vectorstore.DefaultSearchEf,
		SearchLimit:     50,
		TopKPerTrack:    aggregation.DefaultTopKPerTrack,
		DiversityWeight: aggregation.DefaultDiversityWeight,
		MatchThreshold:  0.60,
		MaxResults:      10,
	}
}

// Run executes the vibe lane over pcm48k (48 kHz mono float32 PCM), the
// 9-step sequence of spec.md §4.7: require a loaded model, embed the query
// clip under the shared inference gate, search the vector store (degrading
// to an empty hit list on error), aggregate chunk hits into track scores
// (excluding the exact lane's own match, if any), filter by threshold,
// truncate to MaxResults, and enrich with track_info.
func Run(ctx context.Context, embedder Embedder, loaded bool, searcher Searcher, resolver TrackResolver, pcm48k []float32, exactMatchTrackID string, cfg Config) ([]Match, error) {
	if !loaded {
		return nil, ErrModelUnavailable
	}

	vector, err := embedder.Embed(ctx, pcm48k)
	if err != nil {
		return nil, fmt.Errorf("vibe: embed query clip: %w", err)
	}

	hits, searchErr := searcher.Search(ctx, vector, cfg.SearchEf, cfg.SearchLimit)
	if searchErr != nil {
		// Graceful degradation per spec.md §4.7 step 4: a vector-store error
		// does not fail the whole lane, it just yields no vibe matches.
		hits = nil
	}

	aggHits := make([]aggregation.ChunkHit, len(hits))
	for i, h := range hits {
		aggHits[i] = aggregation.ChunkHit{
			TrackID:    h.TrackID,
			Score:      h.Score,
			ChunkIndex: h.ChunkIndex,
			OffsetSec:  h.OffsetSec,
		}
	}

	ranked := aggregation.Aggregate(aggHits, cfg.TopKPerTrack, cfg.DiversityWeight, exactMatchTrackID)

	var filtered []aggregation.TrackResult
	for _, r := range ranked {
		if r.FinalScore < cfg.MatchThreshold {
			continue
		}
		filtered = append(filtered, r)
	}
	if cfg.MaxResults > 0 && len(filtered) > cfg.MaxResults {
		filtered = filtered[:cfg.MaxResults]
	}

	ids := make([]string, len(filtered))
	for i, r := range filtered {
		ids[i] = r.TrackID
	}
	infos, err := resolver.GetManyByID(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("vibe: resolve track info: %w", err)
	}

	matches := make([]Match, 0, len(filtered))
	for _, r := range filtered {
		info, ok := infos[r.TrackID]
		if !ok {
			continue
		}
		similarity := r.FinalScore
		if similarity > 1.0 {
			similarity = 1.0
		}
		matches = append(matches, Match{
			Track:          info,
			Similarity:     similarity,
			MatchingChunks: r.MatchingChunks,
		})
	}
	return matches, nil
}
