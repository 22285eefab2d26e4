// Package exact implements the exact-lane query of spec.md §4.5: sub-window
// strategy for short clips, multi-window consensus scoring, offset
// reconciliation via median, and confidence normalization.
package exact

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/MacPhobos/audio-ident/internal/applog"
	"github.com/MacPhobos/audio-ident/internal/decode"
	"github.com/MacPhobos/audio-ident/internal/olaf"
	"github.com/MacPhobos/audio-ident/internal/store"
)

const SampleRateHz = 16000

var log = applog.New("exact")

// subWindow is one of the three fixed overlapping sub-window boundaries,
// per spec.md §4.5.
type subWindow struct{ startSec, stopSec float64 }

var subWindows = []subWindow{
	{0.0, 3.5},
	{0.75, 4.25},
	{1.5, 5.0},
}

// Match is one exact-lane result, sorted by confidence descending.
type Match struct {
	Track         store.TrackInfo
	Confidence    float64
	OffsetSeconds float64
	AlignedHashes int
}

// Config carries the tunables spec.md leaves as defaults.
type Config struct {
	ShortClipThresholdSec float64
	MinAlignedHashes      int
	StrongMatchHashes     int
}

func DefaultConfig() Config {
	return Config{ShortClipThresholdSec: 5.0, MinAlignedHashes: 8, StrongMatchHashes: 20}
}

// Querier is the subset of *olaf.Client the exact lane depends on; defined
// here so tests can substitute a fake without standing up olaf_c.
type Querier interface {
	Query(ctx context.Context, pcm16kF32 []byte) ([]olaf.Match, error)
}

// TrackResolver resolves track_info by id; tracks not found are silently
// dropped (spec.md §4.5: "track may have been deleted between indexing and
// query").
type TrackResolver interface {
	GetManyByID(ctx context.Context, ids []string) (map[string]store.TrackInfo, error)
}

// Run executes the exact lane against pcm16k (16 kHz mono float32 PCM),
// selecting sub-window mode for clips at or below cfg.ShortClipThresholdSec
// and full-clip mode otherwise, per spec.md §4.5.
func Run(ctx context.Context, q Querier, resolver TrackResolver, pcm16k []float32, maxResults int, cfg Config) ([]Match, error) {
	clipDurationSec := float64(len(pcm16k)) / SampleRateHz

	var candidates map[string]*scoredCandidate
	var err error
	if clipDurationSec <= cfg.ShortClipThresholdSec {
		candidates, err = querySubWindows(ctx, q, pcm16k, clipDurationSec)
	} else {
		candidates, err = queryFullClip(ctx, q, pcm16k)
	}
	if err != nil {
		return nil, err
	}

	return finalize(ctx, resolver, candidates, maxResults, cfg)
}

type scoredCandidate struct {
	refID          string
	windowCount    int
	summedHashes   int
	referenceStarts []float64
}

func querySubWindows(ctx context.Context, q Querier, pcm16k []float32, clipDurationSec float64) (map[string]*scoredCandidate, error) {
	byTrack := make(map[string]*scoredCandidate)

	for _, w := range subWindows {
		start := clampSec(w.startSec, 0, clipDurationSec)
		stop := clampSec(w.stopSec, 0, clipDurationSec)
		if start >= stop {
			continue
		}

		window := extractWindow(pcm16k, start, stop)
		matches, err := q.Query(ctx, decode.F32ToBytes(window))
		if err != nil {
			return nil, fmt.Errorf("exact: sub-window query: %w", err)
		}

		windowTracks := make(map[string]bool)
		for _, m := range matches {
			refID, ok := parseRefID(m.RefPath)
			if !ok {
				log.Warn("non-UUID reference_path from olaf", "reference_path", m.RefPath)
				continue
			}
			c, ok := byTrack[refID]
			if !ok {
				c = &scoredCandidate{refID: refID}
				byTrack[refID] = c
			}
			c.summedHashes += m.MatchCount
			c.referenceStarts = append(c.referenceStarts, m.RefStart)
			if !windowTracks[refID] {
				windowTracks[refID] = true
				c.windowCount++
			}
		}
	}

	for _, c := range byTrack {
		if c.windowCount >= 2 {
			// aligned_hashes already equals the summed value; high confidence.
			continue
		}
		// single-window penalty
		halved := c.summedHashes / 2
		if halved < 1 {
			halved = 1
		}
		c.summedHashes = halved
	}

	return byTrack, nil
}

func queryFullClip(ctx context.Context, q Querier, pcm16k []float32) (map[string]*scoredCandidate, error) {
	matches, err := q.Query(ctx, decode.F32ToBytes(pcm16k))
	if err != nil {
		return nil, fmt.Errorf("exact: full-clip query: %w", err)
	}

	byTrack := make(map[string]*scoredCandidate)
	for _, m := range matches {
		refID, ok := parseRefID(m.RefPath)
		if !ok {
			log.Warn("non-UUID reference_path from olaf", "reference_path", m.RefPath)
			continue
		}
		c, ok := byTrack[refID]
		if !ok {
			c = &scoredCandidate{refID: refID}
			byTrack[refID] = c
		}
		c.summedHashes += m.MatchCount
		c.referenceStarts = append(c.referenceStarts, m.RefStart)
	}
	return byTrack, nil
}

func finalize(ctx context.Context, resolver TrackResolver, candidates map[string]*scoredCandidate, maxResults int, cfg Config) ([]Match, error) {
	type scored struct {
		refID      string
		alignedHashes int
		offsetSec  float64
		confidence float64
	}

	var filtered []scored
	for _, c := range candidates {
		if c.summedHashes < cfg.MinAlignedHashes {
			continue
		}
		confidence := float64(c.summedHashes) / float64(cfg.StrongMatchHashes)
		if confidence > 1.0 {
			confidence = 1.0
		}
		if confidence < 0 {
			confidence = 0
		}
		filtered = append(filtered, scored{
			refID:         c.refID,
			alignedHashes: c.summedHashes,
			offsetSec:     median(c.referenceStarts),
			confidence:    confidence,
		})
	}

	sort.Slice(filtered, func(i, j int) bool { return filtered[i].confidence > filtered[j].confidence })
	if maxResults > 0 && len(filtered) > maxResults {
		filtered = filtered[:maxResults]
	}

	ids := make([]string, len(filtered))
	for i, f := range filtered {
		ids[i] = f.refID
	}
	infos, err := resolver.GetManyByID(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("exact: resolve track info: %w", err)
	}

	results := make([]Match, 0, len(filtered))
	for _, f := range filtered {
		info, ok := infos[f.refID]
		if !ok {
			continue
		}
		results = append(results, Match{
			Track:         info,
			Confidence:    f.confidence,
			OffsetSeconds: f.offsetSec,
			AlignedHashes: f.alignedHashes,
		})
	}
	return results, nil
}

func parseRefID(refPath string) (string, bool) {
	if _, err := uuid.Parse(refPath); err != nil {
		return "", false
	}
	return refPath, true
}

func clampSec(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func extractWindow(pcm []float32, startSec, stopSec float64) []float32 {
	start := int(startSec * SampleRateHz)
	stop := int(stopSec * SampleRateHz)
	if start < 0 {
		start = 0
	}
	if stop > len(pcm) {
		stop = len(pcm)
	}
	if start >= stop {
		return nil
	}
	return pcm[start:stop]
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2.0
}
