// Package aggregation implements the Top-K-Average-with-Diversity-Bonus
// algorithm of spec.md §4.6, converting chunk-level vector hits into
// track-level scores.
package aggregation

import "sort"

const (
	DefaultTopKPerTrack    = 3
	DefaultDiversityWeight = 0.05
)

// ChunkHit is one vector-store hit: a track identifier, similarity score in
// [0, 1], the chunk index, and its offset in seconds within the track.
// Produced by the vibe lane only.
type ChunkHit struct {
	TrackID   string
	Score     float64
	ChunkIndex int
	OffsetSec float64
}

// TrackResult is the per-track outcome of aggregation.
type TrackResult struct {
	TrackID        string
	FinalScore     float64
	BaseScore      float64
	DiversityBonus float64
	MatchingChunks int
	TopScores      []float64
}

// Aggregate groups hits by TrackID (excluding exactMatchTrackID if set),
// computes each track's base score as the mean of its top topKPerTrack
// scores, adds a diversity bonus for distinct chunk offsets, and returns
// results sorted by final score descending.
func Aggregate(hits []ChunkHit, topKPerTrack int, diversityWeight float64, exactMatchTrackID string) []TrackResult {
	if topKPerTrack <= 0 {
		topKPerTrack = DefaultTopKPerTrack
	}

	byTrack := make(map[string][]ChunkHit)
	order := make([]string, 0)
	for _, h := range hits {
		if exactMatchTrackID != "" && h.TrackID == exactMatchTrackID {
			continue
		}
		if _, ok := byTrack[h.TrackID]; !ok {
			order = append(order, h.TrackID)
		}
		byTrack[h.TrackID] = append(byTrack[h.TrackID], h)
	}

	results := make([]TrackResult, 0, len(order))
	for _, trackID := range order {
		group := byTrack[trackID]

		scores := make([]float64, len(group))
		for i, h := range group {
			scores[i] = h.Score
		}
		sort.Sort(sort.Reverse(sort.Float64Slice(scores)))

		k := topKPerTrack
		if k > len(scores) {
			k = len(scores)
		}
		topScores := append([]float64(nil), scores[:k]...)

		var sum float64
		for _, s := range topScores {
			sum += s
		}
		base := sum / float64(k)

		uniqueOffsets := make(map[float64]struct{})
		for _, h := range group {
			uniqueOffsets[h.OffsetSec] = struct{}{}
		}
		bonusFactor := float64(len(uniqueOffsets)) / 5.0
		if bonusFactor > 1.0 {
			bonusFactor = 1.0
		}
		bonus := bonusFactor * diversityWeight

		results = append(results, TrackResult{
			TrackID:        trackID,
			FinalScore:     base + bonus,
			BaseScore:      base,
			DiversityBonus: bonus,
			MatchingChunks: len(group),
			TopScores:      topScores,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].FinalScore > results[j].FinalScore
	})

	return results
}
