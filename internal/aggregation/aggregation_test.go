package aggregation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// End-to-end scenario 4 from spec.md §8.
func TestAggregateScenario(t *testing.T) {
	hits := []ChunkHit{
		{TrackID: "A", Score: 0.9, OffsetSec: 0},
		{TrackID: "A", Score: 0.85, OffsetSec: 5},
		{TrackID: "A", Score: 0.8, OffsetSec: 10},
		{TrackID: "B", Score: 0.75, OffsetSec: 0},
		{TrackID: "B", Score: 0.7, OffsetSec: 5},
	}

	results := Aggregate(hits, 3, 0.05, "")
	require.Len(t, results, 2)

	assert.Equal(t, "A", results[0].TrackID)
	assert.InDelta(t, 0.85, results[0].BaseScore, 1e-9)
	assert.InDelta(t, 0.03, results[0].DiversityBonus, 1e-9)
	assert.InDelta(t, 0.88, results[0].FinalScore, 1e-9)

	assert.Equal(t, "B", results[1].TrackID)
	assert.InDelta(t, 0.725, results[1].BaseScore, 1e-9)
	assert.InDelta(t, 0.02, results[1].DiversityBonus, 1e-9)
	assert.InDelta(t, 0.745, results[1].FinalScore, 1e-9)
}

func TestAggregateExcludesExactMatch(t *testing.T) {
	hits := []ChunkHit{
		{TrackID: "A", Score: 0.9, OffsetSec: 0},
		{TrackID: "B", Score: 0.75, OffsetSec: 0},
		{TrackID: "B", Score: 0.7, OffsetSec: 5},
	}
	results := Aggregate(hits, 3, 0.05, "A")
	require.Len(t, results, 1)
	assert.Equal(t, "B", results[0].TrackID)
}

func TestAggregateInvariants(t *testing.T) {
	hits := []ChunkHit{
		{TrackID: "A", Score: 0.5, OffsetSec: 0},
		{TrackID: "B", Score: 0.9, OffsetSec: 0},
		{TrackID: "C", Score: 0.7, OffsetSec: 0},
	}
	results := Aggregate(hits, 3, 0.05, "")
	seen := make(map[string]bool)
	for i, r := range results {
		assert.False(t, seen[r.TrackID], "track appears twice")
		seen[r.TrackID] = true
		if i > 0 {
			assert.GreaterOrEqual(t, results[i-1].FinalScore, r.FinalScore)
		}
	}
}
