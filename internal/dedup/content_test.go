package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindContentDuplicate(t *testing.T) {
	candidates := []DurationCandidate{
		{TrackID: "t1", Chromaprint: "1,2,3,4", DurationSec: 10},
		{TrackID: "t2", Chromaprint: "1,2,3,5", DurationSec: 10},
	}

	id, found := FindContentDuplicate(candidates, "1,2,3,4", DefaultSimilarityThreshold)
	assert.True(t, found)
	assert.Equal(t, "t1", id)

	_, found = FindContentDuplicate(candidates, "9,9,9,9", DefaultSimilarityThreshold)
	assert.False(t, found)

	_, found = FindContentDuplicate(nil, "1,2,3,4", DefaultSimilarityThreshold)
	assert.False(t, found)
}

// TestFindContentDuplicateWithinDefaultBandButBelowOldThreshold pins the
// default threshold at 0.85: a candidate with 0.90 similarity must be
// flagged as a duplicate even though it falls below the stricter 0.95 that
// was mistakenly hardcoded in internal/ingest before.
func TestFindContentDuplicateWithinDefaultBandButBelowOldThreshold(t *testing.T) {
	query := "0,0,0,0,0,0,0,0,0,0"
	candidates := []DurationCandidate{
		{TrackID: "similar", Chromaprint: "4294967295,0,0,0,0,0,0,0,0,0", DurationSec: 10},
	}

	sim := FingerprintSimilarityRaw(query, candidates[0].Chromaprint)
	assert.InDelta(t, 0.9, sim, 1e-9)

	id, found := FindContentDuplicate(candidates, query, DefaultSimilarityThreshold)
	assert.True(t, found)
	assert.Equal(t, "similar", id)

	_, found = FindContentDuplicate(candidates, query, 0.95)
	assert.False(t, found)
}

func TestFileHashDeterministic(t *testing.T) {
	a := FileHash([]byte("hello"))
	b := FileHash([]byte("hello"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, FileHash([]byte("world")))
}

func TestF32ToS16Clamps(t *testing.T) {
	out := F32ToS16([]float32{1.5, -1.5, 0, 0.5})
	assert.Len(t, out, 8)
	// first sample clamps to int16 max (32767)
	v := int16(out[0]) | int16(out[1])<<8
	assert.Equal(t, int16(32767), v)
}
