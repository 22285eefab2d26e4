package chunker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func samplesOfDuration(sec float64) []float32 {
	n := int(sec * SampleRateHz)
	s := make([]float32, n)
	for i := range s {
		s[i] = float32(i%1000) / 1000.0
	}
	return s
}

func TestChunkEdgeBehaviours(t *testing.T) {
	t.Run("30s yields 6 chunks at 0,5,10,15,20,25", func(t *testing.T) {
		chunks := Chunk(samplesOfDuration(30))
		require.Len(t, chunks, 6)
		wantOffsets := []float64{0, 5, 10, 15, 20, 25}
		for i, c := range chunks {
			assert.InDelta(t, wantOffsets[i], c.OffsetSec, 1e-9)
			assert.Equal(t, i, c.Index)
			assert.Len(t, c.Samples, int(WindowSec*SampleRateHz))
		}
	})

	t.Run("10s yields 2 chunks, second zero-padded", func(t *testing.T) {
		chunks := Chunk(samplesOfDuration(10))
		require.Len(t, chunks, 2)
		assert.InDelta(t, 10.0, chunks[0].ActualDurationSec, 1e-9)
		assert.InDelta(t, 5.0, chunks[1].ActualDurationSec, 1e-9)
		tail := chunks[1].Samples[int(5*SampleRateHz):]
		for _, v := range tail {
			assert.Equal(t, float32(0), v)
		}
	})

	t.Run("0.5s yields no chunks", func(t *testing.T) {
		assert.Empty(t, Chunk(samplesOfDuration(0.5)))
	})

	t.Run("exactly 1s yields 1 chunk", func(t *testing.T) {
		chunks := Chunk(samplesOfDuration(1.0))
		require.Len(t, chunks, 1)
		assert.InDelta(t, 1.0, chunks[0].ActualDurationSec, 1e-9)
	})
}

// Concatenating the unpadded content of emitted chunks at their declared
// offsets reproduces the source, for any duration >= 1s.
func TestChunkRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		durationSec := rapid.Float64Range(1.0, 45.0).Draw(t, "durationSec")
		samples := samplesOfDuration(durationSec)

		chunks := Chunk(samples)
		for _, c := range chunks {
			startIdx := int(c.OffsetSec * SampleRateHz)
			unpaddedLen := int(c.ActualDurationSec * SampleRateHz)
			got := c.Samples[:unpaddedLen]
			want := samples[startIdx : startIdx+unpaddedLen]
			for i := range want {
				if got[i] != want[i] {
					t.Fatalf("mismatch at chunk %d offset %d: got %v want %v", c.Index, i, got[i], want[i])
				}
			}
		}
	})
}
