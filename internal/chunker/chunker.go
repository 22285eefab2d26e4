// Package chunker splits 48 kHz mono float32 PCM into overlapping windows for
// embedding inference.
package chunker

const (
	SampleRateHz  = 48000
	WindowSec     = 10.0
	HopSec        = 5.0
	MinResidueSec = 1.0
)

// AudioChunk is a transient, fixed-length slice of audio carved out of a
// track's PCM for embedding inference. Discarded once written to the vector
// store.
type AudioChunk struct {
	Samples     []float32
	OffsetSec   float64
	Index       int
	ActualDurationSec float64
}

// Chunk splits samples (48 kHz mono float32) into WindowSec-long windows at
// HopSec hop, zero-padding the final window on the right when the source is
// exhausted. Emission stops once the residual audio at the current start
// position is shorter than MinResidueSec. ActualDurationSec on each chunk is
// the unpadded length.
func Chunk(samples []float32) []AudioChunk {
	windowLen := int(WindowSec * SampleRateHz)
	hopLen := int(HopSec * SampleRateHz)
	minResidue := int(MinResidueSec * SampleRateHz)

	total := len(samples)
	var chunks []AudioChunk

	for start, index := 0, 0; ; start, index = start+hopLen, index+1 {
		residue := total - start
		if residue < minResidue {
			break
		}

		window := make([]float32, windowLen)
		end := start + windowLen
		if end > total {
			end = total
		}
		n := copy(window, samples[start:end])

		chunks = append(chunks, AudioChunk{
			Samples:           window,
			OffsetSec:         float64(start) / SampleRateHz,
			Index:             index,
			ActualDurationSec: float64(n) / SampleRateHz,
		})
	}

	return chunks
}
