// Package decode wraps the external ffmpeg decoder, generalizing
// internal/legacywav's file-in/file-out convention to a pipe-in/pipe-out
// facade per spec.md §4.1: callers hand it raw container bytes and get back
// raw PCM, at whichever rate they ask for, without touching the filesystem.
package decode

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os/exec"

	"golang.org/x/sync/errgroup"
)

// Format is the PCM sample encoding requested from ffmpeg.
type Format string

const (
	FormatF32LE Format = "f32le"
	FormatS16LE Format = "s16le"
)

const (
	RateFingerprint = 16000
	RateEmbedding   = 48000
)

// Error distinguishes decode failures from other errors so callers can map
// them to the Validation/Internal taxonomy at the HTTP boundary.
type Error struct {
	Cause  error
	Stderr string
}

func (e *Error) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("decode: %v (stderr: %s)", e.Cause, e.Stderr)
	}
	return fmt.Sprintf("decode: %v", e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// CheckFFmpeg verifies the ffmpeg binary is reachable on PATH, used by the
// readiness probe.
func CheckFFmpeg(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", "-version")
	if err := cmd.Run(); err != nil {
		return &Error{Cause: fmt.Errorf("ffmpeg not available: %w", err)}
	}
	return nil
}

// DecodeToPCM converts src (arbitrary container bytes) to mono PCM at
// sampleRate in the given format, by piping src into ffmpeg's stdin and
// reading raw samples from its stdout.
func DecodeToPCM(ctx context.Context, src []byte, sampleRate int, format Format) ([]byte, error) {
	if len(src) == 0 {
		return nil, &Error{Cause: fmt.Errorf("empty input")}
	}

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-i", "pipe:0",
		"-f", string(format),
		"-ar", fmt.Sprint(sampleRate),
		"-ac", "1",
		"pipe:1",
	)
	cmd.Stdin = bytes.NewReader(src)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &Error{Cause: err, Stderr: stderr.String()}
	}
	if stdout.Len() == 0 {
		return nil, &Error{Cause: fmt.Errorf("decoder produced no output"), Stderr: stderr.String()}
	}
	return stdout.Bytes(), nil
}

// DecodeDualRate decodes src into two synchronized mono float32 PCM streams:
// one at 16 kHz (for fingerprinting) and one at 48 kHz (for embeddings),
// running both ffmpeg invocations concurrently against the same input bytes.
// Fails if either child fails, if src is empty, or if either child produces
// zero output.
func DecodeDualRate(ctx context.Context, src []byte) (pcm16k, pcm48k []float32, err error) {
	if len(src) == 0 {
		return nil, nil, &Error{Cause: fmt.Errorf("empty input")}
	}

	g, gctx := errgroup.WithContext(ctx)

	var raw16k, raw48k []byte
	g.Go(func() error {
		b, err := DecodeToPCM(gctx, src, RateFingerprint, FormatF32LE)
		if err != nil {
			return err
		}
		raw16k = b
		return nil
	})
	g.Go(func() error {
		b, err := DecodeToPCM(gctx, src, RateEmbedding, FormatF32LE)
		if err != nil {
			return err
		}
		raw48k = b
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	return bytesToF32(raw16k), bytesToF32(raw48k), nil
}

// PCMDurationSeconds computes duration from raw PCM byte length, a sample
// rate, and bytes-per-sample (4 for f32le, 2 for s16le).
func PCMDurationSeconds(byteLen, sampleRate, bytesPerSample int) float64 {
	if sampleRate <= 0 || bytesPerSample <= 0 {
		return 0
	}
	return float64(byteLen) / float64(sampleRate*bytesPerSample)
}

// F32ToBytes serializes float32 samples to little-endian bytes, the inverse
// of the conversion DecodeDualRate performs on ffmpeg's stdout, used when
// feeding a PCM slice to an external tool over stdin (e.g. olaf_c).
func F32ToBytes(samples []float32) []byte {
	out := make([]byte, 4*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(s))
	}
	return out
}

func bytesToF32(b []byte) []float32 {
	n := len(b) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(b[4*i : 4*i+4])
		out[i] = math.Float32frombits(bits)
	}
	return out
}
