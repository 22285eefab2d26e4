package search

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MacPhobos/audio-ident/internal/exact"
	"github.com/MacPhobos/audio-ident/internal/vibe"
)

func okExact(matches []exact.Match) ExactRunner {
	return func(_ context.Context, _ []float32, _ int) ([]exact.Match, error) { return matches, nil }
}

func okVibe(matches []vibe.Match) VibeRunner {
	return func(_ context.Context, _ []float32, _ string, _ int) ([]vibe.Match, error) { return matches, nil }
}

func erroringExact(err error) ExactRunner {
	return func(_ context.Context, _ []float32, _ int) ([]exact.Match, error) { return nil, err }
}

func erroringVibe(err error) VibeRunner {
	return func(_ context.Context, _ []float32, _ string, _ int) ([]vibe.Match, error) { return nil, err }
}

func slowExact(delay time.Duration) ExactRunner {
	return func(ctx context.Context, _ []float32, _ int) ([]exact.Match, error) {
		select {
		case <-time.After(delay):
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func slowVibe(delay time.Duration) VibeRunner {
	return func(ctx context.Context, _ []float32, _ string, _ int) ([]vibe.Match, error) {
		select {
		case <-time.After(delay):
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func TestRunExactModeSuccess(t *testing.T) {
	resp := Run(context.Background(), ModeExact, nil, nil, 10, okExact([]exact.Match{{Confidence: 1.0}}), okVibe(nil), DefaultConfig())
	assert.Equal(t, OutcomeOK, resp.Outcome)
	assert.Len(t, resp.ExactMatches, 1)
	assert.Empty(t, resp.VibeMatches)
	assert.NotEmpty(t, resp.RequestID)
}

func TestRunExactModeTimeout(t *testing.T) {
	cfg := Config{ExactLaneTimeout: 10 * time.Millisecond, VibeLaneTimeout: time.Second}
	resp := Run(context.Background(), ModeExact, nil, nil, 10, slowExact(100*time.Millisecond), okVibe(nil), cfg)
	assert.Equal(t, OutcomeTimeout, resp.Outcome)
}

func TestRunExactModeUnavailable(t *testing.T) {
	resp := Run(context.Background(), ModeExact, nil, nil, 10, erroringExact(fmt.Errorf("olaf_c binary not found")), okVibe(nil), DefaultConfig())
	assert.Equal(t, OutcomeUnavailable, resp.Outcome)
}

func TestRunBothModeOneLaneFailsStillOK(t *testing.T) {
	resp := Run(context.Background(), ModeBoth, nil, nil, 10, erroringExact(fmt.Errorf("boom")), okVibe([]vibe.Match{{Similarity: 0.9}}), DefaultConfig())
	assert.Equal(t, OutcomeOK, resp.Outcome)
	assert.Empty(t, resp.ExactMatches)
	require.Len(t, resp.VibeMatches, 1)
}

func TestRunBothModeBothTimeout(t *testing.T) {
	cfg := Config{ExactLaneTimeout: 10 * time.Millisecond, VibeLaneTimeout: 10 * time.Millisecond}
	resp := Run(context.Background(), ModeBoth, nil, nil, 10, slowExact(time.Second), slowVibe(time.Second), cfg)
	assert.Equal(t, OutcomeTimeout, resp.Outcome)
}

func TestRunBothModeBothUnavailable(t *testing.T) {
	resp := Run(context.Background(), ModeBoth, nil, nil, 10, erroringExact(fmt.Errorf("boom")), erroringVibe(fmt.Errorf("boom")), DefaultConfig())
	assert.Equal(t, OutcomeUnavailable, resp.Outcome)
}

func TestRunBothModeOneTimeoutOneUnavailableIsUnavailable(t *testing.T) {
	cfg := Config{ExactLaneTimeout: 10 * time.Millisecond, VibeLaneTimeout: time.Second}
	resp := Run(context.Background(), ModeBoth, nil, nil, 10, slowExact(time.Second), erroringVibe(fmt.Errorf("boom")), cfg)
	assert.Equal(t, OutcomeUnavailable, resp.Outcome)
}

func TestRunVibeModeSuccess(t *testing.T) {
	resp := Run(context.Background(), ModeVibe, nil, nil, 10, okExact(nil), okVibe([]vibe.Match{{Similarity: 0.8}}), DefaultConfig())
	assert.Equal(t, OutcomeOK, resp.Outcome)
	require.Len(t, resp.VibeMatches, 1)
}
