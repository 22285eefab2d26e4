// Package search implements the per-mode orchestrator of spec.md §4.8,
// dispatching the exact and vibe lanes under independent timeouts and
// classifying the combined outcome.
package search

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/MacPhobos/audio-ident/internal/exact"
	"github.com/MacPhobos/audio-ident/internal/vibe"
)

// Mode selects which lane(s) a search request runs.
type Mode string

const (
	ModeExact Mode = "exact"
	ModeVibe  Mode = "vibe"
	ModeBoth  Mode = "both"
)

// Outcome classifies the orchestrator's final state, per spec.md §4.8's
// state machine terminal values.
type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeTimeout     Outcome = "timeout"
	OutcomeUnavailable Outcome = "unavailable"
)

var (
	ErrTimeout     = errors.New("search: lane timed out")
	ErrUnavailable = errors.New("search: lane unavailable")
)

// Config carries the per-lane timeout budgets.
type Config struct {
	ExactLaneTimeout time.Duration
	VibeLaneTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{ExactLaneTimeout: 3 * time.Second, VibeLaneTimeout: 4 * time.Second}
}

// ExactRunner runs the exact lane over 16 kHz PCM, truncating to maxResults
// before track_info is resolved.
type ExactRunner func(ctx context.Context, pcm16k []float32, maxResults int) ([]exact.Match, error)

// VibeRunner runs the vibe lane over 48 kHz PCM, truncating to maxResults
// before track_info is resolved.
type VibeRunner func(ctx context.Context, pcm48k []float32, exactMatchTrackID string, maxResults int) ([]vibe.Match, error)

// Response is the orchestrator's result, per spec.md §4.8.
type Response struct {
	RequestID       string
	QueryDurationMs int64
	ExactMatches    []exact.Match
	VibeMatches     []vibe.Match
	ModeUsed        Mode
	Outcome         Outcome
}

// Run dispatches mode against pcm16k/pcm48k and returns the classified
// response. maxResults is the caller's requested cap, applied by each lane
// before it resolves track_info (spec.md §4.5/§4.7: sort, truncate, then
// resolve — never the reverse). A lane's own timeout is applied via
// context.WithTimeout around its call; a lane exceeding its budget has its
// partial work discarded (the lane functions are expected to respect ctx
// cancellation themselves).
func Run(ctx context.Context, mode Mode, pcm16k, pcm48k []float32, maxResults int, runExact ExactRunner, runVibe VibeRunner, cfg Config) Response {
	start := time.Now()
	requestID := uuid.New().String()

	resp := Response{RequestID: requestID, ModeUsed: mode}

	switch mode {
	case ModeExact:
		matches, outcome := runExactLane(ctx, runExact, pcm16k, maxResults, cfg.ExactLaneTimeout)
		resp.ExactMatches = matches
		resp.Outcome = outcome
	case ModeVibe:
		matches, outcome := runVibeLane(ctx, runVibe, pcm48k, "", maxResults, cfg.VibeLaneTimeout)
		resp.VibeMatches = matches
		resp.Outcome = outcome
	case ModeBoth:
		resp = runBoth(ctx, runExact, runVibe, pcm16k, pcm48k, maxResults, cfg)
		resp.RequestID = requestID
		resp.ModeUsed = mode
	default:
		resp.Outcome = OutcomeUnavailable
	}

	resp.QueryDurationMs = time.Since(start).Milliseconds()
	return resp
}

func runExactLane(ctx context.Context, runExact ExactRunner, pcm16k []float32, maxResults int, timeout time.Duration) ([]exact.Match, Outcome) {
	laneCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	matches, err := runExact(laneCtx, pcm16k, maxResults)
	if err != nil {
		if errors.Is(laneCtx.Err(), context.DeadlineExceeded) {
			return nil, OutcomeTimeout
		}
		return nil, OutcomeUnavailable
	}
	return matches, OutcomeOK
}

func runVibeLane(ctx context.Context, runVibe VibeRunner, pcm48k []float32, exactMatchTrackID string, maxResults int, timeout time.Duration) ([]vibe.Match, Outcome) {
	laneCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	matches, err := runVibe(laneCtx, pcm48k, exactMatchTrackID, maxResults)
	if err != nil {
		if errors.Is(laneCtx.Err(), context.DeadlineExceeded) {
			return nil, OutcomeTimeout
		}
		return nil, OutcomeUnavailable
	}
	return matches, OutcomeOK
}

// runBoth schedules both lanes concurrently with independent timeouts; one
// lane's failure never cancels the other (spec.md §4.8).
func runBoth(ctx context.Context, runExact ExactRunner, runVibe VibeRunner, pcm16k, pcm48k []float32, maxResults int, cfg Config) Response {
	type exactResult struct {
		matches []exact.Match
		outcome Outcome
	}
	type vibeResult struct {
		matches []vibe.Match
		outcome Outcome
	}

	exactCh := make(chan exactResult, 1)
	vibeCh := make(chan vibeResult, 1)

	go func() {
		matches, outcome := runExactLane(ctx, runExact, pcm16k, maxResults, cfg.ExactLaneTimeout)
		exactCh <- exactResult{matches, outcome}
	}()
	go func() {
		matches, outcome := runVibeLane(ctx, runVibe, pcm48k, "", maxResults, cfg.VibeLaneTimeout)
		vibeCh <- vibeResult{matches, outcome}
	}()

	er := <-exactCh
	vr := <-vibeCh

	var outcome Outcome
	switch {
	case er.outcome == OutcomeTimeout && vr.outcome == OutcomeTimeout:
		outcome = OutcomeTimeout
	case er.outcome != OutcomeOK && vr.outcome != OutcomeOK:
		outcome = OutcomeUnavailable
	default:
		outcome = OutcomeOK
	}

	return Response{
		ExactMatches: er.matches,
		VibeMatches:  vr.matches,
		Outcome:      outcome,
	}
}
