// Package olaf wraps the external olaf_c fingerprint-store binary: it
// maintains an inverted hash index keyed by stringified track UUID, tolerates
// exactly one writer process, and exposes store/query/del subcommands per
// spec.md §6. Wrapped with the same os/exec.Command/CombinedOutput idiom
// internal/legacywav used for ffmpeg.
package olaf

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Error distinguishes a missing olaf_c binary (ErrBinaryMissing) from other
// failures, per spec.md §4.5's "if the binary is missing, raise a
// distinguished OlafError".
type Error struct {
	Cause error
}

func (e *Error) Error() string { return fmt.Sprintf("olaf: %v", e.Cause) }
func (e *Error) Unwrap() error { return e.Cause }

var ErrBinaryMissing = fmt.Errorf("olaf_c binary not found on PATH")

// Match is one line of olaf_c query output: match_count, query-side
// start/stop seconds, reference track name (a stringified UUID), reference
// identifier, reference-side start/stop seconds.
type Match struct {
	MatchCount int
	QueryStart float64
	QueryStop  float64
	RefPath    string
	RefID      string
	RefStart   float64
	RefStop    float64
}

// Client talks to one olaf_c database directory.
type Client struct {
	DBPath string
}

func NewClient(dbPath string) *Client {
	return &Client{DBPath: dbPath}
}

func (c *Client) env() []string {
	return append(os.Environ(), "OLAF_DB="+c.DBPath)
}

// Store writes 16 kHz mono f32le PCM into the fingerprint index under trackID
// (a stringified UUID).
func (c *Client) Store(ctx context.Context, trackID string, pcm16kF32 []byte) error {
	cmd := exec.CommandContext(ctx, "olaf_c", "store", trackID)
	cmd.Env = c.env()
	cmd.Stdin = bytes.NewReader(pcm16kF32)

	output, err := cmd.CombinedOutput()
	if err != nil {
		if isBinaryMissing(err) {
			return &Error{Cause: ErrBinaryMissing}
		}
		return &Error{Cause: fmt.Errorf("store failed: %v, output: %s", err, output)}
	}
	return nil
}

// Query submits 16 kHz mono f32le PCM and returns every aligned match.
// A non-zero exit from olaf_c is treated as "no matches" (empty, nil
// error), per spec.md §4.5. A missing binary is a distinguished error;
// any other unexpected failure also surfaces as *Error.
func (c *Client) Query(ctx context.Context, pcm16kF32 []byte) ([]Match, error) {
	cmd := exec.CommandContext(ctx, "olaf_c", "query")
	cmd.Env = c.env()
	cmd.Stdin = bytes.NewReader(pcm16kF32)

	output, err := cmd.CombinedOutput()
	if err != nil {
		if isBinaryMissing(err) {
			return nil, &Error{Cause: ErrBinaryMissing}
		}
		if _, ok := err.(*exec.ExitError); ok {
			return []Match{}, nil
		}
		return nil, &Error{Cause: fmt.Errorf("query failed: %v, output: %s", err, output)}
	}

	return parseOutput(string(output)), nil
}

// Delete removes trackID's entries from the fingerprint index.
func (c *Client) Delete(ctx context.Context, trackID string) error {
	cmd := exec.CommandContext(ctx, "olaf_c", "del", trackID)
	cmd.Env = c.env()

	output, err := cmd.CombinedOutput()
	if err != nil {
		if isBinaryMissing(err) {
			return &Error{Cause: ErrBinaryMissing}
		}
		return &Error{Cause: fmt.Errorf("delete failed: %v, output: %s", err, output)}
	}
	return nil
}

func isBinaryMissing(err error) bool {
	execErr, ok := err.(*exec.Error)
	return ok && execErr.Err == exec.ErrNotFound
}

// parseOutput parses one match per line, comma-separated with semicolon
// accepted as a fallback delimiter, 7 fields in order. Lines with fewer than
// 7 fields or non-numeric numeric fields are skipped.
func parseOutput(output string) []Match {
	var matches []Match
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		fields := strings.Split(line, ",")
		if len(fields) < 7 {
			fields = strings.Split(line, ";")
		}
		if len(fields) < 7 {
			continue
		}

		m, ok := partsToMatch(fields[:7])
		if !ok {
			continue
		}
		matches = append(matches, m)
	}
	return matches
}

func partsToMatch(fields []string) (Match, bool) {
	matchCount, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return Match{}, false
	}
	queryStart, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return Match{}, false
	}
	queryStop, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
	if err != nil {
		return Match{}, false
	}
	refPath := strings.TrimSpace(fields[3])
	refID := strings.TrimSpace(fields[4])
	refStart, err := strconv.ParseFloat(strings.TrimSpace(fields[5]), 64)
	if err != nil {
		return Match{}, false
	}
	refStop, err := strconv.ParseFloat(strings.TrimSpace(fields[6]), 64)
	if err != nil {
		return Match{}, false
	}

	return Match{
		MatchCount: matchCount,
		QueryStart: queryStart,
		QueryStop:  queryStop,
		RefPath:    refPath,
		RefID:      refID,
		RefStart:   refStart,
		RefStop:    refStop,
	}, true
}
