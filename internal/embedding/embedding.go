// Package embedding calls the external embedding model-serving process over
// HTTP and normalizes its response into a flat vector, per spec.md §4.4. The
// model may respond with one of three shapes — a raw 2-D tensor, a pooled
// output, or a last_hidden_state sequence — discriminated here with the
// teacher's own JSON-path libraries (tidwall/gjson, buger/jsonparser) rather
// than three parallel encoding/json struct definitions, per spec.md §9's
// tagged-branching guidance.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/buger/jsonparser"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/semaphore"
)

// DefaultDimension is the output dimensionality of the default CLAP-style
// model (spec.md §4.4: "D = 512 for the default model").
const DefaultDimension = 512

// Error wraps any embedding failure; ingestion treats it as partial success
// (the track is inserted with embedding columns null), per spec.md §4.4.
type Error struct {
	Cause error
}

func (e *Error) Error() string { return fmt.Sprintf("embedding: %v", e.Cause) }
func (e *Error) Unwrap() error { return e.Cause }

type request struct {
	SampleRate int       `json:"sample_rate"`
	Samples    []float32 `json:"samples"`
}

// Caller invokes the embedding service, serializing calls through a
// single-slot gate shared with the vibe lane (spec.md §4.4's "Concurrency
// gate").
type Caller struct {
	ServiceURL string
	ModelName  string
	HTTPClient *http.Client
	gate       *semaphore.Weighted
}

func NewCaller(serviceURL, modelName string) *Caller {
	return &Caller{
		ServiceURL: serviceURL,
		ModelName:  modelName,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		gate:       semaphore.NewWeighted(1),
	}
}

// Embed produces a single embedding vector for samples (48 kHz mono
// float32), acquiring the single-slot inference gate only across the model
// call itself — surrounding I/O is not serialized, and the gate is released
// on both success and failure paths.
func (c *Caller) Embed(ctx context.Context, samples []float32) ([]float32, error) {
	body, err := json.Marshal(request{SampleRate: 48000, Samples: samples})
	if err != nil {
		return nil, &Error{Cause: err}
	}

	if err := c.gate.Acquire(ctx, 1); err != nil {
		return nil, &Error{Cause: err}
	}
	defer c.gate.Release(1)

	vec, err := c.call(ctx, body)
	if err != nil {
		return nil, &Error{Cause: err}
	}
	return vec, nil
}

func (c *Caller) call(ctx context.Context, body []byte) ([]float32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ServiceURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding service returned %d: %s", resp.StatusCode, string(respBody))
	}

	return extractVector(respBody)
}

// extractVector discriminates the three response shapes the model may
// produce, per spec.md §4.4:
//  1. a raw 2-D tensor [1, D] at the top level, under "tensor";
//  2. an object exposing a non-null pooled output [1, D] under "pooler_output";
//  3. an object exposing last_hidden_state [1, T, D] under "last_hidden_state",
//     taking position 0 along T.
//
// After the branch, the batch dimension is squeezed to a flat vector.
func extractVector(body []byte) ([]float32, error) {
	if pooled := gjson.GetBytes(body, "pooler_output"); pooled.Exists() && pooled.IsArray() {
		return squeezeBatch(pooled.Raw)
	}

	if hidden := gjson.GetBytes(body, "last_hidden_state"); hidden.Exists() && hidden.IsArray() {
		first := hidden.Array()
		if len(first) == 0 {
			return nil, fmt.Errorf("last_hidden_state has no batch entries")
		}
		sequence := first[0].Array()
		if len(sequence) == 0 {
			return nil, fmt.Errorf("last_hidden_state has no sequence positions")
		}
		return floatsFromGjson(sequence[0].Array()), nil
	}

	if raw := gjson.GetBytes(body, "tensor"); raw.Exists() && raw.IsArray() {
		return squeezeBatch(raw.Raw)
	}

	// Fallback: the whole body is a raw [1, D] array with no wrapping key.
	// jsonparser.ArrayEach walks the outer batch dimension without requiring
	// a full gjson parse of a potentially large tensor body; we only need
	// its first (and only) row.
	return firstRowViaJSONParser(body)
}

func firstRowViaJSONParser(body []byte) ([]float32, error) {
	var row []float32
	var rowErr error
	seenRow := false

	_, err := jsonparser.ArrayEach(body, func(value []byte, dataType jsonparser.ValueType, _ int, err error) {
		if seenRow || err != nil {
			return
		}
		seenRow = true
		if dataType != jsonparser.Array {
			rowErr = fmt.Errorf("unrecognized embedding response shape")
			return
		}
		var floats []float32
		_, innerErr := jsonparser.ArrayEach(value, func(v []byte, _ jsonparser.ValueType, _ int, _ error) {
			f, parseErr := jsonparser.ParseFloat(v)
			if parseErr != nil {
				return
			}
			floats = append(floats, float32(f))
		})
		if innerErr != nil {
			rowErr = innerErr
			return
		}
		row = floats
	})
	if err != nil {
		return nil, fmt.Errorf("unrecognized embedding response shape: %w", err)
	}
	if rowErr != nil {
		return nil, rowErr
	}
	if !seenRow {
		return nil, fmt.Errorf("unrecognized embedding response shape")
	}
	return row, nil
}

func squeezeBatch(raw string) ([]float32, error) {
	parsed := gjson.Parse(raw)
	rows := parsed.Array()
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty tensor")
	}
	return floatsFromGjson(rows[0].Array()), nil
}

func floatsFromGjson(values []gjson.Result) []float32 {
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(v.Float())
	}
	return out
}
