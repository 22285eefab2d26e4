package decode

import "github.com/MacPhobos/audio-ident/internal/apierr"

// ValidateDuration rejects audio whose duration falls outside [min, max]
// seconds, per spec.md §4.1's validation wrapper (search minimum default 3s,
// ingestion maximum default 1800s).
func ValidateDuration(durationSec, min, max float64) error {
	if durationSec < min {
		return apierr.Validation("AUDIO_TOO_SHORT", "audio is shorter than the minimum allowed duration")
	}
	if durationSec > max {
		return apierr.Validation("AUDIO_TOO_LONG", "audio is longer than the maximum allowed duration")
	}
	return nil
}
