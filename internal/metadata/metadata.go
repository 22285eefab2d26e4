// Package metadata extracts tag and technical-property metadata from audio
// files via ffprobe, generalizing the teacher's wav.GetMetadata (invoked from
// cmdHandlers.go's saveEntry to read title/artist tags) to the richer field
// set original_source/.../metadata.py extracts: title, artist, album, genre,
// sample rate, channels, bitrate.
package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
)

// Info holds the subset of an audio file's tags and technical properties this
// service cares about. Missing fields are left at their zero value; callers
// treat them as null.
type Info struct {
	Title      string
	Artist     string
	Album      string
	Genre      string
	SampleRate int
	Channels   int
	BitrateKbps int
	DurationSec float64
	Format      string
}

type ffprobeOutput struct {
	Format struct {
		Duration string            `json:"duration"`
		BitRate  string            `json:"bit_rate"`
		FormatName string          `json:"format_name"`
		Tags     map[string]string `json:"tags"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
	} `json:"streams"`
}

// Extract runs ffprobe against path and returns the tags and technical
// properties it can determine. Never returns an error for missing tags; only
// for a completely unreadable file (ffprobe exits non-zero).
func Extract(ctx context.Context, path string) (Info, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return Info{}, fmt.Errorf("metadata: ffprobe failed: %v, output %s", err, stderr.String())
	}

	return parseFFprobeOutput(stdout.Bytes())
}

// parseFFprobeOutput is split out from Extract so the tag/field-mapping
// logic can be tested against fixture JSON without invoking ffprobe.
func parseFFprobeOutput(raw []byte) (Info, error) {
	var parsed ffprobeOutput
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Info{}, fmt.Errorf("metadata: parse ffprobe output: %w", err)
	}

	info := Info{Format: parsed.Format.FormatName}
	info.Title = firstTag(parsed.Format.Tags, "title", "TITLE")
	info.Artist = firstTag(parsed.Format.Tags, "artist", "ARTIST")
	info.Album = firstTag(parsed.Format.Tags, "album", "ALBUM")
	info.Genre = firstTag(parsed.Format.Tags, "genre", "GENRE")

	if d, err := strconv.ParseFloat(parsed.Format.Duration, 64); err == nil {
		info.DurationSec = d
	}
	if br, err := strconv.Atoi(parsed.Format.BitRate); err == nil {
		info.BitrateKbps = br / 1000
	}

	for _, s := range parsed.Streams {
		if s.CodecType != "audio" {
			continue
		}
		if sr, err := strconv.Atoi(s.SampleRate); err == nil {
			info.SampleRate = sr
		}
		info.Channels = s.Channels
		break
	}

	return info, nil
}

func firstTag(tags map[string]string, keys ...string) string {
	for _, k := range keys {
		if v, ok := tags[k]; ok && v != "" {
			return v
		}
	}
	return ""
}
