package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/MacPhobos/audio-ident/internal/config"
	"github.com/MacPhobos/audio-ident/internal/decode"
	"github.com/MacPhobos/audio-ident/internal/search"
)

func newSearchCmd(log *charmlog.Logger) *cobra.Command {
	var mode string
	var maxResults int

	cmd := &cobra.Command{
		Use:   "search <path_to_audio_file>",
		Short: "match a local audio file against the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Loader{}.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			a, err := newApp(ctx, settings)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			pcm16k, pcm48k, err := decode.DecodeDualRate(ctx, raw)
			if err != nil {
				return fmt.Errorf("decode %s: %w", args[0], err)
			}

			m := search.Mode(mode)
			switch m {
			case search.ModeExact, search.ModeVibe, search.ModeBoth:
			default:
				m = search.ModeBoth
			}

			resp := search.Run(ctx, m, pcm16k, pcm48k, maxResults, a.runExact, a.runVibe, search.Config{
				ExactLaneTimeout: settings.ExactLaneTimeout,
				VibeLaneTimeout:  settings.VibeLaneTimeout,
			})

			switch resp.Outcome {
			case search.OutcomeTimeout:
				color.Red("search timed out")
				return nil
			case search.OutcomeUnavailable:
				color.Red("search lanes unavailable")
				return nil
			}

			if len(resp.ExactMatches) == 0 && len(resp.VibeMatches) == 0 {
				fmt.Println("no match found")
				return nil
			}

			if len(resp.ExactMatches) > 0 {
				fmt.Println("exact matches:")
				for _, match := range resp.ExactMatches {
					fmt.Printf("\t- %s by %s, confidence: %.2f, offset: %.1fs\n",
						match.Track.Title, artistOrUnknown(match.Track.Artist), match.Confidence, match.OffsetSeconds)
				}
			}
			if len(resp.VibeMatches) > 0 {
				fmt.Println("vibe matches:")
				for _, match := range resp.VibeMatches {
					fmt.Printf("\t- %s by %s, similarity: %.2f\n",
						match.Track.Title, artistOrUnknown(match.Track.Artist), match.Similarity)
				}
			}
			fmt.Printf("\nquery took: %dms\n", resp.QueryDurationMs)
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "both", "search mode: exact, vibe, or both")
	cmd.Flags().IntVar(&maxResults, "max-results", 10, "maximum matches to return per lane")
	return cmd
}

func artistOrUnknown(artist *string) string {
	if artist == nil || *artist == "" {
		return "unknown"
	}
	return *artist
}
