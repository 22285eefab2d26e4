package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/MacPhobos/audio-ident/internal/config"
)

// newEraseCmd mirrors cmdHandlers.go's erase(songsDir, dbOnly, all): "db"
// clears the track store and the vector collection; the fingerprint store is
// left as it is, with a warning naming its path. "all" additionally deletes
// the canonical audio files under storage root.
func newEraseCmd(log *charmlog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "erase [db|all]",
		Short: "clear the database, and optionally the stored audio files",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			all := len(args) == 1 && args[0] == "all"
			if len(args) == 1 && args[0] != "db" && args[0] != "all" {
				return fmt.Errorf("usage: audioident erase [db | all]")
			}

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

			if err := a.tracks.DropAll(ctx); err != nil {
				log.Error("error dropping tracks", "err", err)
			} else {
				log.Info("track store cleared")
			}

			if err := a.vectors.DropCollection(ctx); err != nil {
				log.Error("error dropping vector collection", "err", err)
			} else {
				log.Info("vector collection cleared")
				if err := a.vectors.EnsureCollection(ctx); err != nil {
					log.Error("error recreating vector collection", "err", err)
				}
			}

			// olaf_c exposes store/query/del by track id only, no bulk-clear
			// subcommand; a full fingerprint-index wipe means removing its
			// database directory out of band before the next serve/ingest run.
			log.Warn("fingerprint index not cleared: olaf_c has no bulk-delete subcommand; remove its db path manually if needed", "path", settings.FingerprintDBPath)

			fmt.Println("database cleared")

			if !all {
				fmt.Println("erase complete")
				return nil
			}

			rawDir := filepath.Join(settings.StorageRoot, "raw")
			if err := filepath.Walk(rawDir, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return nil
				}
				if info.IsDir() {
					return nil
				}
				return os.Remove(path)
			}); err != nil {
				log.Error("error clearing audio files", "err", err)
			}
			fmt.Println("audio files cleared")
			fmt.Println("erase complete")
			return nil
		},
	}
	return cmd
}
