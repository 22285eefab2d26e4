package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/fatih/color"
	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/MacPhobos/audio-ident/internal/config"
)

func newIngestCmd(log *charmlog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <path_to_file_or_dir>",
		Short: "ingest one audio file, or every audio file under a directory",
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

			path := args[0]
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("stat %s: %w", path, err)
			}

			if !info.IsDir() {
				return ingestOne(ctx, a, path)
			}

			paths, err := collectAudioFiles(path)
			if err != nil {
				return err
			}
			ingestDirectory(ctx, a, paths)
			return nil
		},
	}
	return cmd
}

var audioExtensions = map[string]bool{
	".wav": true, ".mp3": true, ".flac": true, ".ogg": true, ".m4a": true,
}

func collectAudioFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.Walk(root, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return nil
		}
		if audioExtensions[filepath.Ext(p)] {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// fileRead is the result of reading one file's bytes off disk.
type fileRead struct {
	path string
	data []byte
	err  error
}

// ingestDirectory reads every file's bytes concurrently — a
// runtime.NumCPU()-sized jobs/results channel pool adapted from
// cmdHandlers.go's processFilesConcurrently — then feeds them through
// Pipeline.Ingest strictly in path order: disk reads parallelize freely,
// but the single-writer pipeline itself stays sequential.
func ingestDirectory(ctx context.Context, a *app, paths []string) {
	if len(paths) == 0 {
		fmt.Println("no audio files found")
		return
	}

	workers := runtime.NumCPU()
	if workers > len(paths) {
		workers = len(paths)
	}
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan int, len(paths))
	results := make(chan fileRead, len(paths))
	reads := make([]fileRead, len(paths))

	for w := 0; w < workers; w++ {
		go func() {
			for i := range jobs {
				data, err := os.ReadFile(paths[i])
				results <- fileRead{path: paths[i], data: data, err: err}
			}
		}()
	}
	for i := range paths {
		jobs <- i
	}
	close(jobs)

	for range paths {
		r := <-results
		for i, p := range paths {
			if p == r.path {
				reads[i] = r
				break
			}
		}
	}

	ingested, duplicate, skipped, failed := 0, 0, 0, 0
	for _, r := range reads {
		if r.err != nil {
			color.Red("error reading %s: %v", r.path, r.err)
			failed++
			continue
		}
		result, err := a.pipeline.Ingest(ctx, r.data, filepath.Ext(r.path))
		if err != nil {
			color.Red("error ingesting %s: %v", r.path, err)
			failed++
			continue
		}
		switch result.Status {
		case "ingested":
			color.Green("ingested %s -> track %s", r.path, result.TrackID)
			ingested++
		case "duplicate":
			color.Yellow("duplicate %s (of %s)", r.path, result.DuplicateOf)
			duplicate++
		default:
			color.Yellow("skipped %s (%s)", r.path, result.SkipReason)
			skipped++
		}
	}

	fmt.Printf("\ningested %d, duplicate %d, skipped %d, failed %d (of %d files)\n",
		ingested, duplicate, skipped, failed, len(paths))
}

func ingestOne(ctx context.Context, a *app, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	result, err := a.pipeline.Ingest(ctx, data, filepath.Ext(path))
	if err != nil {
		return err
	}
	switch result.Status {
	case "ingested":
		color.Green("ingested %s -> track %s", path, result.TrackID)
	case "duplicate":
		color.Yellow("duplicate of track %s", result.DuplicateOf)
	default:
		color.Yellow("skipped: %s", result.SkipReason)
	}
	return nil
}
