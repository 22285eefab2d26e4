// Command audioident is the CLI entrypoint: it wires every collaborator in
// internal/ together and exposes them as "serve", "ingest", "search", and
// "erase" subcommands, the cobra-based generalization of main.go's
// find/save/serve/erase flag.NewFlagSet dispatch.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MacPhobos/audio-ident/internal/applog"
	"github.com/MacPhobos/audio-ident/internal/config"
)

func main() {
	config.LoadDotEnv()
	log := applog.New("cli")

	root := &cobra.Command{
		Use:   "audioident",
		Short: "audio identification service: exact-match fingerprinting and embedding-similarity search",
	}

	root.AddCommand(newServeCmd(log))
	root.AddCommand(newIngestCmd(log))
	root.AddCommand(newSearchCmd(log))
	root.AddCommand(newEraseCmd(log))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
