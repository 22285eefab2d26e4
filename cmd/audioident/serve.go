package main

import (
	"context"
	"net/http"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/MacPhobos/audio-ident/internal/config"
)

func newServeCmd(log *charmlog.Logger) *cobra.Command {
	var port string
	var host string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Loader{}.Load()
			if err != nil {
				return err
			}
			if port != "" {
				settings.ServicePort = port
			}
			if host != "" {
				settings.ServiceHost = host
			}

			ctx := context.Background()
			a, err := newApp(ctx, settings)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			addr := settings.ServiceHost + ":" + settings.ServicePort
			log.Info("starting server", "addr", addr)
			return http.ListenAndServe(addr, a.httpServer().Routes())
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "port to listen on (overrides SERVICE_PORT)")
	cmd.Flags().StringVar(&host, "host", "", "host to bind (overrides SERVICE_HOST)")
	return cmd
}
