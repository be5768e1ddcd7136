package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/Shoowa/cotejo/router"
	"github.com/Shoowa/cotejo/server"
)

func NewServeCommand(app *App) *cobra.Command {
	var (
		port     string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve fixture data from one session over HTTP",
		Long: `Start a session and serve GET /v1/users/emails, GET /v1/fields/name,
GET /health and GET /metrics until SIGINT or SIGTERM. The session closes
when the server halts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.session()
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := s.Close(); closeErr != nil {
					app.logger.Error("Session close failed", "err", closeErr.Error())
				}
			}()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			if err := s.Start(ctx); err != nil {
				return err
			}

			srvLogger := app.logger.WithGroup("server")
			backbone := router.NewBackbone(
				router.WithLogger(srvLogger),
				router.WithFixtures(s.Gateway()),
				router.WithPinger(s.Manager()),
			)
			backbone.SetupHealthChecks(ctx, interval)

			httpCfg := *app.cfg.HttpServer
			if port != "" {
				httpCfg.Port = port
			}
			webserver := server.NewServer(&httpCfg, router.NewRouter(&httpCfg, backbone))
			return server.Start(ctx, srvLogger, webserver)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "Override httpserver.port")
	cmd.Flags().DurationVar(&interval, "health-interval", 15*time.Second, "How often /health pings the database; 0 pings only at start")
	return cmd
}
