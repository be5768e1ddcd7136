// Package CLI is the command line front of the harness. Each command builds
// its own Session from the app config and closes it before returning.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Shoowa/cotejo/config"
	"github.com/Shoowa/cotejo/logging"
	"github.com/Shoowa/cotejo/session"
)

// App carries what the persistent flags decide to every command.
type App struct {
	ConfigPath string
	Debug      bool

	// LogOutput receives the JSON log. Stderr when nil.
	LogOutput io.Writer

	// SessionOptions are appended when a command configures its Session.
	SessionOptions []session.Option

	cfg    *config.Config
	logger *slog.Logger
}

// load reads the config file named by --config, or the APP_ENV file.
func (a *App) load() error {
	path := a.ConfigPath
	if path == "" {
		path = config.EnvFile()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if a.Debug {
		cfg.Logger.Level = "debug"
	}

	out := a.LogOutput
	if out == nil {
		out = os.Stderr
	}
	a.cfg = cfg
	a.logger = logging.CreateLoggerTo(cfg, out)
	return nil
}

func (a *App) session() (*session.Session, error) {
	return session.Configure(a.cfg, a.logger, a.SessionOptions...)
}

func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "cotejo",
		Short: "Resolve database credentials and read fixture data for API tests",
		Long: `cotejo resolves the database login for a test session, from a local
INI file on a developer machine or from a secret vault in CI, opens one
connection for the session and reads the fixture data the API tests compare
against.`,
		Version:       config.AppVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.load()
		},
	}

	root.PersistentFlags().StringVar(&app.ConfigPath, "config", "", "App config file (.json or .yaml); defaults by APP_ENV")
	root.PersistentFlags().BoolVar(&app.Debug, "debug", false, "Enable debug logging")

	root.AddCommand(
		NewResolveCommand(app),
		NewProbeCommand(app),
		NewEmailsCommand(app),
		NewFieldCommand(app),
		NewGetCommand(app),
		NewServeCommand(app),
	)
	return root
}

// Execute runs the command tree with os.Args and prints a failure to stderr.
func Execute() int {
	app := new(App)
	if err := NewRootCommand(app).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
