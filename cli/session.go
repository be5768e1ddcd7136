package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Shoowa/cotejo/data/mapdb"
	"github.com/Shoowa/cotejo/session"
)

func NewResolveCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve",
		Short: "Show which environment was detected and which database it resolves to",
		Long: `Resolve the credentials for this environment and print the login without
the password. Nothing connects to the database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.session()
			if err != nil {
				return err
			}
			creds, err := s.Credentials(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "environment: %s\n", s.Environment())
			fmt.Fprintf(out, "login: %s\n", creds)
			if creds.AuthMode != "" {
				fmt.Fprintf(out, "authentication: %s\n", creds.AuthMode)
			}
			return nil
		},
	}
}

func NewProbeCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Check that the database answers SELECT 1",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.session()
			if err != nil {
				return err
			}
			conn, err := s.Connection(cmd.Context())
			if err != nil {
				return err
			}
			if err := s.Probe(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reachable: %s\n", conn.Target)
			return nil
		},
	}
}

func NewEmailsCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "emails",
		Short: "Print the email of every user with access, one per line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.run(cmd, func(ctx context.Context, g *mapdb.Gateway) error {
				emails, err := g.FetchUserEmails(ctx)
				if err != nil {
					return err
				}
				for _, email := range emails {
					fmt.Fprintln(cmd.OutOrStdout(), email)
				}
				return nil
			})
		},
	}
}

func NewFieldCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "field",
		Short: "Print the field name held in the field master table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.run(cmd, func(ctx context.Context, g *mapdb.Gateway) error {
				name, err := g.FetchFieldName(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), name)
				return nil
			})
		},
	}
}

// run opens a Session for one command and closes it afterwards.
func (a *App) run(cmd *cobra.Command, fn func(context.Context, *mapdb.Gateway) error) error {
	s, err := a.session()
	if err != nil {
		return err
	}
	return session.Run(cmd.Context(), s, fn)
}
