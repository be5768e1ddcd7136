package cli

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Shoowa/cotejo/apiclient"
)

func NewGetCommand(app *App) *cobra.Command {
	var (
		baseURL string
		params  []string
		status  bool
	)

	cmd := &cobra.Command{
		Use:   "get PATH",
		Short: "Send a GET request to the API under test",
		Long: `Send GET {base_url}{PATH}?{params} and print the body. A reply outside
the 2xx range fails the command.

Examples:
  cotejo get /api/fields --param name=Acreage
  cotejo get /api/users --base-url https://localhost:5001`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{}
			for _, p := range params {
				key, value, ok := strings.Cut(p, "=")
				if !ok {
					return fmt.Errorf("--param %q: expected key=value", p)
				}
				query.Add(key, value)
			}

			apiCfg := *app.cfg.Api
			if baseURL != "" {
				apiCfg.BaseURL = baseURL
			}
			if apiCfg.BaseURL == "" {
				return fmt.Errorf("no base URL: set api.base_url or pass --base-url")
			}

			client := apiclient.FromConfig(&apiCfg, app.logger)
			resp, err := client.Get(cmd.Context(), args[0], query)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if status {
				fmt.Fprintf(out, "%d\n", resp.StatusCode)
			}
			out.Write(resp.Body)
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "", "Override api.base_url")
	cmd.Flags().StringArrayVar(&params, "param", nil, "Query parameter as key=value; repeatable")
	cmd.Flags().BoolVar(&status, "status", false, "Print the status code before the body")
	return cmd
}
