package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vango-dev/microscope/pkg/devtools"
	"github.com/vango-dev/microscope/pkg/middleware"
)

func inspectCmd(g *globals) *cobra.Command {
	var (
		port    int
		host    string
		history int
	)

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Start the devtools inspector",
		Long: `Start the devtools inspector.

Processes whose cells use devtools.Middleware connect to it when
MICROSCOPE_DEVTOOLS_URL points at its /ws endpoint. The HTTP API lists
the stores and pushes states back for time travel.

Examples:
  microscope inspect
  microscope inspect --port=9000 --history=500
  curl localhost:7411/stores/todos`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := g.cfg
			if port > 0 {
				cfg.Inspector.Port = port
			}
			if host != "" {
				cfg.Inspector.Host = host
			}
			if history > 0 {
				cfg.Inspector.HistoryLimit = history
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			middleware.EnableMetrics()
			inspector := devtools.NewInspector(
				devtools.WithHistoryLimit(cfg.Inspector.HistoryLimit),
				devtools.WithInspectorLogger(g.logger),
			)

			printBanner()
			fmt.Println("  inspect")
			fmt.Println()
			success("Listening on http://%s", cfg.InspectorAddress())
			info("export %s=%s", devtools.EnvURL, cfg.InspectorURL())
			fmt.Println()

			return serve(cfg.InspectorAddress(), inspector, nil)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default from config)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind to (default from config)")
	cmd.Flags().IntVar(&history, "history", 0, "Writes kept per store (default from config)")

	return cmd
}
