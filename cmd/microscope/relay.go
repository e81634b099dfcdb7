package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vango-dev/microscope/pkg/persist"
	"github.com/vango-dev/microscope/pkg/storage"
)

func relayCmd(g *globals) *cobra.Command {
	var (
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Start the cross-process sync relay",
		Long: `Start the relay that carries storage events between processes.

Processes sharing a Local backend sync their persisted cells through
it when MICROSCOPE_RELAY points at the relay URL.

Examples:
  microscope relay
  microscope relay --host=0.0.0.0 --port=8100`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := g.cfg
			if port > 0 {
				cfg.Relay.Port = port
			}
			if host != "" {
				cfg.Relay.Host = host
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			relay := storage.NewRelayServer(g.logger)

			printBanner()
			fmt.Println("  relay")
			fmt.Println()
			success("Listening on %s", cfg.RelayURL())
			info("export %s=%s", persist.EnvRelay, cfg.RelayURL())
			fmt.Println()

			return serve(cfg.RelayAddress(), relay, relay.Close)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default from config)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind to (default from config)")

	return cmd
}
