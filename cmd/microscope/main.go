package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/microscope/internal/config"
	"github.com/vango-dev/microscope/internal/errors"
	"github.com/vango-dev/microscope/internal/logging"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┌┬┐┬┌─┐┬─┐┌─┐┌─┐┌─┐┌─┐┌─┐┌─┐
  ││││├  ├┬┘│ │└─┐│  │ │├─┘├┤
  ┴ ┴┴└─┘┴└─└─┘└─┘└─┘└─┘┴  └─┘
`

// globals holds the state shared by all commands.
type globals struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg    *config.Config
	logger *slog.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !isTerminal(os.Stderr) {
			errors.DisableColors()
		}
		errors.Print(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:   "microscope",
		Short: "Inspect and sync microscope state containers",
		Long: `microscope is the companion CLI for microscope state cells.

  • inspect  run the devtools inspector processes report to
  • relay    run the relay that syncs persisted cells across processes
  • kv       read and write persisted keys on a storage backend`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.load()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Config file (default: microscope.json in the working directory or a parent)")
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&g.logFormat, "log-format", "", "Log format: text or json")

	rootCmd.AddCommand(
		inspectCmd(g),
		relayCmd(g),
		kvCmd(g),
		versionCmd(),
	)
	return rootCmd
}

// load reads the configuration and builds the logger.
func (g *globals) load() error {
	var err error
	if g.configPath != "" {
		g.cfg, err = config.LoadFile(g.configPath)
	} else {
		g.cfg, err = config.LoadFromWorkingDir()
	}
	if err != nil {
		return err
	}

	if g.logLevel != "" {
		g.cfg.Log.Level = g.logLevel
	}
	if g.logFormat != "" {
		g.cfg.Log.Format = g.logFormat
	}

	g.logger = logging.New(logging.Config{
		Level:  logging.ParseLevel(g.cfg.Log.Level),
		Format: logging.ParseFormat(g.cfg.Log.Format),
	})
	slog.SetDefault(g.logger)
	return nil
}

// isTerminal reports whether f is a character device.
func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// printBanner prints the ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}
