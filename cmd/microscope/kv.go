package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vango-dev/microscope/internal/config"
	"github.com/vango-dev/microscope/internal/errors"
	"github.com/vango-dev/microscope/pkg/storage"
)

const relayDialTimeout = 5 * time.Second

// kvFlags override the configured backend.
type kvFlags struct {
	backend  string
	path     string
	bucket   string
	prefix   string
	region   string
	endpoint string
	relay    string
}

func (f *kvFlags) apply(cfg *config.Config) {
	if f.backend != "" {
		cfg.Storage.Backend = strings.ToLower(f.backend)
	}
	if f.path != "" {
		cfg.Storage.Path = f.path
	}
	if f.bucket != "" {
		cfg.Storage.Bucket = f.bucket
	}
	if f.prefix != "" {
		cfg.Storage.Prefix = f.prefix
	}
	if f.region != "" {
		cfg.Storage.Region = f.region
	}
	if f.endpoint != "" {
		cfg.Storage.Endpoint = f.endpoint
	}
}

func kvCmd(g *globals) *cobra.Command {
	f := &kvFlags{}

	cmd := &cobra.Command{
		Use:   "kv",
		Short: "Read and write persisted keys",
		Long: `Read and write the keys persisted cells store on a backend.

Values are the encoded text the cell's codec wrote (JSON by default).
With --relay, writes are also announced to the relay so running
processes pick them up.

Examples:
  microscope kv ls
  microscope kv get todos
  microscope kv set todos '["milk","eggs"]' --relay ws://localhost:7412
  microscope kv rm todos --backend s3 --bucket state`,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&f.backend, "backend", "b", "", "Backend: memory, sqlite or s3 (default from config)")
	flags.StringVar(&f.path, "path", "", "SQLite database file")
	flags.StringVar(&f.bucket, "bucket", "", "S3 bucket")
	flags.StringVar(&f.prefix, "prefix", "", "S3 key prefix")
	flags.StringVar(&f.region, "region", "", "S3 region")
	flags.StringVar(&f.endpoint, "endpoint", "", "S3-compatible endpoint URL")
	flags.StringVar(&f.relay, "relay", "", "Relay URL to announce writes to")

	cmd.AddCommand(
		kvGetCmd(g, f),
		kvSetCmd(g, f),
		kvRmCmd(g, f),
		kvLsCmd(g, f),
	)
	return cmd
}

// withEngine opens the backend, optionally joined to a relay, and runs fn.
func withEngine(g *globals, f *kvFlags, fn func(storage.Engine) error) error {
	f.apply(g.cfg)

	b, err := openBackend(g.cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	if f.relay == "" {
		return fn(b.Engine)
	}

	hub := storage.NewHub()
	shared := storage.NewShared(b.Engine, hub, "cli-"+uuid.NewString())

	ctx, cancel := context.WithTimeout(context.Background(), relayDialTimeout)
	defer cancel()
	client, err := storage.DialRelay(ctx, f.relay, hub, nil, storage.WithRelayLogger(g.logger))
	if err != nil {
		return fmt.Errorf("connect relay: %w", err)
	}
	defer client.Close()

	return fn(shared)
}

func kvGetCmd(g *globals, f *kvFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Print the value stored under KEY",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(g, f, func(e storage.Engine) error {
				value, ok, err := e.GetItem(args[0])
				if err != nil {
					return errors.New(errors.CodeStorageRead).WithDetail(args[0]).Wrap(err)
				}
				if !ok {
					return errors.Newf(errors.CategoryCLI, "key %q not found", args[0])
				}
				fmt.Fprintln(cmd.OutOrStdout(), value)
				return nil
			})
		},
	}
}

func kvSetCmd(g *globals, f *kvFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY [VALUE]",
		Short: "Store VALUE (or stdin) under KEY",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := valueArg(cmd, args)
			if err != nil {
				return err
			}
			return withEngine(g, f, func(e storage.Engine) error {
				if err := e.SetItem(args[0], value); err != nil {
					return errors.New(errors.CodeStorageWrite).WithDetail(args[0]).Wrap(err)
				}
				return nil
			})
		},
	}
}

// valueArg returns the second argument, or stdin without its trailing
// newline.
func valueArg(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 2 {
		return args[1], nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

func kvRmCmd(g *globals, f *kvFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "rm KEY",
		Aliases: []string{"remove", "delete"},
		Short:   "Remove KEY",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(g, f, func(e storage.Engine) error {
				if err := e.RemoveItem(args[0]); err != nil {
					return errors.New(errors.CodeStorageRemove).WithDetail(args[0]).Wrap(err)
				}
				return nil
			})
		},
	}
}

func kvLsCmd(g *globals, f *kvFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List stored keys",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(g, f, func(e storage.Engine) error {
				keys, err := storage.Keys(e)
				if err != nil {
					return errors.New(errors.CodeStorageRead).Wrap(err)
				}
				out := cmd.OutOrStdout()
				for _, k := range keys {
					fmt.Fprintln(out, k)
				}
				return nil
			})
		},
	}
}
