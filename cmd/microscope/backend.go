package main

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vango-dev/microscope/internal/config"
	"github.com/vango-dev/microscope/internal/errors"
	"github.com/vango-dev/microscope/pkg/storage"
)

// backend is an opened storage engine with its cleanup.
type backend struct {
	storage.Engine
	closer io.Closer
}

func (b *backend) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer.Close()
}

// openBackend opens the engine selected by cfg.Storage.
func openBackend(cfg *config.Config) (*backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return &backend{Engine: storage.NewMemory()}, nil

	case config.BackendSQLite:
		path := cfg.StorePath()
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, errors.New(errors.CodeStorageWrite).Wrap(err)
		}
		db, err := storage.OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		return &backend{Engine: db, closer: db}, nil

	case config.BackendS3:
		client, err := newS3Client(context.Background(), cfg.Storage)
		if err != nil {
			return nil, err
		}
		return &backend{Engine: storage.NewS3(client, cfg.Storage.Bucket, cfg.Storage.Prefix)}, nil
	}

	return nil, errors.New(errors.CodeConfigBackend).WithDetailf("backend %q", cfg.Storage.Backend)
}

// newS3Client builds a client from the default AWS credential chain
// (environment, shared config files, SSO, instance role).
func newS3Client(ctx context.Context, sc config.StorageConfig) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if sc.Region != "" {
		opts = append(opts, awsconfig.WithRegion(sc.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.New(errors.CodeConfigInvalid).WithDetail("load AWS config").Wrap(err)
	}
	if awsCfg.Region == "" {
		awsCfg.Region = "us-east-1"
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if sc.Endpoint != "" {
			o.BaseEndpoint = aws.String(sc.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}
