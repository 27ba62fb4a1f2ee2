// Package backend opens the object store selected by configuration.
package backend

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sagarc03/stowgate"
	"github.com/sagarc03/stowgate/filesystem"
	"github.com/sagarc03/stowgate/minio"
	"github.com/sagarc03/stowgate/s3"
)

// Config holds the settings for every backend type; fields a type does not
// use are ignored.
type Config struct {
	// Type is "s3", "minio" or "filesystem".
	Type         string `mapstructure:"type" validate:"required,oneof=s3 minio filesystem"`
	Bucket       string `mapstructure:"bucket" validate:"required_unless=Type filesystem"`
	Endpoint     string `mapstructure:"endpoint" validate:"required_if=Type minio"`
	Region       string `mapstructure:"region"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	UseSSL       bool   `mapstructure:"use_ssl"`
	// Path is the data directory of the filesystem backend.
	Path        string `mapstructure:"path" validate:"required_if=Type filesystem"`
	PartSize    int64  `mapstructure:"part_size" validate:"min=0"`
	Concurrency int    `mapstructure:"concurrency" validate:"min=0"`
}

// Open builds the configured store and checks that it is reachable.
// The returned cleanup function releases resources held by the store.
func Open(ctx context.Context, cfg Config) (stowgate.ObjectStore, func(), error) {
	typ, err := stowgate.ParseBackendType(cfg.Type)
	if err != nil {
		return nil, nil, fmt.Errorf("unsupported backend type: %w", err)
	}

	switch typ {
	case stowgate.BackendS3:
		return openS3(ctx, cfg)
	case stowgate.BackendMinIO:
		return openMinio(ctx, cfg)
	case stowgate.BackendFilesystem:
		return openFilesystem(ctx, cfg)
	default:
		return nil, nil, fmt.Errorf("unsupported backend type: %s", cfg.Type)
	}
}

func openS3(ctx context.Context, cfg Config) (stowgate.ObjectStore, func(), error) {
	store, err := s3.New(ctx, s3.Config{
		Bucket:       cfg.Bucket,
		Region:       cfg.Region,
		Endpoint:     cfg.Endpoint,
		AccessKey:    cfg.AccessKey,
		SecretKey:    cfg.SecretKey,
		UsePathStyle: cfg.UsePathStyle,
		PartSize:     cfg.PartSize,
		Concurrency:  cfg.Concurrency,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open s3: %w", err)
	}

	if err = store.Ping(ctx); err != nil {
		return nil, nil, fmt.Errorf("ping s3: %w", err)
	}

	return store, func() {}, nil
}

func openMinio(ctx context.Context, cfg Config) (stowgate.ObjectStore, func(), error) {
	store, err := minio.New(minio.Config{
		Endpoint:    cfg.Endpoint,
		UseSSL:      cfg.UseSSL,
		Region:      cfg.Region,
		Bucket:      cfg.Bucket,
		AccessKey:   cfg.AccessKey,
		SecretKey:   cfg.SecretKey,
		PartSize:    cfg.PartSize,
		Concurrency: cfg.Concurrency,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open minio: %w", err)
	}

	if err = store.Ping(ctx); err != nil {
		return nil, nil, fmt.Errorf("ping minio: %w", err)
	}

	return store, func() {}, nil
}

func openFilesystem(ctx context.Context, cfg Config) (stowgate.ObjectStore, func(), error) {
	if cfg.Path == "" {
		return nil, nil, errors.New("open filesystem: path is required")
	}

	if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
		return nil, nil, fmt.Errorf("open filesystem: create data dir: %w", err)
	}

	root, err := os.OpenRoot(cfg.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open filesystem: %w", err)
	}

	store, err := filesystem.NewStore(root)
	if err != nil {
		_ = root.Close()
		return nil, nil, fmt.Errorf("open filesystem: %w", err)
	}

	if err = store.Ping(ctx); err != nil {
		_ = root.Close()
		return nil, nil, fmt.Errorf("ping filesystem: %w", err)
	}

	cleanup := func() {
		_ = root.Close()
	}

	return store, cleanup, nil
}
