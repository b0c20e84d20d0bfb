package etl

import (
	"context"
	"fmt"

	"salesetl/internal/config"
	"salesetl/internal/datasource"
	"salesetl/internal/datasource/file"
	"salesetl/internal/datasource/s3"
	"salesetl/internal/storage"
)

// NewSource returns the raw-extract provider selected by cfg.Source.Kind.
func NewSource(ctx context.Context, cfg config.Config) (datasource.Provider, error) {
	switch cfg.Source.Kind {
	case "", "file":
		return file.NewDir(cfg.Paths.Raw), nil
	case "s3":
		sc := cfg.Source.S3
		b, err := s3.New(ctx, s3.Config{
			Bucket:          sc.Bucket,
			Prefix:          sc.Prefix,
			Region:          sc.Region,
			Endpoint:        sc.Endpoint,
			UsePathStyle:    sc.UsePathStyle,
			AccessKeyID:     sc.AccessKeyID,
			SecretAccessKey: sc.SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unsupported source.kind=%s", cfg.Source.Kind)
	}
}

func storageConfig(w config.Warehouse) storage.Config {
	return storage.Config{
		Kind:     w.Kind,
		DSN:      w.DSN,
		Host:     w.Host,
		Port:     w.Port,
		Database: w.Database,
		User:     w.User,
		Password: w.Password,
		SSLMode:  w.SSLMode,
	}
}
