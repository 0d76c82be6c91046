// Package bootstrap opens the metadata and blob backends selected by config.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/pixstore/service/internal/config"
	"github.com/pixstore/service/internal/db"
	"github.com/pixstore/service/internal/image"
	"github.com/pixstore/service/internal/storage"
)

// OpenRepository connects the metadata store named by cfg.MetadataDriver.
// The returned close func releases the underlying connection.
func OpenRepository(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (image.Repository, func(), error) {
	switch cfg.MetadataDriver {
	case config.MetadataRedis:
		client, err := db.ConnectRedis(ctx, db.RedisOptions{
			Addr:     cfg.RedisAddr(),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		return image.NewRedisRepository(client), func() { _ = client.Close() }, nil

	case config.MetadataPostgres:
		pool, err := db.ConnectPostgres(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(cfg.DatabaseURL, log); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return image.NewPostgresRepository(pool), pool.Close, nil
	}
	return nil, nil, fmt.Errorf("unsupported metadata driver %q", cfg.MetadataDriver)
}

// OpenStorage creates the blob store named by cfg.StorageDriver.
func OpenStorage(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (storage.Storage, error) {
	switch cfg.StorageDriver {
	case config.StorageMinio:
		return storage.NewMinioStorage(ctx, storage.MinioOptions{
			Endpoint:   cfg.StorageEndpoint,
			AccessKey:  cfg.StorageAccessKey,
			SecretKey:  cfg.StorageSecretKey,
			Region:     cfg.StorageRegion,
			Bucket:     cfg.StorageBucket,
			PublicBase: cfg.StoragePublicBase,
			UseSSL:     cfg.StorageUseSSL,
			PartSize:   cfg.MaxFileSize,
		}, log)

	case config.StorageMemory:
		log.Warn("storage: using in-memory blob store, uploads are lost on restart")
		return storage.NewMemory(cfg.StoragePublicBase), nil
	}
	return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
}
