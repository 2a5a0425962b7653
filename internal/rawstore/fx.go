package rawstore

import (
	"context"
	"fmt"

	"github.com/smallbiznis/sparks/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	DriverMinio  = "minio"
	DriverS3     = "s3"
	DriverMemory = "memory"
)

var Module = fx.Module("rawstore",
	fx.Provide(New),
)

// New picks the adapter named by RAW_STORE. The MinIO bucket is created on start.
func New(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (Store, error) {
	switch cfg.RawStore.Driver {
	case DriverMemory:
		log.Warn("raw store is in-memory; payloads are lost on restart")
		return NewMemoryStore(), nil
	case DriverMinio, DriverS3, "":
		store, err := NewMinioStore(cfg.RawStore)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := store.EnsureBucket(ctx); err != nil {
					// Writes are best effort on the gateway, so a missing bucket is not fatal.
					log.Error("raw store bucket unavailable", zap.String("bucket", cfg.RawStore.Bucket), zap.Error(err))
				}
				return nil
			},
		})
		return store, nil
	default:
		return nil, fmt.Errorf("unknown raw store driver %q", cfg.RawStore.Driver)
	}
}
