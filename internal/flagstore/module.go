package flagstore

import (
	"context"

	"github.com/shuttertrack/shuttertrack/internal/config"
	"go.uber.org/fx"
)

// Module provides the durable flag store
var Module = fx.Module("flagstore",
	fx.Provide(
		fx.Annotate(
			func(cfg *config.StorageConfig, lc fx.Lifecycle) (*SQLiteStore, error) {
				store, err := Open(cfg.FlagsPath)
				if err != nil {
					return nil, err
				}
				lc.Append(fx.Hook{
					OnStop: func(context.Context) error { return store.Close() },
				})
				return store, nil
			},
			fx.As(new(Store)),
		),
	),
)
