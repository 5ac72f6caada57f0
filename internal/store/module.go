package store

import (
	"context"

	"github.com/shuttertrack/shuttertrack/internal/config"
	"go.uber.org/fx"
)

// Module provides the local entity store
var Module = fx.Module("store",
	fx.Provide(
		func(cfg *config.StorageConfig, lc fx.Lifecycle) (*Store, error) {
			store, err := Open(cfg.EntitiesPath)
			if err != nil {
				return nil, err
			}
			lc.Append(fx.Hook{
				OnStop: func(context.Context) error { return store.Close() },
			})
			return store, nil
		},
	),
)
