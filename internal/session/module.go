package session

import (
	"github.com/shuttertrack/shuttertrack/internal/config"
	"github.com/shuttertrack/shuttertrack/internal/flagstore"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides the session store with the strongest available protector
var Module = fx.Module("session",
	fx.Provide(
		func(flags flagstore.Store, cfg *config.StorageConfig, log *zap.Logger) *Store {
			protector, err := NewAESGCMProtector(cfg.SessionKeyFile)
			if err != nil {
				log.Warn("at-rest protection unavailable, sessions stored unprotected", zap.Error(err))
				return NewStore(flags, PlainProtector{}, log)
			}
			return NewStore(flags, protector, log)
		},
	),
)
