package auth

import (
	"github.com/shuttertrack/shuttertrack/internal/auth/provider"
	"go.uber.org/fx"
)

// Module provides the auth session and its provider client
var Module = fx.Module("auth",
	fx.Provide(
		provider.NewClient,
		NewSession,
	),
)
