package oauthflow

import (
	"github.com/shuttertrack/shuttertrack/internal/recovery"
	"go.uber.org/fx"
)

// Module provides the browser launcher and the redirect sign-in flow
var Module = fx.Module("oauthflow",
	fx.Provide(
		NewBrowserLauncher,
		fx.Annotate(
			func(l *BrowserLauncher) *BrowserLauncher { return l },
			fx.As(new(recovery.Launcher)),
		),
		NewFlow,
	),
)
