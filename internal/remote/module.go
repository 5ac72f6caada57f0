package remote

import (
	"github.com/shuttertrack/shuttertrack/internal/session"
	"go.uber.org/fx"
)

// Module provides the remote entity client scoped by the stored session
var Module = fx.Module("remote",
	fx.Provide(
		fx.Annotate(
			func(store *session.Store) *SessionTokenSource {
				return &SessionTokenSource{Store: store}
			},
			fx.As(new(TokenSource)),
		),
		NewClient,
	),
)
