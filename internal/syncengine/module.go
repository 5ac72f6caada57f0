package syncengine

import "go.uber.org/fx"

// Module provides the sync engines for both entity kinds
var Module = fx.Module("syncengine",
	fx.Provide(NewEngines),
)
