package recovery

import (
	"go.uber.org/fx"
)

// Module provides the callback recovery tracker
var Module = fx.Module("recovery",
	fx.Provide(NewTracker),
)
