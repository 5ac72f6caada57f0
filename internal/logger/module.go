package logger

import "go.uber.org/fx"

// Module provides the zap logger built from the logging configuration
var Module = fx.Module("logger",
	fx.Provide(NewLogger),
)
