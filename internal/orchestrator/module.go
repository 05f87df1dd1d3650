package orchestrator

import (
	"go.uber.org/fx"
)

// Module is an Fx module that provides the batch orchestrator.
var Module = fx.Options(
	fx.Provide(New),
)
