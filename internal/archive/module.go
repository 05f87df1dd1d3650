package archive

import (
	"go.uber.org/fx"
)

// Module is an Fx module that provides the artifact writer.
var Module = fx.Options(
	fx.Provide(NewWriter),
)
