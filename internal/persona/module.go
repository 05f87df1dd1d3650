package persona

import (
	"context"
	"os"

	"go.uber.org/fx"

	"castforge/internal/config"
	"castforge/internal/plan"
	"castforge/internal/support/logger"
	"castforge/internal/upstream"
)

// switchingGenerator picks the metadata source per submission: upstream
// when the request or the process carries an API key, the deterministic
// offline generator otherwise.
type switchingGenerator struct {
	upstream      Generator
	static        Generator
	hasProcessKey bool
}

func (g *switchingGenerator) Generate(ctx context.Context, shape plan.Shape, apiKey string) ([]plan.Persona, error) {
	if apiKey == "" && !g.hasProcessKey {
		logger.Warnf("No upstream API key on this submission or the process; using the offline persona generator.")
		return g.static.Generate(ctx, shape, apiKey)
	}
	return g.upstream.Generate(ctx, shape, apiKey)
}

var _ Generator = (*switchingGenerator)(nil)

// NewGenerator builds the per-submission metadata generator.
func NewGenerator(cfg *config.Config, invoker *upstream.Invoker) Generator {
	return &switchingGenerator{
		upstream:      NewUpstreamGenerator(invoker, cfg.Upstream.Model),
		static:        NewStaticGenerator(),
		hasProcessKey: cfg.Upstream.APIKey != "" || os.Getenv("GEMINI_API_KEY") != "",
	}
}

// Module is an Fx module that provides the persona generator.
var Module = fx.Options(
	fx.Provide(NewGenerator),
)
