package metrics

import (
	"go.uber.org/fx"

	"castforge/internal/upstream"
)

// Module is an Fx module that provides the Prometheus recorder and the
// OpenTelemetry tracer. The recorder also serves as the upstream call
// observer.
var Module = fx.Options(
	// The concrete recorder stays available so the /metrics handler can
	// reach its private registry.
	fx.Provide(NewPrometheusRecorder),
	fx.Provide(func(r *PrometheusRecorder) Recorder { return r }),
	fx.Provide(func(r *PrometheusRecorder) upstream.Observer { return r }),
	fx.Provide(NewTracer),
)
