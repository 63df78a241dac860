package statusfx

import (
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(HttpServerConfigProvider),
	fx.Provide(HttpServer),
	fx.Provide(HttpRouter),
	fx.Invoke(RunServer),

	fx.Provide(RecoveryStatusHandler),
	fx.Invoke(RegisterRecoveryStatusHandler),

	fx.Provide(MetricsRecorder),
	fx.Invoke(RegisterMetricsHandler),
)
