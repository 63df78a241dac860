package sqlfx

import (
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(HistoryConfigProvider),
	fx.Provide(OpenHistoryDatabase),
	fx.Provide(AttemptRecorder),
	fx.Invoke(CloseHistoryDatabase),
)
