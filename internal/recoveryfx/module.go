package recoveryfx

import (
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(RecoveryConfigProvider),
	fx.Provide(RecoveryOptions),
	fx.Provide(Executor),
	fx.Provide(Inspector),
	fx.Provide(Tools),
	fx.Provide(Tracker),
	fx.Provide(RecoveryBase),
	fx.Provide(SegRecovery),
)
