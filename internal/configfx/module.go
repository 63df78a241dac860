package configfx

import (
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(DefaultArgs),
	fx.Provide(PFlags),
	fx.Provide(ViperProvider),
)
