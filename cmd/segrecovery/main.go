package main

import (
	"context"
	"os"
	"time"

	"go.uber.org/fx"

	"github.com/yurykabanov/segrecovery/internal/configfx"
	"github.com/yurykabanov/segrecovery/internal/loggerfx"
	"github.com/yurykabanov/segrecovery/internal/recoveryfx"
	"github.com/yurykabanov/segrecovery/internal/sqlfx"
	"github.com/yurykabanov/segrecovery/internal/statusfx"
	"github.com/yurykabanov/segrecovery/pkg/orchestrator"
)

// exit status for invalid invocations, no segment was touched
const exitConfigError = 2

func main() {
	logger := loggerfx.Logger()

	var (
		segRecovery *orchestrator.SegRecovery
		opts        orchestrator.Options
	)

	app := fx.New(
		fx.StartTimeout(15*time.Second),
		fx.StopTimeout(15*time.Second),

		fx.Logger(logger),

		loggerfx.Module,
		configfx.Module,
		sqlfx.Module,
		recoveryfx.Module,
		statusfx.Module,

		fx.Invoke(func(s *orchestrator.SegRecovery, o orchestrator.Options) {
			segRecovery, opts = s, o
		}),
	)

	startCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := app.Start(startCtx); err != nil {
		logger.WithError(err).Error("Unable to start segment recovery")
		os.Exit(exitConfigError)
	}

	code := segRecovery.Main(context.Background(), opts)

	stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := app.Stop(stopCtx); err != nil {
		logger.WithError(err).Warn("Unable to stop segment recovery cleanly")
	}

	os.Exit(code)
}
