package recoveryfx

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/yurykabanov/segrecovery/pkg/command"
	"github.com/yurykabanov/segrecovery/pkg/metrics"
	"github.com/yurykabanov/segrecovery/pkg/orchestrator"
	"github.com/yurykabanov/segrecovery/pkg/pg"
	"github.com/yurykabanov/segrecovery/pkg/process"
	"github.com/yurykabanov/segrecovery/pkg/recovery"
)

func Executor(logger logrus.FieldLogger) command.Executor {
	return command.NewShellExecutor(logger)
}

func Inspector(logger logrus.FieldLogger, executor command.Executor) *process.Inspector {
	return process.NewInspector(logger, executor)
}

func Tools(logger logrus.FieldLogger, executor command.Executor, inspector *process.Inspector) recovery.Toolkit {
	return pg.NewTools(logger, executor).WithInspector(inspector)
}

func Tracker() *orchestrator.Tracker {
	return orchestrator.NewTracker()
}

func RecoveryBase(
	logger logrus.FieldLogger,
	config *RecoveryConfig,
	history orchestrator.AttemptRecorder,
	metricsRecorder *metrics.Recorder,
	tracker *orchestrator.Tracker,
) *orchestrator.RecoveryBase {
	recorder := orchestrator.Recorders{history, metricsRecorder}

	return orchestrator.NewRecoveryBase(logger, config.BatchSize, recorder, tracker, os.Stderr)
}

func SegRecovery(logger logrus.FieldLogger, tools recovery.Toolkit, base *orchestrator.RecoveryBase) *orchestrator.SegRecovery {
	return orchestrator.NewSegRecovery(logger, tools, base)
}
