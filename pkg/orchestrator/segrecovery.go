package orchestrator

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/yurykabanov/segrecovery/pkg/pg"
	"github.com/yurykabanov/segrecovery/pkg/recovery"
)

type Options struct {
	Descriptors    []recovery.Descriptor
	ForceOverwrite bool
	Era            string
}

// SegRecovery recovers the segments of the local host.
type SegRecovery struct {
	logger logrus.FieldLogger
	tools  recovery.Toolkit
	base   *RecoveryBase
}

func NewSegRecovery(logger logrus.FieldLogger, tools recovery.Toolkit, base *RecoveryBase) *SegRecovery {
	return &SegRecovery{
		logger: logger,
		tools:  tools,
		base:   base,
	}
}

// BuildCommands returns one command per descriptor, in descriptor order.
func (s *SegRecovery) BuildCommands(
	descriptors []recovery.Descriptor,
	forceOverwrite bool,
	logger logrus.FieldLogger,
	era string,
) []recovery.Command {
	cmds := make([]recovery.Command, 0, len(descriptors))

	for _, d := range descriptors {
		if d.IsFullRecovery {
			name := fmt.Sprintf("%s dbid: %d", pg.ToolBaseBackup, d.TargetDbid)
			cmds = append(cmds, recovery.NewFullRecovery(name, d, forceOverwrite, logger, s.tools, era))
			continue
		}

		name := fmt.Sprintf("%s dbid: %d", pg.ToolRewind, d.TargetDbid)
		cmds = append(cmds, recovery.NewIncrementalRecovery(name, d, logger, s.tools, era))
	}

	return cmds
}

func (s *SegRecovery) Main(ctx context.Context, opts Options) int {
	s.logger.WithFields(logrus.Fields{"era": opts.Era, "segments": len(opts.Descriptors)}).Info("Starting segment recovery")

	cmds := s.BuildCommands(opts.Descriptors, opts.ForceOverwrite, s.logger, opts.Era)

	return s.base.Main(ctx, opts.Era, cmds)
}
