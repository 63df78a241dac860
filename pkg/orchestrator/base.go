package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/yurykabanov/segrecovery/pkg/recovery"
)

const (
	DefaultBatchSize = 8
	MinBatchSize     = 1
	MaxBatchSize     = 128
)

// AttemptRecorder keeps a record of every finished recovery command.
type AttemptRecorder interface {
	Record(ctx context.Context, era string, cmd recovery.Command) error
}

type NopRecorder struct{}

func (NopRecorder) Record(context.Context, string, recovery.Command) error {
	return nil
}

// Recorders hands every finished command to each of its recorders and
// returns the first error.
type Recorders []AttemptRecorder

func (rr Recorders) Record(ctx context.Context, era string, cmd recovery.Command) error {
	var first error

	for _, r := range rr {
		if err := r.Record(ctx, era, cmd); err != nil && first == nil {
			first = err
		}
	}

	return first
}

// Tracker exposes the commands of the running orchestration to observers.
type Tracker struct {
	mu   sync.RWMutex
	era  string
	cmds []recovery.Command
}

func NewTracker() *Tracker {
	return &Tracker{}
}

func (t *Tracker) Track(era string, cmds []recovery.Command) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.era = era
	t.cmds = append([]recovery.Command(nil), cmds...)
}

func (t *Tracker) Commands() (string, []recovery.Command) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.era, append([]recovery.Command(nil), t.cmds...)
}

// RecoveryBase executes recovery commands and reports their failures.
type RecoveryBase struct {
	logger logrus.FieldLogger

	batchSize int
	recorder  AttemptRecorder
	tracker   *Tracker

	// failures are reported here as a single JSON array
	diagnostics io.Writer
}

func NewRecoveryBase(
	logger logrus.FieldLogger,
	batchSize int,
	recorder AttemptRecorder,
	tracker *Tracker,
	diagnostics io.Writer,
) *RecoveryBase {
	if batchSize < MinBatchSize {
		batchSize = DefaultBatchSize
	}

	if recorder == nil {
		recorder = NopRecorder{}
	}

	if tracker == nil {
		tracker = NewTracker()
	}

	return &RecoveryBase{
		logger:      logger,
		batchSize:   batchSize,
		recorder:    recorder,
		tracker:     tracker,
		diagnostics: diagnostics,
	}
}

func ValidateBatchSize(batchSize int) error {
	if batchSize < MinBatchSize || batchSize > MaxBatchSize {
		return fmt.Errorf("batch size must be between %d and %d, got %d", MinBatchSize, MaxBatchSize, batchSize)
	}
	return nil
}

// Execute runs every command and returns the failures in command order.
// At most batchSize commands run at the same time.
func (b *RecoveryBase) Execute(ctx context.Context, era string, cmds []recovery.Command) []recovery.Failure {
	b.tracker.Track(era, cmds)

	outcomes := make([]recovery.Outcome, len(cmds))

	g := &errgroup.Group{}
	g.SetLimit(b.batchSize)

	for i, cmd := range cmds {
		i, cmd := i, cmd
		g.Go(func() error {
			logger := b.logger.WithField("cmd", cmd.Name())

			logger.Debug("Running recovery command")
			cmd.Run(ctx)

			outcomes[i] = cmd.Outcome()

			if err := b.recorder.Record(ctx, era, cmd); err != nil {
				logger.WithError(err).Warn("Unable to record recovery attempt")
			}

			return nil
		})
	}

	_ = g.Wait()

	failures := make([]recovery.Failure, 0)

	for i, outcome := range outcomes {
		if outcome.Succeeded() {
			continue
		}

		f, err := outcome.Failure()
		if err != nil {
			f = recovery.NewFailure(recovery.ErrorTypeDefault,
				fmt.Errorf("unable to decode failure of '%s': %s", cmds[i].Name(), outcome.Stderr),
				cmds[i].Descriptor())
		}

		failures = append(failures, f)
	}

	return failures
}

// Main runs the commands and returns the process exit status: 0 when every
// command succeeded, 1 otherwise. Failures are written to the diagnostics
// writer only when there are any.
func (b *RecoveryBase) Main(ctx context.Context, era string, cmds []recovery.Command) int {
	failures := b.Execute(ctx, era, cmds)

	if len(failures) == 0 {
		b.logger.WithField("total", len(cmds)).Info("All segments recovered")
		return 0
	}

	b.logger.WithFields(logrus.Fields{"total": len(cmds), "failed": len(failures)}).Error("Some segments failed to recover")

	report, err := json.Marshal(failures)
	if err != nil {
		b.logger.WithError(err).Error("Unable to encode recovery failures")
		return 1
	}

	if _, err := b.diagnostics.Write(report); err != nil {
		b.logger.WithError(err).Error("Unable to report recovery failures")
	}

	return 1
}
