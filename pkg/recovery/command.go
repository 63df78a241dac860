package recovery

import (
	"context"
	"fmt"
	"path"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/yurykabanov/segrecovery/pkg/appcontext"
	"github.com/yurykabanov/segrecovery/pkg/pg"
)

// Toolkit runs the external utilities a segment recovery is built from.
type Toolkit interface {
	BaseBackup(ctx context.Context, opts pg.BaseBackupOptions) error
	Rewind(ctx context.Context, opts pg.RewindOptions) error
	ModifyConfSetting(ctx context.Context, description, file, key string, value interface{}, optType string) error
	StartSegment(ctx context.Context, opts pg.StartOptions) error
}

// Command recovers a single segment. Run executes every step at most once;
// the result is available from Outcome after Run returns.
type Command interface {
	Name() string
	Tool() string
	Descriptor() Descriptor
	Era() string
	State() State
	Run(ctx context.Context)
	Outcome() Outcome
}

type segmentRecovery struct {
	name       string
	descriptor Descriptor
	era        string

	logger logrus.FieldLogger
	tools  Toolkit

	tool       string
	resyncType ErrorType
	resync     func(ctx context.Context) error

	state   int32
	outcome Outcome
}

// transition is the result of a single step: the state to move to, or the
// failure that ends the command.
type transition struct {
	next    State
	failure *Failure
}

func (r *segmentRecovery) Name() string {
	return r.name
}

func (r *segmentRecovery) Tool() string {
	return r.tool
}

func (r *segmentRecovery) Descriptor() Descriptor {
	return r.descriptor
}

func (r *segmentRecovery) Era() string {
	return r.era
}

func (r *segmentRecovery) Logger() logrus.FieldLogger {
	return r.logger
}

func (r *segmentRecovery) State() State {
	return State(atomic.LoadInt32(&r.state))
}

func (r *segmentRecovery) setState(s State) {
	atomic.StoreInt32(&r.state, int32(s))
}

func (r *segmentRecovery) Outcome() Outcome {
	return r.outcome
}

func (r *segmentRecovery) Run(ctx context.Context) {
	ctx = appcontext.WithEra(appcontext.WithDbid(ctx, r.descriptor.TargetDbid), r.era)
	logger := appcontext.LoggerFromContext(r.logger, ctx)

	state := StatePending
	r.setState(state)

	for !state.Terminal() {
		t := r.advance(ctx, logger, state)

		if t.failure != nil {
			r.outcome = failedOutcome(*t.failure)
			state = StateFailed
		} else {
			state = t.next
		}

		r.setState(state)
	}

	if state == StateSucceeded {
		r.outcome = Outcome{ReturnCode: 0}
	}
}

func (r *segmentRecovery) errorTypeOf(state State) ErrorType {
	switch state {
	case StateRunningResync:
		return r.resyncType
	case StateUpdatingConfig:
		return ErrorTypeUpdate
	case StateStartingSegment:
		return ErrorTypeStart
	default:
		return ErrorTypeDefault
	}
}

func (r *segmentRecovery) advance(ctx context.Context, logger logrus.FieldLogger, state State) (t transition) {
	errorType := r.errorTypeOf(state)

	defer func() {
		if p := recover(); p != nil {
			t = r.fail(errorType, fmt.Errorf("%v", p))
		}
	}()

	d := r.descriptor

	switch state {
	case StatePending:
		if err := d.validate(); err != nil {
			return r.fail(errorType, err)
		}

		logger.Infof("Running %s with progress output temporarily in %s", r.tool, d.ProgressFile)

		return transition{next: StateRunningResync}

	case StateRunningResync:
		if err := r.resync(ctx); err != nil {
			return r.fail(errorType, err)
		}

		logger.Infof("Successfully ran %s for dbid: %d", r.tool, d.TargetDbid)

		return transition{next: StateUpdatingConfig}

	case StateUpdatingConfig:
		description := fmt.Sprintf("Updating %s/%s", d.TargetDatadir, pg.ConfFile)
		file := path.Join(d.TargetDatadir, pg.ConfFile)

		if err := r.tools.ModifyConfSetting(ctx, description, file, "port", d.TargetPort, pg.OptTypeNumber); err != nil {
			return r.fail(errorType, err)
		}

		logger.Info(description)

		return transition{next: StateStartingSegment}

	case StateStartingSegment:
		err := r.tools.StartSegment(ctx, pg.StartOptions{
			Datadir: d.TargetDatadir,
			Port:    d.TargetPort,
			Dbid:    d.TargetDbid,
			Era:     r.era,
		})
		if err != nil {
			return r.fail(errorType, err)
		}

		return transition{next: StateSucceeded}
	}

	return r.fail(ErrorTypeDefault, fmt.Errorf("unexpected recovery state %s", state))
}

func (r *segmentRecovery) fail(errorType ErrorType, err error) transition {
	f := NewFailure(errorType, err, r.descriptor)
	return transition{failure: &f}
}

// FullRecovery resynchronizes a segment by taking a fresh base backup of its
// primary.
type FullRecovery struct {
	*segmentRecovery

	ForceOverwrite bool
}

func NewFullRecovery(name string, d Descriptor, forceOverwrite bool, logger logrus.FieldLogger, tools Toolkit, era string) *FullRecovery {
	r := &FullRecovery{ForceOverwrite: forceOverwrite}

	r.segmentRecovery = &segmentRecovery{
		name:       name,
		descriptor: d,
		era:        era,
		logger:     logger,
		tools:      tools,
		tool:       pg.ToolBaseBackup,
		resyncType: ErrorTypeFull,
		resync:     r.baseBackup,
	}

	return r
}

func (r *FullRecovery) baseBackup(ctx context.Context) error {
	d := r.descriptor

	return r.tools.BaseBackup(ctx, pg.BaseBackupOptions{
		TargetDatadir:       d.TargetDatadir,
		SourceHost:          d.SourceHostname,
		SourcePort:          d.SourcePort,
		ReplicationSlotName: pg.InternalReplicationSlot,
		ForceOverwrite:      r.ForceOverwrite,
		TargetDbid:          d.TargetDbid,
		ProgressFile:        d.ProgressFile,
	})
}

// IncrementalRecovery resynchronizes a segment by rewinding it to the point
// its history diverged from the primary.
type IncrementalRecovery struct {
	*segmentRecovery
}

func NewIncrementalRecovery(name string, d Descriptor, logger logrus.FieldLogger, tools Toolkit, era string) *IncrementalRecovery {
	r := &IncrementalRecovery{}

	r.segmentRecovery = &segmentRecovery{
		name:       name,
		descriptor: d,
		era:        era,
		logger:     logger,
		tools:      tools,
		tool:       pg.ToolRewind,
		resyncType: ErrorTypeIncremental,
		resync:     r.rewind,
	}

	return r
}

func (r *IncrementalRecovery) rewind(ctx context.Context) error {
	d := r.descriptor

	return r.tools.Rewind(ctx, pg.RewindOptions{
		Name:          fmt.Sprintf("rewind dbid: %d", d.TargetDbid),
		TargetDatadir: d.TargetDatadir,
		SourceHost:    d.SourceHostname,
		SourcePort:    d.SourcePort,
		ProgressFile:  d.ProgressFile,
	})
}
