package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"io/ioutil"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yurykabanov/segrecovery/pkg/pg"
	"github.com/yurykabanov/segrecovery/pkg/recovery"
)

// region toolkitMock
type toolkitMock struct {
	mock.Mock
}

func (m *toolkitMock) BaseBackup(ctx context.Context, opts pg.BaseBackupOptions) error {
	args := m.Called(ctx, opts)
	return args.Error(0)
}

func (m *toolkitMock) Rewind(ctx context.Context, opts pg.RewindOptions) error {
	args := m.Called(ctx, opts)
	return args.Error(0)
}

func (m *toolkitMock) ModifyConfSetting(ctx context.Context, description, file, key string, value interface{}, optType string) error {
	args := m.Called(ctx, description, file, key, value, optType)
	return args.Error(0)
}

func (m *toolkitMock) StartSegment(ctx context.Context, opts pg.StartOptions) error {
	args := m.Called(ctx, opts)
	return args.Error(0)
}

// endregion

// region recorderMock
type recorderMock struct {
	mock.Mock
}

func (m *recorderMock) Record(ctx context.Context, era string, cmd recovery.Command) error {
	args := m.Called(ctx, era, cmd)
	return args.Error(0)
}

// endregion

// region brokenCommand

// brokenCommand reports a failure whose payload cannot be decoded
type brokenCommand struct {
	d   recovery.Descriptor
	ran int32
}

func (c *brokenCommand) Name() string { return "broken" }
func (c *brokenCommand) Tool() string { return "none" }
func (c *brokenCommand) Descriptor() recovery.Descriptor { return c.d }
func (c *brokenCommand) Era() string { return era }
func (c *brokenCommand) State() recovery.State { return recovery.StateFailed }
func (c *brokenCommand) Run(ctx context.Context) { atomic.AddInt32(&c.ran, 1) }
func (c *brokenCommand) Outcome() recovery.Outcome { return recovery.Outcome{ReturnCode: 1, Stderr: "garbage"} }

// endregion

const era = "1234_2021110"

var (
	fullR1 = recovery.Descriptor{TargetDatadir: "target_data_dir1", TargetPort: 5001, TargetDbid: 1, SourceHostname: "source_hostname1", SourcePort: 6001, IsFullRecovery: true, ProgressFile: "/tmp/progress_file1"}
	incrR1 = recovery.Descriptor{TargetDatadir: "target_data_dir2", TargetPort: 5002, TargetDbid: 2, SourceHostname: "source_hostname2", SourcePort: 6002, IsFullRecovery: false, ProgressFile: "/tmp/progress_file2"}
	fullR2 = recovery.Descriptor{TargetDatadir: "target_data_dir3", TargetPort: 5003, TargetDbid: 3, SourceHostname: "source_hostname3", SourcePort: 6003, IsFullRecovery: true, ProgressFile: "/tmp/progress_file3"}
	incrR2 = recovery.Descriptor{TargetDatadir: "target_data_dir4", TargetPort: 5004, TargetDbid: 4, SourceHostname: "source_hostname4", SourcePort: 6004, IsFullRecovery: false, ProgressFile: "/tmp/progress_file4"}
)

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.Out = ioutil.Discard

	return logger
}

func newSegRecovery(tools recovery.Toolkit, recorder AttemptRecorder, diagnostics *bytes.Buffer) *SegRecovery {
	logger := discardLogger()
	return NewSegRecovery(logger, tools, NewRecoveryBase(logger, DefaultBatchSize, recorder, nil, diagnostics))
}

// region Test: BuildCommands
func assertFullCommand(t *testing.T, cmd recovery.Command, expected recovery.Descriptor, forceOverwrite bool, logger logrus.FieldLogger) {
	full, ok := cmd.(*recovery.FullRecovery)
	require.True(t, ok, "expected full recovery, got %T", cmd)

	assert.Contains(t, full.Name(), "pg_basebackup")
	assert.Equal(t, expected, full.Descriptor())
	assert.Equal(t, forceOverwrite, full.ForceOverwrite)
	assert.Equal(t, era, full.Era())
	assert.Equal(t, logger, full.Logger())
}

func assertIncrementalCommand(t *testing.T, cmd recovery.Command, expected recovery.Descriptor, logger logrus.FieldLogger) {
	incremental, ok := cmd.(*recovery.IncrementalRecovery)
	require.True(t, ok, "expected incremental recovery, got %T", cmd)

	assert.Contains(t, incremental.Name(), "pg_rewind")
	assert.Equal(t, expected, incremental.Descriptor())
	assert.Equal(t, era, incremental.Era())
	assert.Equal(t, logger, incremental.Logger())
}

func TestSegRecovery_BuildCommands_Empty(t *testing.T) {
	s := newSegRecovery(&toolkitMock{}, nil, &bytes.Buffer{})

	assert.Equal(t, []recovery.Command{}, s.BuildCommands(nil, false, nil, era))
	assert.Equal(t, []recovery.Command{}, s.BuildCommands([]recovery.Descriptor{}, true, discardLogger(), ""))
}

func TestSegRecovery_BuildCommands_Full(t *testing.T) {
	logger := discardLogger()
	s := newSegRecovery(&toolkitMock{}, nil, &bytes.Buffer{})

	cmds := s.BuildCommands([]recovery.Descriptor{fullR1, fullR2}, false, logger, era)

	require.Len(t, cmds, 2)
	assertFullCommand(t, cmds[0], fullR1, false, logger)
	assertFullCommand(t, cmds[1], fullR2, false, logger)
}

func TestSegRecovery_BuildCommands_Incremental(t *testing.T) {
	logger := discardLogger()
	s := newSegRecovery(&toolkitMock{}, nil, &bytes.Buffer{})

	cmds := s.BuildCommands([]recovery.Descriptor{incrR1, incrR2}, true, logger, era)

	require.Len(t, cmds, 2)
	assertIncrementalCommand(t, cmds[0], incrR1, logger)
	assertIncrementalCommand(t, cmds[1], incrR2, logger)
}

func TestSegRecovery_BuildCommands_Mixed(t *testing.T) {
	for _, forceOverwrite := range []bool{false, true} {
		logger := discardLogger()
		s := newSegRecovery(&toolkitMock{}, nil, &bytes.Buffer{})

		cmds := s.BuildCommands([]recovery.Descriptor{fullR1, incrR2}, forceOverwrite, logger, era)

		require.Len(t, cmds, 2)
		assertFullCommand(t, cmds[0], fullR1, forceOverwrite, logger)
		assertIncrementalCommand(t, cmds[1], incrR2, logger)
	}
}

// endregion

// region Test: Main
func TestSegRecovery_Main_Succeeds(t *testing.T) {
	tools := &toolkitMock{}
	tools.On("BaseBackup", mock.Anything, mock.Anything).Return(nil).Once()
	tools.On("Rewind", mock.Anything, mock.Anything).Return(nil).Once()
	tools.On("ModifyConfSetting", mock.Anything, mock.Anything, mock.Anything, "port", mock.Anything, "number").Return(nil).Twice()
	tools.On("StartSegment", mock.Anything, mock.Anything).Return(nil).Twice()

	diagnostics := &bytes.Buffer{}
	s := newSegRecovery(tools, nil, diagnostics)

	code := s.Main(context.Background(), Options{
		Descriptors: []recovery.Descriptor{fullR1, incrR2},
		Era:         era,
	})

	assert.Equal(t, 0, code)
	assert.Equal(t, "", diagnostics.String())
	tools.AssertExpectations(t)
	tools.AssertNumberOfCalls(t, "BaseBackup", 1)
	tools.AssertNumberOfCalls(t, "Rewind", 1)
}

func TestSegRecovery_Main_Fails(t *testing.T) {
	tools := &toolkitMock{}
	tools.On("BaseBackup", mock.Anything, mock.Anything).Return(errors.New("pg_basebackup failed once")).Once()
	tools.On("Rewind", mock.Anything, mock.Anything).Return(errors.New("pg_rewind failed")).Once()

	diagnostics := &bytes.Buffer{}
	s := newSegRecovery(tools, nil, diagnostics)

	code := s.Main(context.Background(), Options{
		Descriptors: []recovery.Descriptor{fullR1, incrR2},
		Era:         era,
	})

	assert.Equal(t, 1, code)
	assert.JSONEq(t, `[
		{"error_type": "full", "error_msg": "pg_basebackup failed once", "dbid": 1,
		 "datadir": "target_data_dir1", "port": 5001, "progress_file": "/tmp/progress_file1"},
		{"error_type": "incremental", "error_msg": "pg_rewind failed", "dbid": 4,
		 "datadir": "target_data_dir4", "port": 5004, "progress_file": "/tmp/progress_file4"}
	]`, diagnostics.String())
	tools.AssertNumberOfCalls(t, "BaseBackup", 1)
	tools.AssertNumberOfCalls(t, "Rewind", 1)
	tools.AssertNotCalled(t, "StartSegment", mock.Anything, mock.Anything)
}

func TestSegRecovery_Main_PartialFailure(t *testing.T) {
	tools := &toolkitMock{}
	tools.On("BaseBackup", mock.Anything, mock.Anything).Return(nil)
	tools.On("Rewind", mock.Anything, mock.Anything).Return(nil)
	tools.On("ModifyConfSetting", mock.Anything, mock.Anything, mock.Anything, "port", mock.Anything, "number").Return(nil)
	tools.On("StartSegment", mock.Anything, mock.MatchedBy(func(opts pg.StartOptions) bool { return opts.Dbid == 3 })).
		Return(errors.New("pg_ctl start failed"))
	tools.On("StartSegment", mock.Anything, mock.Anything).Return(nil)

	diagnostics := &bytes.Buffer{}
	s := newSegRecovery(tools, nil, diagnostics)

	code := s.Main(context.Background(), Options{
		Descriptors: []recovery.Descriptor{fullR1, incrR1, fullR2, incrR2},
		Era:         era,
	})

	assert.Equal(t, 1, code)
	assert.JSONEq(t, `[{"error_type": "start", "error_msg": "pg_ctl start failed", "dbid": 3,
		"datadir": "target_data_dir3", "port": 5003, "progress_file": "/tmp/progress_file3"}]`, diagnostics.String())
}

func TestSegRecovery_Main_Empty(t *testing.T) {
	diagnostics := &bytes.Buffer{}
	s := newSegRecovery(&toolkitMock{}, nil, diagnostics)

	assert.Equal(t, 0, s.Main(context.Background(), Options{Era: era}))
	assert.Equal(t, "", diagnostics.String())
}

// endregion

// region Test: RecoveryBase
func TestRecoveryBase_Execute_RecorderErrorIgnored(t *testing.T) {
	tools := &toolkitMock{}
	tools.On("Rewind", mock.Anything, mock.Anything).Return(errors.New("pg_rewind failed"))

	recorder := &recorderMock{}
	recorder.On("Record", mock.Anything, era, mock.Anything).Return(errors.New("database is locked")).Twice()

	logger := discardLogger()
	s := NewSegRecovery(logger, tools, nil)
	base := NewRecoveryBase(logger, 1, recorder, nil, &bytes.Buffer{})

	failures := base.Execute(context.Background(), era, s.BuildCommands([]recovery.Descriptor{incrR1, incrR2}, false, logger, era))

	require.Len(t, failures, 2)
	assert.Equal(t, 2, failures[0].Dbid)
	assert.Equal(t, 4, failures[1].Dbid)
	recorder.AssertExpectations(t)
}

func TestRecoveryBase_Execute_UndecodableFailure(t *testing.T) {
	cmd := &brokenCommand{d: fullR1}
	base := NewRecoveryBase(discardLogger(), 4, nil, nil, &bytes.Buffer{})

	failures := base.Execute(context.Background(), era, []recovery.Command{cmd})

	require.Len(t, failures, 1)
	assert.Equal(t, recovery.ErrorTypeDefault, failures[0].ErrorType)
	assert.Equal(t, 1, failures[0].Dbid)
	assert.Equal(t, "/tmp/progress_file1", failures[0].ProgressFile)
	assert.Equal(t, int32(1), atomic.LoadInt32(&cmd.ran))
}

func TestRecoveryBase_Execute_Tracks(t *testing.T) {
	tracker := NewTracker()
	cmd := &brokenCommand{d: fullR1}
	base := NewRecoveryBase(discardLogger(), 4, nil, tracker, &bytes.Buffer{})

	base.Execute(context.Background(), era, []recovery.Command{cmd})

	trackedEra, cmds := tracker.Commands()
	assert.Equal(t, era, trackedEra)
	assert.Equal(t, []recovery.Command{cmd}, cmds)
}

func TestRecorders_Record(t *testing.T) {
	cmd := &brokenCommand{d: fullR1}

	first := &recorderMock{}
	first.On("Record", mock.Anything, era, cmd).Return(errors.New("database is locked")).Once()
	second := &recorderMock{}
	second.On("Record", mock.Anything, era, cmd).Return(nil).Once()

	err := Recorders{first, second, NopRecorder{}}.Record(context.Background(), era, cmd)

	assert.EqualError(t, err, "database is locked")
	first.AssertExpectations(t)
	second.AssertExpectations(t)
}

func TestValidateBatchSize(t *testing.T) {
	assert.NoError(t, ValidateBatchSize(1))
	assert.NoError(t, ValidateBatchSize(128))
	assert.Error(t, ValidateBatchSize(0))
	assert.Error(t, ValidateBatchSize(129))
}

// endregion
