package pg

import (
	"context"
	"fmt"
	"path"
	"strconv"

	"github.com/kballard/go-shellquote"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/yurykabanov/segrecovery/pkg/command"
)

// Well-known replication slot used by mirrors to stream WAL from primaries.
const InternalReplicationSlot = "internal_wal_replication_slot"

const (
	ToolBaseBackup = "pg_basebackup"
	ToolRewind     = "pg_rewind"
	ToolCtl        = "pg_ctl"
)

// segment start waits this long (seconds) for the postmaster to accept connections
const startTimeout = 600

type BaseBackupOptions struct {
	TargetDatadir       string
	SourceHost          string
	SourcePort          int
	ReplicationSlotName string
	ForceOverwrite      bool
	TargetDbid          int
	ProgressFile        string
}

type RewindOptions struct {
	Name          string
	TargetDatadir string
	SourceHost    string
	SourcePort    int
	ProgressFile  string
}

type StartOptions struct {
	Datadir string
	Port    int
	Dbid    int
	Era     string
}

// PostmasterInspector confirms that a started segment has a live postmaster.
type PostmasterInspector interface {
	PostmasterPIDLocally(ctx context.Context, datadir string) int
	IsPostmasterPID(ctx context.Context, datadir string, pid int, remoteHost string) bool
}

// Tools runs the database utilities needed to resynchronize and restart a
// segment on the local host.
type Tools struct {
	logger    logrus.FieldLogger
	executor  command.Executor
	inspector PostmasterInspector
}

func NewTools(logger logrus.FieldLogger, executor command.Executor) *Tools {
	return &Tools{
		logger:   logger,
		executor: executor,
	}
}

// WithInspector makes StartSegment verify the postmaster of started segments.
func (t *Tools) WithInspector(inspector PostmasterInspector) *Tools {
	t.inspector = inspector
	return t
}

func BaseBackupCmdStr(opts BaseBackupOptions) string {
	args := []string{
		ToolBaseBackup,
		"-c", "fast",
		"-D", opts.TargetDatadir,
		"-h", opts.SourceHost,
		"-p", strconv.Itoa(opts.SourcePort),
		"--create-slot",
		"--slot", opts.ReplicationSlotName,
		"-X", "stream",
	}

	if opts.ForceOverwrite {
		args = append(args, "--force-overwrite")
	}

	args = append(args,
		"--write-recovery-conf",
		"--target-gp-dbid", strconv.Itoa(opts.TargetDbid),
		"-E", "./db_dumps",
		"-E", "./promote",
		"--progress",
		"--verbose",
	)

	return fmt.Sprintf("%s > %s 2>&1", shellquote.Join(args...), shellquote.Join(opts.ProgressFile))
}

func (t *Tools) BaseBackup(ctx context.Context, opts BaseBackupOptions) error {
	if opts.ReplicationSlotName == "" {
		opts.ReplicationSlotName = InternalReplicationSlot
	}

	_, err := command.RunValidated(ctx, t.executor, command.Command{
		Name:   fmt.Sprintf("pg_basebackup dbid: %d", opts.TargetDbid),
		CmdStr: BaseBackupCmdStr(opts),
	})

	return err
}

func RewindCmdStr(opts RewindOptions) string {
	pidFile := shellquote.Join(path.Join(opts.TargetDatadir, "postmaster.pid"))
	source := fmt.Sprintf("host=%s port=%d dbname=template1", opts.SourceHost, opts.SourcePort)

	args := []string{
		ToolRewind,
		"--write-recovery-conf",
		"--slot=" + InternalReplicationSlot,
		"--source-server=" + source,
		"--target-pgdata=" + opts.TargetDatadir,
		"--progress",
	}

	// pg_rewind refuses to run while a pid file is present
	return fmt.Sprintf(`[ -f %s ] && rm -f %s; PGOPTIONS="-c gp_role=utility" %s > %s 2>&1`,
		pidFile, pidFile, shellquote.Join(args...), shellquote.Join(opts.ProgressFile))
}

func (t *Tools) Rewind(ctx context.Context, opts RewindOptions) error {
	name := opts.Name
	if name == "" {
		name = "rewind " + opts.TargetDatadir
	}

	_, err := command.RunValidated(ctx, t.executor, command.Command{
		Name:   name,
		CmdStr: RewindCmdStr(opts),
	})

	return err
}

func StartCmdStr(opts StartOptions) string {
	args := []string{
		"env", "GP_ERA=" + opts.Era,
		ToolCtl,
		"-w", "-t", strconv.Itoa(startTimeout),
		"-D", opts.Datadir,
		"-l", path.Join(opts.Datadir, "log", "startup.log"),
		"-o", fmt.Sprintf("-p %d -c gp_role=execute", opts.Port),
		"start",
	}

	return shellquote.Join(args...)
}

func (t *Tools) StartSegment(ctx context.Context, opts StartOptions) error {
	t.logger.WithFields(logrus.Fields{"datadir": opts.Datadir, "port": opts.Port, "era": opts.Era}).
		Infof("Starting segment with dbid %d", opts.Dbid)

	_, err := command.RunValidated(ctx, t.executor, command.Command{
		Name:   fmt.Sprintf("start segment dbid: %d", opts.Dbid),
		CmdStr: StartCmdStr(opts),
	})
	if err != nil {
		return errors.Wrapf(err, "Unable to start segment %s", opts.Datadir)
	}

	if t.inspector == nil {
		return nil
	}

	pid := t.inspector.PostmasterPIDLocally(ctx, opts.Datadir)
	if pid == -1 || !t.inspector.IsPostmasterPID(ctx, opts.Datadir, pid, "") {
		return errors.Errorf("Unable to start segment %s: no postmaster is running", opts.Datadir)
	}

	t.logger.WithFields(logrus.Fields{"datadir": opts.Datadir, "pid": pid}).Debug("Segment postmaster is running")

	return nil
}
