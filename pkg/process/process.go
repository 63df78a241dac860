package process

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/sirupsen/logrus"

	"github.com/yurykabanov/segrecovery/pkg/command"
)

const postmasterPidFile = "postmaster.pid"

// Inspector answers questions about postmaster processes on the local host
// or on a remote one. All queries are read-only.
type Inspector struct {
	logger   logrus.FieldLogger
	executor command.Executor
}

func NewInspector(logger logrus.FieldLogger, executor command.Executor) *Inspector {
	return &Inspector{
		logger:   logger,
		executor: executor,
	}
}

// IsPostmaster reports whether pid is a live postmaster serving datadir.
// Missing or failing diagnostic tools never yield false: only a successful
// identity probe with empty output does.
func (i *Inspector) IsPostmaster(ctx context.Context, datadir, pid, remoteHost string) bool {
	if datadir == "" {
		return false
	}

	logger := i.logger.WithFields(logrus.Fields{"datadir": datadir, "pid": pid, "remote_host": remoteHost})

	for _, tool := range []string{"pgrep", "pwdx"} {
		res, err := i.executor.Run(ctx, command.Command{
			Name:       "check " + tool,
			CmdStr:     "which " + tool,
			RemoteHost: remoteHost,
		})
		if err != nil {
			logger.WithError(err).Warnf("Unable to check for %s, assuming pid is a postmaster", tool)
			return true
		}
		if res.ReturnCode != 0 {
			logger.Warnf("%s is not available, assuming pid is a postmaster", tool)
			return true
		}
	}

	cmdStr := fmt.Sprintf("pgrep -f postgres | xargs -r pwdx 2>/dev/null | grep -w %s | cut -d: -f1 | grep -x %s",
		shellquote.Join(datadir), shellquote.Join(strings.TrimSpace(pid)))

	res, err := i.executor.Run(ctx, command.Command{
		Name:       "check postmaster pid",
		CmdStr:     cmdStr,
		RemoteHost: remoteHost,
	})
	if err != nil {
		logger.WithError(err).Warn("Unable to verify postmaster pid, assuming pid is a postmaster")
		return true
	}

	out := strings.TrimSpace(res.Stdout)
	if out == "" {
		return false
	}

	for _, line := range strings.Split(out, "\n") {
		if samePid(strings.TrimSpace(line), pid) {
			return true
		}
	}

	return false
}

func (i *Inspector) IsPostmasterPID(ctx context.Context, datadir string, pid int, remoteHost string) bool {
	return i.IsPostmaster(ctx, datadir, strconv.Itoa(pid), remoteHost)
}

// PostmasterPIDLocally returns the pid recorded in datadir's pid file if a
// process with that pid is running, -1 otherwise.
func (i *Inspector) PostmasterPIDLocally(ctx context.Context, datadir string) int {
	pidFile := shellquote.Join(path.Join(datadir, postmasterPidFile))

	cmdStr := fmt.Sprintf(`ps -ef | grep postgres | grep -v grep | awk '{print $2}' | grep -x "$(head -1 %s)" || echo -1`, pidFile)

	res, err := i.executor.Run(ctx, command.Command{
		Name:   "get postmaster pid",
		CmdStr: cmdStr,
	})
	if err != nil {
		i.logger.WithError(err).WithField("datadir", datadir).Debug("Unable to get postmaster pid")
		return -1
	}

	return parsePid(res.Stdout)
}

// PostmasterPID reads the pid file of datadir on host and verifies that the
// recorded pid is a postmaster. Returns -1 when no postmaster is found.
func (i *Inspector) PostmasterPID(ctx context.Context, datadir, host string) int {
	if datadir == "" {
		return -1
	}

	res, err := i.executor.Run(ctx, command.Command{
		Name:       "read postmaster pid file",
		CmdStr:     "head -1 " + shellquote.Join(path.Join(datadir, postmasterPidFile)),
		RemoteHost: host,
	})
	if err != nil || !res.WasSuccessful() {
		return -1
	}

	pid := parsePid(res.Stdout)
	if pid == -1 {
		return -1
	}

	if !i.IsPostmasterPID(ctx, datadir, pid, host) {
		return -1
	}

	return pid
}

// SegmentProcessIDs returns the postmaster pid of datadir followed by the
// pids of its live child processes. Empty when no postmaster runs.
func (i *Inspector) SegmentProcessIDs(ctx context.Context, datadir, host string) []int {
	postmasterPid := i.PostmasterPID(ctx, datadir, host)
	if postmasterPid == -1 {
		return []int{}
	}

	pids := []int{postmasterPid}

	res, err := i.executor.Run(ctx, command.Command{
		Name:       "get segment processes",
		CmdStr:     fmt.Sprintf("pgrep -P %d", postmasterPid),
		RemoteHost: host,
	})
	if err != nil || !res.WasSuccessful() {
		i.logger.WithFields(logrus.Fields{"datadir": datadir, "host": host}).
			Debug("Unable to list segment child processes")
		return pids
	}

	for _, line := range strings.Split(res.Stdout, "\n") {
		pid, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil {
			continue
		}
		pids = append(pids, pid)
	}

	return pids
}

func parsePid(out string) int {
	out = strings.TrimSpace(out)
	if out == "" {
		return -1
	}

	// pid lookups may match more than one line, the first one wins
	pid, err := strconv.Atoi(strings.TrimSpace(strings.SplitN(out, "\n", 2)[0]))
	if err != nil {
		return -1
	}

	return pid
}

func samePid(a, b string) bool {
	b = strings.TrimSpace(b)

	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		return na == nb
	}

	return a == b
}
