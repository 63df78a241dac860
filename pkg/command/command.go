package command

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Command is a shell command line executed either locally or, when
// RemoteHost is set, on that host.
type Command struct {
	Name       string
	CmdStr     string
	RemoteHost string
}

func (c Command) IsRemote() bool {
	return c.RemoteHost != ""
}

type Result struct {
	ReturnCode int
	Stdout     string
	Stderr     string

	// command ran to completion (was not killed)
	Completed bool

	// command was interrupted by a signal
	Halted bool
}

func (r Result) WasSuccessful() bool {
	return r.ReturnCode == 0 && r.Completed && !r.Halted
}

// Executor runs commands. The returned error is reserved for commands that
// could not be run at all; a command that ran and failed is reported through
// the Result.
type Executor interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

type ExecutionError struct {
	Command Command
	Result  Result
}

func (e *ExecutionError) Error() string {
	msg := fmt.Sprintf("ExecutionError: '%s' occurred. Details: '%s'  cmd had rc=%d",
		e.Command.Name, e.Command.CmdStr, e.Result.ReturnCode)

	if stderr := strings.TrimSpace(e.Result.Stderr); stderr != "" {
		msg += " stderr='" + stderr + "'"
	}

	return msg
}

// RunValidated runs cmd and turns any unsuccessful result into an error.
func RunValidated(ctx context.Context, executor Executor, cmd Command) (Result, error) {
	res, err := executor.Run(ctx, cmd)
	if err != nil {
		return res, err
	}

	if !res.WasSuccessful() {
		return res, &ExecutionError{Command: cmd, Result: res}
	}

	return res, nil
}

type ShellExecutor struct {
	logger logrus.FieldLogger

	Shell   string
	SSHArgs []string
}

func NewShellExecutor(logger logrus.FieldLogger) *ShellExecutor {
	return &ShellExecutor{
		logger:  logger,
		Shell:   "bash",
		SSHArgs: []string{"-o", "StrictHostKeyChecking=no", "-o", "BatchMode=yes"},
	}
}

func (e *ShellExecutor) Run(ctx context.Context, cmd Command) (Result, error) {
	argv := e.argv(cmd)

	logger := e.logger.WithFields(logrus.Fields{"cmd": cmd.Name, "remote_host": cmd.RemoteHost})
	logger.WithField("cmd_str", cmd.CmdStr).Debug("Running command")

	c := exec.CommandContext(ctx, argv[0], argv[1:]...)

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()

	res := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err == nil {
		res.Completed = true
		return res, nil
	}

	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		return res, errors.Wrapf(err, "Unable to run command '%s'", cmd.Name)
	}

	res.ReturnCode = exitErr.ExitCode()
	if res.ReturnCode < 0 {
		// terminated by a signal
		res.Halted = true
		res.ReturnCode = 1
	} else {
		res.Completed = true
	}

	logger.WithField("rc", res.ReturnCode).Debug("Command finished with non-zero status")

	return res, nil
}

func (e *ShellExecutor) argv(cmd Command) []string {
	if !cmd.IsRemote() {
		return []string{e.Shell, "-c", cmd.CmdStr}
	}

	argv := append([]string{"ssh"}, e.SSHArgs...)
	argv = append(argv, cmd.RemoteHost, shellquote.Join(e.Shell, "-c", cmd.CmdStr))

	return argv
}
