// Package supervisor manages the single worker process of a deployment. The
// pid of the last started worker is kept in a marker file, so a later run can
// stop it before starting the new version.
package supervisor

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ciotto/telegram-bot-deploy/errors"
	"github.com/ciotto/telegram-bot-deploy/executor"
	"github.com/ciotto/telegram-bot-deploy/fs"
)

// ErrProcessGone is returned by a Signaler when the target process no longer exists.
var ErrProcessGone = stderrors.New("process does not exist")

// Starter launches a process without waiting for it and returns its pid.
type Starter interface {
	Start(ctx context.Context, opts ...executor.Option) (int, error)
}

// Signaler asks a process to terminate.
type Signaler func(pid int) error

// Supervisor stops and starts the worker process.
type Supervisor struct {
	fs      fs.Filesystem
	pidPath string
	command Starter
	workdir string
	signal  Signaler
	logger  *slog.Logger
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) {
		s.logger = logger
	}
}

// WithSignaler replaces the default SIGTERM delivery.
func WithSignaler(signal Signaler) Option {
	return func(s *Supervisor) {
		s.signal = signal
	}
}

// New creates a Supervisor that runs command in workdir and tracks its pid
// in pidPath on fsys.
func New(fsys fs.Filesystem, pidPath string, command Starter, workdir string, opts ...Option) *Supervisor {
	s := &Supervisor{
		fs:      fsys,
		pidPath: pidPath,
		command: command,
		workdir: workdir,
		signal:  terminate,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stop terminates the process recorded in the marker. A missing marker or an
// already exited process is not an error.
func (s *Supervisor) Stop(ctx context.Context) error {
	exists, err := s.fs.Exists(s.pidPath)
	if err != nil {
		return errors.WrapWithContext(err, errors.CodeIO, "failed to check pid marker",
			map[string]any{"path": s.pidPath})
	}
	if !exists {
		s.logger.DebugContext(ctx, "no pid marker, nothing to stop", "path", s.pidPath)
		return nil
	}

	pid, err := s.readPid()
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "stopping worker", "pid", pid)
	if err := s.signal(pid); err != nil {
		if stderrors.Is(err, ErrProcessGone) {
			s.logger.InfoContext(ctx, "worker already stopped", "pid", pid)
			return nil
		}
		return errors.WrapWithContext(err, errors.CodeExecutionFailed, "failed to signal worker",
			map[string]any{"pid": pid})
	}
	return nil
}

// Start launches the worker in the repository directory and records its pid,
// replacing any previous marker content.
func (s *Supervisor) Start(ctx context.Context) (int, error) {
	pid, err := s.command.Start(ctx, executor.WithWorkingDir(s.workdir))
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeExecutionFailed, "failed to start worker")
	}

	if err := s.fs.WriteFile(s.pidPath, []byte(strconv.Itoa(pid)), 0o644); err != nil {
		return pid, errors.WrapWithContext(err, errors.CodeIO, "failed to write pid marker",
			map[string]any{"path": s.pidPath, "pid": pid})
	}

	s.logger.InfoContext(ctx, "worker started", "pid", pid, "workdir", s.workdir)
	return pid, nil
}

// Restart stops the current worker and starts a new one. Stop failures are
// logged and the start is attempted anyway; only start failures are returned.
func (s *Supervisor) Restart(ctx context.Context) error {
	if err := s.Stop(ctx); err != nil {
		s.logger.WarnContext(ctx, "failed to stop worker, starting anyway", "error", err)
	}
	_, err := s.Start(ctx)
	return err
}

func (s *Supervisor) readPid() (int, error) {
	data, err := s.fs.ReadFile(s.pidPath)
	if err != nil {
		return 0, errors.WrapWithContext(err, errors.CodeIO, "failed to read pid marker",
			map[string]any{"path": s.pidPath})
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, errors.WrapWithContext(
			fmt.Errorf("invalid pid %q", strings.TrimSpace(string(data))),
			errors.CodeInvalidInput, "corrupt pid marker",
			map[string]any{"path": s.pidPath},
		)
	}
	return pid, nil
}
