package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/ciotto/telegram-bot-deploy/executor"
	"github.com/ciotto/telegram-bot-deploy/fs"
	"github.com/ciotto/telegram-bot-deploy/notify"
)

// Gate names.
const (
	GateEnvironment  = "environment"
	GateDependencies = "dependencies"
	GateTests        = "tests"
	GateCoverage     = "coverage"
	GateRestart      = "restart"
)

var (
	// ErrCoverageTooLow is returned when measured coverage is below the minimum.
	ErrCoverageTooLow = stderrors.New("coverage too low")

	// ErrCoverageUnparsable is returned when no percentage is found in the
	// coverage command output.
	ErrCoverageUnparsable = stderrors.New("no coverage percentage in output")
)

var percentRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)

// CommandRunner runs one command line in dir and returns its combined output.
type CommandRunner interface {
	Run(ctx context.Context, command, dir string) (string, error)
}

// Restarter replaces the running worker with the checked out version.
type Restarter interface {
	Restart(ctx context.Context) error
}

// Steps holds what the default gates need.
type Steps struct {
	// RepoDir is the working tree every command runs in.
	RepoDir string

	// VirtualenvPath is the environment directory, relative to RepoDir unless
	// absolute. Empty disables the environment gate.
	VirtualenvPath string

	CreateEnv    string
	InstallDeps  string
	RunTests     string
	Coverage     string
	SkipTests    bool
	SkipCoverage bool

	FS        fs.Filesystem
	Runner    CommandRunner
	Restarter Restarter
}

// Gates returns environment, dependencies, tests, coverage and restart, in
// that order.
func (s *Steps) Gates() []Gate {
	return []Gate{
		{
			Name:    GateEnvironment,
			Run:     s.prepareEnvironment,
			Skip:    func(*ReleaseContext) bool { return s.VirtualenvPath == "" },
			Failure: notify.EnvironmentFailed,
		},
		{
			Name:    GateDependencies,
			Run:     s.command(s.InstallDeps),
			Failure: notify.DependenciesFailed,
		},
		{
			Name:    GateTests,
			Run:     s.command(s.RunTests),
			Skip:    func(*ReleaseContext) bool { return s.SkipTests || s.RunTests == "" },
			Failure: notify.TestsFailed,
		},
		{
			Name:    GateCoverage,
			Run:     s.measureCoverage,
			Skip:    func(*ReleaseContext) bool { return s.SkipTests || s.SkipCoverage || s.Coverage == "" },
			Failure: notify.CoverageFailed,
		},
		{
			Name: GateRestart,
			Run: func(ctx context.Context, _ *ReleaseContext) error {
				return s.Restarter.Restart(ctx)
			},
			Failure: notify.RestartFailed,
		},
	}
}

// EnvironmentDir returns the absolute or RepoDir-relative environment path.
func (s *Steps) EnvironmentDir() string {
	if filepath.IsAbs(s.VirtualenvPath) {
		return s.VirtualenvPath
	}
	return filepath.Join(s.RepoDir, s.VirtualenvPath)
}

func (s *Steps) prepareEnvironment(ctx context.Context, _ *ReleaseContext) error {
	exists, err := s.FS.Exists(s.EnvironmentDir())
	if err != nil {
		return fmt.Errorf("check environment %s: %w", s.EnvironmentDir(), err)
	}
	if exists {
		return nil
	}
	_, err = s.Runner.Run(ctx, s.CreateEnv, s.RepoDir)
	return err
}

func (s *Steps) command(line string) func(context.Context, *ReleaseContext) error {
	return func(ctx context.Context, _ *ReleaseContext) error {
		_, err := s.Runner.Run(ctx, line, s.RepoDir)
		return err
	}
}

func (s *Steps) measureCoverage(ctx context.Context, rc *ReleaseContext) error {
	output, err := s.Runner.Run(ctx, s.Coverage, s.RepoDir)
	if err != nil {
		return err
	}

	coverage, err := ParseCoverage(output)
	if err != nil {
		return err
	}
	rc.Coverage = &coverage

	if coverage < float64(rc.MinCoverage) {
		return WithKind(
			fmt.Errorf("%w: %g%% < %d%%", ErrCoverageTooLow, coverage, rc.MinCoverage),
			notify.CoverageLow,
		)
	}
	return nil
}

// ParseCoverage returns the last percentage found in output, as printed on
// the TOTAL line of a coverage report.
func ParseCoverage(output string) (float64, error) {
	matches := percentRe.FindAllStringSubmatch(output, -1)
	if len(matches) == 0 {
		return 0, ErrCoverageUnparsable
	}
	value, err := strconv.ParseFloat(matches[len(matches)-1][1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCoverageUnparsable, err)
	}
	return value, nil
}

// ShellRunner runs command lines through the executor package.
type ShellRunner struct {
	timeout time.Duration
	logger  *slog.Logger
	output  io.Writer
}

// ShellRunnerOption configures a ShellRunner.
type ShellRunnerOption func(*ShellRunner)

// WithCommandOutput streams the output of every command to w while it runs.
func WithCommandOutput(w io.Writer) ShellRunnerOption {
	return func(r *ShellRunner) {
		r.output = w
	}
}

// NewShellRunner creates a runner. A zero timeout waits for commands forever.
func NewShellRunner(timeout time.Duration, logger *slog.Logger, opts ...ShellRunnerOption) *ShellRunner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &ShellRunner{timeout: timeout, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run implements CommandRunner. Output is always captured and is also
// streamed when the runner has a command output writer.
func (r *ShellRunner) Run(ctx context.Context, command, dir string) (string, error) {
	cmd, err := executor.Parse(command)
	if err != nil {
		return "", err
	}

	r.logger.InfoContext(ctx, "running command", "command", cmd.String(), "dir", dir)
	opts := []executor.Option{
		executor.WithWorkingDir(dir),
		executor.WithCapture(false, false, true),
		executor.WithTimeout(r.timeout),
	}
	if r.output != nil {
		opts = append(opts, executor.WithStdoutWriter(r.output), executor.WithStderrWriter(r.output))
	}
	result, err := cmd.Execute(ctx, opts...)
	if err != nil {
		output := ""
		if result != nil {
			output = result.Combined
		}
		r.logger.DebugContext(ctx, "command output", "command", cmd.String(), "output", output)
		return output, err
	}
	return result.Combined, nil
}
