// Package executor runs the external commands of a deployment: environment
// creation, dependency install, tests, coverage and the bot worker itself.
// Commands block until exit unless started detached, and may be bounded by a
// timeout that terminates the whole process group.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-shellwords"
)

// DefaultKillDelay is how long a timed out command gets between SIGTERM and SIGKILL.
const DefaultKillDelay = 10 * time.Second

var (
	// ErrEmptyCommand is returned when a command line has no program.
	ErrEmptyCommand = errors.New("empty command")

	// ErrTimeout is returned when a command exceeds its configured timeout.
	ErrTimeout = errors.New("command timed out")
)

// Result holds the output and error from a command execution
type Result struct {
	Stdout   string
	Stderr   string
	Combined string
	ExitCode int
	Err      error
}

// Executor defines the interface for command execution
type Executor interface {
	// Execute runs a command with the given options
	Execute(ctx context.Context, opts ...Option) (*Result, error)
}

// CommandExecutor implements the Executor interface
type CommandExecutor struct {
	program string
	args    []string
	options *Options
}

// Options configures command execution behavior
type Options struct {
	// Output handling
	CaptureStdout   bool
	CaptureStderr   bool
	CaptureCombined bool

	// Working directory
	WorkingDir string

	// Environment variables (appended to current env)
	Env map[string]string

	// Extra writers that receive the output as it is produced
	StdoutWriter io.Writer
	StderrWriter io.Writer

	// Timeout bounds the run; zero means wait forever.
	Timeout time.Duration

	// KillDelay is the grace period after SIGTERM before the process is killed.
	KillDelay time.Duration
}

// Option is a function that modifies Options
type Option func(*Options)

// DefaultOptions returns default execution options
func DefaultOptions() *Options {
	return &Options{
		CaptureStdout:   true,
		CaptureStderr:   true,
		CaptureCombined: false,
		KillDelay:       DefaultKillDelay,
		Env:             make(map[string]string),
	}
}

// New creates a new CommandExecutor
func New(program string, args ...string) *CommandExecutor {
	return &CommandExecutor{
		program: program,
		args:    args,
		options: DefaultOptions(),
	}
}

// Parse builds an executor from a command line. Words are split with shell
// quoting rules and $VAR expansion. A line using pipes, redirections or
// command lists is handed to /bin/sh as a whole.
func Parse(command string) (*CommandExecutor, error) {
	parser := shellwords.NewParser()
	parser.ParseEnv = true

	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse command %q: %w", command, err)
	}

	if parser.Position >= 0 {
		return New("/bin/sh", "-c", command), nil
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("parse command %q: %w", command, ErrEmptyCommand)
	}
	return New(args[0], args[1:]...), nil
}

// Program returns the program to execute.
func (c *CommandExecutor) Program() string {
	return c.program
}

// Args returns the program arguments.
func (c *CommandExecutor) Args() []string {
	return c.args
}

// String returns the command line for logging.
func (c *CommandExecutor) String() string {
	return strings.Join(append([]string{c.program}, c.args...), " ")
}

// Execute implements the Executor interface
func (c *CommandExecutor) Execute(ctx context.Context, opts ...Option) (*Result, error) {
	options := c.mergeOptions(opts...)

	if options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, options.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.program, c.args...)
	c.setupCommand(cmd, options)
	if options.Timeout > 0 {
		// SIGTERM the whole group first, SIGKILL the leader after KillDelay.
		setProcessGroup(cmd)
		cmd.Cancel = func() error { return terminateGroup(cmd) }
		cmd.WaitDelay = options.KillDelay
	}
	stdoutBuf, stderrBuf, combinedBuf := c.setupOutputCapture(cmd, options)

	err := cmd.Run()
	result := c.createResult(stdoutBuf, stderrBuf, combinedBuf, err)

	if err != nil {
		if options.Timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return result, fmt.Errorf("%w after %s: %w", ErrTimeout, options.Timeout, err)
		}
		return result, fmt.Errorf("command execution failed: %w", err)
	}
	return result, nil
}

// Start launches the command and returns its pid without waiting for it.
// The child gets its own process group so it survives the caller, and its
// standard streams are discarded.
func (c *CommandExecutor) Start(ctx context.Context, opts ...Option) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("start cancelled: %w", err)
	}

	options := c.mergeOptions(opts...)

	//nolint:gosec // the command line comes from operator configuration.
	cmd := exec.Command(c.program, c.args...)
	c.setupCommand(cmd, options)
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start %s: %w", c.program, err)
	}

	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		return pid, fmt.Errorf("failed to release process %d: %w", pid, err)
	}
	return pid, nil
}

// setupCommand configures the exec.Cmd with working directory and environment
func (c *CommandExecutor) setupCommand(cmd *exec.Cmd, options *Options) {
	if options.WorkingDir != "" {
		cmd.Dir = options.WorkingDir
	}

	if len(options.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range options.Env {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
		}
	}
}

// setupOutputCapture configures stdout and stderr writers for the command
func (c *CommandExecutor) setupOutputCapture(
	cmd *exec.Cmd,
	options *Options,
) (*bytes.Buffer, *bytes.Buffer, *bytes.Buffer) {
	var stdoutBuf, stderrBuf, combinedBuf bytes.Buffer
	// Both streams are copied concurrently and may share a buffer or writer.
	var mu sync.Mutex

	stdoutWriters := []io.Writer{}
	switch {
	case options.CaptureCombined:
		stdoutWriters = append(stdoutWriters, &combinedBuf)
	case options.CaptureStdout:
		stdoutWriters = append(stdoutWriters, &stdoutBuf)
	}
	if options.StdoutWriter != nil {
		stdoutWriters = append(stdoutWriters, options.StdoutWriter)
	}
	if len(stdoutWriters) > 0 {
		cmd.Stdout = &lockedWriter{mu: &mu, w: io.MultiWriter(stdoutWriters...)}
	}

	stderrWriters := []io.Writer{}
	switch {
	case options.CaptureCombined:
		stderrWriters = append(stderrWriters, &combinedBuf)
	case options.CaptureStderr:
		stderrWriters = append(stderrWriters, &stderrBuf)
	}
	if options.StderrWriter != nil {
		stderrWriters = append(stderrWriters, options.StderrWriter)
	}
	if len(stderrWriters) > 0 {
		cmd.Stderr = &lockedWriter{mu: &mu, w: io.MultiWriter(stderrWriters...)}
	}

	return &stdoutBuf, &stderrBuf, &combinedBuf
}

// createResult creates a Result from command execution and error
func (c *CommandExecutor) createResult(
	stdoutBuf, stderrBuf, combinedBuf *bytes.Buffer,
	err error,
) *Result {
	result := &Result{
		Stdout:   stdoutBuf.String(),
		Stderr:   stderrBuf.String(),
		Combined: combinedBuf.String(),
		Err:      err,
	}

	var exitErr *exec.ExitError
	switch {
	case err != nil && errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	case err == nil:
		result.ExitCode = 0
	default:
		result.ExitCode = -1
	}

	return result
}

func (c *CommandExecutor) mergeOptions(opts ...Option) *Options {
	merged := *c.options
	merged.Env = make(map[string]string, len(c.options.Env))
	for k, v := range c.options.Env {
		merged.Env[k] = v
	}

	for _, opt := range opts {
		opt(&merged)
	}

	return &merged
}

// Option functions for fluent configuration

// WithCapture configures output capture
func WithCapture(stdout, stderr, combined bool) Option {
	return func(o *Options) {
		o.CaptureStdout = stdout
		o.CaptureStderr = stderr
		o.CaptureCombined = combined
	}
}

// WithWorkingDir sets the working directory
func WithWorkingDir(dir string) Option {
	return func(o *Options) {
		o.WorkingDir = dir
	}
}

// WithEnvVar adds a single environment variable
func WithEnvVar(key, value string) Option {
	return func(o *Options) {
		if o.Env == nil {
			o.Env = make(map[string]string)
		}
		o.Env[key] = value
	}
}

// WithStdoutWriter sets a custom stdout writer
func WithStdoutWriter(w io.Writer) Option {
	return func(o *Options) {
		o.StdoutWriter = w
	}
}

// WithStderrWriter sets a custom stderr writer
func WithStderrWriter(w io.Writer) Option {
	return func(o *Options) {
		o.StderrWriter = w
	}
}

// WithTimeout bounds the command run. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}

// WithKillDelay sets the grace period between SIGTERM and SIGKILL on timeout.
func WithKillDelay(d time.Duration) Option {
	return func(o *Options) {
		o.KillDelay = d
	}
}

type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
