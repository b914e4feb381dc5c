package pipeline

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ciotto/telegram-bot-deploy/errors"
	"github.com/ciotto/telegram-bot-deploy/fs/billy"
	"github.com/ciotto/telegram-bot-deploy/notify"
)

type sent struct {
	kind   notify.Kind
	values map[string]any
}

type fakeNotifier struct {
	sent []sent
	err  error
}

func (f *fakeNotifier) Notify(_ context.Context, kind notify.Kind, values map[string]any) error {
	f.sent = append(f.sent, sent{kind: kind, values: values})
	return f.err
}

func (f *fakeNotifier) kinds() []notify.Kind {
	kinds := make([]notify.Kind, 0, len(f.sent))
	for _, s := range f.sent {
		kinds = append(kinds, s.kind)
	}
	return kinds
}

// fakeRunner records every command and fails the ones listed in fail.
type fakeRunner struct {
	calls  []string
	dirs   []string
	fail   map[string]error
	output map[string]string
	log    *[]string
}

func (f *fakeRunner) Run(_ context.Context, command, dir string) (string, error) {
	f.calls = append(f.calls, command)
	f.dirs = append(f.dirs, dir)
	if f.log != nil {
		*f.log = append(*f.log, command)
	}
	return f.output[command], f.fail[command]
}

type fakeRestarter struct {
	calls int
	err   error
	log   *[]string
}

func (f *fakeRestarter) Restart(context.Context) error {
	f.calls++
	if f.log != nil {
		*f.log = append(*f.log, "restart")
	}
	return f.err
}

type fixture struct {
	steps     *Steps
	runner    *fakeRunner
	restarter *fakeRestarter
	notifier  *fakeNotifier
	fs        *billy.FS
	order     []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{fs: billy.NewInMemoryFS(), notifier: &fakeNotifier{}}
	require.NoError(t, f.fs.MkdirAll("repo", 0o755))

	f.runner = &fakeRunner{
		fail:   map[string]error{},
		output: map[string]string{"coverage report": "Name Stmts Miss Cover\nTOTAL 120 10 92%\n"},
		log:    &f.order,
	}
	f.restarter = &fakeRestarter{log: &f.order}
	f.steps = &Steps{
		RepoDir:        "repo",
		VirtualenvPath: ".virtualenv",
		CreateEnv:      "python3 -m venv .virtualenv",
		InstallDeps:    "pip install -r requirements.txt",
		RunTests:       "pytest",
		Coverage:       "coverage report",
		FS:             f.fs,
		Runner:         f.runner,
		Restarter:      f.restarter,
	}
	return f
}

func (f *fixture) run(rc *ReleaseContext) error {
	return New(f.steps.Gates(), f.notifier).Run(context.Background(), rc)
}

func TestPipeline_AllGatesInOrder(t *testing.T) {
	f := newFixture(t)
	rc := &ReleaseContext{OldVersion: "v1", Version: "v2", Author: "Alice", MinCoverage: 90}

	require.NoError(t, f.run(rc))

	assert.Equal(t, []string{
		"python3 -m venv .virtualenv",
		"pip install -r requirements.txt",
		"pytest",
		"coverage report",
		"restart",
	}, f.order)
	for _, dir := range f.runner.dirs {
		assert.Equal(t, "repo", dir)
	}
	require.NotNil(t, rc.Coverage)
	assert.InDelta(t, 92.0, *rc.Coverage, 0.001)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, notify.NewVersion, f.notifier.sent[0].kind)
	assert.Equal(t, "v2", f.notifier.sent[0].values["version"])
	assert.Equal(t, "v1", f.notifier.sent[0].values["old_version"])
	assert.Equal(t, "Alice", f.notifier.sent[0].values["author"])
}

func TestPipeline_FailFast(t *testing.T) {
	tests := []struct {
		name       string
		failing    string
		restartErr error
		wantKind   notify.Kind
		wantGate   string
		wantOrder  []string
	}{
		{
			name:      "environment",
			failing:   "python3 -m venv .virtualenv",
			wantKind:  notify.EnvironmentFailed,
			wantGate:  GateEnvironment,
			wantOrder: []string{"python3 -m venv .virtualenv"},
		},
		{
			name:      "dependencies",
			failing:   "pip install -r requirements.txt",
			wantKind:  notify.DependenciesFailed,
			wantGate:  GateDependencies,
			wantOrder: []string{"python3 -m venv .virtualenv", "pip install -r requirements.txt"},
		},
		{
			name:      "tests",
			failing:   "pytest",
			wantKind:  notify.TestsFailed,
			wantGate:  GateTests,
			wantOrder: []string{"python3 -m venv .virtualenv", "pip install -r requirements.txt", "pytest"},
		},
		{
			name:     "coverage tool",
			failing:  "coverage report",
			wantKind: notify.CoverageFailed,
			wantGate: GateCoverage,
			wantOrder: []string{
				"python3 -m venv .virtualenv", "pip install -r requirements.txt", "pytest", "coverage report",
			},
		},
		{
			name:       "restart",
			restartErr: stderrors.New("exec: bot.py: not found"),
			wantKind:   notify.RestartFailed,
			wantGate:   GateRestart,
			wantOrder: []string{
				"python3 -m venv .virtualenv", "pip install -r requirements.txt", "pytest", "coverage report", "restart",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.failing != "" {
				f.runner.fail[tt.failing] = stderrors.New("exit status 1")
			}
			f.restarter.err = tt.restartErr

			err := f.run(&ReleaseContext{Version: "v2"})
			require.Error(t, err)
			assert.Equal(t, errors.CodeExecutionFailed, errors.GetCode(err))

			var gateErr *GateError
			require.ErrorAs(t, err, &gateErr)
			assert.Equal(t, tt.wantGate, gateErr.Gate)
			assert.Equal(t, tt.wantKind, gateErr.Kind)

			assert.Equal(t, tt.wantOrder, f.order)
			assert.Equal(t, []notify.Kind{tt.wantKind}, f.notifier.kinds())
		})
	}
}

func TestPipeline_Coverage(t *testing.T) {
	tests := []struct {
		name     string
		output   string
		min      int
		wantErr  error
		wantKind []notify.Kind
	}{
		{name: "at minimum", output: "TOTAL 10 1 90%", min: 90, wantKind: []notify.Kind{notify.NewVersion}},
		{name: "below minimum", output: "TOTAL 10 2 80%", min: 90, wantErr: ErrCoverageTooLow, wantKind: []notify.Kind{notify.CoverageLow}},
		{name: "unparsable", output: "no data to report", wantErr: ErrCoverageUnparsable, wantKind: []notify.Kind{notify.CoverageFailed}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.runner.output["coverage report"] = tt.output

			err := f.run(&ReleaseContext{Version: "v2", MinCoverage: tt.min})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantKind, f.notifier.kinds())
		})
	}
}

func TestPipeline_SkipFlags(t *testing.T) {
	t.Run("skip tests skips coverage too", func(t *testing.T) {
		f := newFixture(t)
		f.steps.SkipTests = true

		require.NoError(t, f.run(&ReleaseContext{Version: "v2", MinCoverage: 100}))
		assert.Equal(t, []string{"python3 -m venv .virtualenv", "pip install -r requirements.txt", "restart"}, f.order)
	})

	t.Run("skip coverage alone runs tests", func(t *testing.T) {
		f := newFixture(t)
		f.steps.SkipCoverage = true

		require.NoError(t, f.run(&ReleaseContext{Version: "v2", MinCoverage: 100}))
		assert.Equal(t, []string{"python3 -m venv .virtualenv", "pip install -r requirements.txt", "pytest", "restart"}, f.order)
	})

	t.Run("no virtualenv path skips environment", func(t *testing.T) {
		f := newFixture(t)
		f.steps.VirtualenvPath = ""
		f.steps.SkipTests = true

		require.NoError(t, f.run(&ReleaseContext{Version: "v2"}))
		assert.Equal(t, []string{"pip install -r requirements.txt", "restart"}, f.order)
	})
}

func TestPipeline_ExistingEnvironmentIsNotRecreated(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.fs.MkdirAll("repo/.virtualenv/bin", 0o755))
	f.runner.fail["python3 -m venv .virtualenv"] = stderrors.New("must not run")

	require.NoError(t, f.run(&ReleaseContext{Version: "v2"}))
	assert.NotContains(t, f.runner.calls, "python3 -m venv .virtualenv")
}

func TestPipeline_NotificationFailure(t *testing.T) {
	t.Run("after success", func(t *testing.T) {
		f := newFixture(t)
		f.notifier.err = errors.New(errors.CodeNetwork, "send failed")

		err := f.run(&ReleaseContext{Version: "v2"})
		require.Error(t, err)
		assert.Equal(t, errors.CodeNetwork, errors.GetCode(err))
	})

	t.Run("after gate failure keeps gate error", func(t *testing.T) {
		f := newFixture(t)
		f.runner.fail["pytest"] = stderrors.New("exit status 1")
		f.notifier.err = errors.New(errors.CodeNetwork, "send failed")

		err := f.run(&ReleaseContext{Version: "v2"})
		require.Error(t, err)
		assert.Equal(t, errors.CodeExecutionFailed, errors.GetCode(err))
		assert.True(t, errors.HasCode(err, errors.CodeExecutionFailed))
		assert.Len(t, f.notifier.sent, 1)
	})
}

func TestPipeline_FailureLogsWarning(t *testing.T) {
	tests := []struct {
		name    string
		failing string
		gate    string
	}{
		{name: "dependencies", failing: "pip install -r requirements.txt", gate: GateDependencies},
		{name: "tests", failing: "pytest", gate: GateTests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.runner.fail[tt.failing] = stderrors.New("exit status 1")

			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

			err := New(f.steps.Gates(), f.notifier, WithLogger(logger)).
				Run(context.Background(), &ReleaseContext{Version: "v2"})
			require.Error(t, err)

			out := buf.String()
			assert.NotContains(t, out, "level=ERROR")
			assert.Contains(t, out, `level=WARN msg="gate failed" gate=`+tt.gate)
		})
	}
}

func TestShellRunner_Run(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	tests := []struct {
		name    string
		command string
		stream  bool
		want    string
		wantErr bool
	}{
		{name: "captured", command: "echo hello", want: "hello"},
		{name: "streamed", command: "echo hello", stream: true, want: "hello"},
		{name: "pipeline", command: "echo a b | wc -w", want: "2"},
		{name: "failure keeps output", command: "sh -c 'echo broken >&2; exit 3'", stream: true, want: "broken", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var streamed bytes.Buffer
			var opts []ShellRunnerOption
			if tt.stream {
				opts = append(opts, WithCommandOutput(&streamed))
			}
			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			runner := NewShellRunner(10*time.Second, logger, opts...)

			out, err := runner.Run(context.Background(), tt.command, t.TempDir())
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Contains(t, out, tt.want)
			if tt.stream {
				assert.Equal(t, out, streamed.String())
			} else {
				assert.Empty(t, streamed.String())
			}
		})
	}
}

func TestParseCoverage(t *testing.T) {
	tests := []struct {
		output  string
		want    float64
		wantErr bool
	}{
		{output: "TOTAL 120 10 92%", want: 92},
		{output: "bot.py 10 0 100%\nTOTAL 50 5 90%\n", want: 90},
		{output: "TOTAL 3 1 66.67%", want: 66.67},
		{output: "87", wantErr: true},
		{output: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.output, func(t *testing.T) {
			got, err := ParseCoverage(tt.output)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrCoverageUnparsable)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

func TestReleaseContext_Values(t *testing.T) {
	rc := &ReleaseContext{OldVersion: "v1-2-gabc1234", Version: "v2", Author: "Bob", MinCoverage: 80}
	values := rc.Values()
	assert.Nil(t, values["coverage"])
	assert.Equal(t, 80, values["min_coverage"])

	cov := 85.5
	rc.Coverage = &cov
	assert.Equal(t, 85.5, rc.Values()["coverage"])
	assert.Equal(t, "Coverage 85.5 of 80 for v2", notify.Render("Coverage %(coverage)s of %(min_coverage)s for %(version)s", rc.Values()))
}
