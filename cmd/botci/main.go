// Command botci deploys a bot from the newest release tag of its git
// repository. Each invocation runs one cycle and exits; schedule it with cron
// or a systemd timer to keep the bot up to date.
package main

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ciotto/telegram-bot-deploy/config"
	"github.com/ciotto/telegram-bot-deploy/errors"
	"github.com/ciotto/telegram-bot-deploy/executor"
	"github.com/ciotto/telegram-bot-deploy/fs/billy"
	"github.com/ciotto/telegram-bot-deploy/git"
	"github.com/ciotto/telegram-bot-deploy/notify"
	"github.com/ciotto/telegram-bot-deploy/orchestrator"
	"github.com/ciotto/telegram-bot-deploy/pipeline"
	"github.com/ciotto/telegram-bot-deploy/secrets"
	"github.com/ciotto/telegram-bot-deploy/supervisor"
)

// dotEnvFile is read from the working directory before the environment.
const dotEnvFile = ".env"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.LookupEnv)
	stop()
	os.Exit(code)
}

// run executes the command and returns the process exit status. Every
// failure is logged exactly once at error level.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, lookup config.LookupFunc) int {
	a := &app{
		lookup: lookup,
		stderr: stderr,
		logger: slog.New(slog.NewTextHandler(stderr, nil)),
	}

	cmd := a.rootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	defer a.close()
	if err == nil {
		return errors.ExitOK
	}

	var coded *errors.Error
	if !stderrors.As(err, &coded) {
		err = errors.Wrap(err, errors.CodeInvalidInput, "invalid arguments")
	}
	a.logger.Error("botci failed", "error", err, "code", errors.GetCode(err))
	return errors.ExitCode(err)
}

// app carries the process environment into the command. The logger starts
// as a plain stderr logger and is replaced once the configuration is loaded.
type app struct {
	lookup config.LookupFunc
	stderr io.Writer
	logger *slog.Logger
	closer io.Closer
}

func (a *app) close() {
	if a.closer != nil {
		_ = a.closer.Close()
	}
}

func (a *app) rootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "botci",
		Short: "Test and deploy a telegram bot",
		Long: "botci fetches the bot repository, finds the newest release tag on the tracked branch\n" +
			"and, when it changed, installs, tests and restarts the bot, reporting to a chat.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := config.BindFlags(cmd.Flags())

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(flags, a.lookup, dotEnvFile)
		if err != nil {
			return err
		}

		logger, closer, err := cfg.Logging.NewLogger(a.stderr)
		if err != nil {
			return err
		}
		a.logger, a.closer = logger, closer

		return deploy(cmd.Context(), cfg, logger, a.stderr)
	}
	return cmd
}

// deploy wires the configured components and runs one cycle. Verbose runs
// stream the release command output to console.
func deploy(ctx context.Context, cfg *config.Config, logger *slog.Logger, console io.Writer) error {
	hostFS := billy.NewHostFS()

	notifier, err := newNotifier(ctx, cfg, logger)
	if err != nil {
		return err
	}

	bot, err := executor.Parse(cfg.RunBot)
	if err != nil {
		return errors.Wrap(err, errors.CodeInvalidConfig, "invalid bot command")
	}
	sup := supervisor.New(hostFS, cfg.PidFilePath, bot, cfg.RepoPath, supervisor.WithLogger(logger))

	var runnerOpts []pipeline.ShellRunnerOption
	if cfg.Verbose {
		runnerOpts = append(runnerOpts, pipeline.WithCommandOutput(console))
	}

	steps := &pipeline.Steps{
		RepoDir:        cfg.RepoPath,
		VirtualenvPath: cfg.VirtualenvPath,
		CreateEnv:      cfg.CreateVirtualenv,
		InstallDeps:    cfg.InstallRequirements,
		RunTests:       cfg.RunTests,
		Coverage:       cfg.GetCoverage,
		SkipTests:      cfg.SkipTests,
		SkipCoverage:   cfg.SkipCoverage,
		FS:             hostFS,
		Runner:         pipeline.NewShellRunner(cfg.StepTimeout, logger, runnerOpts...),
		Restarter:      sup,
	}
	release := pipeline.New(steps.Gates(), notifier, pipeline.WithLogger(logger))

	workspace := &orchestrator.GitWorkspace{
		FS:   hostFS,
		Path: cfg.RepoPath,
		Auth: git.NewSSHAuth(cfg.SSHKey, cfg.SSHKnownHosts),
	}
	orch := orchestrator.New(orchestrator.Settings{
		RepoURL:     cfg.RepoURL,
		Branch:      cfg.Branch,
		Force:       cfg.Force,
		MinCoverage: cfg.MinCoverage,
	}, workspace, release, orchestrator.WithLogger(logger))

	outcome, err := orch.Run(ctx)
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "cycle finished", "outcome", outcome.String())
	return nil
}

// newNotifier resolves the bot token, which may reference AWS Secrets
// Manager, and builds the chat notifier. Without a token messages are only
// logged.
func newNotifier(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*notify.Notifier, error) {
	token := cfg.BotToken
	if secrets.IsReference(token) {
		client, err := secrets.NewClient(ctx, secrets.WithLogger(logger))
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeUnavailable, "failed to set up secrets client")
		}
		token, err = client.Resolve(ctx, token)
		if err != nil {
			return nil, errors.Wrap(err, secretErrorCode(err), "failed to resolve bot token")
		}
	}

	var sender notify.Sender
	if token != "" {
		sender = notify.NewTelegramSender(token,
			notify.WithAPIEndpoint(cfg.TelegramAPIURL),
			notify.WithParseMode(cfg.ParseMode),
		)
	}
	return notify.New(sender, cfg.ChatID, cfg.Messages.Templates(), notify.WithLogger(logger)), nil
}

func secretErrorCode(err error) errors.ErrorCode {
	switch {
	case stderrors.Is(err, secrets.ErrAccessDenied):
		return errors.CodeUnauthorized
	case stderrors.Is(err, secrets.ErrSecretNotFound),
		stderrors.Is(err, secrets.ErrSecretEmpty),
		stderrors.Is(err, secrets.ErrInvalidRef):
		return errors.CodeInvalidConfig
	default:
		return errors.CodeUnavailable
	}
}
