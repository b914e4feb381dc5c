// Package config builds the deploy agent configuration. Values are layered:
// built-in defaults, then an optional YAML file, then environment variables
// (a .env file fills in variables that are not already set), then command
// line flags that were given explicitly.
package config

import (
	"path/filepath"
	"time"

	"github.com/ciotto/telegram-bot-deploy/errors"
	"github.com/ciotto/telegram-bot-deploy/executor"
	"github.com/ciotto/telegram-bot-deploy/fs"
	"github.com/ciotto/telegram-bot-deploy/notify"
)

// Defaults for settings that have one.
const (
	DefaultRepoPath         = "repo"
	DefaultBranch           = "master"
	DefaultSSHKey           = "id_deployment_key"
	DefaultPythonExecutable = "python3"
	DefaultVirtualenvPath   = ".virtualenv"
	DefaultRequirementsPath = "requirements.txt"
	DefaultParseMode        = "Markdown"
	DefaultLogFormat        = "text"
	DefaultLogLevel         = "info"
	PidFileName             = ".pid"
)

// Messages holds one template per pipeline outcome.
type Messages struct {
	CreateVirtualenvFail    string `yaml:"create_virtualenv_fail"`
	InstallRequirementsFail string `yaml:"install_requirements_fail"`
	RunTestsFail            string `yaml:"run_tests_fail"`
	CoverageFail            string `yaml:"coverage_fail"`
	CoverageLow             string `yaml:"coverage_low"`
	RestartFail             string `yaml:"restart_fail"`
	NewVersion              string `yaml:"new_version"`
}

// Templates converts the messages for the notifier.
func (m Messages) Templates() notify.Templates {
	return notify.Templates{
		notify.EnvironmentFailed:  m.CreateVirtualenvFail,
		notify.DependenciesFailed: m.InstallRequirementsFail,
		notify.TestsFailed:        m.RunTestsFail,
		notify.CoverageFailed:     m.CoverageFail,
		notify.CoverageLow:        m.CoverageLow,
		notify.RestartFailed:      m.RestartFail,
		notify.NewVersion:         m.NewVersion,
	}
}

// Logging configures the process logger.
type Logging struct {
	Format   string `yaml:"format"`
	Level    string `yaml:"level"`
	Filename string `yaml:"filename"`
}

// Config holds every setting of one deployment run.
type Config struct {
	// Repository
	RepoURL  string `yaml:"repo_url"`
	RepoPath string `yaml:"repo_path"`
	Branch   string `yaml:"branch"`
	Force    bool   `yaml:"force"`

	// Transport credentials
	SSHKey         string `yaml:"ssh_key"`
	SSHKnownHosts  string `yaml:"ssh_known_hosts"`
	ChatID         int64  `yaml:"chat_id"`
	BotToken       string `yaml:"bot_token"`
	TelegramAPIURL string `yaml:"telegram_api_endpoint"`
	ParseMode      string `yaml:"parse_mode"`

	Messages Messages `yaml:"messages"`

	PidFilePath string `yaml:"pid_file_path"`

	// Release commands. Empty commands are derived from the paths.
	PythonExecutable    string        `yaml:"python_executable"`
	VirtualenvPath      string        `yaml:"virtualenv_path"`
	CreateVirtualenv    string        `yaml:"create_virtualenv"`
	RequirementsPath    string        `yaml:"requirements_path"`
	InstallRequirements string        `yaml:"install_requirements"`
	SkipTests           bool          `yaml:"skip_tests"`
	RunTests            string        `yaml:"run_tests"`
	SkipCoverage        bool          `yaml:"skip_coverage"`
	GetCoverage         string        `yaml:"get_coverage_percentage"`
	MinCoverage         int           `yaml:"min_coverage"`
	RunBot              string        `yaml:"run_bot"`
	StepTimeout         time.Duration `yaml:"step_timeout"`
	Verbose             bool          `yaml:"verbose"`

	Logging Logging `yaml:"logging"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	templates := notify.DefaultTemplates()
	return &Config{
		RepoPath:  DefaultRepoPath,
		Branch:    DefaultBranch,
		SSHKey:    DefaultSSHKey,
		ParseMode: DefaultParseMode,
		Messages: Messages{
			CreateVirtualenvFail:    templates[notify.EnvironmentFailed],
			InstallRequirementsFail: templates[notify.DependenciesFailed],
			RunTestsFail:            templates[notify.TestsFailed],
			CoverageFail:            templates[notify.CoverageFailed],
			CoverageLow:             templates[notify.CoverageLow],
			RestartFail:             templates[notify.RestartFailed],
			NewVersion:              templates[notify.NewVersion],
		},
		PythonExecutable: DefaultPythonExecutable,
		VirtualenvPath:   DefaultVirtualenvPath,
		RequirementsPath: DefaultRequirementsPath,
		Logging: Logging{
			Format: DefaultLogFormat,
			Level:  DefaultLogLevel,
		},
	}
}

// Finalize fills derived values and validates the result.
//
// Commands left empty are derived from the virtualenv bin directory, or use
// bare program names when no virtualenv is configured. The pid marker
// defaults to .pid inside the repository and the SSH key path is made
// absolute.
func (c *Config) Finalize() error {
	if c.PidFilePath == "" {
		c.PidFilePath = filepath.Join(c.RepoPath, PidFileName)
	}

	if c.SSHKey != "" {
		abs, err := fs.GetAbs(c.SSHKey)
		if err != nil {
			return errors.Wrap(err, errors.CodeInvalidConfig, "invalid ssh key path")
		}
		c.SSHKey = abs
	}

	bin := func(program string) string {
		if c.VirtualenvPath == "" {
			return program
		}
		return filepath.Join(c.VirtualenvPath, "bin", program)
	}
	if c.CreateVirtualenv == "" && c.VirtualenvPath != "" {
		c.CreateVirtualenv = c.PythonExecutable + " -m venv " + c.VirtualenvPath
	}
	if c.InstallRequirements == "" {
		c.InstallRequirements = bin("pip") + " install -r " + c.RequirementsPath
	}
	if c.RunTests == "" {
		c.RunTests = bin("pytest") + " --cov=bot"
	}
	if c.GetCoverage == "" {
		c.GetCoverage = bin("coverage") + " report"
	}
	if c.RunBot == "" {
		c.RunBot = bin("python") + " bot.py"
	}

	return c.Validate()
}

// Validate reports the first invalid setting as a CodeInvalidConfig error.
func (c *Config) Validate() error {
	switch {
	case c.RepoURL == "":
		return errors.New(errors.CodeInvalidConfig, "missing repository URL")
	case c.RepoPath == "":
		return errors.New(errors.CodeInvalidConfig, "missing repository path")
	case c.Branch == "":
		return errors.New(errors.CodeInvalidConfig, "missing branch")
	case c.MinCoverage < 0 || c.MinCoverage > 100:
		return errors.Newf(errors.CodeInvalidConfig, "min coverage must be between 0 and 100, got %d", c.MinCoverage)
	case c.StepTimeout < 0:
		return errors.Newf(errors.CodeInvalidConfig, "step timeout cannot be negative, got %s", c.StepTimeout)
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return errors.Newf(errors.CodeInvalidConfig, "unknown log format %q", c.Logging.Format)
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return err
	}

	commands := map[string]string{
		"install_requirements":    c.InstallRequirements,
		"run_tests":               c.RunTests,
		"get_coverage_percentage": c.GetCoverage,
		"run_bot":                 c.RunBot,
	}
	if c.VirtualenvPath != "" {
		commands["create_virtualenv"] = c.CreateVirtualenv
	}
	for name, line := range commands {
		if _, err := executor.Parse(line); err != nil {
			return errors.WrapWithContext(err, errors.CodeInvalidConfig, "invalid command",
				map[string]any{"setting": name})
		}
	}
	return nil
}
