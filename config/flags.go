package config

import (
	"github.com/spf13/pflag"
)

// Flags holds command line values until they are applied over a Config.
// Only flags given on the command line take effect, so a flag default never
// hides a value from the file or the environment.
type Flags struct {
	set    *pflag.FlagSet
	values Config
	file   string
}

// flagTargets copies one flag value from src into dst.
var flagTargets = map[string]func(dst, src *Config){
	"repo-url":             func(d, s *Config) { d.RepoURL = s.RepoURL },
	"repo-path":            func(d, s *Config) { d.RepoPath = s.RepoPath },
	"branch":               func(d, s *Config) { d.Branch = s.Branch },
	"force":                func(d, s *Config) { d.Force = s.Force },
	"ssh-key":              func(d, s *Config) { d.SSHKey = s.SSHKey },
	"ssh-known-hosts":      func(d, s *Config) { d.SSHKnownHosts = s.SSHKnownHosts },
	"chat-id":              func(d, s *Config) { d.ChatID = s.ChatID },
	"bot-token":            func(d, s *Config) { d.BotToken = s.BotToken },
	"telegram-api":         func(d, s *Config) { d.TelegramAPIURL = s.TelegramAPIURL },
	"parse-mode":           func(d, s *Config) { d.ParseMode = s.ParseMode },

	"msg-create-virtualenv-fail":    func(d, s *Config) { d.Messages.CreateVirtualenvFail = s.Messages.CreateVirtualenvFail },
	"msg-install-requirements-fail": func(d, s *Config) { d.Messages.InstallRequirementsFail = s.Messages.InstallRequirementsFail },
	"msg-run-tests-fail":            func(d, s *Config) { d.Messages.RunTestsFail = s.Messages.RunTestsFail },
	"msg-coverage-fail":             func(d, s *Config) { d.Messages.CoverageFail = s.Messages.CoverageFail },
	"msg-coverage-low":              func(d, s *Config) { d.Messages.CoverageLow = s.Messages.CoverageLow },
	"msg-restart-fail":              func(d, s *Config) { d.Messages.RestartFail = s.Messages.RestartFail },
	"msg-text":                      func(d, s *Config) { d.Messages.NewVersion = s.Messages.NewVersion },

	"pid-file-path":        func(d, s *Config) { d.PidFilePath = s.PidFilePath },
	"python-executable":    func(d, s *Config) { d.PythonExecutable = s.PythonExecutable },
	"virtualenv-path":      func(d, s *Config) { d.VirtualenvPath = s.VirtualenvPath },
	"create-virtualenv":    func(d, s *Config) { d.CreateVirtualenv = s.CreateVirtualenv },
	"requirements-path":    func(d, s *Config) { d.RequirementsPath = s.RequirementsPath },
	"install-requirements": func(d, s *Config) { d.InstallRequirements = s.InstallRequirements },
	"skip-tests":           func(d, s *Config) { d.SkipTests = s.SkipTests },
	"run-tests":            func(d, s *Config) { d.RunTests = s.RunTests },
	"skip-coverage":        func(d, s *Config) { d.SkipCoverage = s.SkipCoverage },
	"get-coverage":         func(d, s *Config) { d.GetCoverage = s.GetCoverage },
	"min-coverage":         func(d, s *Config) { d.MinCoverage = s.MinCoverage },
	"run-bot":              func(d, s *Config) { d.RunBot = s.RunBot },
	"step-timeout":         func(d, s *Config) { d.StepTimeout = s.StepTimeout },
	"verbose":              func(d, s *Config) { d.Verbose = s.Verbose },
	"logging-format":       func(d, s *Config) { d.Logging.Format = s.Logging.Format },
	"logging-level":        func(d, s *Config) { d.Logging.Level = s.Logging.Level },
	"logging-filename":     func(d, s *Config) { d.Logging.Filename = s.Logging.Filename },
}

// BindFlags registers every setting on set.
func BindFlags(set *pflag.FlagSet) *Flags {
	f := &Flags{set: set}
	v := &f.values

	set.StringVar(&f.file, "config", "", "YAML config file (default: $XDG_CONFIG_HOME/"+SearchPath+")")

	set.StringVarP(&v.RepoURL, "repo-url", "u", "", "URL of the repository to deploy")
	set.StringVarP(&v.RepoPath, "repo-path", "p", "", "local path of the repository")
	set.StringVarP(&v.Branch, "branch", "b", "", "branch to deploy from")
	set.BoolVarP(&v.Force, "force", "O", false, "redeploy even when the version did not change")

	set.StringVarP(&v.SSHKey, "ssh-key", "k", "", "SSH private key used to reach the repository")
	set.StringVar(&v.SSHKnownHosts, "ssh-known-hosts", "", "known_hosts file used to verify the remote")
	set.Int64VarP(&v.ChatID, "chat-id", "c", 0, "chat that receives status messages")
	set.StringVarP(&v.BotToken, "bot-token", "t", "", "bot token, or awssm://<secret-id>[#key]")
	set.StringVar(&v.TelegramAPIURL, "telegram-api", "", "Bot API endpoint format")
	set.StringVar(&v.ParseMode, "parse-mode", "", "message parse mode (Markdown, MarkdownV2, HTML)")
	set.StringVarP(&v.Messages.NewVersion, "msg-text", "m", "", "message sent after a deployment")
	set.StringVar(&v.Messages.CreateVirtualenvFail, "msg-create-virtualenv-fail", "", "message sent when the virtualenv cannot be created")
	set.StringVar(&v.Messages.InstallRequirementsFail, "msg-install-requirements-fail", "", "message sent when the requirements fail to install")
	set.StringVar(&v.Messages.RunTestsFail, "msg-run-tests-fail", "", "message sent when the tests fail")
	set.StringVar(&v.Messages.CoverageFail, "msg-coverage-fail", "", "message sent when the coverage cannot be measured")
	set.StringVar(&v.Messages.CoverageLow, "msg-coverage-low", "", "message sent when the coverage is below the minimum")
	set.StringVar(&v.Messages.RestartFail, "msg-restart-fail", "", "message sent when the bot cannot be restarted")

	set.StringVarP(&v.PidFilePath, "pid-file-path", "P", "", "pid marker of the running bot")

	set.StringVar(&v.PythonExecutable, "python-executable", "", "python interpreter used to create the virtualenv")
	set.StringVarP(&v.VirtualenvPath, "virtualenv-path", "v", "", "virtualenv path inside the repository")
	set.StringVarP(&v.CreateVirtualenv, "create-virtualenv", "C", "", "command creating the virtualenv")
	set.StringVarP(&v.RequirementsPath, "requirements-path", "r", "", "requirements file")
	set.StringVarP(&v.InstallRequirements, "install-requirements", "I", "", "command installing the requirements")
	set.BoolVarP(&v.SkipTests, "skip-tests", "s", false, "skip tests and coverage")
	set.StringVarP(&v.RunTests, "run-tests", "T", "", "command running the tests")
	set.BoolVar(&v.SkipCoverage, "skip-coverage", false, "skip the coverage gate")
	set.StringVar(&v.GetCoverage, "get-coverage", "", "command printing the coverage report")
	set.IntVar(&v.MinCoverage, "min-coverage", 0, "minimum coverage percentage")
	set.StringVarP(&v.RunBot, "run-bot", "R", "", "command starting the bot")
	set.DurationVar(&v.StepTimeout, "step-timeout", 0, "time limit of each release command (0 = none)")
	set.BoolVar(&v.Verbose, "verbose", false, "stream the output of release commands to stderr")

	set.StringVarP(&v.Logging.Format, "logging-format", "F", "", "log format (text, json)")
	set.StringVarP(&v.Logging.Level, "logging-level", "l", "", "log level (debug, info, warn, error)")
	set.StringVarP(&v.Logging.Filename, "logging-filename", "f", "", "log file (default: stderr)")

	return f
}

// ConfigFile returns the --config value.
func (f *Flags) ConfigFile() string {
	return f.file
}

// Apply copies the explicitly set flags onto c.
func (f *Flags) Apply(c *Config) {
	f.set.Visit(func(flag *pflag.Flag) {
		if apply, ok := flagTargets[flag.Name]; ok {
			apply(c, &f.values)
		}
	})
}
