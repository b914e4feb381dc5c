package config

import (
	stderrors "errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ciotto/telegram-bot-deploy/errors"
)

// LookupFunc reads one environment variable.
type LookupFunc func(key string) (string, bool)

// LoadDotEnv reads KEY=value pairs from the given files into the process
// environment. Variables that are already set are not overridden and missing
// files are skipped.
func LoadDotEnv(files ...string) error {
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if stderrors.Is(err, fs.ErrNotExist) {
				continue
			}
			return errors.WrapWithContext(err, errors.CodeInvalidConfig, "failed to load env file",
				map[string]any{"path": file})
		}
	}
	return nil
}

// LoadEnvironment overlays environment variables onto c. Only variables that
// are set and non-empty change a value.
func (c *Config) LoadEnvironment(lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	e := &envReader{lookup: lookup}

	e.readString("REPO_URL", &c.RepoURL)
	e.readString("REPO_PATH", &c.RepoPath)
	e.readString("BRANCH", &c.Branch)
	e.readBool("FORCE", &c.Force)

	e.readString("SSH_KEY", &c.SSHKey)
	e.readString("SSH_KNOWN_HOSTS", &c.SSHKnownHosts)
	e.readInt64("CHAT_ID", &c.ChatID)
	e.readString("BOT_TOKEN", &c.BotToken)
	e.readString("TELEGRAM_API_ENDPOINT", &c.TelegramAPIURL)
	e.readString("PARSE_MODE", &c.ParseMode)

	e.readString("MSG_CREATE_VIRTUALENV_FAIL", &c.Messages.CreateVirtualenvFail)
	e.readString("MSG_INSTALL_REQUIREMENTS_FAIL", &c.Messages.InstallRequirementsFail)
	e.readString("MSG_RUN_TESTS_FAIL", &c.Messages.RunTestsFail)
	e.readString("MSG_COVERAGE_FAIL", &c.Messages.CoverageFail)
	e.readString("MSG_COVERAGE_LOW", &c.Messages.CoverageLow)
	e.readString("MSG_RESTART_FAIL", &c.Messages.RestartFail)
	e.readString("MSG_TEXT", &c.Messages.NewVersion)
	e.readString("MSG_NEW_VERSION", &c.Messages.NewVersion)

	e.readString("PID_FILE_PATH", &c.PidFilePath)

	e.readString("PYTHON_EXECUTABLE", &c.PythonExecutable)
	e.readString("VIRTUALENV_PATH", &c.VirtualenvPath)
	e.readString("CREATE_VIRTUALENV", &c.CreateVirtualenv)
	e.readString("REQUIREMENTS_PATH", &c.RequirementsPath)
	e.readString("INSTALL_REQUIREMENTS", &c.InstallRequirements)
	e.readBool("SKIP_TESTS", &c.SkipTests)
	e.readString("RUN_TESTS", &c.RunTests)
	e.readBool("SKIP_COVERAGE", &c.SkipCoverage)
	e.readString("GET_COVERAGE_PERCENTAGE", &c.GetCoverage)
	e.readInt("MIN_COVERAGE", &c.MinCoverage)
	e.readString("RUN_BOT", &c.RunBot)
	e.readDuration("STEP_TIMEOUT", &c.StepTimeout)
	e.readBool("VERBOSE", &c.Verbose)

	e.readString("LOGGING_FORMAT", &c.Logging.Format)
	e.readString("LOGGING_LEVEL", &c.Logging.Level)
	e.readString("LOGGING_FILENAME", &c.Logging.Filename)

	return e.err
}

// envReader keeps the first conversion error so every setter stays a one-liner.
type envReader struct {
	lookup LookupFunc
	err    error
}

func (e *envReader) get(key string) (string, bool) {
	value, ok := e.lookup(key)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

func (e *envReader) fail(key, value string, err error) {
	if e.err == nil {
		e.err = errors.WrapWithContext(err, errors.CodeInvalidConfig, "invalid environment variable",
			map[string]any{"key": key, "value": value})
	}
}

func (e *envReader) readString(key string, dst *string) {
	if value, ok := e.get(key); ok {
		*dst = value
	}
}

func (e *envReader) readBool(key string, dst *bool) {
	value, ok := e.get(key)
	if !ok {
		return
	}
	switch strings.ToLower(value) {
	case "1", "true", "yes", "on":
		*dst = true
	case "0", "false", "no", "off":
		*dst = false
	default:
		e.fail(key, value, stderrors.New("not a boolean"))
	}
}

func (e *envReader) readInt(key string, dst *int) {
	value, ok := e.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		e.fail(key, value, err)
		return
	}
	*dst = n
}

func (e *envReader) readInt64(key string, dst *int64) {
	value, ok := e.get(key)
	if !ok {
		return
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		e.fail(key, value, err)
		return
	}
	*dst = n
}

// readDuration accepts Go durations ("90s", "5m") or a plain number of seconds.
func (e *envReader) readDuration(key string, dst *time.Duration) {
	value, ok := e.get(key)
	if !ok {
		return
	}
	if secs, err := strconv.Atoi(value); err == nil {
		*dst = time.Duration(secs) * time.Second
		return
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		e.fail(key, value, err)
		return
	}
	*dst = d
}
