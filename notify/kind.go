// Package notify renders deployment status messages and delivers them to a
// chat. Without a destination or credentials every send is a logged no-op.
package notify

// Kind identifies one pipeline outcome, each with its own message template.
type Kind int

const (
	// EnvironmentFailed reports a failed environment preparation.
	EnvironmentFailed Kind = iota
	// DependenciesFailed reports a failed dependency installation.
	DependenciesFailed
	// TestsFailed reports a failing test run.
	TestsFailed
	// CoverageFailed reports that coverage could not be measured.
	CoverageFailed
	// CoverageLow reports coverage below the configured minimum.
	CoverageLow
	// RestartFailed reports that the worker could not be restarted.
	RestartFailed
	// NewVersion reports a completed deployment.
	NewVersion
)

// String returns a stable name for logs.
func (k Kind) String() string {
	switch k {
	case EnvironmentFailed:
		return "environment-failed"
	case DependenciesFailed:
		return "dependencies-failed"
	case TestsFailed:
		return "tests-failed"
	case CoverageFailed:
		return "coverage-failed"
	case CoverageLow:
		return "coverage-low"
	case RestartFailed:
		return "restart-failed"
	case NewVersion:
		return "new-version"
	default:
		return "unknown"
	}
}

// Templates maps each outcome to its message template. A missing or empty
// template disables that message.
type Templates map[Kind]string

// DefaultTemplates returns the stock messages.
func DefaultTemplates() Templates {
	return Templates{
		EnvironmentFailed:  "Error during virtualenv creation for version %(version)s!",
		DependenciesFailed: "Error during install requirements for version %(version)s!",
		TestsFailed:        "Error during tests run for version %(version)s!",
		CoverageFailed:     "Error during get coverage run for version %(version)s!",
		CoverageLow:        "Coverage too low for version %(version)s!",
		RestartFailed:      "Error during bot restart for version %(version)s!",
		NewVersion:         "I'm at new version %(version)s!",
	}
}
