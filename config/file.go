package config

import (
	stderrors "errors"
	"io/fs"
	"os"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/ciotto/telegram-bot-deploy/errors"
)

// SearchPath is the config file looked up in the XDG config directories.
const SearchPath = "botci/config.yaml"

// DefaultFile returns the first botci/config.yaml found in the XDG config
// directories, or "" when there is none.
func DefaultFile() string {
	path, err := xdg.SearchConfigFile(SearchPath)
	if err != nil {
		return ""
	}
	return path
}

// LoadFile overlays the YAML file at path onto c. Keys absent from the file
// keep their current value. A missing file is ignored when optional is true.
func (c *Config) LoadFile(path string, optional bool) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if optional && stderrors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return errors.WrapWithContext(err, errors.CodeInvalidConfig, "failed to read config file",
			map[string]any{"path": path})
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.WrapWithContext(err, errors.CodeInvalidConfig, "failed to parse config file",
			map[string]any{"path": path})
	}
	return nil
}
