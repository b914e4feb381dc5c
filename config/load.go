package config

import (
	"os"
)

// Load builds the configuration in precedence order: defaults, YAML file,
// .env and environment, explicit flags. It then derives the remaining
// defaults and validates.
//
// The file is the --config flag, else CONFIG_FILE, else the XDG search
// result. Only an explicitly named file has to exist.
func Load(flags *Flags, lookup LookupFunc, dotenv ...string) (*Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if err := LoadDotEnv(dotenv...); err != nil {
		return nil, err
	}

	c := Default()

	file, optional := DefaultFile(), true
	if env, ok := lookup("CONFIG_FILE"); ok && env != "" {
		file, optional = env, false
	}
	if flags != nil && flags.ConfigFile() != "" {
		file, optional = flags.ConfigFile(), false
	}
	if err := c.LoadFile(file, optional); err != nil {
		return nil, err
	}

	if err := c.LoadEnvironment(lookup); err != nil {
		return nil, err
	}
	if flags != nil {
		flags.Apply(c)
	}

	if err := c.Finalize(); err != nil {
		return nil, err
	}
	return c, nil
}
