package config

import (
	"os"

	"github.com/BurntSushi/toml"

	"github.com/calmirror/calmirror/internal/log"
)

type Config struct {
	General General `toml:"general"`
}

type General struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	DBFile       string `toml:"db_file"`
	Listen       string `toml:"listen"`
	PollCron     string `toml:"poll_cron"`
	// MaxRecurrences caps how many instances any recurrence expansion may
	// materialize, whatever the rule string asks for.
	MaxRecurrences int `toml:"max_recurrences"`
	VerbosityLevel int `toml:"verbosity_level"`
}

// DefaultMaxRecurrences bounds worst-case materialization for unbounded or
// absurdly large recurrence rules.
const DefaultMaxRecurrences = 500

var configDir string

// Dir returns the directory the config file was loaded from, so the database
// can live next to it.
func Dir() string { return configDir }

// Read loads the config, trying the current directory first and then
// $HOME/.config/calmirror/.
func Read(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		data, err = os.ReadFile(os.Getenv("HOME") + "/.config/calmirror/" + filename)
		if err != nil {
			return nil, err
		}
		configDir = os.Getenv("HOME") + "/.config/calmirror/"
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, err
	}

	if config.General.DBFile == "" {
		config.General.DBFile = ".calmirror.db"
	}
	if config.General.Listen == "" {
		config.General.Listen = "127.0.0.1:8085"
	}
	if config.General.PollCron == "" {
		config.General.PollCron = "*/5 * * * *"
	}
	if config.General.MaxRecurrences <= 0 {
		config.General.MaxRecurrences = DefaultMaxRecurrences
	}

	log.SetVerbosity(config.General.VerbosityLevel)

	return &config, nil
}
