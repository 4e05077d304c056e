package sched

import (
	"os"
	"path/filepath"
	"strings"

	yaml "github.com/goccy/go-yaml"
	toml "github.com/pelletier/go-toml/v2"
)

// Config mirrors ktfsched.yml (or ktfsched.toml)
type Config struct {
	CPUs         int    `yaml:"cpus" toml:"cpus"`                     // 2 (by default)
	RelaxUS      int    `yaml:"relax_us" toml:"relax_us"`             // 0 = yield, otherwise tick interval
	MaxUserPages int    `yaml:"max_user_pages" toml:"max_user_pages"` // 64 (by default), 0 = unbounded
	Debug        bool   `yaml:"debug" toml:"debug"`                   // log state transitions
	TraceCSV     string `yaml:"trace_csv" toml:"trace_csv"`           // lifecycle trace output, empty = off
	Plan         string `yaml:"plan" toml:"plan"`                     // test plan file
}

// If the config file is not found, we use default values
func defaultConfig() Config {
	return Config{
		CPUs:         2,
		RelaxUS:      0,
		MaxUserPages: 64,
	}
}

// Load reads YAML or TOML (by extension) and overrides defaults; empty path = defaults only
func Load(path string) Config {
	cfg := defaultConfig()

	if path == "" {
		return cfg
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		_ = toml.Unmarshal(data, &cfg)
	} else {
		_ = yaml.Unmarshal(data, &cfg)
	}

	// sanity clamps
	if cfg.CPUs <= 0 {
		cfg.CPUs = 1
	}
	if cfg.RelaxUS < 0 {
		cfg.RelaxUS = 0
	}
	if cfg.MaxUserPages < 0 {
		cfg.MaxUserPages = 0
	}

	return cfg
}
