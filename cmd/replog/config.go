package main

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// config holds the knobs shared by the config file and the flags.
// Flags win over file values.
type config struct {
	Speed    float64 `yaml:"speed"`
	MinLevel string  `yaml:"min_level"`
	Backend  string  `yaml:"backend"`
}

func defaultConfig() config {
	return config{
		Speed:    1,
		MinLevel: "Trace",
		Backend:  "otel",
	}
}

func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "cannot read config %s", path)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "cannot parse config %s", path)
	}
	return cfg, nil
}
