package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the optional project config in the working directory.
const FileName = "ok.yaml"

type Log struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type Config struct {
	ImagePrefix  string `yaml:"image-prefix"`
	BaseImage    string `yaml:"base-image"`
	StagingDir   string `yaml:"staging-dir"`
	Port         int    `yaml:"port"`
	Model        string `yaml:"model"`
	AgentBinary  string `yaml:"agent-binary"`
	EngineBinary string `yaml:"engine-binary"`
	MaxAttempts  int    `yaml:"max-attempts"`
	MaxTurns     int    `yaml:"max-turns"`
	StopGrace    int    `yaml:"stop-grace"`    // seconds
	AgentTimeout int    `yaml:"agent-timeout"` // minutes, 0 disables
	Install      string `yaml:"install"`
	Log          Log    `yaml:"log"`
}

// Default returns the configuration used when no ok.yaml exists.
func Default() *Config {
	return &Config{
		ImagePrefix:  "ok",
		BaseImage:    "node:lts-alpine",
		StagingDir:   ".ok",
		Port:         3000,
		AgentBinary:  "claude",
		EngineBinary: "docker",
		MaxAttempts:  3,
		MaxTurns:     200,
		StopGrace:    2,
		AgentTimeout: 60,
		Install:      "if [ -f package.json ]; then npm install --omit=dev --no-audit --no-fund; fi",
		Log:          Log{Level: "info"},
	}
}

// Load reads path over the defaults and validates the result. A missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDir loads ok.yaml from dir.
func LoadDir(dir string) (*Config, error) {
	return Load(filepath.Join(dir, FileName))
}

func (c *Config) StopGraceDuration() time.Duration {
	return time.Duration(c.StopGrace) * time.Second
}

func (c *Config) AgentTimeoutDuration() time.Duration {
	return time.Duration(c.AgentTimeout) * time.Minute
}
