package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var validModels = map[string]bool{
	"":       true,
	"opus":   true,
	"sonnet": true,
	"haiku":  true,
}

var validLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var prefixRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]*$`)

// Validate checks the config for errors and fills derived defaults.
func Validate(cfg *Config) error {
	if !prefixRe.MatchString(cfg.ImagePrefix) {
		return fmt.Errorf("config: 'image-prefix' %q must match [a-z0-9][a-z0-9_.-]*", cfg.ImagePrefix)
	}
	if strings.TrimSpace(cfg.BaseImage) == "" {
		return fmt.Errorf("config: 'base-image' is required")
	}
	if strings.TrimSpace(cfg.StagingDir) == "" {
		return fmt.Errorf("config: 'staging-dir' is required")
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("config: 'port' %d out of range 1-65535", cfg.Port)
	}
	if !validModels[cfg.Model] {
		return fmt.Errorf("config: unknown model %q (valid: opus, sonnet, haiku)", cfg.Model)
	}
	if cfg.AgentBinary == "" {
		return fmt.Errorf("config: 'agent-binary' is required")
	}
	if cfg.EngineBinary == "" {
		return fmt.Errorf("config: 'engine-binary' is required")
	}
	if cfg.MaxAttempts < 1 {
		return fmt.Errorf("config: 'max-attempts' must be at least 1")
	}
	if cfg.MaxTurns < 0 {
		return fmt.Errorf("config: 'max-turns' must not be negative")
	}
	if cfg.StopGrace < 0 {
		return fmt.Errorf("config: 'stop-grace' must not be negative")
	}
	if cfg.AgentTimeout < 0 {
		return fmt.Errorf("config: 'agent-timeout' must not be negative")
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("config: unknown log level %q (valid: debug, info, warn, error)", cfg.Log.Level)
	}
	if cfg.Log.File == "" {
		cfg.Log.File = filepath.Join(cfg.StagingDir, "ok.log")
	}
	return nil
}
