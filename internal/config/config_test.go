package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), FileName))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ImagePrefix != "ok" || cfg.Port != 3000 || cfg.MaxAttempts != 3 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.StopGraceDuration() != 2*time.Second {
		t.Fatalf("StopGraceDuration = %v", cfg.StopGraceDuration())
	}
	if cfg.AgentTimeoutDuration() != time.Hour {
		t.Fatalf("AgentTimeoutDuration = %v", cfg.AgentTimeoutDuration())
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	yaml := `image-prefix: acme
port: 8080
model: sonnet
install: ""
log:
  level: debug
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ImagePrefix != "acme" || cfg.Port != 8080 || cfg.Model != "sonnet" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Install != "" {
		t.Fatalf("explicit empty install should disable it, got %q", cfg.Install)
	}
	if cfg.BaseImage != "node:lts-alpine" {
		t.Fatalf("unset keys should keep defaults, BaseImage = %q", cfg.BaseImage)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("Log.Level = %q", cfg.Log.Level)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte("port: [1"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoad_InvalidValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte("max-attempts: 0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("OK_DOTENV_NEW=fromfile\nOK_DOTENV_SET=fromfile\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("OK_DOTENV_SET", "fromenv")
	t.Setenv("OK_DOTENV_NEW", "")
	os.Unsetenv("OK_DOTENV_NEW")

	if err := LoadDotEnv(dir); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("OK_DOTENV_NEW"); got != "fromfile" {
		t.Fatalf("OK_DOTENV_NEW = %q", got)
	}
	if got := os.Getenv("OK_DOTENV_SET"); got != "fromenv" {
		t.Fatalf("existing environment must win, got %q", got)
	}
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	if err := LoadDotEnv(t.TempDir()); err != nil {
		t.Fatalf("missing .env should be ignored: %v", err)
	}
}

func TestRequireCredential(t *testing.T) {
	t.Setenv(CredentialEnv, "")
	if err := RequireCredential(); !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("got %v", err)
	}
	t.Setenv(CredentialEnv, "sk-test")
	if err := RequireCredential(); err != nil {
		t.Fatal(err)
	}
}
