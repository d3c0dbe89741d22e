package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// CredentialEnv names the variable the generation agent needs.
const CredentialEnv = "ANTHROPIC_API_KEY"

// ErrMissingCredential is returned when CredentialEnv is unset.
var ErrMissingCredential = errors.New(CredentialEnv + " is not set")

// LoadDotEnv loads dir/.env into the process environment. Variables already
// set win. A missing file is not an error.
func LoadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// RequireCredential fails when the agent credential is absent. Commands
// that call the agent check this before touching any state.
func RequireCredential() error {
	if strings.TrimSpace(os.Getenv(CredentialEnv)) == "" {
		return fmt.Errorf("%w: export it or add it to .env", ErrMissingCredential)
	}
	return nil
}
