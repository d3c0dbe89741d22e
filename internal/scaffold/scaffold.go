// Package scaffold sets up a project directory for ok: a commented ok.yaml
// and a starter spec, optionally drafted by the agent from a one-line idea.
package scaffold

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jorge-barreto/ok/internal/config"
	"github.com/jorge-barreto/ok/internal/staging"
	"github.com/jorge-barreto/ok/internal/ux"
)

// DefaultSpec is the starter spec file name.
const DefaultSpec = "app.md"

const configTemplate = `# ok configuration. Every field is optional; the values below are the defaults.

# Images are tagged <image-prefix>-<spec name>:latest.
image-prefix: ok
base-image: node:lts-alpine
staging-dir: .ok

# Port the app listens on during validation and the default for 'ok run'.
port: 3000

# Agent model: opus, sonnet, haiku, or empty for the CLI default.
model: ""
agent-binary: claude
engine-binary: docker

# Validation attempts per generation task.
max-attempts: 3
max-turns: 200

# Seconds to wait for a graceful stop before the engine kills the instance.
stop-grace: 2
# Minutes before an agent task is cancelled, 0 for no limit.
agent-timeout: 60

# Run in /app at image build time.
install: if [ -f package.json ]; then npm install --omit=dev --no-audit --no-fund; fi

log:
  level: info
`

const exampleSpec = `# Guestbook

A single-page guestbook where visitors leave short messages.

## Data

A message has:
- id: integer, assigned by the server, increasing
- name: string, 1-40 characters, required
- text: string, 1-280 characters, required
- created: ISO 8601 timestamp, assigned by the server

Messages are stored in a SQLite database so they survive restarts.

## API

- GET /api/messages returns 200 with a JSON array of all messages, newest first.
- POST /api/messages with a JSON body {"name", "text"} returns 201 with the created message.
- POST /api/messages with a missing or too long field returns 400 with {"error": "<reason>"}.

## Page

GET / serves a page with a form (name, text, "Sign" button) above the list of
messages. Submitting the form adds the message to the top of the list without
reloading the page. When there are no messages the list shows "No messages yet".
`

// Options control Init.
type Options struct {
	// Spec is the starter spec's file name; DefaultSpec when empty.
	Spec string
	// Content replaces the example spec when set.
	Content string
}

// Init writes ok.yaml and a starter spec into dir and adds the staging
// directory to .gitignore. Existing files are never overwritten.
func Init(dir string, opts Options) ([]string, error) {
	if opts.Spec == "" {
		opts.Spec = DefaultSpec
	}
	if opts.Content == "" {
		opts.Content = exampleSpec
	}
	files := []struct {
		name    string
		content string
	}{
		{config.FileName, configTemplate},
		{opts.Spec, opts.Content},
	}
	for _, f := range files {
		if _, err := os.Stat(filepath.Join(dir, f.name)); err == nil {
			return nil, fmt.Errorf("%s already exists in %s", f.name, dir)
		}
	}

	var written []string
	for _, f := range files {
		if err := staging.WriteFileAtomic(filepath.Join(dir, f.name), []byte(f.content), 0644); err != nil {
			return written, fmt.Errorf("writing %s: %w", f.name, err)
		}
		written = append(written, f.name)
	}
	added, err := ignoreStaging(dir, config.Default().StagingDir)
	if err != nil {
		return written, err
	}
	if added {
		written = append(written, ".gitignore")
	}
	return written, nil
}

// ignoreStaging appends the staging dir to .gitignore unless it is listed.
func ignoreStaging(dir, staging string) (bool, error) {
	path := filepath.Join(dir, ".gitignore")
	entry := staging + "/"
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == staging || line == entry || line == "/"+entry {
			return false, nil
		}
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}
	data = append(data, entry+"\n"...)
	return true, os.WriteFile(path, data, 0644)
}

// PrintSummary reports what Init created and what to do next.
func PrintSummary(written []string, spec, source string) {
	fmt.Printf("\n%s%s✓ Initialized ok project (%s)%s\n\n", ux.Bold, ux.Green, source, ux.Reset)
	fmt.Printf("  Created:\n")
	for _, f := range written {
		fmt.Printf("    %s%s%s\n", ux.Cyan, f, ux.Reset)
	}
	fmt.Printf("\n  Next steps:\n")
	fmt.Printf("    1. Edit %s%s%s to describe your app\n", ux.Cyan, spec, ux.Reset)
	fmt.Printf("    2. Run %sok lint %s%s to find ambiguity\n", ux.Cyan, spec, ux.Reset)
	fmt.Printf("    3. Run %sok serve %s%s to build and start it\n\n", ux.Cyan, spec, ux.Reset)
}
