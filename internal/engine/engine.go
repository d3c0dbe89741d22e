// Package engine is the boundary to the container engine: build, run, stop,
// inspect, create-without-start, copy out, and remove.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// ErrNotFound is returned when an inspected image or container does not exist.
var ErrNotFound = errors.New("not found")

// CommandError is a non-zero exit from the engine CLI.
type CommandError struct {
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = fmt.Sprintf("exit status %d", e.ExitCode)
	}
	return fmt.Sprintf("%s: %s", strings.Join(e.Args, " "), msg)
}

// Container is the subset of container metadata the lifecycle needs.
type Container struct {
	ID      string
	Name    string
	ImageID string
	Running bool
}

// RunOptions describes a foreground container run.
type RunOptions struct {
	Image   string
	Name    string
	Port    int      // published host:container, also forwarded as PORT
	Env     []string // K=V pairs passed through unmodified
	EnvFile string
	Stdout  io.Writer
	Stderr  io.Writer
}

// Engine is the container engine capability. Docker is the production
// implementation; tests use enginetest.Fake.
type Engine interface {
	// Build builds contextDir (which holds the Dockerfile) and tags it.
	Build(ctx context.Context, tag, contextDir string) error
	// Run runs a container in the foreground and returns its exit code.
	Run(ctx context.Context, opts RunOptions) (int, error)
	// Stop gracefully stops a running container.
	Stop(ctx context.Context, name string, grace time.Duration) error
	// ImageID resolves a tag to an image id, or ErrNotFound.
	ImageID(ctx context.Context, tag string) (string, error)
	// InspectContainer looks up a container by name or id, or ErrNotFound.
	InspectContainer(ctx context.Context, ref string) (*Container, error)
	// ListByAncestor lists running containers created from tag.
	ListByAncestor(ctx context.Context, tag string) ([]Container, error)
	// Create instantiates tag without starting it and returns the id.
	Create(ctx context.Context, tag string) (string, error)
	// Copy copies src out of container id into the local path dst.
	Copy(ctx context.Context, id, src, dst string) error
	// Remove force-removes containers.
	Remove(ctx context.Context, refs ...string) error
	// RemoveImage removes an image tag.
	RemoveImage(ctx context.Context, tag string) error
}
