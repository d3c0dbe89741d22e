// Package lifecycle maps a spec identity to its single named running
// instance.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jorge-barreto/ok/internal/engine"
	"github.com/jorge-barreto/ok/internal/spec"
)

var (
	// ErrImageNotFound is returned by Start when the spec has no image.
	ErrImageNotFound = errors.New("image not found")
	// ErrNotRunning is returned by Stop when no instance is running.
	ErrNotRunning = errors.New("not running")
)

const (
	stopRetryMin = 50 * time.Millisecond
	stopRetryMax = time.Second
)

// ExitError carries a non-zero exit code of the instance.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("container exited with status %d", e.Code)
}

// Manager starts and stops named instances.
type Manager struct {
	Engine engine.Engine
	Prefix string
	Grace  time.Duration
	Logger *zap.Logger
	// Stdout and Stderr receive the instance's output. Nil means the
	// process's own streams.
	Stdout io.Writer
	Stderr io.Writer
}

// StartOptions select what to run and how.
type StartOptions struct {
	Spec    string // identity name
	Port    int
	Env     []string // K=V, passed through unmodified
	EnvFile string
	// OnStart, when set, is called once the instance has been launched or
	// found already running.
	OnStart func(*Instance)
}

// Instance describes the canonical instance of a spec.
type Instance struct {
	Name   string
	Tag    string
	Port   int
	Reused bool // already running on the current image; nothing was started
}

func (m *Manager) logger() *zap.Logger {
	if m.Logger == nil {
		return zap.NewNop()
	}
	return m.Logger
}

// Start runs the canonical instance in the foreground and returns when it
// exits. Cancelling ctx stops it gracefully. If the instance is already
// running on the current image Start returns immediately with Reused set.
// A non-zero exit is reported as *ExitError.
func (m *Manager) Start(ctx context.Context, opts StartOptions) (*Instance, error) {
	tag := spec.ImageTag(m.Prefix, opts.Spec)
	name := spec.ContainerName(tag)
	inst := &Instance{Name: name, Tag: tag, Port: opts.Port}
	log := m.logger().With(zap.String("container", name), zap.String("tag", tag))

	imageID, err := m.Engine.ImageID(ctx, tag)
	if err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w (run 'ok build' first)", tag, ErrImageNotFound)
		}
		return nil, err
	}

	c, err := m.Engine.InspectContainer(ctx, name)
	switch {
	case err == nil && c.Running && c.ImageID == imageID:
		inst.Reused = true
		log.Info("instance already running")
		if opts.OnStart != nil {
			opts.OnStart(inst)
		}
		return inst, nil
	case err != nil && !errors.Is(err, engine.ErrNotFound):
		return nil, err
	}

	if err := m.removeStale(ctx, tag, name, log); err != nil {
		return nil, err
	}
	if err := m.Engine.Remove(ctx, name); err != nil && !errors.Is(err, engine.ErrNotFound) {
		log.Warn("removing previous container", zap.Error(err))
	}

	code, err := m.run(ctx, engine.RunOptions{
		Image:   tag,
		Name:    name,
		Port:    opts.Port,
		Env:     opts.Env,
		EnvFile: opts.EnvFile,
		Stdout:  m.Stdout,
		Stderr:  m.Stderr,
	}, func() {
		if opts.OnStart != nil {
			opts.OnStart(inst)
		}
	}, log)
	if err != nil {
		return inst, err
	}
	if code != 0 {
		return inst, &ExitError{Code: code}
	}
	return inst, nil
}

// removeStale force-removes running containers of the current image that
// are not the canonical instance.
func (m *Manager) removeStale(ctx context.Context, tag, name string, log *zap.Logger) error {
	running, err := m.Engine.ListByAncestor(ctx, tag)
	if err != nil {
		return fmt.Errorf("listing containers of %s: %w", tag, err)
	}
	var stale []string
	for _, c := range running {
		if c.Name != name {
			stale = append(stale, c.ID)
		}
	}
	if len(stale) == 0 {
		return nil
	}
	log.Info("removing stale containers", zap.Strings("ids", stale))
	if err := m.Engine.Remove(ctx, stale...); err != nil && !errors.Is(err, engine.ErrNotFound) {
		return fmt.Errorf("removing stale containers: %w", err)
	}
	return nil
}

// run waits on the container and, concurrently, on ctx. The container runs
// under a context that is never cancelled so the engine, not a killed CLI
// process, decides how it ends.
func (m *Manager) run(ctx context.Context, opts engine.RunOptions, started func(), log *zap.Logger) (int, error) {
	var code int
	done := make(chan struct{})
	g := new(errgroup.Group)

	g.Go(func() error {
		defer close(done)
		var err error
		code, err = m.Engine.Run(context.WithoutCancel(ctx), opts)
		return err
	})
	started()

	g.Go(func() error {
		select {
		case <-done:
			return nil
		case <-ctx.Done():
		}
		return m.stopUntilExit(context.WithoutCancel(ctx), opts.Name, done, log)
	})

	if err := g.Wait(); err != nil {
		return code, err
	}
	log.Info("instance exited", zap.Int("code", code))
	return code, nil
}

// stopUntilExit keeps asking the engine to stop name until the foreground
// run returns. A cancellation can arrive before the engine has created the
// container, in which case stop reports not found and has to be retried.
func (m *Manager) stopUntilExit(ctx context.Context, name string, done <-chan struct{}, log *zap.Logger) error {
	log.Info("stopping instance", zap.Duration("grace", m.Grace))
	backoff := stopRetryMin
	for {
		err := m.Engine.Stop(ctx, name, m.Grace)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, engine.ErrNotFound):
		default:
			log.Warn("graceful stop failed, removing", zap.Error(err))
			rerr := m.Engine.Remove(ctx, name)
			if rerr == nil {
				return nil
			}
			if !errors.Is(rerr, engine.ErrNotFound) {
				return fmt.Errorf("stopping %s: %w", name, err)
			}
		}

		select {
		case <-done:
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, stopRetryMax)
	}
}

// Stop gracefully stops the canonical instance of specName.
func (m *Manager) Stop(ctx context.Context, specName string) error {
	name := spec.ContainerName(spec.ImageTag(m.Prefix, specName))
	c, err := m.Engine.InspectContainer(ctx, name)
	if err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			return fmt.Errorf("%s: %w", name, ErrNotRunning)
		}
		return err
	}
	if !c.Running {
		return fmt.Errorf("%s: %w", name, ErrNotRunning)
	}
	m.logger().Info("stopping instance", zap.String("container", name))
	if err := m.Engine.Stop(ctx, name, m.Grace); err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			return fmt.Errorf("%s: %w", name, ErrNotRunning)
		}
		return err
	}
	return nil
}

// Purge removes the canonical instance and the image of specName. Missing
// pieces are not an error.
func (m *Manager) Purge(ctx context.Context, specName string) error {
	tag := spec.ImageTag(m.Prefix, specName)
	name := spec.ContainerName(tag)
	if err := m.Engine.Remove(ctx, name); err != nil && !errors.Is(err, engine.ErrNotFound) {
		return err
	}
	if err := m.Engine.RemoveImage(ctx, tag); err != nil && !errors.Is(err, engine.ErrNotFound) {
		return err
	}
	m.logger().Info("purged", zap.String("tag", tag))
	return nil
}
