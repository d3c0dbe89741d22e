// Package recovery reconstructs a staging workspace from a previously built
// image when the local cache is missing or incomplete.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/jorge-barreto/ok/internal/engine"
	"github.com/jorge-barreto/ok/internal/staging"
)

var (
	// ErrNoImage is returned when no image exists for the tag.
	ErrNoImage = errors.New("no image to recover from")
	// ErrRecoveryIncomplete is returned when a required artifact could not
	// be copied out of the image.
	ErrRecoveryIncomplete = errors.New("required artifacts missing from image")
)

// Artifact is the outcome of copying one well-known path.
type Artifact struct {
	Name      string
	Source    string // path inside the image
	Dest      string // local path
	Required  bool
	Recovered bool
	Err       error
}

// Result reports every artifact, required or optional.
type Result struct {
	Tag       string
	Artifacts []Artifact
}

// Complete reports whether every required artifact was recovered.
func (r *Result) Complete() bool {
	return len(r.Missing()) == 0
}

// Missing names the required artifacts that were not recovered.
func (r *Result) Missing() []string {
	var out []string
	for _, a := range r.Artifacts {
		if a.Required && !a.Recovered {
			out = append(out, a.Name)
		}
	}
	return out
}

// Recovered names every artifact that was recovered.
func (r *Result) Recovered() []string {
	var out []string
	for _, a := range r.Artifacts {
		if a.Recovered {
			out = append(out, a.Name)
		}
	}
	return out
}

// Recover instantiates tag without starting it, copies the well-known
// artifact paths into ws, and always discards the instance. Optional
// artifacts that are absent are recorded, not fatal. If a required artifact
// is missing, the partially recovered files are removed and the error wraps
// ErrRecoveryIncomplete.
func Recover(ctx context.Context, eng engine.Engine, ws *staging.Workspace, tag string, logger *zap.Logger) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.With(zap.String("tag", tag), zap.String("spec", ws.Name))

	if _, err := eng.ImageID(ctx, tag); err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			return nil, fmt.Errorf("recovering %s: %w", tag, ErrNoImage)
		}
		return nil, fmt.Errorf("recovering %s: %w", tag, err)
	}
	if err := ws.EnsureDir(); err != nil {
		return nil, err
	}

	id, err := eng.Create(ctx, tag)
	if err != nil {
		return nil, fmt.Errorf("recovering %s: creating container: %w", tag, err)
	}
	defer func() {
		if err := eng.Remove(context.WithoutCancel(ctx), id); err != nil {
			log.Warn("removing recovery container", zap.String("id", id), zap.Error(err))
		}
	}()

	// The image is authoritative: stale local leftovers must not mix with
	// what is copied out.
	if err := ws.RemoveDerived(); err != nil {
		return nil, err
	}
	if err := os.RemoveAll(ws.AppDir()); err != nil {
		return nil, err
	}

	res := &Result{Tag: tag, Artifacts: []Artifact{
		{Name: staging.SpecFile, Source: staging.ImageSpec, Dest: ws.SpecPath(), Required: true},
		{Name: staging.AppDir, Source: staging.ImageAppDir + "/.", Dest: ws.AppDir(), Required: true},
		{Name: staging.TestFile, Source: staging.ImageTest, Dest: ws.TestPath()},
		{Name: staging.AssertionsFile, Source: staging.ImageAssertions, Dest: ws.AssertionsPath()},
	}}

	for i := range res.Artifacts {
		a := &res.Artifacts[i]
		a.Err = eng.Copy(ctx, id, a.Source, a.Dest)
		if a.Err == nil && a.Name == staging.AppDir {
			if _, err := os.Stat(ws.EntrypointPath()); err != nil {
				a.Err = fmt.Errorf("%s has no %s", staging.ImageAppDir, staging.Entrypoint)
			}
		}
		a.Recovered = a.Err == nil
		if a.Err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Debug("artifact not recovered", zap.String("artifact", a.Name), zap.Bool("required", a.Required), zap.Error(a.Err))
		}
	}

	if missing := res.Missing(); len(missing) > 0 {
		cleanup(ws)
		return res, fmt.Errorf("recovering %s: %w: %s", tag, ErrRecoveryIncomplete, strings.Join(missing, ", "))
	}
	log.Info("recovered workspace from image", zap.Strings("artifacts", res.Recovered()))
	return res, nil
}

// cleanup removes every recoverable artifact so a failed recovery never
// leaves a half-populated workspace behind.
func cleanup(ws *staging.Workspace) {
	os.Remove(ws.SpecPath())
	os.RemoveAll(ws.AppDir())
	ws.RemoveDerived()
}
