// Package packager turns a staging workspace into a container image. The
// workspace directory is the build context; the descriptor embeds every
// artifact at its well-known image path so the image alone can restore the
// workspace.
package packager

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/jorge-barreto/ok/internal/engine"
	"github.com/jorge-barreto/ok/internal/staging"
)

// Build modes recorded in the image label.
const (
	ModeFresh  = "fresh"
	ModeUpdate = "update"
)

// Options shape the descriptor.
type Options struct {
	Name      string // spec identity, recorded as a label
	BaseImage string
	Port      int
	Mode      string // ModeFresh or ModeUpdate
	BuildID   string
	// Install is an optional shell command run in /app after the
	// application is copied in, e.g. a dependency install.
	Install string
}

var ignored = []string{
	"app/node_modules",
	"logs",
	"prompts",
	"build.json",
	".lock",
	"Dockerfile",
	".dockerignore",
}

// Descriptor renders the Dockerfile for the artifacts present in inv. Test
// and assertion artifacts are included only when they exist.
func Descriptor(inv staging.Inventory, opts Options) string {
	var b strings.Builder
	fmt.Fprintf(&b, "FROM %s\n", opts.BaseImage)
	fmt.Fprintf(&b, "WORKDIR %s\n", staging.ImageAppDir)
	fmt.Fprintf(&b, "COPY %s/ %s/\n", staging.AppDir, staging.ImageAppDir)
	if opts.Install != "" {
		fmt.Fprintf(&b, "RUN %s\n", opts.Install)
	}
	fmt.Fprintf(&b, "COPY %s %s\n", staging.SpecFile, staging.ImageSpec)
	if inv.Test {
		fmt.Fprintf(&b, "COPY %s %s\n", staging.TestFile, staging.ImageTest)
	}
	if inv.Assertions {
		fmt.Fprintf(&b, "COPY %s %s\n", staging.AssertionsFile, staging.ImageAssertions)
	}
	fmt.Fprintf(&b, "LABEL ok.spec=%s ok.mode=%s ok.build-id=%s\n",
		strconv.Quote(opts.Name), strconv.Quote(opts.Mode), strconv.Quote(opts.BuildID))
	fmt.Fprintf(&b, "ENV PORT=%d\n", opts.Port)
	fmt.Fprintf(&b, "EXPOSE %d\n", opts.Port)
	fmt.Fprintf(&b, "CMD [\"sh\", %s]\n", strconv.Quote(staging.ImageEntrypoint))
	return b.String()
}

// DockerIgnore renders the .dockerignore for the build context.
func DockerIgnore() string {
	return strings.Join(ignored, "\n") + "\n"
}

// Package writes the descriptor into ws and builds it as tag. Rebuilding
// supersedes the previous image under the same tag.
func Package(ctx context.Context, eng engine.Engine, ws *staging.Workspace, tag string, opts Options, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	inv := ws.Inventory()
	if !inv.HasExistingBuild() {
		return errors.New("nothing to package: spec snapshot or app/" + staging.Entrypoint + " missing")
	}
	if opts.Name == "" {
		opts.Name = ws.Name
	}

	if err := staging.WriteFileAtomic(ws.DockerfilePath(), []byte(Descriptor(inv, opts)), 0644); err != nil {
		return fmt.Errorf("writing Dockerfile: %w", err)
	}
	if err := staging.WriteFileAtomic(ws.DockerIgnorePath(), []byte(DockerIgnore()), 0644); err != nil {
		return fmt.Errorf("writing .dockerignore: %w", err)
	}

	logger.Info("packaging",
		zap.String("tag", tag),
		zap.String("mode", opts.Mode),
		zap.Bool("test", inv.Test),
		zap.Bool("assertions", inv.Assertions))
	if err := eng.Build(ctx, tag, ws.Dir()); err != nil {
		return fmt.Errorf("building image %s: %w", tag, err)
	}
	return nil
}
