// Package build is the incremental build state machine. Given a spec and
// whatever a prior build left behind (locally or inside the image), it picks
// one of skip, full, backfill, update or repackage, drives the agent through
// the matching task, and packages the result.
package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/jorge-barreto/ok/internal/agent"
	"github.com/jorge-barreto/ok/internal/assertion"
	"github.com/jorge-barreto/ok/internal/config"
	"github.com/jorge-barreto/ok/internal/contextgather"
	"github.com/jorge-barreto/ok/internal/engine"
	"github.com/jorge-barreto/ok/internal/packager"
	"github.com/jorge-barreto/ok/internal/recovery"
	"github.com/jorge-barreto/ok/internal/spec"
	"github.com/jorge-barreto/ok/internal/staging"
	"github.com/jorge-barreto/ok/internal/ux"
)

// ErrGenerationFailed is returned when the agent errors or leaves no
// application entrypoint behind.
var ErrGenerationFailed = errors.New("generation failed")

// Mode is the decision taken for one invocation.
type Mode string

const (
	ModeSkip      Mode = "skip"
	ModeFull      Mode = "full"
	ModeBackfill  Mode = "backfill"
	ModeUpdate    Mode = "update"
	ModeRepackage Mode = "repackage"
)

// Recorder receives every finished build record.
type Recorder interface {
	Record(ctx context.Context, r *staging.Record) error
}

// Orchestrator builds specs. One value may serve builds for many specs; all
// per-spec state lives in the staging workspace of each invocation.
type Orchestrator struct {
	Config     *config.Config
	Agent      agent.Agent
	Engine     engine.Engine
	Assertions *assertion.Manager
	History    Recorder // optional
	Logger     *zap.Logger
}

// Outcome describes a finished invocation.
type Outcome struct {
	Name       string
	Tag        string
	Mode       Mode
	Recovered  bool
	Assertions assertion.List
	Record     *staging.Record
}

// builder carries the state of one invocation.
type builder struct {
	cfg        *config.Config
	agent      agent.Agent
	engine     engine.Engine
	assertions assertion.Manager
	log        *zap.Logger

	ws   *staging.Workspace
	tag  string
	text string
	rec  *staging.Record
	out  *Outcome
	task int
}

// Build brings the image for specPath up to date.
func (o *Orchestrator) Build(ctx context.Context, specPath string) (*Outcome, error) {
	text, err := spec.Load(specPath)
	if err != nil {
		return nil, err
	}
	name := spec.IdentityName(specPath)
	ws := staging.New(o.Config.StagingDir, name)

	lock, err := ws.Lock()
	if err != nil {
		return nil, err
	}
	defer lock.Unlock()

	if err := staging.WriteName(o.Config.StagingDir, name); err != nil {
		return nil, fmt.Errorf("recording spec name: %w", err)
	}

	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	rec := staging.NewRecord(name)
	tag := spec.ImageTag(o.Config.ImagePrefix, name)
	b := &builder{
		cfg:    o.Config,
		agent:  o.Agent,
		engine: o.Engine,
		log:    logger.With(zap.String("spec", name), zap.String("build_id", rec.ID)),
		ws:     ws,
		tag:    tag,
		text:   text,
		rec:    rec,
		out:    &Outcome{Name: name, Tag: tag, Record: rec},
	}
	// A copy, so usage is attributed to this invocation's record only.
	if o.Assertions != nil {
		b.assertions = *o.Assertions
	}
	if b.assertions.Agent == nil {
		b.assertions.Agent = o.Agent
	}
	b.assertions.Logger = b.log
	b.assertions.Observe = func(r *agent.Result) { rec.AddUsage(r.CostUSD, r.Turns) }

	start := time.Now()
	err = b.run(ctx)
	o.finish(ctx, b, err)
	if err != nil {
		return b.out, err
	}
	if b.out.Mode != ModeSkip {
		ux.Built(tag, time.Since(start))
	}
	return b.out, nil
}

func (o *Orchestrator) finish(ctx context.Context, b *builder, err error) {
	b.rec.Mode = string(b.out.Mode)
	switch {
	case err == nil:
		b.rec.Finish(staging.StatusCompleted, nil)
	case errors.Is(err, context.Canceled):
		b.rec.Finish(staging.StatusInterrupted, err)
	default:
		b.rec.Finish(staging.StatusFailed, err)
	}
	if serr := b.ws.SaveRecord(b.rec); serr != nil {
		b.log.Warn("saving build record", zap.Error(serr))
	}
	if o.History != nil {
		if herr := o.History.Record(context.WithoutCancel(ctx), b.rec); herr != nil {
			b.log.Warn("recording build history", zap.Error(herr))
		}
	}
	if err != nil {
		b.log.Error("build failed", zap.String("mode", b.rec.Mode), zap.Error(err))
	} else {
		b.log.Info("build finished",
			zap.String("mode", b.rec.Mode),
			zap.Float64("cost_usd", b.rec.CostUSD),
			zap.Int("turns", b.rec.Turns))
	}
}

func (b *builder) run(ctx context.Context) error {
	mode, snapshot, err := b.plan(ctx)
	if err != nil {
		return err
	}
	b.out.Mode = mode
	b.log.Info("build planned", zap.String("mode", string(mode)), zap.Bool("recovered", b.out.Recovered))

	if mode == ModeSkip {
		ux.Skip(b.ws.Name)
		return nil
	}
	ux.BuildHeader(b.ws.Name, string(mode))

	switch mode {
	case ModeFull:
		err = b.full(ctx)
	case ModeUpdate:
		err = b.update(ctx, snapshot)
	case ModeBackfill:
		err = b.backfill(ctx)
	case ModeRepackage:
		err = b.pack(ctx, packager.ModeUpdate)
	}
	return err
}

// plan evaluates the build state in order: recover when local state is
// absent, then compare the snapshot and check artifact completeness.
func (b *builder) plan(ctx context.Context) (Mode, string, error) {
	if !b.ws.Inventory().HasExistingBuild() {
		if err := b.recover(ctx); err != nil {
			return "", "", err
		}
	}
	inv := b.ws.Inventory()
	if !inv.HasExistingBuild() {
		return ModeFull, "", nil
	}

	snapshot, _, err := b.ws.Snapshot()
	if err != nil {
		return "", "", fmt.Errorf("reading snapshot: %w", err)
	}
	if snapshot != b.text {
		return ModeUpdate, snapshot, nil
	}

	if !inv.Assertions {
		return ModeBackfill, snapshot, nil
	}
	list, _, err := assertion.Load(b.ws.AssertionsPath())
	if err != nil {
		b.log.Warn("unreadable assertion list, deriving again", zap.Error(err))
		return ModeBackfill, snapshot, nil
	}
	if len(list) > 0 && !inv.Test {
		return ModeBackfill, snapshot, nil
	}
	b.out.Assertions = list

	if _, err := b.engine.ImageID(ctx, b.tag); err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			return ModeRepackage, snapshot, nil
		}
		return "", "", err
	}
	return ModeSkip, snapshot, nil
}

// recover restores the workspace from the image when one exists. Anything
// short of a complete recovery leaves the workspace as a fresh build.
func (b *builder) recover(ctx context.Context) error {
	res, err := recovery.Recover(ctx, b.engine, b.ws, b.tag, b.log)
	switch {
	case err == nil:
		b.out.Recovered = true
		ux.Step("Recovered %v from %s", res.Recovered(), b.tag)
		return nil
	case errors.Is(err, recovery.ErrNoImage):
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		ux.Warn("could not recover from %s, building from scratch: %v", b.tag, err)
		b.log.Warn("recovery failed", zap.Error(err))
		return nil
	}
}

func (b *builder) full(ctx context.Context) error {
	// Leftovers from a partial build must not leak into a fresh one.
	if err := b.ws.RemoveDerived(); err != nil {
		return err
	}
	if err := os.RemoveAll(b.ws.AppDir()); err != nil {
		return err
	}

	list, ok := b.derive(ctx, func() (assertion.List, bool) {
		return b.assertions.Extract(ctx, b.text)
	})
	if err := b.ws.WriteSnapshot(b.text); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := b.generate(ctx, "Generating app", b.fullPrompt(list)); err != nil {
		return err
	}
	if err := b.settle(list, ok); err != nil {
		return err
	}
	return b.pack(ctx, packager.ModeFresh)
}

func (b *builder) update(ctx context.Context, snapshot string) error {
	prior, hadPrior, err := assertion.Load(b.ws.AssertionsPath())
	if err != nil {
		b.log.Warn("unreadable prior assertion list", zap.Error(err))
		hadPrior = false
	}
	diff := spec.Diff(snapshot, b.text)
	b.log.Debug("spec diff", zap.String("diff", diff))

	list, ok := b.derive(ctx, func() (assertion.List, bool) {
		if !hadPrior {
			return b.assertions.Extract(ctx, b.text)
		}
		return b.assertions.UpdateFromDiff(ctx, diff, prior)
	})
	if ok {
		b.log.Info("assertions updated", zap.Int("before", len(prior)), zap.Int("after", len(list)))
	}

	priorTest, _ := os.ReadFile(b.ws.TestPath())
	// The new snapshot goes down before generation: a crash from here on
	// leaves an unchanged spec with derived artifacts missing, which the
	// next invocation resumes as a backfill.
	if err := b.ws.WriteSnapshot(b.text); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := b.ws.RemoveDerived(); err != nil {
		return err
	}

	appContext := ""
	if ac, err := contextgather.Gather(b.ws.AppDir()); err == nil {
		appContext = ac.Render()
	} else {
		b.log.Warn("gathering app context", zap.Error(err))
	}

	if err := b.generate(ctx, "Updating app", b.updatePrompt(diff, appContext, string(priorTest), list)); err != nil {
		return err
	}
	if err := b.settle(list, ok); err != nil {
		return err
	}
	return b.pack(ctx, packager.ModeUpdate)
}

func (b *builder) backfill(ctx context.Context) error {
	list, ok := b.derive(ctx, func() (assertion.List, bool) {
		return b.assertions.Extract(ctx, b.text)
	})
	if len(list) > 0 {
		if err := b.generate(ctx, "Generating test", b.testPrompt(list)); err != nil {
			return err
		}
	}
	if err := b.settle(list, ok); err != nil {
		return err
	}
	return b.pack(ctx, packager.ModeUpdate)
}

// derive runs an assertion task with progress output. Failure is soft.
func (b *builder) derive(ctx context.Context, fn func() (assertion.List, bool)) (assertion.List, bool) {
	ux.Step("Deriving assertions...")
	start := time.Now()
	list, ok := fn()
	if !ok {
		ux.Warn("could not derive assertions, continuing without a test")
		return assertion.List{}, false
	}
	ux.StepDone(fmt.Sprintf("%d assertions", len(list)), time.Since(start))
	b.out.Assertions = list
	return list, true
}

// generate runs one generation task with the full tool set.
func (b *builder) generate(ctx context.Context, what, prompt string) error {
	if err := b.ws.EnsureDir(); err != nil {
		return err
	}
	b.task++
	if err := staging.WriteFileAtomic(b.ws.PromptPath(b.task), []byte(prompt), 0644); err != nil {
		b.log.Warn("saving prompt", zap.Error(err))
	}

	ux.Step("%s...", what)
	start := time.Now()
	res, err := b.agent.Run(ctx, agent.Task{
		Prompt:   prompt,
		Tools:    agent.AllTools,
		MaxTurns: b.cfg.MaxTurns,
		WorkDir:  b.ws.Dir(),
		LogPath:  b.ws.LogPath(b.task),
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		ux.StepFail(what, err.Error())
		return fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	b.rec.AddUsage(res.CostUSD, res.Turns)
	if res.Failed() {
		ux.StepFail(what, res.ErrorSummary())
		return fmt.Errorf("%w: %s", ErrGenerationFailed, res.ErrorSummary())
	}
	ux.StepDone(what, time.Since(start))
	return nil
}

// settle checks the terminal success condition and persists the assertion
// list. A list is only written when it was actually derived, so a failed
// derivation is retried as a backfill next time.
func (b *builder) settle(list assertion.List, derived bool) error {
	if _, err := os.Stat(b.ws.EntrypointPath()); err != nil {
		ux.StepFail("Generation", "app/"+staging.Entrypoint+" was not created")
		return fmt.Errorf("%w: app/%s missing", ErrGenerationFailed, staging.Entrypoint)
	}
	if !derived {
		return nil
	}
	if err := assertion.Save(b.ws.AssertionsPath(), list); err != nil {
		return fmt.Errorf("saving assertions: %w", err)
	}
	if len(list) > 0 && !b.ws.Inventory().Test {
		ux.Warn("%s was not created; the image will have no test", staging.TestFile)
		b.log.Warn("test artifact missing", zap.Int("assertions", len(list)))
	}
	return nil
}

func (b *builder) pack(ctx context.Context, mode string) error {
	ux.Step("Building image %s...", b.tag)
	start := time.Now()
	err := packager.Package(ctx, b.engine, b.ws, b.tag, packager.Options{
		Name:      b.ws.Name,
		BaseImage: b.cfg.BaseImage,
		Port:      b.cfg.Port,
		Mode:      mode,
		BuildID:   b.rec.ID,
		Install:   b.cfg.Install,
	}, b.log)
	if err != nil {
		ux.StepFail("Image build", err.Error())
		return err
	}
	ux.StepDone("Image "+b.tag, time.Since(start))
	return nil
}
