package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/jorge-barreto/ok/internal/agent"
	"github.com/jorge-barreto/ok/internal/assertion"
	"github.com/jorge-barreto/ok/internal/build"
	"github.com/jorge-barreto/ok/internal/config"
	"github.com/jorge-barreto/ok/internal/docs"
	"github.com/jorge-barreto/ok/internal/engine"
	"github.com/jorge-barreto/ok/internal/history"
	"github.com/jorge-barreto/ok/internal/lifecycle"
	"github.com/jorge-barreto/ok/internal/lint"
	"github.com/jorge-barreto/ok/internal/logging"
	"github.com/jorge-barreto/ok/internal/scaffold"
	"github.com/jorge-barreto/ok/internal/spec"
	"github.com/jorge-barreto/ok/internal/staging"
	"github.com/jorge-barreto/ok/internal/ux"
	"github.com/jorge-barreto/ok/internal/watch"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		var exitErr *lifecycle.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		fmt.Fprintf(os.Stderr, "%serror:%s %v\n", ux.Red, ux.Reset, err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:        "ok",
		Usage:       "Turn a spec into a running, containerized app",
		Description: "Run 'ok docs' for documentation on build modes, config, and the staging directory.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "Log debug output to stderr"},
		},
		Commands: []*cli.Command{
			buildCmd(),
			runCmd(),
			serveCmd(),
			stopCmd(),
			watchCmd(),
			historyCmd(),
			cleanCmd(),
			lintCmd(),
			initCmd(),
			docsCmd(),
		},
	}
}

// env is what every command shares once config is loaded.
type env struct {
	cfg    *config.Config
	log    *zap.Logger
	claude *agent.Claude
	docker *engine.Docker
}

type needs struct {
	agent  bool // credential and agent binary
	engine bool // engine binary
}

// setup loads .env and ok.yaml from the working directory and checks
// preconditions. It writes nothing: the file logger is started separately
// with startLog once a command's own preconditions hold.
func setup(cmd *cli.Command, n needs) (*env, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	if err := config.LoadDotEnv(wd); err != nil {
		return nil, err
	}
	cfg, err := config.LoadDir(wd)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	var bins []string
	if n.agent {
		if err := config.RequireCredential(); err != nil {
			return nil, err
		}
		bins = append(bins, cfg.AgentBinary)
	}
	if n.engine {
		bins = append(bins, cfg.EngineBinary)
	}
	if err := agent.Preflight(bins...); err != nil {
		return nil, err
	}

	log := zap.NewNop()
	return &env{
		cfg: cfg,
		log: log,
		claude: &agent.Claude{
			Binary:  cfg.AgentBinary,
			Model:   cfg.Model,
			Timeout: cfg.AgentTimeoutDuration(),
		},
		docker: &engine.Docker{Binary: cfg.EngineBinary, Logger: log},
	}, nil
}

// startLog replaces the no-op logger with the configured one. The log file
// lives in the staging dir, so this is the first write a command makes.
func (e *env) startLog(cmd *cli.Command) error {
	log, err := logging.New(e.cfg.Log, cmd.Bool("verbose"))
	if err != nil {
		return err
	}
	e.log = log
	e.docker.Logger = log
	return nil
}

func (e *env) close() {
	_ = e.log.Sync()
}

// orchestrator wires a build orchestrator. The returned func closes the
// history ledger.
func (e *env) orchestrator() (*build.Orchestrator, func(), error) {
	am, err := assertion.NewManager(e.claude, e.log)
	if err != nil {
		return nil, nil, err
	}
	o := &build.Orchestrator{
		Config:     e.cfg,
		Agent:      e.claude,
		Engine:     e.docker,
		Assertions: am,
		Logger:     e.log,
	}
	store, err := history.Open(filepath.Join(e.cfg.StagingDir, history.FileName))
	if err != nil {
		ux.Warn("build history unavailable: %v", err)
		return o, func() {}, nil
	}
	o.History = store
	return o, func() { _ = store.Close() }, nil
}

func (e *env) lifecycle() *lifecycle.Manager {
	return &lifecycle.Manager{
		Engine: e.docker,
		Prefix: e.cfg.ImagePrefix,
		Grace:  e.cfg.StopGraceDuration(),
		Logger: e.log,
	}
}

// withSignals cancels ctx on SIGINT, SIGTERM and SIGHUP.
func withSignals(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
}

func specArg(cmd *cli.Command) (string, error) {
	p := cmd.Args().First()
	if p == "" {
		return "", fmt.Errorf("spec argument is required")
	}
	return p, nil
}

// specName resolves the optional spec argument, falling back to the spec of
// the most recent build.
func specName(cmd *cli.Command, stagingDir string) (string, error) {
	if p := cmd.Args().First(); p != "" {
		return spec.IdentityName(p), nil
	}
	name, err := staging.ReadName(stagingDir)
	if err != nil {
		if errors.Is(err, staging.ErrNoPriorBuild) {
			return "", fmt.Errorf("%w: pass a spec or run 'ok build <spec>' first", err)
		}
		return "", err
	}
	return name, nil
}

func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Host port (default: port from ok.yaml)"},
		&cli.StringSliceFlag{Name: "env", Aliases: []string{"e"}, Usage: "Set an environment variable K=V in the app"},
		&cli.StringFlag{Name: "env-file", Usage: "Read environment variables for the app from a file"},
	}
}

func doBuild(ctx context.Context, e *env, specPath string) error {
	o, closeHistory, err := e.orchestrator()
	if err != nil {
		return err
	}
	defer closeHistory()

	if _, err := o.Build(ctx, specPath); err != nil {
		if !errors.Is(err, staging.ErrLocked) && !errors.Is(err, spec.ErrNotFound) && ctx.Err() == nil {
			ux.RetryHint(specPath)
		}
		return err
	}
	return nil
}

func doRun(ctx context.Context, e *env, cmd *cli.Command, name string) error {
	port := int(cmd.Int("port"))
	if port == 0 {
		port = e.cfg.Port
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("--port %d out of range 1-65535", port)
	}
	_, err := e.lifecycle().Start(ctx, lifecycle.StartOptions{
		Spec:    name,
		Port:    port,
		Env:     cmd.StringSlice("env"),
		EnvFile: cmd.String("env-file"),
		OnStart: func(inst *lifecycle.Instance) {
			ux.Running(inst.Name, inst.Port, inst.Reused)
		},
	})
	return err
}

func buildCmd() *cli.Command {
	return &cli.Command{
		Name:      "build",
		Usage:     "Build or update the image for a spec",
		ArgsUsage: "<spec>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			specPath, err := specArg(cmd)
			if err != nil {
				return err
			}
			e, err := setup(cmd, needs{agent: true, engine: true})
			if err != nil {
				return err
			}
			if _, err := spec.Load(specPath); err != nil {
				return err
			}
			if err := e.startLog(cmd); err != nil {
				return err
			}
			defer e.close()

			ctx, stop := withSignals(ctx)
			defer stop()
			return doBuild(ctx, e, specPath)
		},
	}
}

func runCmd() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run the built image for a spec",
		ArgsUsage: "[spec]",
		Flags:     runFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := setup(cmd, needs{engine: true})
			if err != nil {
				return err
			}
			name, err := specName(cmd, e.cfg.StagingDir)
			if err != nil {
				return err
			}
			if err := e.startLog(cmd); err != nil {
				return err
			}
			defer e.close()

			ctx, stop := withSignals(ctx)
			defer stop()
			return doRun(ctx, e, cmd, name)
		},
	}
}

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:      "serve",
		Usage:     "Build, then run",
		ArgsUsage: "<spec>",
		Flags:     runFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			specPath, err := specArg(cmd)
			if err != nil {
				return err
			}
			e, err := setup(cmd, needs{agent: true, engine: true})
			if err != nil {
				return err
			}
			if _, err := spec.Load(specPath); err != nil {
				return err
			}
			if err := e.startLog(cmd); err != nil {
				return err
			}
			defer e.close()

			ctx, stop := withSignals(ctx)
			defer stop()
			if err := doBuild(ctx, e, specPath); err != nil {
				return err
			}
			return doRun(ctx, e, cmd, spec.IdentityName(specPath))
		},
	}
}

func stopCmd() *cli.Command {
	return &cli.Command{
		Name:      "stop",
		Usage:     "Stop the running instance of a spec",
		ArgsUsage: "[spec]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := setup(cmd, needs{engine: true})
			if err != nil {
				return err
			}
			defer e.close()
			name, err := specName(cmd, e.cfg.StagingDir)
			if err != nil {
				return err
			}
			if err := e.lifecycle().Stop(ctx, name); err != nil {
				if errors.Is(err, lifecycle.ErrNotRunning) {
					fmt.Printf("%s%s is not running%s\n", ux.Dim, name, ux.Reset)
					return nil
				}
				return err
			}
			fmt.Printf("%sStopped %s%s\n", ux.Green, spec.ContainerName(spec.ImageTag(e.cfg.ImagePrefix, name)), ux.Reset)
			return nil
		},
	}
}

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Rebuild whenever the spec changes",
		ArgsUsage: "<spec>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			specPath, err := specArg(cmd)
			if err != nil {
				return err
			}
			if _, err := spec.Load(specPath); err != nil {
				return err
			}
			e, err := setup(cmd, needs{agent: true, engine: true})
			if err != nil {
				return err
			}
			if err := e.startLog(cmd); err != nil {
				return err
			}
			defer e.close()

			ctx, stop := withSignals(ctx)
			defer stop()
			fmt.Printf("%sWatching %s (Ctrl-C to stop)%s\n", ux.Dim, specPath, ux.Reset)
			w := &watch.Watcher{
				Path:     specPath,
				RunFirst: true,
				Logger:   e.log,
				OnChange: func(ctx context.Context) error {
					err := doBuild(ctx, e, specPath)
					if err != nil && ctx.Err() == nil {
						fmt.Fprintf(os.Stderr, "%serror:%s %v\n", ux.Red, ux.Reset, err)
					}
					return err
				},
			}
			return w.Run(ctx)
		},
	}
}

func historyCmd() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "Show past builds",
		ArgsUsage: "[spec]",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20, Usage: "Number of builds to show"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := setup(cmd, needs{})
			if err != nil {
				return err
			}
			defer e.close()

			path := filepath.Join(e.cfg.StagingDir, history.FileName)
			if _, err := os.Stat(path); err != nil {
				ux.RenderHistory(os.Stdout, nil)
				return nil
			}
			store, err := history.Open(path)
			if err != nil {
				return err
			}
			defer store.Close()

			name := ""
			if p := cmd.Args().First(); p != "" {
				name = spec.IdentityName(p)
			}
			records, err := store.List(ctx, name, int(cmd.Int("limit")))
			if err != nil {
				return fmt.Errorf("reading history: %w", err)
			}
			ux.RenderHistory(os.Stdout, records)
			return nil
		},
	}
}

func cleanCmd() *cli.Command {
	return &cli.Command{
		Name:  "clean",
		Usage: "Remove the staging directory and the image of the last build",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := setup(cmd, needs{engine: true})
			if err != nil {
				return err
			}
			defer e.close()

			name, err := staging.ReadName(e.cfg.StagingDir)
			switch {
			case err == nil:
				if err := e.lifecycle().Purge(ctx, name); err != nil {
					return err
				}
				fmt.Printf("Removed image %s\n", spec.ImageTag(e.cfg.ImagePrefix, name))
			case !errors.Is(err, staging.ErrNoPriorBuild):
				return err
			}
			if err := os.RemoveAll(e.cfg.StagingDir); err != nil {
				return err
			}
			fmt.Printf("%sRemoved %s%s\n", ux.Green, e.cfg.StagingDir, ux.Reset)
			return nil
		},
	}
}

func lintCmd() *cli.Command {
	return &cli.Command{
		Name:      "lint",
		Usage:     "Find ambiguity in a spec that would make builds diverge",
		ArgsUsage: "<spec>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "fix", Usage: "Let the agent rewrite the spec"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			specPath, err := specArg(cmd)
			if err != nil {
				return err
			}
			e, err := setup(cmd, needs{agent: true})
			if err != nil {
				return err
			}
			defer e.close()

			ctx, stop := withSignals(ctx)
			defer stop()

			if !cmd.Bool("fix") {
				fmt.Print("Analyzing spec for ambiguity...\n\n")
				r, err := lint.Check(ctx, e.claude, specPath)
				if err != nil {
					return err
				}
				if r.Warnings == 0 {
					fmt.Printf("\n%s✓ No ambiguity found%s\n", ux.Green, ux.Reset)
				}
				return nil
			}

			fmt.Print("Analyzing spec for ambiguity and applying fixes...\n\n")
			r, err := lint.Fix(ctx, e.claude, specPath)
			if err != nil {
				return err
			}
			if r.Changed {
				fmt.Printf("\n%s✓ Updated %s%s\n", ux.Green, specPath, ux.Reset)
			} else {
				fmt.Printf("\n%s%s left unchanged%s\n", ux.Dim, specPath, ux.Reset)
			}
			return nil
		},
	}
}

func initCmd() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Create ok.yaml and a starter spec",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "spec", Value: scaffold.DefaultSpec, Usage: "Starter spec file name"},
			&cli.StringFlag{Name: "idea", Usage: "One-line description for the agent to draft the spec from"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			dir, err := os.Getwd()
			if err != nil {
				return err
			}
			specFile := cmd.String("spec")
			opts := scaffold.Options{Spec: specFile}
			source := "example spec"

			if idea := cmd.String("idea"); idea != "" {
				e, err := setup(cmd, needs{agent: true})
				if err != nil {
					return err
				}
				defer e.close()
				ctx, stop := withSignals(ctx)
				defer stop()

				fmt.Print("Drafting spec...\n\n")
				text, err := scaffold.Draft(ctx, e.claude, idea, specFile)
				switch {
				case err == nil:
					opts.Content = text
					source = "drafted by the agent"
				case ctx.Err() != nil:
					return ctx.Err()
				default:
					ux.Warn("drafting failed, using the example spec: %v", err)
				}
			}

			written, err := scaffold.Init(dir, opts)
			if err != nil {
				return err
			}
			scaffold.PrintSummary(written, specFile, source)
			return nil
		},
	}
}

func docsCmd() *cli.Command {
	return &cli.Command{
		Name:      "docs",
		Usage:     "Show documentation",
		ArgsUsage: "[topic]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			name := cmd.Args().First()
			if name == "" {
				fmt.Print("\nAvailable topics:\n\n")
				for _, t := range docs.All() {
					fmt.Printf("  %-14s %s\n", t.Name, t.Summary)
				}
				fmt.Println("\nRun 'ok docs <topic>' to read a topic.")
				return nil
			}
			t, err := docs.Get(name)
			if err != nil {
				return err
			}
			fmt.Print(t.Content)
			return nil
		},
	}
}
