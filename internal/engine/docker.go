package engine

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Docker drives a docker-compatible CLI (docker, podman).
type Docker struct {
	Binary string // defaults to "docker"
	Logger *zap.Logger
	// Stdout and Stderr receive build progress. Nil means the process's own.
	Stdout io.Writer
	Stderr io.Writer
}

func (d *Docker) binary() string {
	if d.Binary == "" {
		return "docker"
	}
	return d.Binary
}

func (d *Docker) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// output runs a short engine command and returns trimmed stdout.
func (d *Docker) output(ctx context.Context, args ...string) (string, error) {
	d.logger().Debug("engine", zap.Strings("args", args))
	cmd := exec.CommandContext(ctx, d.binary(), args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", commandError(args, err, stderr.String())
	}
	return strings.TrimSpace(stdout.String()), nil
}

func commandError(args []string, err error, stderr string) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &CommandError{Args: args, ExitCode: exitErr.ExitCode(), Stderr: stderr}
	}
	return fmt.Errorf("%s: %w", strings.Join(args, " "), err)
}

// notFound maps an engine "no such object" failure to ErrNotFound.
func notFound(err error) error {
	var ce *CommandError
	if errors.As(err, &ce) {
		msg := strings.ToLower(ce.Stderr)
		if strings.Contains(msg, "no such") || strings.Contains(msg, "not known") || strings.Contains(msg, "not found") {
			return fmt.Errorf("%s: %w", strings.Join(ce.Args, " "), ErrNotFound)
		}
	}
	return err
}

func (d *Docker) Build(ctx context.Context, tag, contextDir string) error {
	args := []string{"build", "-t", tag, contextDir}
	d.logger().Info("building image", zap.String("tag", tag), zap.String("context", contextDir))
	cmd := exec.CommandContext(ctx, d.binary(), args...)
	var tail bytes.Buffer
	cmd.Stdout = writerOr(d.Stdout, os.Stdout)
	cmd.Stderr = io.MultiWriter(writerOr(d.Stderr, os.Stderr), &tail)
	if err := cmd.Run(); err != nil {
		return commandError(args, err, lastLines(tail.String(), 20))
	}
	return nil
}

// RunArgs returns the engine arguments for a foreground run.
func RunArgs(opts RunOptions) []string {
	port := strconv.Itoa(opts.Port)
	args := []string{"run", "--rm", "--init",
		"--name", opts.Name,
		"-p", port + ":" + port,
		"-e", "PORT=" + port,
	}
	for _, kv := range opts.Env {
		args = append(args, "-e", kv)
	}
	if opts.EnvFile != "" {
		args = append(args, "--env-file", opts.EnvFile)
	}
	return append(args, opts.Image)
}

func (d *Docker) Run(ctx context.Context, opts RunOptions) (int, error) {
	args := RunArgs(opts)
	d.logger().Info("running container", zap.String("name", opts.Name), zap.Int("port", opts.Port))
	cmd := exec.CommandContext(ctx, d.binary(), args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = writerOr(opts.Stdout, os.Stdout)
	cmd.Stderr = writerOr(opts.Stderr, os.Stderr)
	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 0, fmt.Errorf("running %s: %w", opts.Image, err)
}

func (d *Docker) Stop(ctx context.Context, name string, grace time.Duration) error {
	secs := int(math.Ceil(grace.Seconds()))
	_, err := d.output(ctx, "stop", "-t", strconv.Itoa(secs), name)
	return notFound(err)
}

func (d *Docker) ImageID(ctx context.Context, tag string) (string, error) {
	id, err := d.output(ctx, "image", "inspect", "--format", "{{.Id}}", tag)
	if err != nil {
		return "", notFound(err)
	}
	return id, nil
}

func (d *Docker) InspectContainer(ctx context.Context, ref string) (*Container, error) {
	out, err := d.output(ctx, "container", "inspect", "--format", "{{.Id}}|{{.Name}}|{{.Image}}|{{.State.Running}}", ref)
	if err != nil {
		return nil, notFound(err)
	}
	parts := strings.Split(out, "|")
	if len(parts) != 4 {
		return nil, fmt.Errorf("unexpected inspect output %q", out)
	}
	return &Container{
		ID:      parts[0],
		Name:    strings.TrimPrefix(parts[1], "/"),
		ImageID: parts[2],
		Running: parts[3] == "true",
	}, nil
}

func (d *Docker) ListByAncestor(ctx context.Context, tag string) ([]Container, error) {
	out, err := d.output(ctx, "ps", "--filter", "ancestor="+tag, "--format", "{{.ID}}\t{{.Names}}")
	if err != nil {
		return nil, err
	}
	return parsePS(out), nil
}

func parsePS(out string) []Container {
	var cs []Container
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		id, name, _ := strings.Cut(line, "\t")
		cs = append(cs, Container{ID: id, Name: name, Running: true})
	}
	return cs
}

func (d *Docker) Create(ctx context.Context, tag string) (string, error) {
	id, err := d.output(ctx, "create", tag)
	if err != nil {
		return "", notFound(err)
	}
	return id, nil
}

func (d *Docker) Copy(ctx context.Context, id, src, dst string) error {
	_, err := d.output(ctx, "cp", id+":"+src, dst)
	return err
}

func (d *Docker) Remove(ctx context.Context, refs ...string) error {
	if len(refs) == 0 {
		return nil
	}
	_, err := d.output(ctx, append([]string{"rm", "-f"}, refs...)...)
	return notFound(err)
}

func (d *Docker) RemoveImage(ctx context.Context, tag string) error {
	_, err := d.output(ctx, "rmi", "-f", tag)
	return notFound(err)
}

func writerOr(w, fallback io.Writer) io.Writer {
	if w == nil {
		return fallback
	}
	return w
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
