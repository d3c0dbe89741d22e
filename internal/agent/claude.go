package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jorge-barreto/ok/internal/ux"
)

// Claude runs tasks through the claude CLI in print mode with stream-json
// output.
type Claude struct {
	Binary  string        // defaults to "claude"
	Model   string        // optional model alias
	Timeout time.Duration // zero means no timeout
	// Display receives streamed assistant text. Nil means os.Stdout.
	Display io.Writer
}

func (c *Claude) binary() string {
	if c.Binary == "" {
		return "claude"
	}
	return c.Binary
}

// Args returns the command line for task, without the binary name.
func (c *Claude) Args(task Task) []string {
	args := []string{"-p", task.Prompt,
		"--output-format", "stream-json",
		"--verbose",
		"--permission-mode", "bypassPermissions",
	}
	if len(task.Tools) > 0 {
		args = append(args, "--allowedTools", joinTools(task.Tools))
	} else {
		args = append(args, "--tools", "")
	}
	if task.MaxTurns > 0 {
		args = append(args, "--max-turns", strconv.Itoa(task.MaxTurns))
	}
	if task.Schema != "" {
		args = append(args, "--json-schema", task.Schema)
	}
	if c.Model != "" {
		args = append(args, "--model", c.Model)
	}
	return args
}

// Run executes task and blocks until the agent exits. A non-zero exit status
// is reported in the Result, not as an error.
func (c *Claude) Run(ctx context.Context, task Task) (*Result, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.binary(), c.Args(task)...)
	cmd.Dir = task.WorkDir
	cmd.Env = BuildEnv()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	}
	cmd.WaitDelay = 5 * time.Second

	var logFile io.Writer = io.Discard
	if task.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(task.LogPath), 0755); err != nil {
			return nil, err
		}
		f, err := os.Create(task.LogPath)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		logFile = f
	}

	var display io.Writer
	if !task.Quiet {
		display = c.Display
		if display == nil {
			display = os.Stdout
		}
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	var stderr bytes.Buffer
	cmd.Stderr = io.MultiWriter(logFile, &stderr)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", c.binary(), err)
	}

	stream, streamErr := processStream(ctx, stdout, display, logFile)
	// Drain anything left so Wait does not block on a full pipe.
	_, _ = io.Copy(io.Discard, stdout)
	code := 0
	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("running %s: %w", c.binary(), err)
		}
		code = exitErr.ExitCode()
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if streamErr != nil {
		return nil, streamErr
	}

	res := stream.toResult()
	res.ExitCode = code
	if res.Duration == 0 {
		res.Duration = time.Since(start)
	}
	if code != 0 && len(res.Errors) == 0 && stderr.Len() > 0 {
		res.Errors = []string{lastLine(stderr.String())}
	}
	if display != nil {
		ux.AgentSummary(res.Duration, res.Turns, res.CostUSD)
	}
	return res, nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
