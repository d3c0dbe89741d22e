package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestArgs_GenerationTask(t *testing.T) {
	c := &Claude{Model: "sonnet"}
	args := c.Args(Task{Prompt: "build it", Tools: AllTools, MaxTurns: 50})
	joined := strings.Join(args, " ")
	for _, want := range []string{
		"-p build it",
		"--output-format stream-json",
		"--verbose",
		"--permission-mode bypassPermissions",
		"--allowedTools Write,Edit,Read,Bash",
		"--max-turns 50",
		"--model sonnet",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %v", want, args)
		}
	}
	if slices.Contains(args, "--json-schema") {
		t.Error("no schema requested")
	}
}

func TestArgs_StructuredNoTools(t *testing.T) {
	c := &Claude{}
	args := c.Args(Task{Prompt: "p", Schema: `{"type":"object"}`, MaxTurns: 1})
	i := slices.Index(args, "--tools")
	if i < 0 || args[i+1] != "" {
		t.Fatalf("expected --tools \"\" for a tool-less task: %v", args)
	}
	j := slices.Index(args, "--json-schema")
	if j < 0 || args[j+1] != `{"type":"object"}` {
		t.Fatalf("schema not passed: %v", args)
	}
	if slices.Contains(args, "--model") {
		t.Fatal("model should be omitted when unset")
	}
}

// fakeClaude writes an executable that prints the given stream and exits.
func fakeClaude(t *testing.T, stream string, code int) string {
	t.Helper()
	dir := t.TempDir()
	data := filepath.Join(dir, "stream.jsonl")
	if err := os.WriteFile(data, []byte(stream), 0644); err != nil {
		t.Fatal(err)
	}
	bin := filepath.Join(dir, "claude")
	script := "#!/bin/sh\ncat " + data + "\necho 'fake failure' >&2\nexit " + strconv.Itoa(code) + "\n"
	if err := os.WriteFile(bin, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return bin
}

func TestRun_ParsesResult(t *testing.T) {
	bin := fakeClaude(t, `{"type":"result","result":"ok","num_turns":2,"total_cost_usd":0.5}`+"\n", 0)
	logPath := filepath.Join(t.TempDir(), "logs", "agent-1.log")

	c := &Claude{Binary: bin}
	res, err := c.Run(context.Background(), Task{Prompt: "x", Quiet: true, LogPath: logPath})
	if err != nil {
		t.Fatal(err)
	}
	if res.Text != "ok" || res.Turns != 2 || res.CostUSD != 0.5 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Failed() {
		t.Fatal("exit 0 should not fail")
	}
	if _, err := os.Stat(logPath); err != nil {
		t.Fatalf("transcript not written: %v", err)
	}
}

func TestRun_NonZeroExit(t *testing.T) {
	bin := fakeClaude(t, "", 3)

	c := &Claude{Binary: bin}
	res, err := c.Run(context.Background(), Task{Prompt: "x", Quiet: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.ExitCode != 3 || !res.Failed() {
		t.Fatalf("ExitCode = %d", res.ExitCode)
	}
	if res.ErrorSummary() != "fake failure" {
		t.Fatalf("ErrorSummary = %q", res.ErrorSummary())
	}
}

func TestRun_ExitStatusKeepsStreamResult(t *testing.T) {
	bin := fakeClaude(t, `{"type":"result","result":"partial","num_turns":7,"total_cost_usd":0.2}`+"\n", 2)

	c := &Claude{Binary: bin}
	res, err := c.Run(context.Background(), Task{Prompt: "x", Quiet: true})
	if err != nil {
		t.Fatalf("a non-zero exit is not an error: %v", err)
	}
	if res.ExitCode != 2 || res.Text != "partial" || res.Turns != 7 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.ErrorSummary() != "fake failure" {
		t.Fatalf("ErrorSummary = %q", res.ErrorSummary())
	}
}

func TestRun_CancelledIsAnError(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "claude")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\nsleep 5\n"), 0755); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	c := &Claude{Binary: bin}
	res, err := c.Run(ctx, Task{Prompt: "x", Quiet: true})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, res = %+v", err, res)
	}
}

func TestRun_MissingBinary(t *testing.T) {
	c := &Claude{Binary: filepath.Join(t.TempDir(), "nope")}
	if _, err := c.Run(context.Background(), Task{Prompt: "x", Quiet: true}); err == nil {
		t.Fatal("expected start error")
	}
}

func TestBuildEnv_StripsClaudeCode(t *testing.T) {
	t.Setenv("CLAUDECODE", "1")
	t.Setenv("OK_TEST_VAR", "kept")
	env := BuildEnv()
	for _, e := range env {
		if strings.HasPrefix(e, "CLAUDECODE=") {
			t.Fatal("CLAUDECODE should be stripped")
		}
	}
	if !slices.Contains(env, "OK_TEST_VAR=kept") {
		t.Fatal("other variables should be kept")
	}
}
