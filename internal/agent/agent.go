// Package agent drives the external code-generation agent. The agent is an
// opaque capability: it receives a task and a tool allowlist, edits files in
// its working directory, and reports a final result with usage metadata.
package agent

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Tool is a capability the agent may be granted.
type Tool string

const (
	ToolWrite Tool = "Write" // create a file
	ToolEdit  Tool = "Edit"  // edit an existing file
	ToolRead  Tool = "Read"  // read a file
	ToolBash  Tool = "Bash"  // execute a command
)

// AllTools is the allowlist for generation tasks.
var AllTools = []Tool{ToolWrite, ToolEdit, ToolRead, ToolBash}

// Task is one unit of delegated work.
type Task struct {
	Prompt string
	// Tools is the allowlist. Empty means no tool use at all.
	Tools []Tool
	// Schema, when set, requests a single structured result conforming to
	// this JSON schema.
	Schema   string
	MaxTurns int
	WorkDir  string
	// LogPath receives the full transcript. Empty discards it.
	LogPath string
	// Quiet suppresses terminal progress.
	Quiet bool
}

// Result is what the agent reports when a task finishes.
type Result struct {
	Text       string
	Structured json.RawMessage
	CostUSD    float64
	Turns      int
	Duration   time.Duration
	IsError    bool
	Errors     []string
	SessionID  string
	ExitCode   int
}

// Failed reports whether the agent signalled an error, either in its result
// or through its exit status.
func (r *Result) Failed() bool {
	return r.IsError || r.ExitCode != 0
}

// ErrorSummary joins the reported errors into one message.
func (r *Result) ErrorSummary() string {
	if len(r.Errors) > 0 {
		return strings.Join(r.Errors, "; ")
	}
	if r.ExitCode != 0 {
		return "agent exited with status " + strconv.Itoa(r.ExitCode)
	}
	if r.IsError {
		return "agent reported an error"
	}
	return ""
}

// Agent runs tasks. Tests substitute a fake.
type Agent interface {
	Run(ctx context.Context, task Task) (*Result, error)
}

func joinTools(tools []Tool) string {
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = string(t)
	}
	return strings.Join(names, ",")
}
