// Package lint asks the agent to find ambiguity in a spec that would make
// repeated builds diverge, and optionally to rewrite the spec to remove it.
package lint

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/jorge-barreto/ok/internal/agent"
	"github.com/jorge-barreto/ok/internal/spec"
)

const categories = `1. **Underspecified data models**: fields listed without types, sizes, constraints or defaults
2. **Vague descriptions**: subjective language ("nice", "clean", "modern", "intuitive") that different runs interpret differently
3. **Missing API details**: endpoints mentioned without methods, paths, request bodies or response shapes
4. **Unspecified technology choices**: a frontend without a CSS approach, component style or layout
5. **Incomplete CRUD**: a data model with only some operations specified
6. **Ambiguous relationships**: references between entities without cardinality, cascading or optionality
7. **Missing validation rules**: no constraints on user input
8. **Implicit requirements**: assumed but unstated behavior such as list ordering, pagination or empty states
`

const checkPrompt = `<spec>
%s
</spec>

You are a specification linter. Analyze the spec above for ambiguity that would cause an AI to produce different applications on repeated runs.

Check for:
%s
For each issue, output exactly this format:

  warning  <Category> (<section or line reference>)
           <What is ambiguous and why it causes varying results>
           Fix: <Concrete suggestion to eliminate the ambiguity>

After listing all issues, print a summary line:

  X warnings found

Do NOT use any tools. Only output text.`

const fixPrompt = `The file %s contains this specification:

<spec>
%s
</spec>

You are a specification linter with fix mode enabled.
1. Analyze the spec for ambiguity that would cause an AI to produce different applications on repeated runs. Check for:
%s
2. Rewrite the spec to resolve every ambiguity you found. Preserve the author's intent and do not add features they did not ask for.
3. Write the fixed spec to %s using the Write tool.
4. Print a summary of every change you made and why.`

var summaryLine = regexp.MustCompile(`(?m)^\s*(\d+)\s+warnings?\s+found\s*$`)

// Report is the outcome of a lint run.
type Report struct {
	Text string
	// Warnings is the count from the summary line, or -1 if the agent
	// printed none.
	Warnings int
	// Changed is set by Fix when the spec file was rewritten.
	Changed bool
	CostUSD float64
	Turns   int
}

// Check lints the spec at path without touching it.
func Check(ctx context.Context, a agent.Agent, path string) (*Report, error) {
	text, err := spec.Load(path)
	if err != nil {
		return nil, err
	}
	res, err := a.Run(ctx, agent.Task{
		Prompt: fmt.Sprintf(checkPrompt, text, categories),
	})
	if err != nil {
		return nil, fmt.Errorf("running linter: %w", err)
	}
	if res.Failed() {
		return nil, fmt.Errorf("linter failed: %s", res.ErrorSummary())
	}
	return &Report{
		Text:     res.Text,
		Warnings: countWarnings(res.Text),
		CostUSD:  res.CostUSD,
		Turns:    res.Turns,
	}, nil
}

// Fix lets the agent rewrite the spec at path. Only Read and Write are
// granted, and the agent runs in the spec's directory.
func Fix(ctx context.Context, a agent.Agent, path string) (*Report, error) {
	before, err := spec.Load(path)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	res, err := a.Run(ctx, agent.Task{
		Prompt:  fmt.Sprintf(fixPrompt, abs, before, categories, abs),
		Tools:   []agent.Tool{agent.ToolRead, agent.ToolWrite},
		WorkDir: filepath.Dir(abs),
	})
	if err != nil {
		return nil, fmt.Errorf("running linter: %w", err)
	}
	if res.Failed() {
		return nil, fmt.Errorf("linter failed: %s", res.ErrorSummary())
	}
	after, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("reading fixed spec: %w", err)
	}
	return &Report{
		Text:     res.Text,
		Warnings: countWarnings(res.Text),
		Changed:  string(after) != before,
		CostUSD:  res.CostUSD,
		Turns:    res.Turns,
	}, nil
}

// countWarnings reads the last summary line.
func countWarnings(text string) int {
	m := summaryLine.FindAllStringSubmatch(text, -1)
	if len(m) == 0 {
		return -1
	}
	n, err := strconv.Atoi(m[len(m)-1][1])
	if err != nil {
		return -1
	}
	return n
}
