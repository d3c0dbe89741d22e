package scaffold

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jorge-barreto/ok/internal/agent"
	"github.com/jorge-barreto/ok/internal/fenced"
)

const draftPrompt = `You are writing a specification for a small web application. The specification will be handed to an AI that builds the app from it, repeatedly, and every build must produce the same behavior.

The idea:

<idea>
%s
</idea>

Write the specification in Markdown. It must pin down:
- every data field with its type, constraints and defaults
- every API endpoint with method, path, request body, status codes and response shape
- the page layout and the text of key elements, including empty states
- validation rules and list ordering

Keep the scope to what the idea asks for. Do not add authentication, deployment or technology choices unless the idea requires them.

## Output Format

Produce ONLY one fenced code block with a file= annotation and no text outside it:

` + "```" + `markdown file=%s
<specification>
` + "```" + `
`

const retryFeedback = `

IMPORTANT: Your previous attempt failed with this error: %v

Try again. Output ONLY one fenced markdown block annotated with file=%s.`

var errNoDraft = errors.New("no spec block in agent output")

// Draft asks the agent for a spec of idea, retrying once with the parse
// error as feedback. The returned text is ready for Options.Content.
func Draft(ctx context.Context, a agent.Agent, idea, specName string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		prompt := fmt.Sprintf(draftPrompt, strings.TrimSpace(idea), specName)
		if lastErr != nil {
			prompt += fmt.Sprintf(retryFeedback, lastErr, specName)
		}
		res, err := a.Run(ctx, agent.Task{Prompt: prompt, MaxTurns: 1})
		if err != nil {
			return "", err
		}
		if res.Failed() {
			lastErr = errors.New(res.ErrorSummary())
			continue
		}
		text, err := pickDraft(res.Text, specName)
		if err == nil {
			return text, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("drafting spec: %w", lastErr)
}

// pickDraft prefers the block annotated with specName, then any markdown
// block.
func pickDraft(output, specName string) (string, error) {
	blocks := fenced.Parse(output)
	for _, b := range fenced.WithPath(blocks) {
		if b.Path == specName && strings.TrimSpace(b.Content) != "" {
			return ensureNewline(b.Content), nil
		}
	}
	for _, lang := range []string{"markdown", "md"} {
		for _, b := range fenced.WithLang(blocks, lang) {
			if strings.TrimSpace(b.Content) != "" {
				return ensureNewline(b.Content), nil
			}
		}
	}
	return "", errNoDraft
}

func ensureNewline(s string) string {
	if !strings.HasSuffix(s, "\n") {
		return s + "\n"
	}
	return s
}
