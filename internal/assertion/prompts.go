package assertion

import (
	"strings"
)

const focus = `Extract concrete, testable behavioral assertions.

Focus on:
- API endpoints: method, path, expected status codes, response shape
- Data persistence: an item that was created can be retrieved again
- Frontend content: key text, elements or components that must be present
- Core workflows: sequences of actions that must succeed end to end

Each assertion is one sentence describing one testable behavior.
Be specific: include HTTP methods, paths, status codes and field names where they apply.
Do not include assertions about implementation details such as frameworks or file layout.
`

func extractPrompt(spec string) string {
	var b strings.Builder
	b.WriteString("You are analyzing a web application specification.\n\n")
	b.WriteString(focus)
	b.WriteString("\n<spec>\n")
	b.WriteString(spec)
	b.WriteString("\n</spec>\n")
	return b.String()
}

func updatePrompt(diff string, prior List) string {
	var b strings.Builder
	b.WriteString("You are updating the behavioral assertions of a web application whose specification changed.\n\n")
	b.WriteString("Current assertions:\n")
	if len(prior) == 0 {
		b.WriteString("(none)\n")
	} else {
		b.WriteString(prior.Numbered())
	}
	b.WriteString("\nSpecification diff:\n```diff\n")
	b.WriteString(diff)
	if !strings.HasSuffix(diff, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString("```\n\n")
	b.WriteString("Return the complete updated list, not a delta: keep assertions the change does not affect word for word, ")
	b.WriteString("drop the ones that no longer apply, and add new ones for changed or added behavior.\n\n")
	b.WriteString(focus)
	return b.String()
}
