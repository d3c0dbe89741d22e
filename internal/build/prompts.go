package build

import (
	"strconv"
	"strings"

	"github.com/jorge-barreto/ok/internal/agent"
	"github.com/jorge-barreto/ok/internal/assertion"
)

// testHeading marks a task that must produce test.sh.
const testHeading = "## Test script"

const requirements = `## Requirements
- All application files go under app/. The entrypoint is app/start.sh, a shell script that starts the app from inside app/.
- A single HTTP server listens on 0.0.0.0 at the port in the PORT environment variable. Only that one port is exposed.
- The runtime image is {{BASE_IMAGE}}. Anything it does not ship must be installed by start.sh or declared as a dependency.
- Dependencies declared in app/package.json are installed at image build time. Do not rely on app/node_modules being present in the image.
- Do not use packages that need native compilation (no node-gyp, no Python). For SQLite use sql.js, not better-sqlite3.
- Build a simple MVP: flat file structure, minimal dependencies, no heavy frameworks.
- Frontends build to static files that the backend serves.
`

const testSection = testHeading + `
Write test.sh in the current directory (not under app/). It is a POSIX sh script that:
- reads the port from the PORT environment variable and talks to http://localhost:$PORT
- checks each assertion below, printing "ok N" or "FAIL N: <reason>" per assertion
- exits 0 only if every assertion passes
Use only curl, wget, grep, sed and sh so it runs in the runtime image.

### Assertions
`

const validation = `## Validation
Before finishing, validate your work. Make at most {{MAX_ATTEMPTS}} attempts:
1. Start the app in the background: ` + "`(cd app && PORT={{PORT}} sh start.sh) &`" + ` and remember its PID.
2. Wait until http://localhost:{{PORT}} accepts connections, polling for up to 30 seconds.
3. {{CHECK}}
4. Stop the app and every process it started. Nothing may be left listening on port {{PORT}}.
If any step fails, fix the code and start the next attempt from step 1.
The app must not be running when you finish: the lifecycle manager, not you, starts the final instance.

Output style: be terse.
`

const checkWithTest = "Run `PORT={{PORT}} sh test.sh` from this directory and expect exit status 0."
const checkLiveness = "Request http://localhost:{{PORT}}/ and expect an HTTP response."

// expand fills the placeholders of a fixed template. User content (spec text,
// app files) is never expanded, so template syntax in generated code survives.
func (b *builder) expand(template string, withTest bool) string {
	return agent.ExpandVars(template, b.vars(withTest))
}

func (b *builder) vars(withTest bool) map[string]string {
	check := checkLiveness
	if withTest {
		check = checkWithTest
	}
	return map[string]string{
		"CHECK":        agent.ExpandVars(check, map[string]string{"PORT": strconv.Itoa(b.cfg.Port)}),
		"PORT":         strconv.Itoa(b.cfg.Port),
		"MAX_ATTEMPTS": strconv.Itoa(b.cfg.MaxAttempts),
		"BASE_IMAGE":   b.cfg.BaseImage,
	}
}

func writeTagged(sb *strings.Builder, tag, body string) {
	sb.WriteString("<" + tag + ">\n")
	sb.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		sb.WriteByte('\n')
	}
	sb.WriteString("</" + tag + ">\n\n")
}

func writeTests(sb *strings.Builder, list assertion.List) {
	if len(list) == 0 {
		return
	}
	sb.WriteString(testSection)
	sb.WriteString(list.Numbered())
	sb.WriteByte('\n')
}

// fullPrompt asks for a new application built from scratch.
func (b *builder) fullPrompt(list assertion.List) string {
	var sb strings.Builder
	writeTagged(&sb, "spec", b.text)
	sb.WriteString("Build a web app matching this spec. The spec is also saved as spec.md in the current directory.\n\n")
	sb.WriteString(b.expand(requirements, false) + "\n")
	writeTests(&sb, list)
	sb.WriteString(b.expand(validation, len(list) > 0))
	return sb.String()
}

// updatePrompt asks for the minimal change that brings the existing app in
// line with the new spec.
func (b *builder) updatePrompt(diff, appContext, priorTest string, list assertion.List) string {
	var sb strings.Builder
	sb.WriteString("The spec for this app has changed.\n\n")
	writeTagged(&sb, "new-spec", b.text)
	sb.WriteString("Changes since the last build:\n\n```diff\n" + diff)
	if !strings.HasSuffix(diff, "\n") {
		sb.WriteByte('\n')
	}
	sb.WriteString("```\n\n")
	sb.WriteString(appContext + "\n")
	sb.WriteString("Update the app under app/ to match the new spec. Only modify what the change requires.\n\n")
	sb.WriteString(b.expand(requirements, false) + "\n")
	if len(list) > 0 && priorTest != "" {
		sb.WriteString("The previous test is below. Reuse what still applies.\n\n")
		writeTagged(&sb, "previous-test", priorTest)
	}
	writeTests(&sb, list)
	sb.WriteString(b.expand(validation, len(list) > 0))
	return sb.String()
}

// testPrompt asks only for test.sh against the existing application.
func (b *builder) testPrompt(list assertion.List) string {
	var sb strings.Builder
	writeTagged(&sb, "spec", b.text)
	sb.WriteString("The app under app/ already implements this spec. Do not change it unless a check reveals a real bug.\n\n")
	writeTests(&sb, list)
	sb.WriteString(b.expand(validation, true))
	return sb.String()
}
