package ux

import (
	"fmt"
	"os"
	"time"
)

// ANSI color helpers
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Dim    = "\033[2m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Cyan   = "\033[36m"
)

func timestamp() string {
	return time.Now().Format("15:04:05")
}

// BuildHeader prints a timestamped header naming the spec and chosen mode.
func BuildHeader(name, mode string) {
	fmt.Printf("\n%s[%s]%s %s══════════════════════════════════════%s\n",
		Dim, timestamp(), Reset, Cyan, Reset)
	fmt.Printf("%s[%s]%s  %sBuild %s (%s)%s\n",
		Dim, timestamp(), Reset, Bold, name, mode, Reset)
	fmt.Printf("%s[%s]%s %s══════════════════════════════════════%s\n",
		Dim, timestamp(), Reset, Cyan, Reset)
}

// Step prints a timestamped progress line.
func Step(format string, args ...any) {
	fmt.Printf("%s[%s]%s  %s\n", Dim, timestamp(), Reset, fmt.Sprintf(format, args...))
}

// StepDone prints a completed step with its duration.
func StepDone(what string, d time.Duration) {
	fmt.Printf("%s[%s]%s  %s✓ %s (%s)%s\n",
		Dim, timestamp(), Reset, Green, what, formatDuration(d), Reset)
}

// StepFail prints a failed step.
func StepFail(what, errMsg string) {
	fmt.Printf("%s[%s]%s  %s✗ %s failed: %s%s\n",
		Dim, timestamp(), Reset, Red, what, errMsg, Reset)
}

// Skip prints the up-to-date notice for an unchanged spec.
func Skip(name string) {
	fmt.Printf("%s[%s]%s  %s– %s is up to date, nothing to build%s\n",
		Dim, timestamp(), Reset, Dim, name, Reset)
}

// Warn prints a non-fatal warning to stderr.
func Warn(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s[%s]%s  %s⚠ %s%s\n",
		Dim, timestamp(), Reset, Yellow, fmt.Sprintf(format, args...), Reset)
}

// RetryHint prints the command that retries a failed build.
func RetryHint(specPath string) {
	fmt.Printf("\n%sRetry:%s ok build %s\n", Yellow, Reset, specPath)
}

// ToolUse prints an inline tool call.
func ToolUse(name, input string) {
	summary := input
	if len(summary) > 80 {
		summary = summary[:77] + "..."
	}
	fmt.Printf("  %s⚡ %s%s %s\n", Cyan, name, Reset, summary)
}

// AgentSummary prints the closing line of an agent task.
func AgentSummary(d time.Duration, turns int, costUSD float64) {
	fmt.Printf("  %sCompleted in %.1fs | %d turns | $%.4f%s\n",
		Dim, d.Seconds(), turns, costUSD, Reset)
}

// Built prints the final success message for an image build.
func Built(tag string, d time.Duration) {
	fmt.Printf("\n%s[%s]%s  %s%s══ Built %s in %s ══%s\n\n",
		Dim, timestamp(), Reset, Bold, Green, tag, formatDuration(d), Reset)
}

// Running prints where a started instance is reachable.
func Running(name string, port int, reused bool) {
	if reused {
		fmt.Printf("%s%s is already running on http://localhost:%d%s\n", Green, name, port, Reset)
		return
	}
	fmt.Printf("%sStarting %s on http://localhost:%d%s\n", Green, name, port, Reset)
}

func formatDuration(d time.Duration) string {
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %02ds", m, s)
}
