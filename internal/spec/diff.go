package spec

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const (
	contextLines = 3
	noNewline    = `\ No newline at end of file`

	// First rune of the Unicode private use area. Counting up from here
	// never reaches the surrogate range.
	lineRuneBase rune = 0xE000
)

var hunkHeader = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// diffLine is one line of a line-level diff.
type diffLine struct {
	op   diffmatchpatch.Operation
	text string // without the line terminator
	eol  bool   // false only for a final line lacking "\n"
}

type hunk struct {
	start, end int // half-open range into the line list
}

// Diff returns a unified diff that transforms oldText into newText, or "" when
// they are equal. The output is meant for the generation agent to read; Reverse
// reverses it exactly.
func Diff(oldText, newText string) string {
	if oldText == newText {
		return ""
	}
	lines := lineDiff(oldText, newText)

	// Line numbers preceding each index, in the old and new text.
	oldBefore := make([]int, len(lines)+1)
	newBefore := make([]int, len(lines)+1)
	for i, l := range lines {
		oldBefore[i+1] = oldBefore[i]
		newBefore[i+1] = newBefore[i]
		if l.op != diffmatchpatch.DiffInsert {
			oldBefore[i+1]++
		}
		if l.op != diffmatchpatch.DiffDelete {
			newBefore[i+1]++
		}
	}

	var buf strings.Builder
	buf.WriteString("--- a/spec.md\n+++ b/spec.md\n")
	for _, h := range groupHunks(lines, contextLines) {
		oldCount := oldBefore[h.end] - oldBefore[h.start]
		newCount := newBefore[h.end] - newBefore[h.start]
		oldStart, newStart := oldBefore[h.start]+1, newBefore[h.start]+1
		if oldCount == 0 {
			oldStart--
		}
		if newCount == 0 {
			newStart--
		}
		fmt.Fprintf(&buf, "@@ -%d,%d +%d,%d @@\n", oldStart, oldCount, newStart, newCount)
		for _, l := range lines[h.start:h.end] {
			switch l.op {
			case diffmatchpatch.DiffEqual:
				buf.WriteByte(' ')
			case diffmatchpatch.DiffDelete:
				buf.WriteByte('-')
			case diffmatchpatch.DiffInsert:
				buf.WriteByte('+')
			}
			buf.WriteString(l.text)
			buf.WriteByte('\n')
			if !l.eol {
				buf.WriteString(noNewline + "\n")
			}
		}
	}
	return buf.String()
}

// lineDiff runs a line-mode diff: every distinct line is mapped to its own
// private-use rune, the rune slices are diffed, and the result is mapped back
// to lines. go-diff's DiffLinesToRunes encodes line indices as decimal text,
// which the rune diff then splits apart once there are ten or more lines.
func lineDiff(oldText, newText string) []diffLine {
	index := make(map[string]rune)
	var lines []string
	encode := func(text string) []rune {
		split := splitLines(text)
		out := make([]rune, len(split))
		for i, l := range split {
			r, ok := index[l]
			if !ok {
				r = lineRuneBase + rune(len(lines))
				index[l] = r
				lines = append(lines, l)
			}
			out[i] = r
		}
		return out
	}
	a, b := encode(oldText), encode(newText)

	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	var out []diffLine
	for _, d := range dmp.DiffMainRunes(a, b, false) {
		for _, r := range d.Text {
			l := lines[r-lineRuneBase]
			out = append(out, diffLine{
				op:   d.Type,
				text: strings.TrimSuffix(l, "\n"),
				eol:  strings.HasSuffix(l, "\n"),
			})
		}
	}
	return out
}

// groupHunks collects changed lines into hunks with up to context lines of
// surrounding equal lines. Changes separated by at most 2*context equal lines
// share a hunk.
func groupHunks(lines []diffLine, context int) []hunk {
	var out []hunk
	n := len(lines)
	pos := 0
	for {
		c := pos
		for c < n && lines[c].op == diffmatchpatch.DiffEqual {
			c++
		}
		if c == n {
			return out
		}
		start := max(c-context, pos)
		end := c
		for {
			for end < n && lines[end].op != diffmatchpatch.DiffEqual {
				end++
			}
			next := end
			for next < n && lines[next].op == diffmatchpatch.DiffEqual {
				next++
			}
			if next == n || next-end > 2*context {
				end = min(end+context, n)
				break
			}
			end = next
		}
		out = append(out, hunk{start: start, end: end})
		pos = end
	}
}

type patchEntry struct {
	op   byte
	text string // with terminator, unless marked no-newline
}

// Reverse applies a unified diff produced by Diff to oldText and returns the
// reconstructed new text. Context and removed lines must match exactly.
func Reverse(oldText, patch string) (string, error) {
	if patch == "" {
		return oldText, nil
	}
	src := splitLines(oldText)
	body := splitLines(patch)

	var out strings.Builder
	cursor := 0
	i := 0
	for i < len(body) && !strings.HasPrefix(body[i], "@@") {
		i++
	}
	for i < len(body) {
		header := strings.TrimSuffix(body[i], "\n")
		m := hunkHeader.FindStringSubmatch(header)
		if m == nil {
			return "", fmt.Errorf("malformed hunk header %q", header)
		}
		oldStart, _ := strconv.Atoi(m[1])
		oldCount := 1
		if m[2] != "" {
			oldCount, _ = strconv.Atoi(m[2])
		}
		i++

		var entries []patchEntry
		for i < len(body) && !strings.HasPrefix(body[i], "@@") {
			l := body[i]
			i++
			if strings.HasPrefix(l, `\`) {
				if len(entries) > 0 {
					last := &entries[len(entries)-1]
					last.text = strings.TrimSuffix(last.text, "\n")
				}
				continue
			}
			switch l[0] {
			case ' ', '-', '+':
				entries = append(entries, patchEntry{op: l[0], text: l[1:]})
			default:
				return "", fmt.Errorf("unexpected patch line %q", strings.TrimSuffix(l, "\n"))
			}
		}

		target := oldStart - 1
		if oldCount == 0 {
			target = oldStart
		}
		if target < cursor || target > len(src) {
			return "", fmt.Errorf("hunk %q out of range", header)
		}
		for cursor < target {
			out.WriteString(src[cursor])
			cursor++
		}
		for _, e := range entries {
			switch e.op {
			case ' ', '-':
				if cursor >= len(src) || src[cursor] != e.text {
					return "", fmt.Errorf("patch does not apply at line %d", cursor+1)
				}
				if e.op == ' ' {
					out.WriteString(e.text)
				}
				cursor++
			case '+':
				out.WriteString(e.text)
			}
		}
	}
	for cursor < len(src) {
		out.WriteString(src[cursor])
		cursor++
	}
	return out.String(), nil
}

// splitLines splits s after each "\n", keeping terminators.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
