// Package fenced extracts fenced code blocks from agent free-text output.
package fenced

import (
	"regexp"
	"strings"
)

// Block is one fenced code block.
type Block struct {
	Lang    string // info-string language, e.g. "json"; may be empty
	Path    string // value of a file= annotation; may be empty
	Content string // text between the fences
}

var fenceOpenRe = regexp.MustCompile("^```(\\w*)\\s*(?:file=(\\S+))?\\s*$")

// Parse returns every closed fenced block in text, in order of appearance.
// It recognizes opening fences like:
//
//	```json
//	```markdown file=todo.md
//	```file=ok.yaml
//
// Unclosed blocks are dropped.
func Parse(text string) []Block {
	lines := strings.Split(text, "\n")
	var blocks []Block
	var current *Block
	var buf strings.Builder

	for _, line := range lines {
		if current != nil {
			if strings.TrimSpace(line) == "```" {
				current.Content = buf.String()
				blocks = append(blocks, *current)
				current = nil
				buf.Reset()
				continue
			}
			if buf.Len() > 0 {
				buf.WriteByte('\n')
			}
			buf.WriteString(line)
			continue
		}

		m := fenceOpenRe.FindStringSubmatch(strings.TrimSpace(line))
		if m != nil {
			current = &Block{Lang: m[1], Path: m[2]}
			buf.Reset()
		}
	}

	return blocks
}

// WithLang filters blocks to those tagged with lang.
func WithLang(blocks []Block, lang string) []Block {
	var out []Block
	for _, b := range blocks {
		if strings.EqualFold(b.Lang, lang) {
			out = append(out, b)
		}
	}
	return out
}

// WithPath filters blocks to those carrying a file= annotation.
func WithPath(blocks []Block) []Block {
	var out []Block
	for _, b := range blocks {
		if b.Path != "" {
			out = append(out, b)
		}
	}
	return out
}
