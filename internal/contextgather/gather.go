// Package contextgather renders an existing application tree for update
// tasks, so the agent starts from what is already on disk.
package contextgather

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	maxFileSize  = 32 * 1024  // per file
	maxTotalSize = 128 * 1024 // across all files
	maxDepth     = 4
)

// skipDirs are directories excluded from the tree and file contents.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	".venv":        true,
	"__pycache__":  true,
	"dist":         true,
	"build":        true,
}

// keyFiles are always inlined first when present, relative to the app root.
var keyFiles = []string{
	"start.sh",
	"package.json",
	"requirements.txt",
	"go.mod",
	"README.md",
}

// AppContext holds what was gathered from an application directory.
type AppContext struct {
	Tree  string            // indented listing, directories suffixed with "/"
	Files map[string]string // relative path -> contents
	// Omitted lists text files left out once the size budget ran out.
	Omitted []string
}

// Gather walks appDir. Key files are inlined first, then the remaining text
// files in path order until the size budget is spent.
func Gather(appDir string) (*AppContext, error) {
	info, err := os.Stat(appDir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", appDir)
	}

	ac := &AppContext{Files: make(map[string]string)}
	var tree strings.Builder
	var paths []string

	err = filepath.WalkDir(appDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, _ := filepath.Rel(appDir, path)
		if rel == "." {
			return nil
		}
		depth := strings.Count(rel, string(filepath.Separator))
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			if depth >= maxDepth {
				tree.WriteString(strings.Repeat("  ", depth) + d.Name() + "/ ...\n")
				return filepath.SkipDir
			}
			tree.WriteString(strings.Repeat("  ", depth) + d.Name() + "/\n")
			return nil
		}
		tree.WriteString(strings.Repeat("  ", depth) + d.Name() + "\n")
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	ac.Tree = tree.String()

	budget := maxTotalSize
	order := prioritize(paths)
	for _, rel := range order {
		data, err := os.ReadFile(filepath.Join(appDir, filepath.FromSlash(rel)))
		if err != nil || !isText(data) {
			continue
		}
		content := string(data)
		if len(content) > maxFileSize {
			content = content[:maxFileSize] + "\n... (truncated)"
		}
		if len(content) > budget {
			ac.Omitted = append(ac.Omitted, rel)
			continue
		}
		budget -= len(content)
		ac.Files[rel] = content
	}
	return ac, nil
}

// prioritize puts key files first, keeping the rest in path order.
func prioritize(paths []string) []string {
	present := make(map[string]bool, len(paths))
	for _, p := range paths {
		present[p] = true
	}
	var out []string
	for _, k := range keyFiles {
		if present[k] {
			out = append(out, k)
			delete(present, k)
		}
	}
	sort.Strings(paths)
	for _, p := range paths {
		if present[p] {
			out = append(out, p)
		}
	}
	return out
}

// isText sniffs the first 512 bytes for NULs.
func isText(data []byte) bool {
	if len(data) > 512 {
		data = data[:512]
	}
	return bytes.IndexByte(data, 0) < 0
}

// Render formats the context as a prompt section.
func (ac *AppContext) Render() string {
	var buf strings.Builder

	buf.WriteString("## Existing Application\n\n```\n")
	buf.WriteString(ac.Tree)
	buf.WriteString("```\n")

	if len(ac.Files) > 0 {
		buf.WriteString("\n## Current Files\n")
		paths := make([]string, 0, len(ac.Files))
		for p := range ac.Files {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		for _, p := range paths {
			fmt.Fprintf(&buf, "\n### %s\n\n```\n%s\n```\n", p, strings.TrimRight(ac.Files[p], "\n"))
		}
	}

	if len(ac.Omitted) > 0 {
		buf.WriteString("\nNot shown (read them if needed): " + strings.Join(ac.Omitted, ", ") + "\n")
	}
	return buf.String()
}
