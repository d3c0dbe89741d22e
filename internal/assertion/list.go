// Package assertion derives and persists the behavioral contract of a
// generated application: an ordered list of single-sentence, independently
// checkable claims. An empty list means no test artifact is generated.
package assertion

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/jorge-barreto/ok/internal/staging"
)

// List is an ordered assertion list. It is replaced wholesale on every spec
// change and never diffed item by item.
type List []string

// Normalize trims every entry and drops blank ones. The result is never nil.
func Normalize(items []string) List {
	out := make(List, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Numbered renders the list as "1. first\n2. second\n...".
func (l List) Numbered() string {
	var b strings.Builder
	for i, a := range l {
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(a)
		b.WriteByte('\n')
	}
	return b.String()
}

// Load reads a persisted list. ok is false when the file does not exist.
func Load(path string) (l List, ok bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, false, fmt.Errorf("parsing %s: %w", path, err)
	}
	return Normalize(items), true, nil
}

// Save persists l as a JSON array. An empty list is written as [].
func Save(path string, l List) error {
	if l == nil {
		l = List{}
	}
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return err
	}
	return staging.WriteFileAtomic(path, append(data, '\n'), 0644)
}
