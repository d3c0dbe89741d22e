package spec

import (
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestDiff_Equal(t *testing.T) {
	if d := Diff("same\n", "same\n"); d != "" {
		t.Fatalf("expected empty diff, got %q", d)
	}
}

func TestDiff_SingleLineChange(t *testing.T) {
	got := Diff("a\nb\nc\n", "a\nB\nc\n")
	want := "--- a/spec.md\n+++ b/spec.md\n@@ -1,3 +1,3 @@\n a\n-b\n+B\n c\n"
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestDiff_DistantChangesSplitHunks(t *testing.T) {
	var oldLines, newLines []string
	for i := 0; i < 20; i++ {
		line := string(rune('a' + i))
		oldLines = append(oldLines, line)
		if i == 1 || i == 18 {
			line = strings.ToUpper(line)
		}
		newLines = append(newLines, line)
	}
	d := Diff(strings.Join(oldLines, "\n")+"\n", strings.Join(newLines, "\n")+"\n")
	if n := strings.Count(d, "\n@@ "); n != 2 {
		t.Fatalf("expected 2 hunks, got %d:\n%s", n, d)
	}
}

func TestDiff_NoNewlineMarker(t *testing.T) {
	d := Diff("a\nb", "a\nb\n")
	if !strings.Contains(d, noNewline) {
		t.Fatalf("missing no-newline marker:\n%s", d)
	}
	got, err := Reverse("a\nb", d)
	if err != nil {
		t.Fatal(err)
	}
	if got != "a\nb\n" {
		t.Fatalf("got %q", got)
	}
}

func TestDiff_ManyDistinctLines(t *testing.T) {
	var oldLines, newLines []string
	for i := 1; i <= 30; i++ {
		line := fmt.Sprintf("- requirement number %d", i)
		oldLines = append(oldLines, line)
		switch i {
		case 12:
			newLines = append(newLines, line+" (revised)")
		case 21:
		default:
			newLines = append(newLines, line)
		}
	}
	oldText := strings.Join(oldLines, "\n") + "\n"
	newText := strings.Join(newLines, "\n") + "\n"

	want := "--- a/spec.md\n+++ b/spec.md\n" +
		"@@ -9,7 +9,7 @@\n" +
		" - requirement number 9\n" +
		" - requirement number 10\n" +
		" - requirement number 11\n" +
		"-- requirement number 12\n" +
		"+- requirement number 12 (revised)\n" +
		" - requirement number 13\n" +
		" - requirement number 14\n" +
		" - requirement number 15\n" +
		"@@ -18,7 +18,6 @@\n" +
		" - requirement number 18\n" +
		" - requirement number 19\n" +
		" - requirement number 20\n" +
		"-- requirement number 21\n" +
		" - requirement number 22\n" +
		" - requirement number 23\n" +
		" - requirement number 24\n"
	got := Diff(oldText, newText)
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
	back, err := Reverse(oldText, got)
	if err != nil {
		t.Fatal(err)
	}
	if back != newText {
		t.Fatalf("round trip mismatch:\n%s", back)
	}
}

func TestReverse_Cases(t *testing.T) {
	cases := []struct{ old, new string }{
		{"", "# Todo\n"},
		{"# Todo\n", ""},
		{"a\nb\nc\n", "a\nc\n"},
		{"a\nc\n", "a\nb\nc\n"},
		{"one\ntwo", "one\ntwo\nthree"},
		{"x\n\n\ny\n", "x\n\ny\n\n"},
	}
	for _, c := range cases {
		got, err := Reverse(c.old, Diff(c.old, c.new))
		if err != nil {
			t.Fatalf("Reverse(%q): %v", c.old, err)
		}
		if got != c.new {
			t.Fatalf("round trip %q -> %q gave %q", c.old, c.new, got)
		}
	}
}

func TestReverse_ContextMismatch(t *testing.T) {
	d := Diff("a\nb\nc\n", "a\nB\nc\n")
	if _, err := Reverse("x\ny\nz\n", d); err == nil {
		t.Fatal("expected error applying to unrelated text")
	}
}

func TestReverse_MalformedHeader(t *testing.T) {
	if _, err := Reverse("a\n", "--- a/spec.md\n+++ b/spec.md\n@@ nonsense\n"); err == nil {
		t.Fatal("expected error for malformed header")
	}
}

// More than ten distinct lines, so line identities need multi-digit indices.
var vocabulary = func() []string {
	v := []string{"", "GET /todos", "POST /todos", "## Storage", "Items persist."}
	for i := 0; i < 40; i++ {
		v = append(v, fmt.Sprintf("- item %d", i))
	}
	return v
}()

func textFrom(idx []int, trailingNewline bool) string {
	lines := make([]string, len(idx))
	for i, n := range idx {
		lines[i] = vocabulary[n]
	}
	s := strings.Join(lines, "\n")
	if trailingNewline && s != "" {
		s += "\n"
	}
	return s
}

func TestDiffRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("Reverse(old, Diff(old, new)) == new", prop.ForAll(
		func(a, b []int, ta, tb bool) bool {
			oldText, newText := textFrom(a, ta), textFrom(b, tb)
			got, err := Reverse(oldText, Diff(oldText, newText))
			return err == nil && got == newText
		},
		gen.SliceOf(gen.IntRange(0, len(vocabulary)-1)),
		gen.SliceOf(gen.IntRange(0, len(vocabulary)-1)),
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
