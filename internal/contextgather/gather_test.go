package contextgather

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestGather_Tree(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "start.sh"), "node server.js\n")
	writeFile(t, filepath.Join(dir, "src", "server.js"), "console.log('hi')\n")

	ac, err := Gather(dir)
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	if !strings.Contains(ac.Tree, "src/\n") {
		t.Fatalf("expected src/ in tree, got:\n%s", ac.Tree)
	}
	if !strings.Contains(ac.Tree, "  server.js\n") {
		t.Fatalf("expected nested server.js in tree, got:\n%s", ac.Tree)
	}
	if ac.Files["src/server.js"] != "console.log('hi')\n" {
		t.Fatalf("expected server.js contents, got %q", ac.Files["src/server.js"])
	}
}

func TestGather_SkipsDirs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "node_modules", "x", "index.js"), "x")
	writeFile(t, filepath.Join(dir, ".git", "HEAD"), "ref")
	writeFile(t, filepath.Join(dir, "start.sh"), "x")

	ac, err := Gather(dir)
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	if strings.Contains(ac.Tree, "node_modules") || strings.Contains(ac.Tree, ".git") {
		t.Fatalf("skipped dirs listed:\n%s", ac.Tree)
	}
	for p := range ac.Files {
		if strings.HasPrefix(p, "node_modules") {
			t.Fatalf("skipped file inlined: %s", p)
		}
	}
}

func TestGather_SkipsBinary(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "logo.png"), "\x89PNG\x00\x00")

	ac, err := Gather(dir)
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	if _, ok := ac.Files["logo.png"]; ok {
		t.Fatal("binary file should not be inlined")
	}
	if !strings.Contains(ac.Tree, "logo.png") {
		t.Fatal("binary file should still be listed")
	}
}

func TestGather_TruncatesLargeFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "big.js"), strings.Repeat("a", maxFileSize+100))

	ac, err := Gather(dir)
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	if !strings.HasSuffix(ac.Files["big.js"], "... (truncated)") {
		t.Fatal("expected truncation marker")
	}
}

func TestGather_BudgetOmitsAfterKeyFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "start.sh"), "node a.js\n")
	chunk := strings.Repeat("b", maxFileSize-100)
	for _, n := range []string{"a.js", "b.js", "c.js", "d.js", "e.js"} {
		writeFile(t, filepath.Join(dir, n), chunk)
	}

	ac, err := Gather(dir)
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	if _, ok := ac.Files["start.sh"]; !ok {
		t.Fatal("key file should always be inlined")
	}
	if len(ac.Omitted) == 0 {
		t.Fatal("expected files omitted once the budget is spent")
	}
	if !strings.Contains(ac.Render(), "Not shown") {
		t.Fatal("render should mention omitted files")
	}
}

func TestGather_NotADirectory(t *testing.T) {
	if _, err := Gather(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing dir")
	}
}

func TestRender(t *testing.T) {
	ac := &AppContext{
		Tree:  "start.sh\n",
		Files: map[string]string{"start.sh": "node server.js\n"},
	}
	out := ac.Render()
	for _, want := range []string{"## Existing Application", "### start.sh", "node server.js\n```"} {
		if !strings.Contains(out, want) {
			t.Fatalf("render missing %q:\n%s", want, out)
		}
	}
}
