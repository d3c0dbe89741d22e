package spec

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "todo.md")
	if err := os.WriteFile(path, []byte("# Todo\n"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != "# Todo\n" {
		t.Fatalf("got %q", got)
	}
}

func TestLoad_NotFound(t *testing.T) {
	dir := t.TempDir()
	for _, path := range []string{filepath.Join(dir, "missing.md"), dir} {
		_, err := Load(path)
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("Load(%q) = %v, want ErrNotFound", path, err)
		}
	}
}

func TestIdentityName(t *testing.T) {
	cases := map[string]string{
		"todo.md":             "todo",
		"specs/todo.md":       "todo",
		"/abs/path/shop.spec": "shop",
		"notes.v2.md":         "notes.v2",
		"README":              "readme",
		"Todo.md":             "todo",
		"my app.md":           "my-app",
		".md":                 "spec",
	}
	for in, want := range cases {
		if got := IdentityName(in); got != want {
			t.Errorf("IdentityName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIdentityName_OneIdentityPerImage(t *testing.T) {
	pairs := [][2]string{
		{"Todo.md", "todo.md"},
		{"my app.md", "my-app.md"},
		{"specs/Shop!.md", "shop-.md"},
	}
	for _, p := range pairs {
		a, b := IdentityName(p[0]), IdentityName(p[1])
		if a != b {
			t.Errorf("%q and %q map to image %s but have identities %q and %q",
				p[0], p[1], ImageTag("ok", a), a, b)
		}
	}
}
