package staging

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureDir(t *testing.T) {
	ws := New(filepath.Join(t.TempDir(), ".ok"), "todo")
	if err := ws.EnsureDir(); err != nil {
		t.Fatal(err)
	}
	for _, sub := range []string{"prompts", "logs"} {
		info, err := os.Stat(filepath.Join(ws.Dir(), sub))
		if err != nil {
			t.Fatalf("%s not created: %v", sub, err)
		}
		if !info.IsDir() {
			t.Fatalf("%s is not a directory", sub)
		}
	}
}

func TestPaths(t *testing.T) {
	ws := New("/stage", "todo")
	cases := map[string]string{
		ws.Dir():            filepath.Join("/stage", "todo"),
		ws.SpecPath():       filepath.Join("/stage", "todo", "spec.md"),
		ws.EntrypointPath(): filepath.Join("/stage", "todo", "app", "start.sh"),
		ws.TestPath():       filepath.Join("/stage", "todo", "test.sh"),
		ws.AssertionsPath(): filepath.Join("/stage", "todo", "assertions.json"),
		ws.PromptPath(2):    filepath.Join("/stage", "todo", "prompts", "task-2.md"),
		ws.LogPath(1):       filepath.Join("/stage", "todo", "logs", "agent-1.log"),
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	}
}

func TestInventory_HasExistingBuildNeedsBoth(t *testing.T) {
	ws := New(t.TempDir(), "todo")
	if err := ws.EnsureDir(); err != nil {
		t.Fatal(err)
	}
	if ws.Inventory().HasExistingBuild() {
		t.Fatal("empty workspace should not have an existing build")
	}

	if err := ws.WriteSnapshot("# Todo"); err != nil {
		t.Fatal(err)
	}
	if ws.Inventory().HasExistingBuild() {
		t.Fatal("snapshot alone should not count as an existing build")
	}

	os.MkdirAll(ws.AppDir(), 0755)
	os.WriteFile(ws.EntrypointPath(), []byte("node server.js"), 0644)
	inv := ws.Inventory()
	if !inv.HasExistingBuild() {
		t.Fatalf("expected existing build, got %+v", inv)
	}
	if inv.Test || inv.Assertions {
		t.Fatalf("optional artifacts reported present: %+v", inv)
	}
}

func TestSnapshot_Missing(t *testing.T) {
	ws := New(t.TempDir(), "todo")
	text, ok, err := ws.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if ok || text != "" {
		t.Fatalf("got (%q, %v), want empty", text, ok)
	}
}

func TestSnapshot_RoundTrip(t *testing.T) {
	ws := New(t.TempDir(), "todo")
	if err := ws.WriteSnapshot("# Todo\n\nA list.\n"); err != nil {
		t.Fatal(err)
	}
	text, ok, err := ws.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if !ok || text != "# Todo\n\nA list.\n" {
		t.Fatalf("got (%q, %v)", text, ok)
	}
}

func TestRemoveDerived(t *testing.T) {
	ws := New(t.TempDir(), "todo")
	ws.EnsureDir()
	os.WriteFile(ws.TestPath(), []byte("curl"), 0644)
	os.WriteFile(ws.AssertionsPath(), []byte("[]"), 0644)
	ws.WriteSnapshot("spec")

	if err := ws.RemoveDerived(); err != nil {
		t.Fatal(err)
	}
	inv := ws.Inventory()
	if inv.Test || inv.Assertions {
		t.Fatalf("derived artifacts still present: %+v", inv)
	}
	if !inv.Snapshot {
		t.Fatal("snapshot should be kept")
	}

	// Second call is a no-op.
	if err := ws.RemoveDerived(); err != nil {
		t.Fatal(err)
	}
}

func TestName_RoundTrip(t *testing.T) {
	root := t.TempDir()
	if _, err := ReadName(root); !errors.Is(err, ErrNoPriorBuild) {
		t.Fatalf("err = %v, want ErrNoPriorBuild", err)
	}
	if err := WriteName(root, "todo"); err != nil {
		t.Fatal(err)
	}
	name, err := ReadName(root)
	if err != nil {
		t.Fatal(err)
	}
	if name != "todo" {
		t.Fatalf("name = %q", name)
	}
}
