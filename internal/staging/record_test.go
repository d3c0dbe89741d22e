package staging

import (
	"errors"
	"testing"
)

func TestLoadRecord_None(t *testing.T) {
	ws := New(t.TempDir(), "todo")
	r, err := ws.LoadRecord()
	if err != nil {
		t.Fatal(err)
	}
	if r != nil {
		t.Fatalf("expected nil record, got %+v", r)
	}
}

func TestRecord_SaveAndLoad(t *testing.T) {
	ws := New(t.TempDir(), "todo")
	ws.EnsureDir()

	r := NewRecord("todo")
	r.Mode = "full"
	r.AddUsage(0.25, 4)
	r.AddUsage(0.10, 1)
	r.Finish(StatusFailed, errors.New("boom"))

	if err := ws.SaveRecord(r); err != nil {
		t.Fatal(err)
	}
	loaded, err := ws.LoadRecord()
	if err != nil {
		t.Fatal(err)
	}
	if loaded.ID != r.ID || loaded.ID == "" {
		t.Fatalf("ID = %q, want %q", loaded.ID, r.ID)
	}
	if loaded.Status != StatusFailed {
		t.Fatalf("Status = %q", loaded.Status)
	}
	if loaded.Error != "boom" {
		t.Fatalf("Error = %q", loaded.Error)
	}
	if loaded.Turns != 5 {
		t.Fatalf("Turns = %d", loaded.Turns)
	}
	if loaded.CostUSD < 0.349 || loaded.CostUSD > 0.351 {
		t.Fatalf("CostUSD = %f", loaded.CostUSD)
	}
	if loaded.Duration == "" {
		t.Fatal("Duration not set")
	}
}

func TestNewRecord_UniqueIDs(t *testing.T) {
	a, b := NewRecord("todo"), NewRecord("todo")
	if a.ID == b.ID {
		t.Fatal("build ids should be unique")
	}
	if a.Status != StatusRunning {
		t.Fatalf("Status = %q", a.Status)
	}
}
