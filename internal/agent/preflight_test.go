package agent

import (
	"strings"
	"testing"
)

func TestPreflight_Found(t *testing.T) {
	if err := Preflight("sh", "sh", ""); err != nil {
		t.Fatalf("expected sh to be found, got: %v", err)
	}
}

func TestPreflight_Missing(t *testing.T) {
	err := Preflight("sh", "ok-definitely-not-installed")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "ok-definitely-not-installed") || strings.Contains(err.Error(), "sh,") {
		t.Fatalf("unexpected error: %v", err)
	}
}
