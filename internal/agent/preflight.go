package agent

import (
	"fmt"
	"os/exec"
	"strings"
)

// Preflight checks that every named binary is on PATH.
func Preflight(bins ...string) error {
	seen := make(map[string]bool)
	var missing []string
	for _, bin := range bins {
		if bin == "" || seen[bin] {
			continue
		}
		seen[bin] = true
		if _, err := exec.LookPath(bin); err != nil {
			missing = append(missing, bin)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("required binaries not found in PATH: %s", strings.Join(missing, ", "))
	}
	return nil
}
