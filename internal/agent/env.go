package agent

import (
	"os"
	"strings"
)

// BuildEnv returns the environment for the agent process: the current
// environment minus CLAUDECODE markers, which would make a nested claude
// refuse to start.
func BuildEnv() []string {
	var env []string
	for _, e := range os.Environ() {
		key, _, _ := strings.Cut(e, "=")
		if strings.HasPrefix(key, "CLAUDECODE") {
			continue
		}
		env = append(env, e)
	}
	return env
}
