package agent

import (
	"os"
	"regexp"
)

var templateVar = regexp.MustCompile(`\{\{([A-Z_]+)\}\}`)

// ExpandVars substitutes {{NAME}} placeholders in template from vars,
// falling back to environment variables. Unknown names expand to "".
// Shell syntax such as $PORT in the template is left untouched.
func ExpandVars(template string, vars map[string]string) string {
	return templateVar.ReplaceAllStringFunc(template, func(m string) string {
		key := m[2 : len(m)-2]
		if v, ok := vars[key]; ok {
			return v
		}
		return os.Getenv(key)
	})
}
