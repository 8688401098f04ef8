package env

import (
	"os"
	"strings"
)

// LoadSystemEnv returns the OS environment variables starting with prefix,
// keyed by the remainder of their name. An empty prefix selects nothing so the
// whole process environment never leaks into a run by accident.
func LoadSystemEnv(prefix string) map[string]string {
	result := make(map[string]string)
	if prefix == "" {
		return result
	}
	for _, e := range os.Environ() {
		key, value, ok := strings.Cut(e, "=")
		if !ok || !strings.HasPrefix(key, prefix) || len(key) == len(prefix) {
			continue
		}
		result[strings.TrimPrefix(key, prefix)] = value
	}
	return result
}
