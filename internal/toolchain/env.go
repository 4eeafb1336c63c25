package toolchain

import (
	"sort"
	"strings"

	"expandinator/internal/logging"
)

// defaultEnv keeps cargo output free of escape codes and progress bars so
// that ExitError.Stderr stays readable.
var defaultEnv = []string{
	"CARGO_TERM_COLOR=never",
	"CARGO_TERM_PROGRESS_WHEN=never",
}

// Env returns the variables added to every cargo invocation. Configured vars
// (RUSTFLAGS, CARGO_HOME, ...) override the defaults.
func Env(vars map[string]string) []string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	additional := make([]string, 0, len(keys))
	for _, k := range keys {
		additional = append(additional, k+"="+vars[k])
		logging.ToolchainDebug("configured env: %s", k)
	}
	return MergeEnv(defaultEnv, additional...)
}

// setEnvKey sets or updates an environment variable.
func setEnvKey(env []string, key, value string) []string {
	prefix := key + "="
	for i, e := range env {
		if strings.HasPrefix(e, prefix) {
			env[i] = key + "=" + value
			return env
		}
	}
	return append(env, key+"="+value)
}

// MergeEnv merges additional KEY=VALUE pairs into base without modifying it.
// Later values override earlier ones; malformed pairs are skipped.
func MergeEnv(base []string, additional ...string) []string {
	result := make([]string, len(base))
	copy(result, base)

	for _, add := range additional {
		key, value, ok := strings.Cut(add, "=")
		if !ok || key == "" {
			continue
		}
		result = setEnvKey(result, key, value)
	}
	return result
}
