package terminal

import (
	"runtime"
	"strings"
)

const (
	termValue   = "xterm-256color"
	localeValue = "en_US.UTF-8"
)

// localeKeys are the variables that decide the character encoding. If any is
// present the caller has chosen a locale and we leave it alone.
var localeKeys = []string{"LC_ALL", "LC_CTYPE", "LANG"}

// buildEnv overlays TERM and a UTF-8 locale onto base, only where unset.
func buildEnv(base []string) []string {
	env := make([]string, 0, len(base)+3)
	env = append(env, base...)

	present := make(map[string]bool, len(base))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		present[normalizeKey(key)] = true
	}

	if !present[normalizeKey("TERM")] {
		env = append(env, "TERM="+termValue)
	}

	for _, key := range localeKeys {
		if present[normalizeKey(key)] {
			return env
		}
	}
	return append(env, "LANG="+localeValue, "LC_CTYPE="+localeValue)
}

// normalizeKey folds case on Windows, where variable names are case-insensitive.
func normalizeKey(key string) string {
	if runtime.GOOS == "windows" {
		return strings.ToUpper(key)
	}
	return key
}
