//go:build !windows

package terminal

import "os"

// fallbackShells are tried in order when $SHELL is unset.
var fallbackShells = []string{"/bin/bash", "/bin/sh"}

// defaultShell returns the user's shell, or the first fallback that exists.
func defaultShell() string {
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	for _, sh := range fallbackShells {
		if _, err := os.Stat(sh); err == nil {
			return sh
		}
	}
	return "/bin/sh"
}
