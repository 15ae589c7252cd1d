//go:build windows

package terminal

import "os"

// defaultShell returns %COMSPEC% (typically cmd.exe) or falls back to PowerShell.
func defaultShell() string {
	if shell := os.Getenv("COMSPEC"); shell != "" {
		return shell
	}
	return "powershell.exe"
}
