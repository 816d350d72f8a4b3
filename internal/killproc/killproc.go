// Package killproc best-effort terminates running processes by their
// executable's image basename, ahead of overwriting files that belong
// to them. It shells out to the platform's native process killer;
// failures are reported, never fatal.
package killproc

import (
	"fmt"
	"os/exec"
	"path"
	"runtime"
	"strings"
)

// ByImageName attempts to terminate every running process whose image
// matches name (e.g. "tool.exe"). It never returns an error for "no
// such process" — only for a failure to even invoke the platform's
// kill command.
func ByImageName(name string) error {
	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.Command("taskkill", "/F", "/IM", name)
	} else {
		cmd = exec.Command("pkill", "-f", name)
	}
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			// A nonzero exit commonly just means "no matching process";
			// that is not a failure worth surfacing.
			_ = exitErr
			return nil
		}
		return fmt.Errorf("killproc: run %s: %w", cmd.Path, err)
	}
	return nil
}

// ImageNames derives the set of distinct .exe basenames from a list of
// relative paths, skipping any basename equal to exclude (compared
// case-insensitively), per the rule that the running binary itself is
// never targeted.
func ImageNames(paths []string, exclude string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, p := range paths {
		base := path.Base(strings.ReplaceAll(p, "\\", "/"))
		if !strings.HasSuffix(strings.ToLower(base), ".exe") {
			continue
		}
		if strings.EqualFold(base, exclude) {
			continue
		}
		if seen[base] {
			continue
		}
		seen[base] = true
		names = append(names, base)
	}
	return names
}
