// Package nargo resolves the external nargo binary.
package nargo

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

const binaryName = "nargo"

// ErrBinaryNotFound indicates nargo could not be located anywhere.
var ErrBinaryNotFound = errors.New("nargo binary not found")

// Resolve locates the nargo executable. Resolution order: explicit
// override, $PATH, the noirup install root (~/.nargo/bin). The override,
// when set, must exist; a stale configured path is an error rather than a
// silent fallback.
func Resolve(override string) (string, error) {
	if override != "" {
		if info, err := os.Stat(override); err == nil && !info.IsDir() {
			return override, nil
		}
		return "", fmt.Errorf("configured nargo path does not exist: %s", override)
	}

	if p, err := exec.LookPath(binaryName); err == nil {
		return p, nil
	}

	if p := installRootBinary(); p != "" {
		return p, nil
	}

	return "", fmt.Errorf("%w: not on PATH and no noirup installation detected", ErrBinaryNotFound)
}

func installRootBinary() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	name := binaryName
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	p := filepath.Join(home, ".nargo", "bin", name)
	info, err := os.Stat(p)
	if err != nil || info.IsDir() {
		return ""
	}
	if runtime.GOOS != "windows" && info.Mode()&0111 == 0 {
		return ""
	}
	return p
}
