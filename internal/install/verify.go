package install

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const verifyTimeout = 5 * time.Second

// Verify runs "<binary> version" and returns the trimmed output. Callers
// treat a failure here as advisory: the binary is already on disk and a
// broken probe does not undo the install.
func (i *Installer) Verify(ctx context.Context, binaryPath string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()

	out, err := i.runVersion(ctx, binaryPath)
	text := strings.TrimSpace(string(out))
	if err != nil {
		return text, fmt.Errorf("run %s version: %w", binaryPath, err)
	}
	return text, nil
}

// UseVersionCommand allows tests to inject a fake version probe.
// Intended for test setup only, before the installer is shared.
func (i *Installer) UseVersionCommand(fn func(ctx context.Context, bin string) ([]byte, error)) {
	if fn != nil {
		i.runVersion = fn
	}
}

func runVersionCommand(ctx context.Context, bin string) ([]byte, error) {
	return exec.CommandContext(ctx, bin, "version").CombinedOutput()
}
