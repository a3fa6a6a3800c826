//go:build windows

package cmd

import (
	"os"
	"os/exec"
)

// setDaemonAttrs is a no-op on Windows (no Setsid equivalent).
func setDaemonAttrs(_ *exec.Cmd) {}

// shutdownSignals are the signals that end the session and stop serving.
func shutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}
