//go:build !windows

package bridge

import (
	"os"

	"golang.org/x/sys/unix"
)

// terminateProcess sends SIGTERM.
func terminateProcess(p *os.Process) error {
	return p.Signal(unix.SIGTERM)
}
