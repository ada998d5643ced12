//go:build windows

package bridge

import (
	"os"
)

// terminateProcess has no graceful variant on Windows; the process is killed.
func terminateProcess(p *os.Process) error {
	return p.Kill()
}
