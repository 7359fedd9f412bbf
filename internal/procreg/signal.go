package procreg

import (
	"os"
	"os/exec"
)

var osInterrupt = os.Interrupt

// terminateGracefully asks a process to exit via its interrupt signal.
// On Windows Process.Signal supports only Kill, so this call fails there
// and the process is stopped by DrainAll's force-kill after the grace
// period.
func terminateGracefully(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Signal(osInterrupt)
}
