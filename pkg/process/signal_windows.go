//go:build windows

package process

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/core-tools/hsu-pidguard/pkg/errors"
)

const createNewProcessGroup = 0x00000200

func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: createNewProcessGroup}
}

// IsAlive reports whether pid names a running process
func IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	p.Release()
	return true
}

// SendTerminationSignal has no graceful equivalent for detached processes on Windows
func SendTerminationSignal(pid int) error {
	return ForceKill(pid)
}

func ForceKill(pid int) error {
	if pid <= 0 {
		return errors.NewValidationError(fmt.Sprintf("invalid pid: %d", pid), nil)
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return errors.NewNotRunningError("process does not exist", err).WithContext("pid", pid)
	}
	if err := p.Kill(); err != nil {
		return errors.NewProcessError("failed to kill process", err).WithContext("pid", pid)
	}
	return nil
}
