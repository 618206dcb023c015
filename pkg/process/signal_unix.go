//go:build !windows

package process

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/core-tools/hsu-pidguard/pkg/errors"
)

// setSysProcAttr puts the child in a new session so it survives the caller's terminal
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

// IsAlive reports whether pid names a running process.
// EPERM means the process exists under another user and counts as alive.
// Zombies count as dead.
func IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	if err != nil && err != unix.EPERM {
		return false
	}
	return !isZombie(pid)
}

// isZombie reads the state field of /proc/<pid>/stat where procfs is available
func isZombie(pid int) bool {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return false
	}
	// the command name is parenthesized and may contain spaces
	end := bytes.LastIndexByte(data, ')')
	if end < 0 || end+2 >= len(data) {
		return false
	}
	return data[end+2] == 'Z'
}

// SendTerminationSignal asks the process to exit with SIGTERM
func SendTerminationSignal(pid int) error {
	return sendSignal(pid, unix.SIGTERM)
}

// ForceKill terminates the process with SIGKILL
func ForceKill(pid int) error {
	return sendSignal(pid, unix.SIGKILL)
}

func sendSignal(pid int, sig unix.Signal) error {
	if pid <= 0 {
		return errors.NewValidationError(fmt.Sprintf("invalid pid: %d", pid), nil)
	}

	err := unix.Kill(pid, sig)
	switch err {
	case nil:
		return nil
	case unix.EPERM:
		return errors.NewPermissionError("not permitted to signal process", err).
			WithContext("pid", pid).
			WithContext("signal", unix.SignalName(sig))
	case unix.ESRCH:
		return errors.NewNotRunningError("process does not exist", err).
			WithContext("pid", pid)
	default:
		return errors.NewProcessError("failed to signal process", err).
			WithContext("pid", pid).
			WithContext("signal", unix.SignalName(sig))
	}
}
