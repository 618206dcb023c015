//go:build !windows

package process

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/core-tools/hsu-pidguard/pkg/errors"
	"github.com/core-tools/hsu-pidguard/pkg/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nonexistentPID is above the largest pid_max Linux allows
const nonexistentPID = 99999999

func TestIsAlive_Self(t *testing.T) {
	assert.True(t, IsAlive(os.Getpid()))
}

func TestIsAlive_InvalidPID(t *testing.T) {
	assert.False(t, IsAlive(0))
	assert.False(t, IsAlive(-1))
	assert.False(t, IsAlive(nonexistentPID))
}

func TestIsAlive_ReapedChild(t *testing.T) {
	cmd := exec.Command("/bin/sh", "-c", "exit 0")
	require.NoError(t, cmd.Run())

	assert.False(t, IsAlive(cmd.Process.Pid))
}

func TestIsAlive_Zombie(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("zombie detection relies on procfs")
	}

	cmd := exec.Command("/bin/sh", "-c", "exit 0")
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid
	defer cmd.Wait()

	// unreaped child becomes a zombie once it exits
	assert.Eventually(t, func() bool { return !IsAlive(pid) }, 5*time.Second, 20*time.Millisecond)
}

func TestSendSignal_NonexistentProcess(t *testing.T) {
	err := SendTerminationSignal(nonexistentPID)
	assert.True(t, errors.IsNotRunningError(err))

	err = ForceKill(nonexistentPID)
	assert.True(t, errors.IsNotRunningError(err))
}

func TestSendSignal_InvalidPID(t *testing.T) {
	assert.True(t, errors.IsValidationError(SendTerminationSignal(0)))
}

func TestLaunch_DetachedWithLogFile(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "logs", "app.log")

	pid, err := Launch(context.Background(), ExecutionConfig{
		ExecutablePath:   "/bin/sh",
		Args:             []string{"-c", "echo started-$GREETING; echo oops >&2; exec sleep 30"},
		WorkingDirectory: dir,
		Environment:      []string{"GREETING=hello"},
		LogFile:          logFile,
	}, logging.NewNopLogger())
	require.NoError(t, err)
	require.Greater(t, pid, 0)
	defer ForceKill(pid)

	assert.True(t, IsAlive(pid))

	assert.Eventually(t, func() bool {
		data, err := os.ReadFile(logFile)
		return err == nil && strings.Contains(string(data), "started-hello") && strings.Contains(string(data), "oops")
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, SendTerminationSignal(pid))
	assert.Eventually(t, func() bool { return !IsAlive(pid) }, 5*time.Second, 20*time.Millisecond)
}

func TestLaunch_AppendsToExistingLog(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, os.WriteFile(logFile, []byte("previous line\n"), 0644))

	pid, err := Launch(context.Background(), ExecutionConfig{
		ExecutablePath: "/bin/sh",
		Args:           []string{"-c", "echo next line"},
		LogFile:        logFile,
	}, logging.NewNopLogger())
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return !IsAlive(pid) }, 5*time.Second, 20*time.Millisecond)
	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Equal(t, "previous line\nnext line\n", string(data))
}

func TestLaunch_Errors(t *testing.T) {
	testCases := []struct {
		name   string
		config ExecutionConfig
		check  func(error) bool
	}{
		{"missing_executable_path", ExecutionConfig{}, errors.IsValidationError},
		{"missing_working_directory", ExecutionConfig{ExecutablePath: "/bin/sh", WorkingDirectory: "/nonexistent/dir"}, errors.IsValidationError},
		{"executable_not_found", ExecutionConfig{ExecutablePath: "/nonexistent/binary"}, func(err error) bool {
			return errors.IsType(err, errors.ErrorTypeProcess)
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Launch(context.Background(), tc.config, logging.NewNopLogger())
			require.Error(t, err)
			assert.True(t, tc.check(err), "unexpected error: %v", err)
		})
	}
}

func TestLaunch_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Launch(ctx, ExecutionConfig{ExecutablePath: "/bin/sh"}, logging.NewNopLogger())

	assert.True(t, errors.IsType(err, errors.ErrorTypeCancelled))
}

func TestDiskUsagePercent(t *testing.T) {
	percent, err := DiskUsagePercent(t.TempDir())

	require.NoError(t, err)
	assert.GreaterOrEqual(t, percent, 0.0)
	assert.LessOrEqual(t, percent, 100.0)
}

func TestDiskUsagePercent_MissingPath(t *testing.T) {
	_, err := DiskUsagePercent("/nonexistent/path/for/statfs")

	assert.True(t, errors.IsResourceQueryError(err))
}

func TestSystem_Snapshot_Self(t *testing.T) {
	if _, err := exec.LookPath("ps"); err != nil {
		t.Skip("ps not available")
	}

	system := NewSystem(nil)
	snapshot, err := system.Snapshot(context.Background(), os.Getpid())

	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), snapshot.PID)
	assert.NotEmpty(t, snapshot.Executable)
}
