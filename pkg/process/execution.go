package process

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/core-tools/hsu-pidguard/pkg/errors"
	"github.com/core-tools/hsu-pidguard/pkg/logging"
)

// ExecutionConfig describes how to launch the managed process
type ExecutionConfig struct {
	ExecutablePath   string   `yaml:"executable_path"`
	Args             []string `yaml:"args,omitempty"`
	WorkingDirectory string   `yaml:"working_directory,omitempty"`
	Environment      []string `yaml:"environment,omitempty"`

	// LogFile receives both stdout and stderr, opened in append mode
	LogFile string `yaml:"-"`
}

func ValidateExecutionConfig(config ExecutionConfig) error {
	if config.ExecutablePath == "" {
		return errors.NewValidationError("executable path is required", nil)
	}
	if config.WorkingDirectory != "" {
		info, err := os.Stat(config.WorkingDirectory)
		if err != nil {
			return errors.NewValidationError("working directory is not accessible", err).
				WithContext("working_directory", config.WorkingDirectory)
		}
		if !info.IsDir() {
			return errors.NewValidationError("working directory is not a directory", nil).
				WithContext("working_directory", config.WorkingDirectory)
		}
	}
	return nil
}

// Launch starts the process detached from the caller's session with its
// standard output streams appended to config.LogFile, and returns its pid.
// The child is reaped in the background so it never lingers as a zombie of the caller.
func Launch(ctx context.Context, config ExecutionConfig, logger logging.Logger) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, errors.NewCancelledError("launch cancelled", err)
	}
	if err := ValidateExecutionConfig(config); err != nil {
		return 0, err
	}

	executable, err := exec.LookPath(config.ExecutablePath)
	if err != nil {
		return 0, errors.NewProcessError("executable not found", err).
			WithContext("executable", config.ExecutablePath)
	}

	cmd := exec.Command(executable, config.Args...)
	cmd.Dir = config.WorkingDirectory
	cmd.Env = append(os.Environ(), config.Environment...)
	setSysProcAttr(cmd)

	var logFile *os.File
	if config.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(config.LogFile), 0755); err != nil {
			return 0, errors.NewIOError("failed to create log directory", err).
				WithContext("log_file", config.LogFile)
		}
		logFile, err = os.OpenFile(config.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return 0, errors.NewIOError("failed to open log file", err).
				WithContext("log_file", config.LogFile)
		}
		defer logFile.Close()
		cmd.Stdout = logFile
		cmd.Stderr = logFile
	}

	if err := cmd.Start(); err != nil {
		return 0, errors.NewProcessError("failed to start process", err).
			WithContext("executable", executable)
	}

	pid := cmd.Process.Pid
	logger.Infof("Process launched, executable: %s, args: %v, pid: %d", executable, config.Args, pid)

	go func() {
		state, err := cmd.Process.Wait()
		if err != nil {
			logger.Debugf("Process PID %d wait failed: %v", pid, err)
			return
		}
		logger.Debugf("Process PID %d exited with status: %v", pid, state)
	}()

	return pid, nil
}
