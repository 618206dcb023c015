package processfile

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"

	"go.uber.org/multierr"

	"github.com/core-tools/hsu-pidguard/pkg/errors"
	"github.com/core-tools/hsu-pidguard/pkg/logging"
)

// ServiceContext determines where runtime and log files live
type ServiceContext string

const (
	SystemService  ServiceContext = "system"
	UserService    ServiceContext = "user"
	SessionService ServiceContext = "session"
)

const DefaultAppName = "hsu-pidguard"

// ProcessFileConfig describes how PID and log file paths are generated
type ProcessFileConfig struct {
	ServiceContext  ServiceContext `yaml:"service_context"`
	AppName         string         `yaml:"app_name,omitempty"`
	BaseDirectory   string         `yaml:"base_directory,omitempty"`
	UseSubdirectory bool           `yaml:"use_subdirectory"`
}

// ProcessFileManager generates and manages PID and log file paths
type ProcessFileManager struct {
	config ProcessFileConfig
	logger logging.Logger
}

func NewProcessFileManager(config ProcessFileConfig, logger logging.Logger) *ProcessFileManager {
	if config.AppName == "" {
		config.AppName = DefaultAppName
	}
	if config.ServiceContext == "" {
		config.ServiceContext = UserService
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ProcessFileManager{
		config: config,
		logger: logger,
	}
}

// GetRecommendedProcessFileConfig returns a config for a named deployment scenario
func GetRecommendedProcessFileConfig(scenario, appName string) ProcessFileConfig {
	if appName == "" {
		appName = DefaultAppName
	}

	switch scenario {
	case "system":
		return ProcessFileConfig{
			ServiceContext:  SystemService,
			AppName:         appName,
			UseSubdirectory: true,
		}
	case "session":
		return ProcessFileConfig{
			ServiceContext:  SessionService,
			AppName:         appName,
			UseSubdirectory: false,
		}
	case "development":
		baseDir, err := os.Getwd()
		if err != nil {
			baseDir = "."
		}
		return ProcessFileConfig{
			ServiceContext:  UserService,
			AppName:         appName,
			BaseDirectory:   filepath.Join(baseDir, "run"),
			UseSubdirectory: false,
		}
	default:
		return ProcessFileConfig{
			ServiceContext:  UserService,
			AppName:         appName,
			UseSubdirectory: true,
		}
	}
}

// GeneratePIDFilePath returns the PID file path for a process
func (m *ProcessFileManager) GeneratePIDFilePath(processID string) string {
	return filepath.Join(m.runtimeDirectory(), processID+".pid")
}

// GenerateLogDirectoryPath returns the directory log files are written to
func (m *ProcessFileManager) GenerateLogDirectoryPath() string {
	if m.config.BaseDirectory != "" {
		return filepath.Join(m.appDirectory(m.config.BaseDirectory), "logs")
	}

	switch m.config.ServiceContext {
	case SystemService:
		if runtime.GOOS == "windows" {
			return filepath.Join(m.appDirectory(programData()), "logs")
		}
		return m.appDirectory("/var/log")
	case SessionService:
		return filepath.Join(m.appDirectory(os.TempDir()), "logs")
	default:
		return filepath.Join(m.appDirectory(userStateDirectory()), "logs")
	}
}

// GenerateLogFilePath returns the log file path for a process
func (m *ProcessFileManager) GenerateLogFilePath(processID string) string {
	return filepath.Join(m.GenerateLogDirectoryPath(), processID+".log")
}

func (m *ProcessFileManager) runtimeDirectory() string {
	if m.config.BaseDirectory != "" {
		return m.appDirectory(m.config.BaseDirectory)
	}

	switch m.config.ServiceContext {
	case SystemService:
		if runtime.GOOS == "windows" {
			return m.appDirectory(programData())
		}
		return m.appDirectory("/var/run")
	case SessionService:
		return m.appDirectory(os.TempDir())
	default:
		return m.appDirectory(userStateDirectory())
	}
}

func (m *ProcessFileManager) appDirectory(base string) string {
	if m.config.UseSubdirectory {
		return filepath.Join(base, m.config.AppName)
	}
	return base
}

func programData() string {
	if dir := os.Getenv("ProgramData"); dir != "" {
		return dir
	}
	return "C:\\ProgramData"
}

func userStateDirectory() string {
	if runtime.GOOS == "windows" {
		if dir, err := os.UserConfigDir(); err == nil {
			return dir
		}
		return os.TempDir()
	}
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return os.TempDir()
	}
	return filepath.Join(home, ".local", "state")
}

// ValidateDirectory ensures the parent directory of path exists and is writable
func ValidateDirectory(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.NewIOError("failed to create directory", err).WithContext("directory", dir)
	}

	check, err := os.CreateTemp(dir, ".write-test-*")
	if err != nil {
		return errors.NewIOError("directory is not writable", err).WithContext("directory", dir)
	}
	name := check.Name()
	check.Close()
	os.Remove(name)

	return nil
}

// WritePIDFile atomically writes pid followed by a newline to path
func WritePIDFile(path string, pid int) error {
	if pid <= 0 {
		return errors.NewValidationError(fmt.Sprintf("invalid pid: %d", pid), nil)
	}
	if err := ValidateDirectory(path); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.NewIOError("failed to create temporary pid file", err).WithContext("path", path)
	}
	tmpName := tmp.Name()

	// discard removes the temporary file, keeping both failures
	discard := func(message string, cause error) error {
		return errors.NewIOError(message, multierr.Append(cause, os.Remove(tmpName))).WithContext("path", path)
	}

	if _, err := tmp.WriteString(strconv.Itoa(pid) + "\n"); err != nil {
		return discard("failed to write pid file", multierr.Append(err, tmp.Close()))
	}
	if err := tmp.Close(); err != nil {
		return discard("failed to close pid file", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return discard("failed to set pid file permissions", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return discard("failed to rename pid file", err)
	}

	return nil
}

// ReadPIDFile reads a pid from path. A missing file yields a not_running error.
func ReadPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		// a parent that is a regular file means the record cannot exist either
		if os.IsNotExist(err) || stderrors.Is(err, syscall.ENOTDIR) {
			return 0, errors.NewNotRunningError("pid file not found", err).WithContext("path", path)
		}
		return 0, errors.NewIOError("failed to read pid file", err).WithContext("path", path)
	}

	content := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(content)
	if err != nil || pid <= 0 {
		return 0, errors.NewValidationError("invalid pid in pid file", err).
			WithContext("path", path).
			WithContext("content", content)
	}

	return pid, nil
}

// RemovePIDFile removes path; a missing file is not an error
func RemovePIDFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.NewIOError("failed to remove pid file", err).WithContext("path", path)
	}
	return nil
}
