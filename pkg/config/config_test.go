package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/core-tools/hsu-pidguard/pkg/errors"
	"github.com/core-tools/hsu-pidguard/pkg/processfile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// getTestExecutable returns a platform-specific executable path that exists
func getTestExecutable() (string, string) {
	if runtime.GOOS == "windows" {
		return "C:/Windows/System32/cmd.exe", "C:/Windows/Temp"
	}
	return "/bin/sh", "/tmp"
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pidguard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfigFromFile(t *testing.T) {
	executablePath, workingDir := getTestExecutable()

	tests := []struct {
		name        string
		configYAML  string
		expectError bool
		validate    func(t *testing.T, config *Config)
	}{
		{
			name: "full_configuration",
			configYAML: `
app_name: worker
log_level: debug
process:
  executable_path: "` + executablePath + `"
  args: ["-c", "sleep 100"]
  working_directory: "` + workingDir + `"
  environment: ["MODE=prod"]
paths:
  service_context: session
  use_subdirectory: true
  pid_file: /tmp/worker.pid
  log_file: /tmp/worker.log
supervisor:
  stop_timeout: 45s
  poll_interval: 500ms
  settle_delay: 3s
health:
  log_stale_after: 10m
  error_window_lines: 200
  error_threshold: 5
  error_patterns: [FATAL]
  disk_threshold_percent: 95
  memory_threshold_percent: 70
  disk_path: /var
  escalate_after_warnings: 2
`,
			validate: func(t *testing.T, config *Config) {
				assert.Equal(t, "worker", config.AppName)
				assert.Equal(t, "debug", config.LogLevel)
				assert.Equal(t, executablePath, config.Process.ExecutablePath)
				assert.Equal(t, []string{"-c", "sleep 100"}, config.Process.Args)
				assert.Equal(t, []string{"MODE=prod"}, config.Process.Environment)
				assert.Equal(t, processfile.SessionService, config.Paths.ServiceContext)
				assert.True(t, config.Paths.UseSubdirectory)
				assert.Equal(t, "/tmp/worker.pid", config.PIDFilePath())
				assert.Equal(t, "/tmp/worker.log", config.LogFilePath())
				assert.Equal(t, 45*time.Second, config.Supervisor.StopTimeout)
				assert.Equal(t, 500*time.Millisecond, config.Supervisor.PollInterval)
				assert.Equal(t, 3*time.Second, config.Supervisor.SettleDelay)
				assert.Equal(t, 10*time.Minute, config.Health.LogStaleAfter)
				assert.Equal(t, 200, config.Health.ErrorWindowLines)
				assert.Equal(t, 5, config.Health.ErrorThreshold)
				assert.Equal(t, []string{"FATAL"}, config.Health.ErrorPatterns)
				assert.Equal(t, 95.0, config.Health.DiskThresholdPercent)
				assert.Equal(t, 70.0, config.Health.MemoryThresholdPercent)
				assert.Equal(t, "/var", config.DiskPath())
				assert.Equal(t, 2, config.Health.EscalateAfterWarnings)
			},
		},
		{
			name: "minimal_configuration_gets_defaults",
			configYAML: `
process:
  executable_path: "` + executablePath + `"
`,
			validate: func(t *testing.T, config *Config) {
				assert.Equal(t, processfile.DefaultAppName, config.AppName)
				assert.Equal(t, "info", config.LogLevel)
				assert.Equal(t, processfile.UserService, config.Paths.ServiceContext)
				assert.Equal(t, DefaultStopTimeout, config.Supervisor.StopTimeout)
				assert.Equal(t, DefaultPollInterval, config.Supervisor.PollInterval)
				assert.Equal(t, DefaultSettleDelay, config.Supervisor.SettleDelay)
				assert.Equal(t, DefaultLogStaleAfter, config.Health.LogStaleAfter)
				assert.Equal(t, DefaultErrorWindowLines, config.Health.ErrorWindowLines)
				assert.Equal(t, DefaultErrorThreshold, config.Health.ErrorThreshold)
				assert.Equal(t, DefaultErrorPatterns, config.Health.ErrorPatterns)
				assert.Equal(t, DefaultDiskThresholdPercent, config.Health.DiskThresholdPercent)
				assert.Equal(t, DefaultMemoryThresholdPercent, config.Health.MemoryThresholdPercent)
				assert.Equal(t, 0, config.Health.EscalateAfterWarnings)
				assert.NoError(t, ValidateConfig(config))
			},
		},
		{
			name: "explicit_zero_values_kept",
			configYAML: `
process:
  executable_path: "` + executablePath + `"
supervisor:
  settle_delay: 0s
health:
  error_threshold: 0
`,
			validate: func(t *testing.T, config *Config) {
				assert.Equal(t, time.Duration(0), config.Supervisor.SettleDelay)
				assert.Equal(t, 0, config.Health.ErrorThreshold)
				assert.Equal(t, DefaultStopTimeout, config.Supervisor.StopTimeout)
				assert.Equal(t, DefaultErrorWindowLines, config.Health.ErrorWindowLines)
				assert.NoError(t, ValidateConfig(config))
			},
		},
		{
			name: "partial_sections_keep_other_defaults",
			configYAML: `
process:
  executable_path: "` + executablePath + `"
supervisor:
  stop_timeout: 10s
health:
  disk_path: /data
`,
			validate: func(t *testing.T, config *Config) {
				assert.Equal(t, DefaultSettleDelay, config.Supervisor.SettleDelay)
				assert.Equal(t, DefaultErrorThreshold, config.Health.ErrorThreshold)
				assert.Equal(t, 10*time.Second, config.Supervisor.StopTimeout)
			},
		},
		{
			name:        "invalid_yaml",
			configYAML:  "process: [unclosed",
			expectError: true,
		},
		{
			name:        "invalid_duration",
			configYAML:  "supervisor:\n  stop_timeout: soon\n",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := LoadConfigFromFile(writeConfig(t, tt.configYAML))

			if tt.expectError {
				require.Error(t, err)
				assert.True(t, errors.IsValidationError(err))
				return
			}

			require.NoError(t, err)
			tt.validate(t, config)
		})
	}
}

func TestLoadConfigFromFile_Missing(t *testing.T) {
	_, err := LoadConfigFromFile(filepath.Join(t.TempDir(), "missing.yaml"))

	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeIO))
}

func TestValidateConfig(t *testing.T) {
	executablePath, workingDir := getTestExecutable()

	valid := func() *Config {
		config := DefaultConfig("worker")
		config.Process.ExecutablePath = executablePath
		config.Process.WorkingDirectory = workingDir
		return config
	}

	tests := []struct {
		name   string
		mutate func(config *Config)
		errMsg string
	}{
		{"valid", func(config *Config) {}, ""},
		{"empty_app_name", func(config *Config) { config.AppName = "" }, "invalid app name"},
		{"app_name_with_slash", func(config *Config) { config.AppName = "a/b" }, "invalid app name"},
		{"bad_log_level", func(config *Config) { config.LogLevel = "trace" }, "invalid log level"},
		{"missing_executable", func(config *Config) { config.Process.ExecutablePath = "" }, "invalid process configuration"},
		{"missing_working_directory", func(config *Config) { config.Process.WorkingDirectory = "/nonexistent/wd" }, "invalid process configuration"},
		{"bad_service_context", func(config *Config) { config.Paths.ServiceContext = "global" }, "invalid paths configuration"},
		{"same_pid_and_log", func(config *Config) {
			config.Paths.PIDFile = "/tmp/x"
			config.Paths.LogFile = "/tmp/x"
		}, "invalid paths configuration"},
		{"poll_exceeds_timeout", func(config *Config) { config.Supervisor.PollInterval = time.Minute }, "invalid supervisor configuration"},
		{"negative_settle", func(config *Config) { config.Supervisor.SettleDelay = -time.Second }, "invalid supervisor configuration"},
		{"disk_over_100", func(config *Config) { config.Health.DiskThresholdPercent = 101 }, "invalid health configuration"},
		{"memory_negative", func(config *Config) { config.Health.MemoryThresholdPercent = -1 }, "invalid health configuration"},
		{"blank_pattern", func(config *Config) { config.Health.ErrorPatterns = []string{" "} }, "invalid health configuration"},
		{"negative_escalation", func(config *Config) { config.Health.EscalateAfterWarnings = -1 }, "invalid health configuration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid()
			tt.mutate(config)

			err := ValidateConfig(config)

			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsValidationError(err))
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidateConfig_Nil(t *testing.T) {
	assert.Error(t, ValidateConfig(nil))
}

func TestWriteConfigFile_RoundTrip(t *testing.T) {
	executablePath, _ := getTestExecutable()
	config := DefaultConfig("worker")
	config.Process.ExecutablePath = executablePath
	config.Process.Args = []string{"-c", "sleep 1"}
	config.Supervisor.StopTimeout = 12 * time.Second

	path := filepath.Join(t.TempDir(), "nested", "pidguard.yaml")
	require.NoError(t, WriteConfigFile(path, config))

	loaded, err := LoadConfigFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, config, loaded)
}

func TestWriteConfigFile_RoundTripKeepsZeroValues(t *testing.T) {
	executablePath, _ := getTestExecutable()
	config := DefaultConfig("worker")
	config.Process.ExecutablePath = executablePath
	config.Supervisor.SettleDelay = 0
	config.Health.ErrorThreshold = 0

	path := filepath.Join(t.TempDir(), "pidguard.yaml")
	require.NoError(t, WriteConfigFile(path, config))

	loaded, err := LoadConfigFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), loaded.Supervisor.SettleDelay)
	assert.Equal(t, 0, loaded.Health.ErrorThreshold)
}

func TestDefaultConfigForScenario(t *testing.T) {
	tests := []struct {
		scenario        string
		expectedContext processfile.ServiceContext
		subdirectory    bool
	}{
		{"system", processfile.SystemService, true},
		{"user", processfile.UserService, true},
		{"session", processfile.SessionService, false},
		{"development", processfile.UserService, false},
	}

	for _, tt := range tests {
		t.Run(tt.scenario, func(t *testing.T) {
			config := DefaultConfigForScenario("worker", tt.scenario)

			assert.Equal(t, tt.expectedContext, config.Paths.ServiceContext)
			assert.Equal(t, tt.subdirectory, config.Paths.UseSubdirectory)
			assert.Equal(t, "worker", config.Paths.AppName)
			assert.Equal(t, DefaultStopTimeout, config.Supervisor.StopTimeout)
		})
	}
}

func TestDefaultConfigForScenario_DevelopmentPaths(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	config := DefaultConfigForScenario("worker", "development")

	assert.Equal(t, filepath.Join(cwd, "run", "worker.pid"), config.PIDFilePath())
	assert.Equal(t, filepath.Join(cwd, "run", "logs", "worker.log"), config.LogFilePath())
}

func TestConfig_GeneratedPaths(t *testing.T) {
	base := t.TempDir()
	config := DefaultConfig("worker")
	config.Paths.BaseDirectory = base

	assert.Equal(t, filepath.Join(base, "worker.pid"), config.PIDFilePath())
	assert.Equal(t, filepath.Join(base, "logs", "worker.log"), config.LogFilePath())
	assert.Equal(t, filepath.Join(base, "logs"), config.DiskPath())

	execution := config.ExecutionConfig()
	assert.Equal(t, config.LogFilePath(), execution.LogFile)
	assert.Empty(t, config.Process.LogFile, "ExecutionConfig must not mutate the config")
}

func TestConfig_DiskPathPrefersWorkingDirectory(t *testing.T) {
	config := DefaultConfig("worker")
	config.Process.WorkingDirectory = "/srv/worker"

	assert.Equal(t, "/srv/worker", config.DiskPath())
}
