package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/core-tools/hsu-pidguard/pkg/errors"
	"github.com/core-tools/hsu-pidguard/pkg/process"
	"github.com/core-tools/hsu-pidguard/pkg/processfile"
)

// Config represents the top-level configuration file structure
type Config struct {
	AppName    string                  `yaml:"app_name"`
	LogLevel   string                  `yaml:"log_level,omitempty"`
	Process    process.ExecutionConfig `yaml:"process"`
	Paths      PathsConfig             `yaml:"paths"`
	Supervisor SupervisorConfig        `yaml:"supervisor"`
	Health     HealthConfig            `yaml:"health"`
}

// PathsConfig locates the PID record and the log artifact
type PathsConfig struct {
	processfile.ProcessFileConfig `yaml:",inline"`

	// Explicit overrides of the generated paths
	PIDFile string `yaml:"pid_file,omitempty"`
	LogFile string `yaml:"log_file,omitempty"`
}

// SupervisorConfig bounds the stop poll loop and the restart settle delay
type SupervisorConfig struct {
	StopTimeout  time.Duration `yaml:"stop_timeout,omitempty"`
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`
	SettleDelay  time.Duration `yaml:"settle_delay"`
}

// HealthConfig holds the health check thresholds
type HealthConfig struct {
	LogStaleAfter          time.Duration `yaml:"log_stale_after,omitempty"`
	ErrorWindowLines       int           `yaml:"error_window_lines,omitempty"`
	ErrorThreshold         int           `yaml:"error_threshold"`
	ErrorPatterns          []string      `yaml:"error_patterns,omitempty"`
	DiskThresholdPercent   float64       `yaml:"disk_threshold_percent,omitempty"`
	MemoryThresholdPercent float64       `yaml:"memory_threshold_percent,omitempty"`
	DiskPath               string        `yaml:"disk_path,omitempty"`

	// 0 disables escalation: warnings never change the exit code
	EscalateAfterWarnings int `yaml:"escalate_after_warnings,omitempty"`
}

const (
	DefaultStopTimeout            = 30 * time.Second
	DefaultPollInterval           = 1 * time.Second
	DefaultSettleDelay            = 2 * time.Second
	DefaultLogStaleAfter          = 300 * time.Second
	DefaultErrorWindowLines       = 100
	DefaultErrorThreshold         = 10
	DefaultDiskThresholdPercent   = 90.0
	DefaultMemoryThresholdPercent = 80.0
)

var DefaultErrorPatterns = []string{"ERROR", "CRITICAL"}

// DefaultConfig returns a configuration with every default applied
func DefaultConfig(appName string) *Config {
	config := newConfigWithSectionDefaults()
	config.AppName = appName
	setConfigDefaults(config)
	return config
}

// DefaultConfigForScenario is DefaultConfig with paths seeded from a
// deployment scenario (system, user, session, development)
func DefaultConfigForScenario(appName, scenario string) *Config {
	config := DefaultConfig(appName)
	config.Paths.ProcessFileConfig = processfile.GetRecommendedProcessFileConfig(scenario, config.AppName)
	return config
}

// newConfigWithSectionDefaults pre-fills the settings where zero is a
// meaningful value, so decoding only overrides keys present in the file
func newConfigWithSectionDefaults() *Config {
	return &Config{
		Supervisor: SupervisorConfig{
			SettleDelay: DefaultSettleDelay,
		},
		Health: HealthConfig{
			ErrorThreshold: DefaultErrorThreshold,
		},
	}
}

// LoadConfigFromFile loads configuration from a YAML file and applies defaults
func LoadConfigFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.NewIOError("failed to read configuration file", err).WithContext("filename", filename)
	}

	config := newConfigWithSectionDefaults()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.NewValidationError("failed to parse YAML configuration", err).WithContext("filename", filename)
	}

	setConfigDefaults(config)

	return config, nil
}

// WriteConfigFile writes config as YAML, creating parent directories
func WriteConfigFile(filename string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return errors.NewInternalError("failed to marshal configuration", err)
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return errors.NewIOError("failed to create configuration directory", err).WithContext("filename", filename)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return errors.NewIOError("failed to write configuration file", err).WithContext("filename", filename)
	}
	return nil
}

// ValidateConfig validates the entire configuration structure
func ValidateConfig(config *Config) error {
	if config == nil {
		return errors.NewValidationError("configuration cannot be nil", nil)
	}

	if err := validateAppName(config.AppName); err != nil {
		return errors.NewValidationError("invalid app name", err)
	}

	if err := validateLogLevel(config.LogLevel); err != nil {
		return err
	}

	if err := process.ValidateExecutionConfig(config.Process); err != nil {
		return errors.NewValidationError("invalid process configuration", err)
	}

	if err := validatePathsConfig(&config.Paths); err != nil {
		return errors.NewValidationError("invalid paths configuration", err)
	}

	if err := validateSupervisorConfig(&config.Supervisor); err != nil {
		return errors.NewValidationError("invalid supervisor configuration", err)
	}

	if err := validateHealthConfig(&config.Health); err != nil {
		return errors.NewValidationError("invalid health configuration", err)
	}

	return nil
}

// ProcessFileManager returns the path manager described by the paths section
func (c *Config) ProcessFileManager() *processfile.ProcessFileManager {
	pathConfig := c.Paths.ProcessFileConfig
	if pathConfig.AppName == "" {
		pathConfig.AppName = c.AppName
	}
	return processfile.NewProcessFileManager(pathConfig, nil)
}

// PIDFilePath returns the explicit pid file or the generated one
func (c *Config) PIDFilePath() string {
	if c.Paths.PIDFile != "" {
		return c.Paths.PIDFile
	}
	return c.ProcessFileManager().GeneratePIDFilePath(c.AppName)
}

// LogFilePath returns the explicit log file or the generated one
func (c *Config) LogFilePath() string {
	if c.Paths.LogFile != "" {
		return c.Paths.LogFile
	}
	return c.ProcessFileManager().GenerateLogFilePath(c.AppName)
}

// ExecutionConfig returns the launch configuration with the log file filled in
func (c *Config) ExecutionConfig() process.ExecutionConfig {
	execution := c.Process
	execution.LogFile = c.LogFilePath()
	return execution
}

// DiskPath returns the directory whose mount is checked for disk usage
func (c *Config) DiskPath() string {
	switch {
	case c.Health.DiskPath != "":
		return c.Health.DiskPath
	case c.Process.WorkingDirectory != "":
		return c.Process.WorkingDirectory
	default:
		return filepath.Dir(c.LogFilePath())
	}
}

// setConfigDefaults applies default values to configuration
func setConfigDefaults(config *Config) {
	if config.AppName == "" {
		config.AppName = processfile.DefaultAppName
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.Paths.ServiceContext == "" {
		config.Paths.ServiceContext = processfile.UserService
	}

	if config.Supervisor.StopTimeout == 0 {
		config.Supervisor.StopTimeout = DefaultStopTimeout
	}
	if config.Supervisor.PollInterval == 0 {
		config.Supervisor.PollInterval = DefaultPollInterval
	}

	if config.Health.LogStaleAfter == 0 {
		config.Health.LogStaleAfter = DefaultLogStaleAfter
	}
	if config.Health.ErrorWindowLines == 0 {
		config.Health.ErrorWindowLines = DefaultErrorWindowLines
	}
	if len(config.Health.ErrorPatterns) == 0 {
		config.Health.ErrorPatterns = append([]string(nil), DefaultErrorPatterns...)
	}
	if config.Health.DiskThresholdPercent == 0 {
		config.Health.DiskThresholdPercent = DefaultDiskThresholdPercent
	}
	if config.Health.MemoryThresholdPercent == 0 {
		config.Health.MemoryThresholdPercent = DefaultMemoryThresholdPercent
	}
}

// Validation functions

func validateAppName(appName string) error {
	if appName == "" {
		return errors.NewValidationError("app name cannot be empty", nil)
	}
	if strings.ContainsAny(appName, `/\:*?"<>| `) {
		return errors.NewValidationError(fmt.Sprintf("app name contains invalid characters: %s", appName), nil).
			WithContext("invalid_characters", `/\:*?"<>| `)
	}
	return nil
}

func validateLogLevel(logLevel string) error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	for _, level := range validLogLevels {
		if logLevel == level {
			return nil
		}
	}
	return errors.NewValidationError(
		fmt.Sprintf("invalid log level: %s", logLevel),
		nil,
	).WithContext("valid_levels", "debug, info, warn, error")
}

func validatePathsConfig(config *PathsConfig) error {
	switch config.ServiceContext {
	case processfile.SystemService, processfile.UserService, processfile.SessionService:
	default:
		return errors.NewValidationError(
			fmt.Sprintf("unsupported service context: %s", config.ServiceContext),
			nil,
		).WithContext("supported_contexts", "system, user, session")
	}
	if config.PIDFile != "" && config.PIDFile == config.LogFile {
		return errors.NewValidationError("pid file and log file must differ", nil).
			WithContext("path", config.PIDFile)
	}
	return nil
}

func validateSupervisorConfig(config *SupervisorConfig) error {
	if config.StopTimeout < 0 || config.PollInterval < 0 || config.SettleDelay < 0 {
		return errors.NewValidationError("durations cannot be negative", nil)
	}
	if config.PollInterval > config.StopTimeout {
		return errors.NewValidationError(
			fmt.Sprintf("poll interval %v exceeds stop timeout %v", config.PollInterval, config.StopTimeout),
			nil,
		)
	}
	return nil
}

func validateHealthConfig(config *HealthConfig) error {
	if config.LogStaleAfter < 0 {
		return errors.NewValidationError("log_stale_after cannot be negative", nil)
	}
	if config.ErrorWindowLines < 0 || config.ErrorThreshold < 0 {
		return errors.NewValidationError("error window and threshold cannot be negative", nil)
	}
	for _, pattern := range config.ErrorPatterns {
		if strings.TrimSpace(pattern) == "" {
			return errors.NewValidationError("error patterns cannot be blank", nil)
		}
	}
	if err := validatePercent("disk_threshold_percent", config.DiskThresholdPercent); err != nil {
		return err
	}
	if err := validatePercent("memory_threshold_percent", config.MemoryThresholdPercent); err != nil {
		return err
	}
	if config.EscalateAfterWarnings < 0 {
		return errors.NewValidationError("escalate_after_warnings cannot be negative", nil)
	}
	return nil
}

func validatePercent(name string, value float64) error {
	if value <= 0 || value > 100 {
		return errors.NewValidationError(fmt.Sprintf("invalid %s: %v", name, value), nil).
			WithContext("valid_range", "(0, 100]")
	}
	return nil
}
