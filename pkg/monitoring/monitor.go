package monitoring

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/core-tools/hsu-pidguard/pkg/config"
	"github.com/core-tools/hsu-pidguard/pkg/errors"
	"github.com/core-tools/hsu-pidguard/pkg/logging"
	"github.com/core-tools/hsu-pidguard/pkg/logtail"
	"github.com/core-tools/hsu-pidguard/pkg/processfile"
)

// Queries are the read-only OS lookups used by the checks
type Queries interface {
	IsAlive(pid int) bool
	MemoryPercent(ctx context.Context, pid int) (float64, error)
	DiskUsagePercent(path string) (float64, error)
}

type Options struct {
	Name     string
	LogFile  string
	DiskPath string

	LogStaleAfter          time.Duration
	ErrorWindowLines       int
	ErrorThreshold         int
	ErrorPatterns          []string
	DiskThresholdPercent   float64
	MemoryThresholdPercent float64

	// EscalateAfterWarnings turns a verdict with at least this many
	// warnings into UNHEALTHY (exit 2). Zero disables escalation.
	EscalateAfterWarnings int
}

// OptionsFromConfig builds monitor options from a validated configuration
func OptionsFromConfig(cfg *config.Config) Options {
	health := cfg.Health
	return Options{
		Name:                   cfg.AppName,
		LogFile:                cfg.LogFilePath(),
		DiskPath:               cfg.DiskPath(),
		LogStaleAfter:          health.LogStaleAfter,
		ErrorWindowLines:       health.ErrorWindowLines,
		ErrorThreshold:         health.ErrorThreshold,
		ErrorPatterns:          health.ErrorPatterns,
		DiskThresholdPercent:   health.DiskThresholdPercent,
		MemoryThresholdPercent: health.MemoryThresholdPercent,
		EscalateAfterWarnings:  health.EscalateAfterWarnings,
	}
}

type Monitor struct {
	options  Options
	registry *processfile.Registry
	queries  Queries
	now      func() time.Time
	logger   logging.Logger
}

func NewMonitor(options Options, registry *processfile.Registry, queries Queries, logger logging.Logger) *Monitor {
	if options.LogStaleAfter <= 0 {
		options.LogStaleAfter = config.DefaultLogStaleAfter
	}
	if options.ErrorWindowLines <= 0 {
		options.ErrorWindowLines = config.DefaultErrorWindowLines
	}
	if options.ErrorThreshold < 0 {
		options.ErrorThreshold = config.DefaultErrorThreshold
	}
	if len(options.ErrorPatterns) == 0 {
		options.ErrorPatterns = config.DefaultErrorPatterns
	}
	if options.DiskThresholdPercent <= 0 {
		options.DiskThresholdPercent = config.DefaultDiskThresholdPercent
	}
	if options.MemoryThresholdPercent <= 0 {
		options.MemoryThresholdPercent = config.DefaultMemoryThresholdPercent
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &Monitor{
		options:  options,
		registry: registry,
		queries:  queries,
		now:      time.Now,
		logger:   logger,
	}
}

// Evaluate runs one health pass. It never signals the process and never
// modifies the PID file, stale or not.
func (m *Monitor) Evaluate(ctx context.Context) Verdict {
	pid, liveness := m.checkProcess()
	if liveness.Status != StatusOK {
		m.logger.Warnf("Health check failed, name: %s, check: %s, message: %s", m.options.Name, liveness.Name, liveness.Message)
		return newVerdict([]CheckResult{liveness}, m.options.EscalateAfterWarnings)
	}

	checks := []CheckResult{liveness}
	checks = append(checks, m.checkLogs()...)
	checks = append(checks, m.checkDisk())
	checks = append(checks, m.checkMemory(ctx, pid))

	for _, check := range checks {
		if check.Status != StatusOK {
			m.logger.Warnf("Health check degraded, name: %s, check: %s, message: %s", m.options.Name, check.Name, check.Message)
		} else {
			m.logger.Debugf("Health check passed, name: %s, check: %s", m.options.Name, check.Name)
		}
	}

	return newVerdict(checks, m.options.EscalateAfterWarnings)
}

func (m *Monitor) checkProcess() (int, CheckResult) {
	pid, err := m.registry.Read()
	if err != nil {
		if errors.IsNotRunningError(err) {
			return 0, unhealthy(CheckProcess, "PID file not found: %s", m.registry.Path())
		}
		return 0, unhealthy(CheckProcess, "cannot read PID file: %v", err)
	}
	if !m.queries.IsAlive(pid) {
		return pid, unhealthy(CheckProcess, "process not running (stale PID %d)", pid)
	}
	return pid, ok(CheckProcess, "process running (PID: %d)", pid)
}

// checkLogs returns the log_recency and error_rate results
func (m *Monitor) checkLogs() []CheckResult {
	info, err := os.Stat(m.options.LogFile)
	if err != nil {
		if os.IsNotExist(err) {
			return []CheckResult{
				warning(CheckLogRecency, "log file not found: %s", m.options.LogFile),
				warning(CheckErrorRate, "log file not found: %s", m.options.LogFile),
			}
		}
		queryErr := errors.NewResourceQueryError("failed to stat log file", err).WithContext("path", m.options.LogFile)
		return []CheckResult{
			warning(CheckLogRecency, "%v", queryErr),
			m.checkErrorRate(),
		}
	}

	return []CheckResult{m.checkLogRecency(info.ModTime()), m.checkErrorRate()}
}

func (m *Monitor) checkLogRecency(modTime time.Time) CheckResult {
	age := m.now().Sub(modTime)
	if age > m.options.LogStaleAfter {
		return warning(CheckLogRecency, "stale logs, last write %s ago (limit %s)",
			age.Truncate(time.Second), m.options.LogStaleAfter)
	}
	return ok(CheckLogRecency, "last write %s ago", age.Truncate(time.Second))
}

func (m *Monitor) checkErrorRate() CheckResult {
	lines, err := logtail.LastLines(m.options.LogFile, m.options.ErrorWindowLines)
	if err != nil {
		return warning(CheckErrorRate, "%v", err)
	}

	count := CountMatches(lines, m.options.ErrorPatterns)
	if count > m.options.ErrorThreshold {
		return warning(CheckErrorRate, "%d error lines in last %d lines (limit %d)",
			count, len(lines), m.options.ErrorThreshold)
	}
	return ok(CheckErrorRate, "%d error lines in last %d lines", count, len(lines))
}

func (m *Monitor) checkDisk() CheckResult {
	percent, err := m.queries.DiskUsagePercent(m.options.DiskPath)
	if err != nil {
		return warning(CheckDiskUsage, "%v", err)
	}
	if percent > m.options.DiskThresholdPercent {
		return warning(CheckDiskUsage, "disk usage %.1f%% on %s (limit %.0f%%)",
			percent, m.options.DiskPath, m.options.DiskThresholdPercent)
	}
	return ok(CheckDiskUsage, "disk usage %.1f%% on %s", percent, m.options.DiskPath)
}

func (m *Monitor) checkMemory(ctx context.Context, pid int) CheckResult {
	percent, err := m.queries.MemoryPercent(ctx, pid)
	if err != nil {
		return warning(CheckMemoryUsage, "%v", err)
	}
	if percent > m.options.MemoryThresholdPercent {
		return warning(CheckMemoryUsage, "memory usage %.1f%% (limit %.0f%%)",
			percent, m.options.MemoryThresholdPercent)
	}
	return ok(CheckMemoryUsage, "memory usage %.1f%%", percent)
}

// CountMatches counts lines containing any of patterns, ignoring case.
// A line matching several patterns counts once.
func CountMatches(lines []string, patterns []string) int {
	lowered := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		if pattern = strings.ToLower(strings.TrimSpace(pattern)); pattern != "" {
			lowered = append(lowered, pattern)
		}
	}

	count := 0
	for _, line := range lines {
		line = strings.ToLower(line)
		for _, pattern := range lowered {
			if strings.Contains(line, pattern) {
				count++
				break
			}
		}
	}
	return count
}

func ok(name, format string, args ...interface{}) CheckResult {
	return CheckResult{Name: name, Status: StatusOK, Message: fmt.Sprintf(format, args...)}
}

func warning(name, format string, args ...interface{}) CheckResult {
	return CheckResult{Name: name, Status: StatusWarning, Message: fmt.Sprintf(format, args...)}
}

func unhealthy(name, format string, args ...interface{}) CheckResult {
	return CheckResult{Name: name, Status: StatusUnhealthy, Message: fmt.Sprintf(format, args...)}
}
