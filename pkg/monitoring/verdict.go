package monitoring

import (
	"fmt"
	"io"
)

type CheckStatus string

const (
	StatusOK        CheckStatus = "OK"
	StatusWarning   CheckStatus = "WARNING"
	StatusUnhealthy CheckStatus = "UNHEALTHY"
)

// Check names in evaluation order
const (
	CheckProcess     = "process"
	CheckLogRecency  = "log_recency"
	CheckErrorRate   = "error_rate"
	CheckDiskUsage   = "disk_usage"
	CheckMemoryUsage = "memory_usage"
)

// Exit codes of a health pass
const (
	ExitSuccess    = 0
	ExitNotRunning = 1
	ExitUnhealthy  = 2
)

type OverallStatus string

const (
	OverallSuccess    OverallStatus = "SUCCESS"
	OverallNotRunning OverallStatus = "NOT_RUNNING"
	OverallUnhealthy  OverallStatus = "UNHEALTHY"
)

type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
}

// Verdict is the ordered outcome of one health pass
type Verdict struct {
	Checks   []CheckResult
	Status   OverallStatus
	ExitCode int
}

func newVerdict(checks []CheckResult, escalateAfterWarnings int) Verdict {
	verdict := Verdict{Checks: checks, Status: OverallSuccess, ExitCode: ExitSuccess}

	for _, check := range checks {
		if check.Name == CheckProcess && check.Status == StatusUnhealthy {
			verdict.Status = OverallNotRunning
			verdict.ExitCode = ExitNotRunning
			return verdict
		}
	}

	if escalateAfterWarnings > 0 && verdict.Warnings() >= escalateAfterWarnings {
		verdict.Status = OverallUnhealthy
		verdict.ExitCode = ExitUnhealthy
	}
	return verdict
}

// Warnings returns the number of checks with WARNING status
func (v Verdict) Warnings() int {
	count := 0
	for _, check := range v.Checks {
		if check.Status == StatusWarning {
			count++
		}
	}
	return count
}

// Check returns the result with the given name, if it was evaluated
func (v Verdict) Check(name string) (CheckResult, bool) {
	for _, check := range v.Checks {
		if check.Name == name {
			return check, true
		}
	}
	return CheckResult{}, false
}

// WriteReport prints one line per check followed by the overall line
func (v Verdict) WriteReport(w io.Writer) error {
	for _, check := range v.Checks {
		if _, err := fmt.Fprintf(w, "[%s] %s: %s\n", check.Status, check.Name, check.Message); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "Overall: %s (exit %d)\n", v.Status, v.ExitCode)
	return err
}
