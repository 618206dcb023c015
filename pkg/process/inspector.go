package process

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	ps "github.com/mitchellh/go-ps"

	"github.com/core-tools/hsu-pidguard/pkg/errors"
	"github.com/core-tools/hsu-pidguard/pkg/logging"
)

// Snapshot is a point-in-time resource usage view of one process
type Snapshot struct {
	PID           int
	Executable    string
	CPUPercent    float64
	MemoryPercent float64
	Elapsed       time.Duration
}

// CommandRunner runs an external command and returns its standard output
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ProcessFinder looks up a process in the OS process table
type ProcessFinder func(pid int) (ps.Process, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Inspector queries resource usage through ps(1) and the process table
type Inspector struct {
	run     CommandRunner
	find    ProcessFinder
	timeout time.Duration
	logger  logging.Logger
}

func NewInspector(logger logging.Logger) *Inspector {
	return NewInspectorWith(runCommand, ps.FindProcess, logger)
}

func NewInspectorWith(run CommandRunner, find ProcessFinder, logger logging.Logger) *Inspector {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Inspector{
		run:     run,
		find:    find,
		timeout: 5 * time.Second,
		logger:  logger,
	}
}

// Snapshot returns CPU%, memory% and elapsed time for pid
func (i *Inspector) Snapshot(ctx context.Context, pid int) (*Snapshot, error) {
	fields, err := i.psFields(ctx, pid, "%cpu=,%mem=,etime=")
	if err != nil {
		return nil, err
	}
	if len(fields) < 3 {
		return nil, errors.NewResourceQueryError("unexpected ps output", nil).
			WithContext("pid", pid).
			WithContext("output", strings.Join(fields, " "))
	}

	cpu, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return nil, errors.NewResourceQueryError("invalid cpu percentage", err).WithContext("pid", pid)
	}
	mem, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return nil, errors.NewResourceQueryError("invalid memory percentage", err).WithContext("pid", pid)
	}
	elapsed, err := ParseElapsed(fields[2])
	if err != nil {
		return nil, errors.NewResourceQueryError("invalid elapsed time", err).WithContext("pid", pid)
	}

	return &Snapshot{
		PID:           pid,
		Executable:    i.executable(pid),
		CPUPercent:    cpu,
		MemoryPercent: mem,
		Elapsed:       elapsed,
	}, nil
}

// MemoryPercent returns the resident memory share of pid as reported by ps
func (i *Inspector) MemoryPercent(ctx context.Context, pid int) (float64, error) {
	fields, err := i.psFields(ctx, pid, "%mem=")
	if err != nil {
		return 0, err
	}
	if len(fields) != 1 {
		return 0, errors.NewResourceQueryError("unexpected ps output", nil).
			WithContext("pid", pid).
			WithContext("output", strings.Join(fields, " "))
	}
	mem, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, errors.NewResourceQueryError("invalid memory percentage", err).WithContext("pid", pid)
	}
	return mem, nil
}

func (i *Inspector) psFields(ctx context.Context, pid int, format string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	output, err := i.run(ctx, "ps", "-o", format, "-p", strconv.Itoa(pid))
	if err != nil {
		return nil, errors.NewResourceQueryError("ps query failed", err).WithContext("pid", pid)
	}
	return strings.Fields(string(output)), nil
}

func (i *Inspector) executable(pid int) string {
	p, err := i.find(pid)
	if err != nil {
		i.logger.Debugf("Process table lookup failed, pid: %d, error: %v", pid, err)
		return ""
	}
	if p == nil {
		return ""
	}
	return p.Executable()
}

// ParseElapsed parses the ps etime format [[dd-]hh:]mm:ss
func ParseElapsed(value string) (time.Duration, error) {
	var days int
	rest := value
	if idx := strings.IndexByte(rest, '-'); idx >= 0 {
		d, err := strconv.Atoi(rest[:idx])
		if err != nil {
			return 0, fmt.Errorf("invalid days in %q", value)
		}
		days = d
		rest = rest[idx+1:]
	}

	parts := strings.Split(rest, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid elapsed time %q", value)
	}

	nums := make([]int, len(parts))
	for idx, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return 0, fmt.Errorf("invalid elapsed time %q", value)
		}
		nums[idx] = n
	}

	var hours, minutes, seconds int
	if len(nums) == 3 {
		hours, minutes, seconds = nums[0], nums[1], nums[2]
	} else {
		minutes, seconds = nums[0], nums[1]
	}

	return time.Duration(days)*24*time.Hour +
		time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second, nil
}

// FormatDuration renders d the way status output shows uptime
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
