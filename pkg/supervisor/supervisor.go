package supervisor

import (
	"context"
	"io"
	"time"

	"go.uber.org/multierr"

	"github.com/core-tools/hsu-pidguard/pkg/errors"
	"github.com/core-tools/hsu-pidguard/pkg/logging"
	"github.com/core-tools/hsu-pidguard/pkg/process"
	"github.com/core-tools/hsu-pidguard/pkg/processfile"
)

// ProcessControl is the set of OS operations the supervisor needs
type ProcessControl interface {
	IsAlive(pid int) bool
	Terminate(pid int) error
	Kill(pid int) error
	Launch(ctx context.Context, config process.ExecutionConfig) (int, error)
}

// ProcessInspector provides the resource usage snapshot shown by Status
type ProcessInspector interface {
	Snapshot(ctx context.Context, pid int) (*process.Snapshot, error)
}

const (
	DefaultStopTimeout   = 30 * time.Second
	DefaultPollInterval  = 1 * time.Second
	DefaultSettleDelay   = 2 * time.Second
	DefaultForceKillWait = 5 * time.Second
)

// Options configures one supervised process
type Options struct {
	Name      string
	Execution process.ExecutionConfig

	StopTimeout   time.Duration
	PollInterval  time.Duration
	SettleDelay   time.Duration
	ForceKillWait time.Duration
}

// Dependencies are the collaborators of a Supervisor; Clock and Reporter are optional
type Dependencies struct {
	Registry  *processfile.Registry
	Control   ProcessControl
	Inspector ProcessInspector
	Clock     Clock
	Reporter  Reporter
}

// StartResult distinguishes a fresh launch from the idempotent no-op
type StartResult string

const (
	StartResultStarted        StartResult = "started"
	StartResultAlreadyRunning StartResult = "already_running"
)

// StopOutcome is the tri-state result of Stop
type StopOutcome string

const (
	StopOutcomeAlreadyAbsent StopOutcome = "already_absent"
	StopOutcomeStopped       StopOutcome = "stopped"
	StopOutcomeFailed        StopOutcome = "failed"
)

type StopResult struct {
	Outcome StopOutcome
	PID     int
	// Forced is set when the graceful signal timed out and SIGKILL was sent
	Forced bool
}

// State is the supervised process state as seen through the PID record
type State string

const (
	StateRunning    State = "RUNNING"
	StateNotRunning State = "NOT_RUNNING"
)

type StatusResult struct {
	State    State
	PID      int
	Snapshot *process.Snapshot
}

// ExitCode maps the status onto the CLI contract: 0 running, 1 not running
func (r StatusResult) ExitCode() int {
	if r.State == StateRunning {
		return 0
	}
	return 1
}

type Supervisor struct {
	options   Options
	registry  *processfile.Registry
	control   ProcessControl
	inspector ProcessInspector
	clock     Clock
	reporter  Reporter
	lifecycle *Lifecycle
	logger    logging.Logger
}

func NewSupervisor(options Options, deps Dependencies, logger logging.Logger) *Supervisor {
	if options.StopTimeout <= 0 {
		options.StopTimeout = DefaultStopTimeout
	}
	if options.PollInterval <= 0 {
		options.PollInterval = DefaultPollInterval
	}
	if options.SettleDelay < 0 {
		options.SettleDelay = DefaultSettleDelay
	}
	if options.ForceKillWait <= 0 {
		options.ForceKillWait = DefaultForceKillWait
	}
	if deps.Clock == nil {
		deps.Clock = NewRealClock()
	}
	if deps.Reporter == nil {
		deps.Reporter = NewReporter(io.Discard)
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &Supervisor{
		options:   options,
		registry:  deps.Registry,
		control:   deps.Control,
		inspector: deps.Inspector,
		clock:     deps.Clock,
		reporter:  deps.Reporter,
		lifecycle: NewLifecycle(options.Name, deps.Clock.Now, logger),
		logger:    logger,
	}
}

// Lifecycle exposes the phase transitions recorded by this supervisor
func (s *Supervisor) Lifecycle() *Lifecycle {
	return s.lifecycle
}

// Start launches the process unless the PID record already names a live one
func (s *Supervisor) Start(ctx context.Context) (StartResult, error) {
	pid, alive, err := s.lookup()
	if err != nil {
		s.reporter.Failuref("Failed to read PID file %s: %v", s.registry.Path(), err)
		return "", err
	}
	s.observe(alive, "start")
	if alive {
		s.reporter.Stepf("%s is already running (PID: %d)", s.options.Name, pid)
		return StartResultAlreadyRunning, nil
	}

	s.reporter.Stepf("Starting %s...", s.options.Name)
	s.transition(PhaseStarting, "start", nil)

	pid, err = s.control.Launch(ctx, s.options.Execution)
	if err != nil {
		s.transition(PhaseFailed, "start", err)
		s.reporter.Failuref("Failed to start %s: %v", s.options.Name, err)
		return "", err
	}

	if err := s.registry.Write(pid); err != nil {
		// an unrecorded process could never be stopped through the record
		s.logger.Errorf("Failed to record PID %d, killing it: %v", pid, err)
		if killErr := s.control.Kill(pid); killErr != nil {
			err = multierr.Append(err, killErr)
		}
		s.transition(PhaseFailed, "start", err)
		s.reporter.Failuref("Failed to write PID file %s: %v", s.registry.Path(), err)
		return "", err
	}

	s.transition(PhaseRunning, "start", nil)

	s.logger.Infof("Process started, name: %s, pid: %d, pid_file: %s", s.options.Name, pid, s.registry.Path())
	s.reporter.Stepf("%s started (PID: %d)", s.options.Name, pid)
	if s.options.Execution.LogFile != "" {
		s.reporter.Stepf("Logs: %s", s.options.Execution.LogFile)
	}

	return StartResultStarted, nil
}

// Stop terminates the recorded process: graceful signal first, forced after StopTimeout
func (s *Supervisor) Stop(ctx context.Context) (StopResult, error) {
	pid, alive, err := s.lookup()
	if err != nil {
		s.reporter.Failuref("Failed to read PID file %s: %v", s.registry.Path(), err)
		return StopResult{Outcome: StopOutcomeFailed}, err
	}
	s.observe(alive, "stop")
	if !alive {
		s.reporter.Stepf("%s is not running", s.options.Name)
		return StopResult{Outcome: StopOutcomeAlreadyAbsent, PID: pid}, nil
	}

	s.reporter.Stepf("Stopping %s (PID: %d)...", s.options.Name, pid)
	s.transition(PhaseStopping, "stop", nil)

	if err := s.control.Terminate(pid); err != nil {
		if errors.IsNotRunningError(err) {
			s.logger.Infof("Process exited before termination signal, pid: %d", pid)
			if err := s.clearRecord(); err != nil {
				s.transition(PhaseFailed, "stop", err)
				return StopResult{Outcome: StopOutcomeFailed, PID: pid}, err
			}
			s.transition(PhaseNotRunning, "stop", nil)
			s.reporter.Stepf("%s is not running", s.options.Name)
			return StopResult{Outcome: StopOutcomeAlreadyAbsent, PID: pid}, nil
		}
		s.transition(PhaseFailed, "stop", err)
		s.reporter.Failuref("Failed to stop %s (PID: %d): %v", s.options.Name, pid, err)
		return StopResult{Outcome: StopOutcomeFailed, PID: pid}, err
	}

	if s.waitForExit(ctx, pid, s.options.StopTimeout) {
		if err := s.clearRecord(); err != nil {
			s.transition(PhaseFailed, "stop", err)
			return StopResult{Outcome: StopOutcomeFailed, PID: pid}, err
		}
		s.transition(PhaseNotRunning, "stop", nil)
		s.logger.Infof("Process stopped gracefully, pid: %d", pid)
		s.reporter.Stepf("%s stopped gracefully", s.options.Name)
		return StopResult{Outcome: StopOutcomeStopped, PID: pid}, nil
	}

	timeoutErr := errors.NewShutdownTimeoutError("process did not exit after termination signal", nil).
		WithContext("pid", pid).
		WithContext("timeout", s.options.StopTimeout.String())
	s.logger.Warnf("Escalating to forced termination: %v", timeoutErr)
	s.reporter.Stepf("%s did not stop within %v, forcing termination...", s.options.Name, s.options.StopTimeout)

	if err := s.control.Kill(pid); err != nil && !errors.IsNotRunningError(err) {
		s.transition(PhaseFailed, "stop", err)
		s.reporter.Failuref("Failed to kill %s (PID: %d): %v", s.options.Name, pid, err)
		return StopResult{Outcome: StopOutcomeFailed, PID: pid}, err
	}

	// forced termination is unconditional; a cancelled ctx must not cut the wait short
	if !s.waitForExit(context.Background(), pid, s.options.ForceKillWait) {
		s.logger.Warnf("Process still present after kill signal, pid: %d", pid)
	}

	if err := s.clearRecord(); err != nil {
		s.transition(PhaseFailed, "stop", err)
		return StopResult{Outcome: StopOutcomeFailed, PID: pid, Forced: true}, err
	}
	s.transition(PhaseNotRunning, "stop", timeoutErr)
	s.logger.Infof("Process stopped forcefully, pid: %d", pid)
	s.reporter.Stepf("%s stopped forcefully", s.options.Name)
	return StopResult{Outcome: StopOutcomeStopped, PID: pid, Forced: true}, nil
}

// Restart stops the process if running, waits SettleDelay, then starts it again
func (s *Supervisor) Restart(ctx context.Context) (StartResult, error) {
	s.reporter.Stepf("Restarting %s...", s.options.Name)

	if _, err := s.Stop(ctx); err != nil {
		return "", err
	}

	if err := s.clock.Sleep(ctx, s.options.SettleDelay); err != nil {
		return "", errors.NewCancelledError("restart cancelled", err)
	}

	return s.Start(ctx)
}

// Status reports whether the recorded process is alive, clearing a stale record
func (s *Supervisor) Status(ctx context.Context) (StatusResult, error) {
	pid, alive, err := s.lookup()
	if err != nil {
		s.reporter.Failuref("Failed to read PID file %s: %v", s.registry.Path(), err)
		return StatusResult{State: StateNotRunning}, err
	}
	s.observe(alive, "status")
	if !alive {
		s.reporter.Stepf("%s is not running", s.options.Name)
		return StatusResult{State: StateNotRunning}, nil
	}

	result := StatusResult{State: StateRunning, PID: pid}

	if s.inspector != nil {
		snapshot, err := s.inspector.Snapshot(ctx, pid)
		if err != nil {
			s.logger.Warnf("Failed to query resource usage, pid: %d, error: %v", pid, err)
		} else {
			result.Snapshot = snapshot
		}
	}

	if result.Snapshot == nil {
		s.reporter.Stepf("%s is running (PID: %d)", s.options.Name, pid)
		return result, nil
	}

	snapshot := result.Snapshot
	if snapshot.Executable != "" {
		s.reporter.Stepf("%s is running (PID: %d, executable: %s)", s.options.Name, pid, snapshot.Executable)
	} else {
		s.reporter.Stepf("%s is running (PID: %d)", s.options.Name, pid)
	}
	s.reporter.Stepf("CPU: %.1f%%  Memory: %.1f%%  Uptime: %s",
		snapshot.CPUPercent, snapshot.MemoryPercent, process.FormatDuration(snapshot.Elapsed))

	return result, nil
}

// lookup reads the PID record. Stale or corrupt records are removed;
// a stale record returns its pid with alive=false.
func (s *Supervisor) lookup() (int, bool, error) {
	pid, err := s.registry.Read()
	switch {
	case err == nil:
	case errors.IsNotRunningError(err):
		return 0, false, nil
	case errors.IsValidationError(err):
		s.logger.Warnf("Removing corrupt PID file: %v", err)
		s.reporter.Stepf("Removing corrupt PID file %s", s.registry.Path())
		return 0, false, s.registry.Clear()
	default:
		return 0, false, err
	}

	if s.control.IsAlive(pid) {
		return pid, true, nil
	}

	stale := errors.NewStaleRecordError("pid file names a process that no longer exists", nil).
		WithContext("path", s.registry.Path()).
		WithContext("pid", pid)
	s.logger.Infof("Removing stale PID file: %v", stale)
	s.reporter.Stepf("Removing stale PID file (PID %d no longer exists)", pid)
	if err := s.registry.Clear(); err != nil {
		return pid, false, err
	}
	return pid, false, nil
}

// waitForExit polls liveness every PollInterval until the process is gone or timeout elapses
func (s *Supervisor) waitForExit(ctx context.Context, pid int, timeout time.Duration) bool {
	deadline := s.clock.Now().Add(timeout)
	for {
		if !s.control.IsAlive(pid) {
			return true
		}
		if !s.clock.Now().Before(deadline) {
			return false
		}
		if err := s.clock.Sleep(ctx, s.options.PollInterval); err != nil {
			s.logger.Warnf("Wait for PID %d interrupted: %v", pid, err)
			return !s.control.IsAlive(pid)
		}
	}
}

func (s *Supervisor) observe(alive bool, operation string) {
	if alive {
		s.lifecycle.Observe(PhaseRunning, operation)
	} else {
		s.lifecycle.Observe(PhaseNotRunning, operation)
	}
}

func (s *Supervisor) transition(to Phase, operation string, cause error) {
	if err := s.lifecycle.Transition(to, operation, cause); err != nil {
		s.logger.Errorf("Lifecycle out of sync: %v", err)
		s.lifecycle.Observe(to, operation)
	}
}

func (s *Supervisor) clearRecord() error {
	if err := s.registry.Clear(); err != nil {
		s.reporter.Failuref("Failed to remove PID file %s: %v", s.registry.Path(), err)
		return err
	}
	return nil
}
