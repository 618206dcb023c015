package supervisor

import (
	"fmt"
	"sync"
	"time"

	"github.com/core-tools/hsu-pidguard/pkg/errors"
	"github.com/core-tools/hsu-pidguard/pkg/logging"
)

// Phase is the supervisor's view of the process during an operation
type Phase string

const (
	PhaseUnknown    Phase = "unknown"
	PhaseNotRunning Phase = "not_running"
	PhaseStarting   Phase = "starting"
	PhaseRunning    Phase = "running"
	PhaseStopping   Phase = "stopping"
	PhaseFailed     Phase = "failed"
)

type Transition struct {
	From      Phase
	To        Phase
	Operation string
	Timestamp time.Time
	Error     error
}

// Lifecycle validates and records phase transitions.
// Observe resynchronizes it with the PID record before each operation.
type Lifecycle struct {
	name        string
	current     Phase
	transitions []Transition
	valid       map[Phase][]Phase
	now         func() time.Time
	mutex       sync.RWMutex
	logger      logging.Logger
}

func NewLifecycle(name string, now func() time.Time, logger logging.Logger) *Lifecycle {
	return &Lifecycle{
		name:    name,
		current: PhaseUnknown,
		valid: map[Phase][]Phase{
			PhaseNotRunning: {PhaseStarting},
			PhaseStarting:   {PhaseRunning, PhaseFailed},
			PhaseRunning:    {PhaseStopping},
			PhaseStopping:   {PhaseNotRunning, PhaseFailed},
			PhaseFailed:     {PhaseStarting, PhaseStopping},
		},
		now:    now,
		logger: logger,
	}
}

func (l *Lifecycle) Current() Phase {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return l.current
}

// Observe sets the phase from an external observation without validation
func (l *Lifecycle) Observe(phase Phase, operation string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if l.current == phase {
		return
	}
	l.record(phase, operation, nil)
}

// Transition moves to phase if the move is valid from the current phase
func (l *Lifecycle) Transition(to Phase, operation string, err error) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if !l.canTransition(to) {
		return errors.NewInternalError(
			fmt.Sprintf("invalid phase transition from '%s' to '%s'", l.current, to), nil,
		).WithContext("name", l.name).
			WithContext("operation", operation)
	}

	l.record(to, operation, err)
	return nil
}

func (l *Lifecycle) record(to Phase, operation string, err error) {
	from := l.current
	l.transitions = append(l.transitions, Transition{
		From:      from,
		To:        to,
		Operation: operation,
		Timestamp: l.now(),
		Error:     err,
	})
	l.current = to

	if err != nil {
		l.logger.Warnf("Supervised process transition failed, name: %s, %s->%s, operation: %s, error: %v",
			l.name, from, to, operation, err)
	} else {
		l.logger.Debugf("Supervised process transition, name: %s, %s->%s, operation: %s",
			l.name, from, to, operation)
	}
}

func (l *Lifecycle) canTransition(to Phase) bool {
	for _, phase := range l.valid[l.current] {
		if phase == to {
			return true
		}
	}
	return false
}

// History returns a copy of all recorded transitions
func (l *Lifecycle) History() []Transition {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	history := make([]Transition, len(l.transitions))
	copy(history, l.transitions)
	return history
}
