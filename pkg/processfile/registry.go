package processfile

import (
	"github.com/core-tools/hsu-pidguard/pkg/logging"
)

// Registry is the single accessor for one PID record.
// Callers are assumed to be serialized externally; no file locking is done.
type Registry struct {
	path   string
	cached int
	logger logging.Logger
}

func NewRegistry(path string, logger logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Registry{
		path:   path,
		logger: logger,
	}
}

// Path returns the PID file path
func (r *Registry) Path() string {
	return r.path
}

// Cached returns the pid seen by the last successful Read or Write, or 0
func (r *Registry) Cached() int {
	return r.cached
}

// Read loads the pid from disk. A missing record yields a not_running error.
func (r *Registry) Read() (int, error) {
	pid, err := ReadPIDFile(r.path)
	if err != nil {
		r.cached = 0
		return 0, err
	}
	r.cached = pid
	return pid, nil
}

// Write persists pid as the new record
func (r *Registry) Write(pid int) error {
	if err := WritePIDFile(r.path, pid); err != nil {
		return err
	}
	r.cached = pid
	r.logger.Debugf("PID record written, path: %s, pid: %d", r.path, pid)
	return nil
}

// Clear removes the record; clearing an absent record succeeds
func (r *Registry) Clear() error {
	if err := RemovePIDFile(r.path); err != nil {
		return err
	}
	r.logger.Debugf("PID record removed, path: %s", r.path)
	r.cached = 0
	return nil
}
