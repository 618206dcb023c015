package process

import (
	"context"

	"github.com/core-tools/hsu-pidguard/pkg/logging"
)

// System binds the package-level OS primitives to one logger.
// It satisfies the process control interfaces of the supervisor and monitor.
type System struct {
	*Inspector
	logger logging.Logger
}

func NewSystem(logger logging.Logger) *System {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &System{
		Inspector: NewInspector(logger),
		logger:    logger,
	}
}

func (s *System) IsAlive(pid int) bool {
	return IsAlive(pid)
}

func (s *System) Terminate(pid int) error {
	s.logger.Debugf("Sending termination signal, pid: %d", pid)
	return SendTerminationSignal(pid)
}

func (s *System) Kill(pid int) error {
	s.logger.Debugf("Sending kill signal, pid: %d", pid)
	return ForceKill(pid)
}

func (s *System) Launch(ctx context.Context, config ExecutionConfig) (int, error) {
	return Launch(ctx, config, s.logger)
}

func (s *System) DiskUsagePercent(path string) (float64, error) {
	return DiskUsagePercent(path)
}
