//go:build !windows

package process

import (
	"golang.org/x/sys/unix"

	"github.com/core-tools/hsu-pidguard/pkg/errors"
)

// DiskUsagePercent returns the used percentage of the filesystem holding path,
// computed the way df does: used / (used + available to unprivileged users).
func DiskUsagePercent(path string) (float64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, errors.NewResourceQueryError("failed to stat filesystem", err).WithContext("path", path)
	}

	blockSize := uint64(stat.Bsize)
	used := (stat.Blocks - stat.Bfree) * blockSize
	available := stat.Bavail * blockSize
	if used+available == 0 {
		return 0, errors.NewResourceQueryError("filesystem reports zero capacity", nil).WithContext("path", path)
	}

	return float64(used) * 100 / float64(used+available), nil
}
