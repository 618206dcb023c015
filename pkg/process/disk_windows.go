//go:build windows

package process

import "github.com/core-tools/hsu-pidguard/pkg/errors"

func DiskUsagePercent(path string) (float64, error) {
	return 0, errors.NewResourceQueryError("disk usage is not supported on windows", nil).WithContext("path", path)
}
