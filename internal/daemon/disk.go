//go:build unix

package daemon

import (
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

// outputFreeMB reports free space in megabytes for the output directory.
func outputFreeMB(dir string) (int64, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return 0, fmt.Errorf("output dir not configured")
	}
	var stat unix.Statfs_t
	if err := unix.Statfs(dir, &stat); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", dir, err)
	}
	return int64(stat.Bavail) * int64(stat.Bsize) / (1024 * 1024), nil
}
