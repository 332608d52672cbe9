package preflight

import (
	"fmt"
	"syscall"

	"github.com/dustin/go-humanize"
)

// MinDiskSpaceBytes is the free space required in the data directory. Index
// files for a few hundred thousand 768-dim vectors fit comfortably.
const MinDiskSpaceBytes = 200 * 1024 * 1024

// freeBytes returns the space available to unprivileged writers at path.
func freeBytes(path string) (uint64, error) {
	var fs syscall.Statfs_t
	if err := syscall.Statfs(path, &fs); err != nil {
		return 0, err
	}
	return fs.Bavail * uint64(fs.Bsize), nil
}

// CheckDiskSpace fails when the filesystem holding path has less than
// MinDiskSpaceBytes free.
func (c *Checker) CheckDiskSpace(path string) CheckResult {
	free, err := freeBytes(path)
	if err != nil {
		return CheckResult{
			Name:     "disk_space",
			Status:   StatusFail,
			Message:  fmt.Sprintf("failed to check disk space: %v", err),
			Required: true,
		}
	}

	result := CheckResult{
		Name:     "disk_space",
		Status:   StatusPass,
		Message:  fmt.Sprintf("%s free (minimum: %s)", humanize.IBytes(free), humanize.IBytes(MinDiskSpaceBytes)),
		Required: true,
	}
	if free < MinDiskSpaceBytes {
		result.Status = StatusFail
		result.Fix = "Free space on this volume or point RESUMATCH_DATA_DIR elsewhere"
	}
	return result
}
