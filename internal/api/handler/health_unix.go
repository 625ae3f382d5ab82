//go:build linux || darwin

package handler

import (
	"time"

	"golang.org/x/sys/unix"
)

func diskUsage(path string) DiskUsage {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return DiskUsage{}
	}
	bsize := int64(st.Bsize)
	return newDiskUsage(int64(st.Blocks)*bsize, int64(st.Bavail)*bsize)
}

// processCPUTime returns user plus system time consumed by this process.
func processCPUTime() (time.Duration, bool) {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0, false
	}
	return time.Duration(ru.Utime.Nano() + ru.Stime.Nano()), true
}
