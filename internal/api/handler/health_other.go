//go:build !linux && !darwin

package handler

import "time"

// Disk and CPU figures are only collected on Linux and macOS.

func diskUsage(path string) DiskUsage {
	return DiskUsage{}
}

func processCPUTime() (time.Duration, bool) {
	return 0, false
}
