//go:build linux

package zlconv

import "golang.org/x/sys/unix"

// setThreadPriority applies a best-effort OS thread niceness hint via
// setpriority(2), scoped to the calling thread's tid rather than the
// whole process, so distinct worker goroutines pinned with
// runtime.LockOSThread can carry distinct priorities. Higher-index
// partitions (larger windows, later deadlines) get a numerically higher
// (lower-precedence) niceness value.
func setThreadPriority(priority int) {
	nice := DefaultBasePriority - priority
	_ = unix.Setpriority(unix.PRIO_PROCESS, unix.Gettid(), nice)
}
