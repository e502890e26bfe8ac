//go:build !linux

package zlconv

// setThreadPriority is a no-op on platforms without a setpriority(2)
// equivalent wired up here; workers fall back to the Go scheduler's
// default goroutine priority.
func setThreadPriority(priority int) {}
