package util

import "runtime"

// GetOptimalPoolSize returns the number of concurrent transforms to run.
//
// Transforms are dominated by external Less compiler processes, so the pool
// follows the core count: min(max(runtime.NumCPU(), 2), 16).
func GetOptimalPoolSize() int {
	size := runtime.NumCPU()
	if size < 2 {
		size = 2
	}
	if size > 16 {
		size = 16
	}
	return size
}

// GetOptimalPoolSizeWithOverride returns override when positive, otherwise
// GetOptimalPoolSize().
func GetOptimalPoolSizeWithOverride(override int) int {
	if override > 0 {
		return override
	}
	return GetOptimalPoolSize()
}
