//go:build unix

package gribfile

import "golang.org/x/sys/unix"

// defaultFDBound caps pooled descriptors when the process limit allows.
const defaultFDBound = 512

// DefaultFDBound returns the descriptor budget used when no explicit
// pool is configured: 512, clamped to half the soft RLIMIT_NOFILE so
// pooled archives cannot starve the rest of the process.
func DefaultFDBound() int {
	bound := defaultFDBound

	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rl); err == nil && rl.Cur > 0 && rl.Cur < 1<<20 {
		if half := int(rl.Cur / 2); half < bound {
			bound = half
		}
	}

	if bound < 1 {
		bound = 1
	}

	return bound
}
