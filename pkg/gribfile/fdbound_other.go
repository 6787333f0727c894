//go:build !unix

package gribfile

const defaultFDBound = 512

// DefaultFDBound returns the descriptor budget used when no explicit
// pool is configured. Without rlimit information the fixed default
// stands.
func DefaultFDBound() int { return defaultFDBound }
