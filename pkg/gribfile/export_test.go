package gribfile

// Hooks for tests in gribfile_test.

// LoadIndexCacheForTest exposes the sidecar load path so miss reasons
// can be asserted directly.
var LoadIndexCacheForTest = loadIndexCache

// IdentityForTest builds the identity the sidecar is validated against.
func IdentityForTest(size, mtimeNS int64) fileIdentity {
	return fileIdentity{size: size, mtimeNS: mtimeNS}
}

// Exported miss reasons for testing.
var (
	ErrTestIndexCacheNotFound = errIndexCacheNotFound
	ErrTestIndexCacheVersion  = errIndexCacheVersion
	ErrTestIndexCacheStale    = errIndexCacheStale
	ErrTestIndexCacheCorrupt  = errIndexCacheCorrupt
)

// Exported format constants for testing.
const (
	TestIndexCacheVersion = indexCacheVersion
	TestEd1LengthUnit     = ed1LengthUnit
)
