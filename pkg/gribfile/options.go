package gribfile

import "go.uber.org/zap"

// Options configures [Open]. The zero value selects every default: the
// bounded handle cache, persistent field wrappers, metadata memoization
// on, sidecar indexes next to the archive, the [FrameDecoder], a
// private descriptor pool and no logging.
type Options struct {
	// HandlePolicy selects how decode handles are kept between
	// operations. Default [HandleCache].
	HandlePolicy HandlePolicy

	// HandleCacheSize bounds the handle LRU under [HandleCache]. Zero
	// means [DefaultHandleCacheSize]; negative values are rejected.
	// Ignored by the other policies.
	HandleCacheSize int

	// FieldRetention selects whether Field wrappers are reused across
	// accesses. Default [RetainPersistent]. [RetainTemporary] cannot be
	// combined with [HandlePersistent]: pinned handles live on their
	// wrappers, so the wrappers must be retained.
	FieldRetention FieldRetention

	// DisableMetadataCache turns off per-field key memoization. Lookups
	// then always go through a decode handle.
	DisableMetadataCache bool

	// IndexDir stores persisted index sidecars under this directory,
	// named by a hash of the archive path. Empty keeps each sidecar
	// next to its archive.
	IndexDir string

	// DisableIndexCache skips loading and writing index sidecars; every
	// Open scans the archive front to back.
	DisableIndexCache bool

	// Decoder turns raw records into decode handles. Nil selects
	// [FrameDecoder].
	Decoder Decoder

	// FDPool shares descriptors across readers. Nil gives the Reader a
	// private pool that closes with it; a supplied pool is shared and
	// left open.
	FDPool *FDPool

	// Logger receives index-cache diagnostics: misses at debug level,
	// failed sidecar writes at warn. Nil means silent.
	Logger *zap.Logger
}
