package gribfile

import "errors"

// Sentinel errors returned by gribfile operations.
//
// Callers should use [errors.Is] to check error types:
//
//	if errors.Is(err, gribfile.ErrTruncated) {
//	    // archive was cut short mid-record; re-fetch or repair the file
//	}
var (
	// ErrTruncated indicates a record header declared more bytes than the
	// file holds, or a header itself was cut off at end of file.
	//
	// Recovery: the source file is damaged or still being written;
	// re-acquire it and rebuild the index.
	ErrTruncated = errors.New("gribfile: truncated record")

	// ErrOutOfRange indicates a record ordinal outside [0, Len).
	//
	// This is a programming error.
	ErrOutOfRange = errors.New("gribfile: record index out of range")

	// ErrKeyMissing indicates the decoder has no value for the requested
	// key. [Field.Key] converts this into the caller's default unless
	// [KeyOptions.Strict] is set.
	ErrKeyMissing = errors.New("gribfile: key not found")

	// ErrClosed indicates the [Reader], pool, or handle has already been
	// closed.
	//
	// This is a programming error.
	ErrClosed = errors.New("gribfile: closed")

	// ErrNotSupported indicates the decoder cannot perform the requested
	// operation (for example [FrameDecoder] handles carry no data values).
	ErrNotSupported = errors.New("gribfile: not supported")

	// ErrInvalidOptions indicates [Options] failed validation.
	//
	// Common causes: a negative HandleCacheSize, an unrecognized policy
	// value, or a policy combination the reader cannot honor.
	//
	// This is a programming error.
	ErrInvalidOptions = errors.New("gribfile: invalid options")
)

// Unexported sentinels for index sidecar misses. Callers of
// loadIndexCache treat every error as "no usable cache"; these exist so
// logs can say why.
var (
	errIndexCacheNotFound = errors.New("gribfile: index cache not found")
	errIndexCacheVersion  = errors.New("gribfile: index cache version mismatch")
	errIndexCacheStale    = errors.New("gribfile: index cache stale")
	errIndexCacheCorrupt  = errors.New("gribfile: index cache corrupt")
)
