// Package gribfile provides random access to the records of GRIB
// archive files.
//
// A GRIB archive is a flat concatenation of self-contained binary
// records with no table of contents. gribfile scans the framing once,
// remembers every record's byte extent, and persists that index in a
// sidecar file so later opens skip the scan. Records decode lazily
// through a pluggable [Decoder]; open decode handles and file
// descriptors are recycled through bounded caches.
//
// # Basic Usage
//
//	r, err := gribfile.Open("analysis.grib", gribfile.Options{})
//	if err != nil {
//	    // handle [ErrTruncated] by re-acquiring the archive
//	}
//	defer r.Close()
//
//	f, err := r.Field(3)
//	edition, err := f.Key("edition", gribfile.KeyOptions{Kind: gribfile.TypeLong})
//
// # Caching Layers
//
// Three independent layers avoid repeated work, each with its own
// policy knob in [Options]:
//
//   - The position index maps record ordinals to byte extents. It is
//     built once per archive state and persisted next to the archive
//     (or under [Options.IndexDir]). A sidecar whose version, size or
//     mtime does not match is silently ignored and rebuilt.
//   - Decode handles are kept per [HandlePolicy]: a bounded LRU shared
//     by the Reader, a pinned handle per Field, or none at all.
//   - Key lookups memoize per Field, so repeating one never reopens an
//     evicted handle.
//
// # Concurrency
//
// [Reader], [Field] and [FieldList] are safe for concurrent use. Decode
// handles are not; the reader serializes callers that land on the same
// record. Deferred lists drain their producer exactly once no matter
// how many goroutines touch them first.
//
// # Error Handling
//
// Failures carry sentinel errors checkable with [errors.Is]:
// [ErrTruncated] means the archive itself is damaged, [ErrOutOfRange]
// and [ErrClosed] are programming errors, [ErrKeyMissing] surfaces only
// under [KeyOptions.Strict], and [ErrNotSupported] marks operations the
// configured decoder cannot do. A broken index sidecar is never an
// error; it costs one scan.
package gribfile
