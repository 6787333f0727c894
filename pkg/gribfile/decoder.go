package gribfile

import (
	"fmt"
	"os"
)

// KeyType selects the representation a [Handle] returns for a key.
type KeyType int

const (
	// TypeAny lets the decoder pick the key's native representation.
	TypeAny KeyType = iota
	// TypeLong requests an int64.
	TypeLong
	// TypeDouble requests a float64.
	TypeDouble
	// TypeString requests a string.
	TypeString
)

// String returns the type name used in diagnostics and config files.
func (t KeyType) String() string {
	switch t {
	case TypeAny:
		return "any"
	case TypeLong:
		return "long"
	case TypeDouble:
		return "double"
	case TypeString:
		return "string"
	default:
		return fmt.Sprintf("KeyType(%d)", int(t))
	}
}

// A Decoder materializes decode handles from raw records. Implementations
// wrap a GRIB codec; [FrameDecoder] is the built-in one and only exposes
// framing-level keys.
//
// Open is called with a readable file positioned by offset, never by the
// file's seek position. The file stays open for the handle's whole life;
// the caller guarantees that, so implementations may read lazily.
type Decoder interface {
	Open(f *os.File, offset int64) (Handle, error)
}

// A Handle is one decoded record. Handles are not safe for concurrent
// use; the [Reader] serializes access to shared handles.
type Handle interface {
	// Get returns the value for key coerced to kind. A key the record
	// does not carry yields an error wrapping [ErrKeyMissing].
	Get(key string, kind KeyType) (any, error)

	// Values returns the decoded data values of the record.
	Values() ([]float64, error)

	// Buffer returns the record's raw bytes.
	Buffer() ([]byte, error)

	// Clone returns an independent copy of the handle that stays valid
	// after the source is closed. With headersOnly the copy drops the
	// data payload.
	Clone(headersOnly bool) (Handle, error)

	// SetValue overrides a key on this handle only.
	SetValue(key string, value any) error

	// Close releases decoder-side resources. It does not close the
	// underlying file, which the caller owns.
	Close() error
}
