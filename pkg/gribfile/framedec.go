package gribfile

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
)

// Keys served by [FrameDecoder] handles.
const (
	KeyEdition     = "edition"
	KeyTotalLength = "totalLength"
	KeyOffset      = "offset"
)

// FrameDecoder is the built-in [Decoder]. It decodes nothing beyond the
// record framing: the keys [KeyEdition], [KeyTotalLength] and
// [KeyOffset], plus the raw record bytes. It exists so indexing, handle
// caching and the CLI work without a codec; a full GRIB codec plugs in
// through [Options.Decoder].
type FrameDecoder struct{}

// Open parses the record header at offset and returns a handle over it.
func (FrameDecoder) Open(f *os.File, offset int64) (Handle, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("gribfile: stat %s: %w", f.Name(), err)
	}

	seg, err := parseRecordHeader(f, offset, info.Size())
	if err != nil {
		if errors.Is(err, errNoRecord) {
			return nil, fmt.Errorf("gribfile: no record at %s offset %d: %w", f.Name(), offset, errNoRecord)
		}

		return nil, err
	}

	return &frameHandle{f: f, seg: seg}, nil
}

// frameHandle serves framing keys for one record. A nil f means the
// handle is a clone materialized into buf.
type frameHandle struct {
	f      *os.File
	buf    []byte
	seg    Segment
	closed bool
}

func (h *frameHandle) Get(key string, kind KeyType) (any, error) {
	if h.closed {
		return nil, fmt.Errorf("gribfile: get %q: %w", key, ErrClosed)
	}

	var v int64

	switch key {
	case KeyEdition:
		v = int64(h.seg.Edition)
	case KeyTotalLength:
		v = h.seg.Length
	case KeyOffset:
		v = h.seg.Offset
	default:
		return nil, fmt.Errorf("gribfile: key %q: %w", key, ErrKeyMissing)
	}

	switch kind {
	case TypeAny, TypeLong:
		return v, nil
	case TypeDouble:
		return float64(v), nil
	case TypeString:
		return strconv.FormatInt(v, 10), nil
	default:
		return nil, fmt.Errorf("gribfile: key %q as %v: %w", key, kind, ErrNotSupported)
	}
}

// Values always fails: frame handles do not unpack the data section.
func (h *frameHandle) Values() ([]float64, error) {
	if h.closed {
		return nil, fmt.Errorf("gribfile: values: %w", ErrClosed)
	}

	return nil, fmt.Errorf("gribfile: frame handles carry no data values: %w", ErrNotSupported)
}

func (h *frameHandle) Buffer() ([]byte, error) {
	if h.closed {
		return nil, fmt.Errorf("gribfile: buffer: %w", ErrClosed)
	}

	if h.f == nil {
		if h.buf == nil {
			return nil, fmt.Errorf("gribfile: headers-only clone has no buffer: %w", ErrNotSupported)
		}

		return bytes.Clone(h.buf), nil
	}

	buf := make([]byte, h.seg.Length)
	if err := readFullAt(h.f, buf, h.seg.Offset, h.seg.End()); err != nil {
		return nil, err
	}

	return buf, nil
}

// Clone copies the handle so it stays valid after the source closes.
// Unless headersOnly is set the record bytes are materialized in memory.
func (h *frameHandle) Clone(headersOnly bool) (Handle, error) {
	if h.closed {
		return nil, fmt.Errorf("gribfile: clone: %w", ErrClosed)
	}

	c := &frameHandle{seg: h.seg}
	if headersOnly {
		return c, nil
	}

	buf, err := h.Buffer()
	if err != nil {
		return nil, fmt.Errorf("gribfile: clone: %w", err)
	}

	c.buf = buf

	return c, nil
}

// SetValue always fails: framing facts are immutable.
func (h *frameHandle) SetValue(key string, _ any) error {
	if h.closed {
		return fmt.Errorf("gribfile: set %q: %w", key, ErrClosed)
	}

	return fmt.Errorf("gribfile: set %q on frame handle: %w", key, ErrNotSupported)
}

func (h *frameHandle) Close() error {
	h.closed = true
	h.buf = nil

	return nil
}
