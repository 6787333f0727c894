package gribfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	gribMagic = "GRIB"

	// Edition 1 stores the total record length in 3 bytes. This bit marks
	// the large-record form where the true length must be reconstructed
	// from the section lengths.
	ed1LargeBit = 0x800000

	// Presence bits for the optional sections, read from the flags byte
	// at offset 7 of section 1.
	ed1HasSection2 = 0x80
	ed1HasSection3 = 0x40

	// Large-form lengths count in units of 120 bytes; section 4 is
	// shrunk below this threshold to make the padded total divisible.
	ed1LengthUnit = 120

	// Smallest byte counts that can hold the fixed header sections.
	// Anything shorter cannot be a record and the scanner resumes the
	// marker search instead of emitting it.
	ed1MinLength = 8
	ed2MinLength = 16

	scanChunkSize = 64 * 1024
)

// errNoRecord marks a "GRIB" marker that is not followed by a plausible
// record header. The scanner resumes the search one byte later.
var errNoRecord = errors.New("gribfile: not a record")

// A Segment locates one raw record inside an archive file.
type Segment struct {
	Offset  int64
	Length  int64
	Edition uint8
}

// End returns the file offset one past the record's last byte.
func (s Segment) End() int64 { return s.Offset + s.Length }

// Scanner walks a GRIB archive and reports each record's byte extent
// without decoding payloads. The search tolerates leading garbage and
// foreign bytes between records: anything that does not parse as a
// record header is skipped one byte at a time until the next "GRIB"
// marker.
//
// Usage mirrors [bufio.Scanner]:
//
//	sc := gribfile.NewScanner(f, size)
//	for sc.Scan() {
//	    seg := sc.Segment()
//	    ...
//	}
//	if err := sc.Err(); err != nil {
//	    ...
//	}
type Scanner struct {
	r    io.ReaderAt
	size int64
	cur  int64
	seg  Segment
	err  error
	done bool

	chunk []byte
}

// NewScanner returns a Scanner over the first size bytes of r.
func NewScanner(r io.ReaderAt, size int64) *Scanner {
	return &Scanner{r: r, size: size, chunk: make([]byte, scanChunkSize)}
}

// Scan advances to the next record. It returns false when the input is
// exhausted or on the first error; Err tells the two apart.
func (s *Scanner) Scan() bool {
	if s.done || s.err != nil {
		return false
	}

	for {
		off, ok := s.findMagic(s.cur)
		if !ok {
			s.done = true
			return false
		}

		seg, err := parseRecordHeader(s.r, off, s.size)
		if errors.Is(err, errNoRecord) {
			s.cur = off + 1
			continue
		}

		if err != nil {
			s.err = err
			s.done = true

			return false
		}

		s.seg = seg
		s.cur = seg.End()

		return true
	}
}

// Segment returns the record found by the last successful Scan.
func (s *Scanner) Segment() Segment { return s.seg }

// Err returns the first error encountered by Scan. Running out of input
// is not an error; a record that overruns the end of the file is.
func (s *Scanner) Err() error { return s.err }

// findMagic returns the offset of the next "GRIB" marker at or after
// from. Chunks overlap by len(gribMagic)-1 bytes so a marker straddling
// a chunk boundary is still found. The search stops once fewer than
// len(gribMagic) bytes remain.
func (s *Scanner) findMagic(from int64) (int64, bool) {
	pos := from

	for pos+int64(len(gribMagic)) <= s.size {
		want := s.size - pos
		if want > int64(len(s.chunk)) {
			want = int64(len(s.chunk))
		}

		n, err := s.r.ReadAt(s.chunk[:want], pos)
		if i := bytes.Index(s.chunk[:n], []byte(gribMagic)); i >= 0 {
			return pos + int64(i), true
		}

		if err != nil && !errors.Is(err, io.EOF) {
			s.err = fmt.Errorf("gribfile: read at offset %d: %w", pos, err)
			return 0, false
		}

		if int64(n) < want {
			return 0, false
		}

		pos += int64(n) - int64(len(gribMagic)) + 1
	}

	return 0, false
}

// parseRecordHeader interprets the bytes at off as a record header and
// returns the record's extent. It returns errNoRecord when the bytes
// cannot begin a record, and an error wrapping ErrTruncated when they
// do but the file ends before the record does.
func parseRecordHeader(r io.ReaderAt, off, size int64) (Segment, error) {
	var hdr [8]byte
	if err := readFullAt(r, hdr[:], off, size); err != nil {
		return Segment{}, err
	}

	if string(hdr[:4]) != gribMagic {
		return Segment{}, errNoRecord
	}

	edition := hdr[7]
	length := int64(be3(hdr[4:7]))

	var total int64

	switch edition {
	case 1:
		total = length
		if length&ed1LargeBit != 0 {
			t, err := edition1LargeLength(r, off, length, size)
			if err != nil {
				return Segment{}, err
			}

			total = t
		}

		if total < ed1MinLength {
			return Segment{}, errNoRecord
		}
	case 2:
		var tl [8]byte
		if err := readFullAt(r, tl[:], off+8, size); err != nil {
			return Segment{}, err
		}

		u := binary.BigEndian.Uint64(tl[:])
		if u > math.MaxInt64 {
			return Segment{}, fmt.Errorf("gribfile: record at offset %d: length %d overflows: %w", off, u, ErrTruncated)
		}

		total = int64(u)
		if total < ed2MinLength {
			return Segment{}, errNoRecord
		}
	default:
		return Segment{}, errNoRecord
	}

	if off+total > size {
		return Segment{}, fmt.Errorf("gribfile: record at offset %d: declared %d bytes, file has %d left: %w",
			off, total, size-off, ErrTruncated)
	}

	return Segment{Offset: off, Length: total, Edition: edition}, nil
}

// edition1LargeLength reconstructs the total length of a large edition 1
// record by walking the section lengths. The header length counts
// 120-byte units; the exact byte count is recovered from section 4,
// which encoders shrink below 120 bytes to make the padded total come
// out divisible. When section 4 is not shrunk the header length stands
// as read.
func edition1LargeLength(r io.ReaderAt, off, raw, size int64) (int64, error) {
	var b [3]byte

	// Section 1 starts right after the 8-byte indicator section and
	// carries the section 2/3 presence flags at its offset 7.
	pos := off + 8

	var s1 [8]byte
	if err := readFullAt(r, s1[:], pos, size); err != nil {
		return 0, err
	}

	flags := s1[7]
	pos += int64(be3(s1[:3]))

	if flags&ed1HasSection2 != 0 {
		if err := readFullAt(r, b[:], pos, size); err != nil {
			return 0, err
		}

		pos += int64(be3(b[:]))
	}

	if flags&ed1HasSection3 != 0 {
		if err := readFullAt(r, b[:], pos, size); err != nil {
			return 0, err
		}

		pos += int64(be3(b[:]))
	}

	if err := readFullAt(r, b[:], pos, size); err != nil {
		return 0, err
	}

	s4 := int64(be3(b[:]))
	if s4 >= ed1LengthUnit {
		return raw, nil
	}

	return (raw&^ed1LargeBit)*ed1LengthUnit - s4 + 4, nil
}

// readFullAt fills p from r at off, treating any read that would cross
// size as a truncated record.
func readFullAt(r io.ReaderAt, p []byte, off, size int64) error {
	if off+int64(len(p)) > size {
		return fmt.Errorf("gribfile: need %d bytes at offset %d, file ends at %d: %w",
			len(p), off, size, ErrTruncated)
	}

	n, err := r.ReadAt(p, off)
	if n == len(p) {
		return nil
	}

	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}

	return fmt.Errorf("gribfile: read %d bytes at offset %d: %w", len(p), off, err)
}

// be3 decodes a 3-byte big-endian unsigned integer.
func be3(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}
