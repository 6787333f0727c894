package gribfile_test

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/wxtools/gribarc/pkg/gribfile"
)

// putBE3 writes a 3-byte big-endian unsigned integer.
func putBE3(b []byte, v int) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}

// grib2Record builds one synthetic edition 2 record of exactly total
// bytes (minimum 16). Filler bytes are 0xEE so no false "GRIB" marker
// can appear inside; the 3-byte edition 1 length slot is left as filler
// because edition 2 must not read it.
func grib2Record(total int) []byte {
	b := make([]byte, total)
	for i := range b {
		b[i] = 0xEE
	}

	copy(b, "GRIB")
	b[7] = 2
	binary.BigEndian.PutUint64(b[8:16], uint64(total))

	return b
}

// grib1Record builds one synthetic edition 1 record in the small form,
// with the total length carried directly in the 3-byte header slot.
func grib1Record(total int) []byte {
	b := make([]byte, total)
	for i := range b {
		b[i] = 0xEE
	}

	copy(b, "GRIB")
	putBE3(b[4:7], total)
	b[7] = 1

	return b
}

// grib1LargeRecord builds an edition 1 record in the large form: the
// header carries units-of-120 with the high bit set, and the true total
// is units*120 - s4len + 4. Section 1 is s1len bytes with the section
// 2/3 presence flags at its offset 7.
func grib1LargeRecord(units, s1len, s2len, s3len, s4len int, withS2, withS3 bool) []byte {
	total := units*gribfile.TestEd1LengthUnit - s4len + 4

	b := make([]byte, total)
	for i := range b {
		b[i] = 0xEE
	}

	copy(b, "GRIB")
	putBE3(b[4:7], 0x800000|units)
	b[7] = 1

	pos := 8
	putBE3(b[pos:pos+3], s1len)

	var flags byte
	if withS2 {
		flags |= 0x80
	}

	if withS3 {
		flags |= 0x40
	}

	b[pos+7] = flags
	pos += s1len

	if withS2 {
		putBE3(b[pos:pos+3], s2len)
		pos += s2len
	}

	if withS3 {
		putBE3(b[pos:pos+3], s3len)
		pos += s3len
	}

	putBE3(b[pos:pos+3], s4len)

	return b
}

// concat joins records into one archive image.
func concat(recs ...[]byte) []byte {
	var buf bytes.Buffer
	for _, r := range recs {
		buf.Write(r)
	}

	return buf.Bytes()
}

// writeArchive writes records to a fresh temp file and returns its path.
func writeArchive(t *testing.T, recs ...[]byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "archive.grib")
	if err := os.WriteFile(path, concat(recs...), 0o644); err != nil {
		t.Fatal(err)
	}

	return path
}

// fakeDecoder is an instrumented Decoder. It counts opens and key reads
// per record offset and tracks how many handles are live, so tests can
// observe cache policy behavior from outside.
type fakeDecoder struct {
	mu      sync.Mutex
	keys    map[string]any
	values  []float64
	failAt  map[int64]error
	opens   map[int64]int
	gets    map[int64]int
	live    int
	maxLive int
}

func newFakeDecoder() *fakeDecoder {
	return &fakeDecoder{
		keys:   map[string]any{"centre": int64(98), "shortName": "t2m"},
		values: []float64{1.5, 2.5, 4},
		failAt: make(map[int64]error),
		opens:  make(map[int64]int),
		gets:   make(map[int64]int),
	}
}

func (d *fakeDecoder) Open(_ *os.File, offset int64) (gribfile.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.failAt[offset]; err != nil {
		return nil, err
	}

	d.opens[offset]++
	d.live++

	if d.live > d.maxLive {
		d.maxLive = d.live
	}

	return &fakeHandle{dec: d, offset: offset}, nil
}

func (d *fakeDecoder) opensAt(offset int64) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.opens[offset]
}

func (d *fakeDecoder) getsAt(offset int64) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.gets[offset]
}

func (d *fakeDecoder) liveNow() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.live
}

func (d *fakeDecoder) maxLiveSeen() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.maxLive
}

type fakeHandle struct {
	dec    *fakeDecoder
	offset int64
	over   map[string]any
	closed bool
}

func (h *fakeHandle) Get(key string, _ gribfile.KeyType) (any, error) {
	h.dec.mu.Lock()
	defer h.dec.mu.Unlock()

	if h.closed {
		return nil, gribfile.ErrClosed
	}

	h.dec.gets[h.offset]++

	if v, ok := h.over[key]; ok {
		return v, nil
	}

	if v, ok := h.dec.keys[key]; ok {
		return v, nil
	}

	return nil, fmt.Errorf("fake: key %q: %w", key, gribfile.ErrKeyMissing)
}

func (h *fakeHandle) Values() ([]float64, error) {
	h.dec.mu.Lock()
	defer h.dec.mu.Unlock()

	if h.closed {
		return nil, gribfile.ErrClosed
	}

	out := make([]float64, len(h.dec.values))
	copy(out, h.dec.values)

	return out, nil
}

func (h *fakeHandle) Buffer() ([]byte, error) {
	return []byte("raw bytes"), nil
}

func (h *fakeHandle) Clone(bool) (gribfile.Handle, error) {
	c := &fakeHandle{dec: h.dec, offset: h.offset}
	for k, v := range h.over {
		if c.over == nil {
			c.over = make(map[string]any)
		}

		c.over[k] = v
	}

	return c, nil
}

func (h *fakeHandle) SetValue(key string, v any) error {
	h.dec.mu.Lock()
	defer h.dec.mu.Unlock()

	if h.over == nil {
		h.over = make(map[string]any)
	}

	h.over[key] = v

	return nil
}

func (h *fakeHandle) Close() error {
	h.dec.mu.Lock()
	defer h.dec.mu.Unlock()

	if !h.closed {
		h.closed = true
		h.dec.live--
	}

	return nil
}
