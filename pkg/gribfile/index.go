package gribfile

import (
	"fmt"
	"io"
	"os"
)

// A Locator names one record's byte extent within a file. Locators are
// the currency between the index, the handle cache and the fd pool.
type Locator struct {
	Path   string
	Offset int64
	Length int64
}

func (l Locator) String() string {
	return fmt.Sprintf("%s@%d+%d", l.Path, l.Offset, l.Length)
}

// fileIdentity pins an index to the exact file state it was built from.
// A size or mtime change invalidates persisted indexes.
type fileIdentity struct {
	size    int64
	mtimeNS int64
}

func identityOf(info os.FileInfo) fileIdentity {
	return fileIdentity{size: info.Size(), mtimeNS: info.ModTime().UnixNano()}
}

// An Index maps record ordinals to byte extents for one archive file.
// It is built by a single scan pass and is immutable afterwards, so it
// is safe for concurrent use.
type Index struct {
	path     string
	identity fileIdentity
	offsets  []int64
	lengths  []int64
	editions []uint8
}

// BuildIndex scans the file at path and records every record's extent.
// The scan runs once, front to back; whatever the scanner rejects fails
// the build.
func BuildIndex(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gribfile: open %s: %w", path, err)
	}

	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("gribfile: stat %s: %w", path, err)
	}

	return buildIndex(f, path, identityOf(info))
}

func buildIndex(r io.ReaderAt, path string, id fileIdentity) (*Index, error) {
	ix := &Index{path: path, identity: id}

	sc := NewScanner(r, id.size)
	for sc.Scan() {
		seg := sc.Segment()
		ix.offsets = append(ix.offsets, seg.Offset)
		ix.lengths = append(ix.lengths, seg.Length)
		ix.editions = append(ix.editions, seg.Edition)
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("gribfile: scan %s: %w", path, err)
	}

	return ix, nil
}

// Len returns the number of records.
func (ix *Index) Len() int { return len(ix.offsets) }

// Path returns the archive file the index describes.
func (ix *Index) Path() string { return ix.path }

// Locator returns the byte extent of record n.
func (ix *Index) Locator(n int) (Locator, error) {
	if n < 0 || n >= len(ix.offsets) {
		return Locator{}, fmt.Errorf("gribfile: record %d of %d: %w", n, len(ix.offsets), ErrOutOfRange)
	}

	return Locator{Path: ix.path, Offset: ix.offsets[n], Length: ix.lengths[n]}, nil
}

// Segment returns the extent plus edition of record n.
func (ix *Index) Segment(n int) (Segment, error) {
	if n < 0 || n >= len(ix.offsets) {
		return Segment{}, fmt.Errorf("gribfile: record %d of %d: %w", n, len(ix.offsets), ErrOutOfRange)
	}

	return Segment{Offset: ix.offsets[n], Length: ix.lengths[n], Edition: ix.editions[n]}, nil
}
