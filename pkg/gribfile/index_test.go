package gribfile_test

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/wxtools/gribarc/pkg/gribfile"
)

func Test_BuildIndex_Fifty_Records_Tile_The_File_Exactly(t *testing.T) {
	t.Parallel()

	recs := make([][]byte, 50)
	for i := range 50 {
		// Vary the sizes so offsets are not a simple multiple.
		recs[i] = grib2Record(16 + 8*(i%7))
	}

	path := writeArchive(t, recs...)

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}

	ix, err := gribfile.BuildIndex(path)
	if err != nil {
		t.Fatalf("build index: %v", err)
	}

	if ix.Len() != 50 {
		t.Fatalf("Len() = %d, want 50", ix.Len())
	}

	first, err := ix.Locator(0)
	if err != nil {
		t.Fatal(err)
	}

	if first.Offset != 0 {
		t.Fatalf("first record at %d, want 0", first.Offset)
	}

	var end int64

	for n := range ix.Len() {
		loc, err := ix.Locator(n)
		if err != nil {
			t.Fatalf("locator %d: %v", n, err)
		}

		if loc.Offset != end {
			t.Fatalf("record %d at %d, want %d (records must tile without gaps)", n, loc.Offset, end)
		}

		if loc.Length != int64(len(recs[n])) {
			t.Fatalf("record %d length = %d, want %d", n, loc.Length, len(recs[n]))
		}

		end = loc.Offset + loc.Length
	}

	if end != info.Size() {
		t.Fatalf("last record ends at %d, file has %d bytes", end, info.Size())
	}
}

func Test_Index_Locator_Rejects_Out_Of_Range_Ordinals(t *testing.T) {
	t.Parallel()

	path := writeArchive(t, grib2Record(32), grib2Record(32))

	ix, err := gribfile.BuildIndex(path)
	if err != nil {
		t.Fatal(err)
	}

	for _, n := range []int{-1, 2, 99} {
		_, err := ix.Locator(n)
		if !errors.Is(err, gribfile.ErrOutOfRange) {
			t.Fatalf("Locator(%d) err = %v, want ErrOutOfRange", n, err)
		}
	}

	// The message must name the offending ordinal.
	_, err = ix.Locator(99)
	if err == nil || !strings.Contains(err.Error(), "99") {
		t.Fatalf("Locator(99) err = %v, want it to name the ordinal", err)
	}
}

func Test_Index_Segment_Carries_Edition(t *testing.T) {
	t.Parallel()

	path := writeArchive(t, grib1Record(64), grib2Record(32))

	ix, err := gribfile.BuildIndex(path)
	if err != nil {
		t.Fatal(err)
	}

	seg0, err := ix.Segment(0)
	if err != nil {
		t.Fatal(err)
	}

	seg1, err := ix.Segment(1)
	if err != nil {
		t.Fatal(err)
	}

	if seg0.Edition != 1 || seg1.Edition != 2 {
		t.Fatalf("editions = %d, %d, want 1, 2", seg0.Edition, seg1.Edition)
	}
}

func Test_BuildIndex_Propagates_Truncation(t *testing.T) {
	t.Parallel()

	data := concat(grib2Record(64), grib2Record(64))
	data = data[:len(data)-5]

	path := writeArchive(t, data)

	_, err := gribfile.BuildIndex(path)
	if !errors.Is(err, gribfile.ErrTruncated) {
		t.Fatalf("err = %v, want ErrTruncated", err)
	}
}

func Test_BuildIndex_Missing_File_Fails(t *testing.T) {
	t.Parallel()

	_, err := gribfile.BuildIndex("/does/not/exist.grib")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want ErrNotExist", err)
	}
}
