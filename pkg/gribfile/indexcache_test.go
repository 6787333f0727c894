package gribfile_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wxtools/gribarc/pkg/gribfile"
)

func statIdentity(t *testing.T, path string) (int64, int64) {
	t.Helper()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}

	return info.Size(), info.ModTime().UnixNano()
}

// doctorSidecar rewrites one top-level JSON field of the sidecar.
func doctorSidecar(t *testing.T, path, field string, value any) {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}

	raw[field] = value

	out, err := json.Marshal(raw)
	if err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, out, 0o644); err != nil {
		t.Fatal(err)
	}
}

func Test_IndexCache_RoundTrip_Restores_Identical_Extents(t *testing.T) {
	t.Parallel()

	path := writeArchive(t, grib2Record(100), grib1Record(48), grib2Record(72))

	built, err := gribfile.BuildIndex(path)
	if err != nil {
		t.Fatal(err)
	}

	side := gribfile.IndexCachePath("", path)
	if err := gribfile.SaveIndexCache(side, built); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := gribfile.LoadIndexCache(side, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if loaded.Len() != built.Len() {
		t.Fatalf("loaded %d records, built %d", loaded.Len(), built.Len())
	}

	for n := range built.Len() {
		wantSeg, _ := built.Segment(n)

		gotSeg, err := loaded.Segment(n)
		if err != nil {
			t.Fatalf("segment %d: %v", n, err)
		}

		if diff := cmp.Diff(wantSeg, gotSeg); diff != "" {
			t.Fatalf("segment %d mismatch (-want +got):\n%s", n, diff)
		}
	}
}

func Test_IndexCache_Missing_Sidecar_Is_Not_Found(t *testing.T) {
	t.Parallel()

	path := writeArchive(t, grib2Record(32))
	size, mtime := statIdentity(t, path)

	_, err := gribfile.LoadIndexCacheForTest(path+gribfile.IndexCacheSuffix, path, gribfile.IdentityForTest(size, mtime))
	if !errors.Is(err, gribfile.ErrTestIndexCacheNotFound) {
		t.Fatalf("err = %v, want not-found", err)
	}
}

func Test_IndexCache_Version_Mismatch_Is_A_Miss(t *testing.T) {
	t.Parallel()

	path := writeArchive(t, grib2Record(32))

	built, err := gribfile.BuildIndex(path)
	if err != nil {
		t.Fatal(err)
	}

	side := gribfile.IndexCachePath("", path)
	if err := gribfile.SaveIndexCache(side, built); err != nil {
		t.Fatal(err)
	}

	doctorSidecar(t, side, "version", gribfile.TestIndexCacheVersion+1)

	size, mtime := statIdentity(t, path)

	_, err = gribfile.LoadIndexCacheForTest(side, path, gribfile.IdentityForTest(size, mtime))
	if !errors.Is(err, gribfile.ErrTestIndexCacheVersion) {
		t.Fatalf("err = %v, want version mismatch", err)
	}
}

func Test_IndexCache_Changed_Source_Is_Stale(t *testing.T) {
	t.Parallel()

	path := writeArchive(t, grib2Record(32))

	built, err := gribfile.BuildIndex(path)
	if err != nil {
		t.Fatal(err)
	}

	side := gribfile.IndexCachePath("", path)
	if err := gribfile.SaveIndexCache(side, built); err != nil {
		t.Fatal(err)
	}

	size, mtime := statIdentity(t, path)

	for _, id := range []struct {
		name string
		size int64
		mt   int64
	}{
		{"size changed", size + 1, mtime},
		{"mtime changed", size, mtime + 1},
	} {
		_, err = gribfile.LoadIndexCacheForTest(side, path, gribfile.IdentityForTest(id.size, id.mt))
		if !errors.Is(err, gribfile.ErrTestIndexCacheStale) {
			t.Fatalf("%s: err = %v, want stale", id.name, err)
		}
	}
}

func Test_IndexCache_Corrupt_JSON_Is_A_Miss(t *testing.T) {
	t.Parallel()

	path := writeArchive(t, grib2Record(32))
	side := gribfile.IndexCachePath("", path)

	if err := os.WriteFile(side, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	size, mtime := statIdentity(t, path)

	_, err := gribfile.LoadIndexCacheForTest(side, path, gribfile.IdentityForTest(size, mtime))
	if !errors.Is(err, gribfile.ErrTestIndexCacheCorrupt) {
		t.Fatalf("err = %v, want corrupt", err)
	}
}

func Test_IndexCache_Impossible_Extents_Are_A_Miss(t *testing.T) {
	t.Parallel()

	path := writeArchive(t, grib2Record(32), grib2Record(32))

	built, err := gribfile.BuildIndex(path)
	if err != nil {
		t.Fatal(err)
	}

	side := gribfile.IndexCachePath("", path)
	if err := gribfile.SaveIndexCache(side, built); err != nil {
		t.Fatal(err)
	}

	// Overlapping records cannot come from a real scan.
	doctorSidecar(t, side, "offsets", []int64{0, 16})

	size, mtime := statIdentity(t, path)

	_, err = gribfile.LoadIndexCacheForTest(side, path, gribfile.IdentityForTest(size, mtime))
	if !errors.Is(err, gribfile.ErrTestIndexCacheCorrupt) {
		t.Fatalf("err = %v, want corrupt", err)
	}
}

func Test_IndexCachePath_Sits_Next_To_Archive_By_Default(t *testing.T) {
	t.Parallel()

	got := gribfile.IndexCachePath("", "/data/era5.grib")
	if got != "/data/era5.grib"+gribfile.IndexCacheSuffix {
		t.Fatalf("path = %q", got)
	}
}

func Test_IndexCachePath_Hashes_Into_Index_Dir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	a := gribfile.IndexCachePath(dir, "/data/a.grib")
	b := gribfile.IndexCachePath(dir, "/data/b.grib")
	a2 := gribfile.IndexCachePath(dir, "/data/a.grib")

	if a == b {
		t.Fatalf("distinct sources share sidecar %q", a)
	}

	if a != a2 {
		t.Fatalf("same source hashed differently: %q vs %q", a, a2)
	}

	if filepath.Dir(a) != dir {
		t.Fatalf("sidecar %q not under %q", a, dir)
	}

	if !strings.HasSuffix(a, gribfile.IndexCacheSuffix) {
		t.Fatalf("sidecar %q lacks suffix", a)
	}
}
