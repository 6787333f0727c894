package gribfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

// indexCacheVersion is bumped whenever the sidecar layout changes.
// Readers silently rebuild on mismatch, so bumping is always safe.
const indexCacheVersion = 1

// IndexCacheSuffix is appended to archive paths (or path hashes) to name
// the persisted index sidecar.
const IndexCacheSuffix = ".gribidx"

// indexSidecar is the on-disk shape of a persisted index. Size and
// MtimeNS identify the exact source file state the offsets were scanned
// from; any mismatch on load means the cache is stale. Editions are
// plain integers, not []byte, so the sidecar stays inspectable.
type indexSidecar struct {
	Version  int     `json:"version"`
	Size     int64   `json:"size"`
	MtimeNS  int64   `json:"mtime_ns"`
	Offsets  []int64 `json:"offsets"`
	Lengths  []int64 `json:"lengths"`
	Editions []int   `json:"editions"`
}

// IndexCachePath returns where the index sidecar for source lives. With
// an empty dir the sidecar sits next to the source file; otherwise it
// goes under dir with a name hashed from the absolute source path, so
// read-only archive directories still get persistent indexes.
func IndexCachePath(dir, source string) string {
	if dir == "" {
		return source + IndexCacheSuffix
	}

	abs, err := filepath.Abs(source)
	if err != nil {
		abs = source
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(abs))

	return filepath.Join(dir, fmt.Sprintf("%016x%s", h.Sum64(), IndexCacheSuffix))
}

// SaveIndexCache persists ix to cachePath. The write is atomic: readers
// never observe a partial sidecar.
func SaveIndexCache(cachePath string, ix *Index) error {
	editions := make([]int, len(ix.editions))
	for i, e := range ix.editions {
		editions[i] = int(e)
	}

	side := indexSidecar{
		Version:  indexCacheVersion,
		Size:     ix.identity.size,
		MtimeNS:  ix.identity.mtimeNS,
		Offsets:  ix.offsets,
		Lengths:  ix.lengths,
		Editions: editions,
	}

	data, err := json.Marshal(side)
	if err != nil {
		return fmt.Errorf("gribfile: encode index cache: %w", err)
	}

	if dir := filepath.Dir(cachePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("gribfile: create index cache dir: %w", err)
		}
	}

	if err := atomic.WriteFile(cachePath, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("gribfile: write index cache %s: %w", cachePath, err)
	}

	return nil
}

// LoadIndexCache loads the sidecar at cachePath, provided it matches
// the current state of the source file. Missing sidecars, version or
// layout drift, and a source that changed since indexing all come back
// as errors; callers treat every one of them as "rebuild from the
// file", never as fatal.
func LoadIndexCache(cachePath, source string) (*Index, error) {
	info, err := os.Stat(source)
	if err != nil {
		return nil, fmt.Errorf("gribfile: stat %s: %w", source, err)
	}

	return loadIndexCache(cachePath, source, identityOf(info))
}

// loadIndexCache reads the sidecar at cachePath and returns the index it
// holds, provided the sidecar matches the current source identity id.
// Every failure mode returns an error; callers treat them all the same
// way (scan from scratch) and use the error only for logging.
func loadIndexCache(cachePath, source string, id fileIdentity) (*Index, error) {
	data, err := os.ReadFile(cachePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errIndexCacheNotFound
		}

		return nil, fmt.Errorf("gribfile: read index cache %s: %w", cachePath, err)
	}

	var side indexSidecar
	if err := json.Unmarshal(data, &side); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errIndexCacheCorrupt, cachePath, err)
	}

	if side.Version != indexCacheVersion {
		return nil, fmt.Errorf("%w: have %d, want %d", errIndexCacheVersion, side.Version, indexCacheVersion)
	}

	if side.Size != id.size || side.MtimeNS != id.mtimeNS {
		return nil, fmt.Errorf("%w: source %s changed since indexing", errIndexCacheStale, source)
	}

	if len(side.Offsets) != len(side.Lengths) || len(side.Offsets) != len(side.Editions) {
		return nil, fmt.Errorf("%w: %s: column lengths disagree", errIndexCacheCorrupt, cachePath)
	}

	var prevEnd int64

	for i := range side.Offsets {
		if side.Offsets[i] < prevEnd || side.Lengths[i] <= 0 || side.Offsets[i]+side.Lengths[i] > side.Size {
			return nil, fmt.Errorf("%w: %s: record %d extent is impossible", errIndexCacheCorrupt, cachePath, i)
		}

		prevEnd = side.Offsets[i] + side.Lengths[i]
	}

	editions := make([]uint8, len(side.Editions))
	for i, e := range side.Editions {
		editions[i] = uint8(e)
	}

	return &Index{
		path:     source,
		identity: id,
		offsets:  side.Offsets,
		lengths:  side.Lengths,
		editions: editions,
	}, nil
}
