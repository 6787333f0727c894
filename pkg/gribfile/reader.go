package gribfile

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
)

// A Reader gives random access to the records of one archive file. The
// archive is indexed once at Open; records decode lazily, through
// handles governed by the configured [HandlePolicy].
//
// Readers are safe for concurrent use.
type Reader struct {
	path      string
	idx       *Index
	list      *FieldList
	store     handleStore
	pool      *FDPool
	ownedPool bool
	metaOn    bool
	log       *zap.SugaredLogger

	mu     sync.Mutex
	closed bool
}

// Open indexes the archive at path and returns a Reader over it. The
// index is loaded from its sidecar when one matches the file's current
// size and mtime; otherwise the archive is scanned and, unless
// disabled, the sidecar rewritten. A stale or unreadable sidecar is
// never an error, just a scan.
func Open(path string, opts Options) (*Reader, error) {
	// A pinned handle lives on its Field wrapper; discarding wrappers per
	// access would strand the pins with no way to release them.
	if opts.HandlePolicy == HandlePersistent && opts.FieldRetention == RetainTemporary {
		return nil, fmt.Errorf("gribfile: persistent handles need retained field wrappers: %w", ErrInvalidOptions)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if opts.Decoder == nil {
		opts.Decoder = FrameDecoder{}
	}

	pool := opts.FDPool
	ownedPool := false

	if pool == nil {
		pool = NewFDPool(0)
		ownedPool = true
	}

	r := &Reader{
		path:      path,
		pool:      pool,
		ownedPool: ownedPool,
		metaOn:    !opts.DisableMetadataCache,
		log:       logger.Sugar(),
	}

	decoder := opts.Decoder
	open := func(loc Locator) (*openHandle, error) {
		pf, err := pool.Acquire(loc.Path)
		if err != nil {
			return nil, err
		}

		h, err := decoder.Open(pf.File(), loc.Offset)
		if err != nil {
			_ = pf.Close()
			return nil, fmt.Errorf("gribfile: decode %s: %w", loc, err)
		}

		return &openHandle{h: h, pf: pf}, nil
	}

	store, err := newHandleStore(opts.HandlePolicy, opts.HandleCacheSize, open)
	if err != nil {
		r.closeSetup()
		return nil, err
	}

	r.store = store

	idx, err := r.loadOrBuildIndex(path, opts)
	if err != nil {
		r.closeSetup()
		return nil, err
	}

	r.idx = idx
	r.list = newEagerFieldList(idx, r.newField, opts.FieldRetention)

	return r, nil
}

// loadOrBuildIndex resolves the record index, preferring a matching
// sidecar over a scan.
func (r *Reader) loadOrBuildIndex(path string, opts Options) (*Index, error) {
	cachePath := IndexCachePath(opts.IndexDir, path)

	if !opts.DisableIndexCache {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("gribfile: stat %s: %w", path, err)
		}

		idx, err := loadIndexCache(cachePath, path, identityOf(info))
		if err == nil {
			r.log.Debugw("index cache hit", "path", path, "cache", cachePath, "records", idx.Len())
			return idx, nil
		}

		r.log.Debugw("index cache unusable, scanning", "path", path, "cache", cachePath, "reason", err)
	}

	idx, err := BuildIndex(path)
	if err != nil {
		return nil, err
	}

	if !opts.DisableIndexCache {
		if err := SaveIndexCache(cachePath, idx); err != nil {
			// The index still works this session; only reopen speed is lost.
			r.log.Warnw("index cache write failed", "cache", cachePath, "error", err)
		}
	}

	return idx, nil
}

func (r *Reader) newField(loc Locator) *Field {
	f := &Field{loc: loc, store: r.store}
	if r.metaOn {
		f.meta = newMetaCache()
	}

	return f
}

// closeSetup unwinds a partially constructed Reader.
func (r *Reader) closeSetup() {
	if r.ownedPool {
		_ = r.pool.Close()
	}
}

// Path returns the archive path the Reader was opened with.
func (r *Reader) Path() string { return r.path }

// Len returns the number of records in the archive.
func (r *Reader) Len() int { return r.idx.Len() }

// Index exposes the positional index.
func (r *Reader) Index() *Index { return r.idx }

// Fields returns the reader's field collection.
func (r *Reader) Fields() *FieldList { return r.list }

// Field returns record n as a lazy [Field].
func (r *Reader) Field(n int) (*Field, error) { return r.list.Get(n) }

// Segment returns the framing facts of record n.
func (r *Reader) Segment(n int) (Segment, error) { return r.idx.Segment(n) }

// Close releases retained fields, cached handles and, when the Reader
// owns it, the descriptor pool. Close is idempotent; fields and handles
// still borrowed elsewhere finish their current operation first.
func (r *Reader) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}

	r.closed = true
	r.mu.Unlock()

	var errs []error

	if err := r.list.Close(); err != nil {
		errs = append(errs, err)
	}

	if err := r.store.close(); err != nil {
		errs = append(errs, err)
	}

	if r.ownedPool {
		if err := r.pool.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
