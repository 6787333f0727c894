package gribfile

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sync/singleflight"
)

// FDPool shares open file descriptors across readers and decode
// handles. Entries are refcounted: the bound caps how many paths stay
// pooled, while a descriptor evicted under pressure keeps serving its
// borrowers and closes when the last one returns it.
//
// The zero value is not usable; call [NewFDPool].
type FDPool struct {
	mu      sync.Mutex
	bound   int
	clock   uint64
	entries map[string]*pooledFD
	closed  bool

	group singleflight.Group
}

type pooledFD struct {
	f       *os.File
	path    string
	refs    int
	lastUse uint64
	evicted bool
}

// A PooledFile is one borrowed descriptor. Close returns it to the
// pool; calling it more than once is harmless, never calling it leaks
// the borrow.
type PooledFile struct {
	pool  *FDPool
	entry *pooledFD
	once  sync.Once
	err   error
}

// File exposes the underlying descriptor. It stays valid until Close.
func (pf *PooledFile) File() *os.File { return pf.entry.f }

func (pf *PooledFile) Close() error {
	pf.once.Do(func() { pf.err = pf.pool.release(pf.entry) })
	return pf.err
}

// NewFDPool returns a pool retaining at most bound descriptors. A bound
// below 1 selects [DefaultFDBound].
func NewFDPool(bound int) *FDPool {
	if bound < 1 {
		bound = DefaultFDBound()
	}

	return &FDPool{bound: bound, entries: make(map[string]*pooledFD)}
}

// Acquire returns a descriptor for path. Concurrent calls for the same
// path open the file at most once; everyone shares the pooled entry.
func (p *FDPool) Acquire(path string) (*PooledFile, error) {
	for attempt := 0; ; attempt++ {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, fmt.Errorf("gribfile: fd pool: %w", ErrClosed)
		}

		if e, ok := p.entries[path]; ok {
			e.refs++
			p.clock++
			e.lastUse = p.clock
			p.mu.Unlock()

			return &PooledFile{pool: p, entry: e}, nil
		}
		p.mu.Unlock()

		if attempt >= 3 {
			// The bound is smaller than the concurrent working set and
			// entries get evicted before we can grab a reference. Hand
			// out an unpooled descriptor instead of spinning.
			f, err := os.Open(path)
			if err != nil {
				return nil, fmt.Errorf("gribfile: open %s: %w", path, err)
			}

			e := &pooledFD{f: f, path: path, refs: 1, evicted: true}

			return &PooledFile{pool: p, entry: e}, nil
		}

		if _, err, _ := p.group.Do(path, p.openInto(path)); err != nil {
			if errors.Is(err, ErrClosed) {
				return nil, fmt.Errorf("gribfile: fd pool: %w", ErrClosed)
			}

			return nil, fmt.Errorf("gribfile: open %s: %w", path, err)
		}
	}
}

// openInto opens path and installs it in the entry map. It runs inside
// the singleflight group, so each path is opened once per miss no
// matter how many goroutines wait on it.
func (p *FDPool) openInto(path string) func() (any, error) {
	return func() (any, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}

		p.mu.Lock()
		defer p.mu.Unlock()

		if p.closed {
			_ = f.Close()
			return nil, ErrClosed
		}

		if _, ok := p.entries[path]; ok {
			// Lost a race with another opener; theirs wins.
			_ = f.Close()
			return nil, nil
		}

		p.clock++
		p.entries[path] = &pooledFD{f: f, path: path, lastUse: p.clock}
		p.evictLocked()

		return nil, nil
	}
}

func (p *FDPool) release(e *pooledFD) error {
	p.mu.Lock()
	e.refs--
	closeNow := e.evicted && e.refs == 0
	p.mu.Unlock()

	if closeNow {
		if err := e.f.Close(); err != nil {
			return fmt.Errorf("gribfile: close %s: %w", e.path, err)
		}
	}

	return nil
}

// evictLocked enforces the bound. Victims leave the map at once, so the
// bound holds exactly; a victim's descriptor closes here only when
// nobody is borrowing it.
func (p *FDPool) evictLocked() {
	for len(p.entries) > p.bound {
		var victim *pooledFD

		for _, e := range p.entries {
			if victim == nil || e.lastUse < victim.lastUse {
				victim = e
			}
		}

		delete(p.entries, victim.path)
		victim.evicted = true

		if victim.refs == 0 {
			_ = victim.f.Close()
		}
	}
}

// Len reports how many descriptors the pool currently retains.
func (p *FDPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.entries)
}

// Close evicts every entry and fails future Acquires with ErrClosed.
// Descriptors still borrowed stay usable until their last release.
func (p *FDPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true

	var errs []error

	for path, e := range p.entries {
		delete(p.entries, path)
		e.evicted = true

		if e.refs == 0 {
			if err := e.f.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", path, err))
			}
		}
	}

	return errors.Join(errs...)
}
