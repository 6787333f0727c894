package gribfile

import (
	"errors"
	"fmt"
	"sync"
)

// HandlePolicy selects how decode handles are kept between operations on
// the same record.
type HandlePolicy int

const (
	// HandleCache keeps recently used handles in a bounded LRU shared by
	// the whole Reader. The default.
	HandleCache HandlePolicy = iota
	// HandlePersistent pins each record's handle on its Field until the
	// Field is released or the Reader closes.
	HandlePersistent
	// HandleTemporary opens a fresh handle per operation and closes it
	// before returning.
	HandleTemporary
)

// DefaultHandleCacheSize bounds the LRU when Options leave it zero.
const DefaultHandleCacheSize = 1

func (p HandlePolicy) String() string {
	switch p {
	case HandleCache:
		return "cache"
	case HandlePersistent:
		return "persistent"
	case HandleTemporary:
		return "temporary"
	default:
		return fmt.Sprintf("HandlePolicy(%d)", int(p))
	}
}

// ParseHandlePolicy maps the config spellings "cache", "persistent" and
// "temporary" to policies.
func ParseHandlePolicy(s string) (HandlePolicy, error) {
	switch s {
	case "cache":
		return HandleCache, nil
	case "persistent":
		return HandlePersistent, nil
	case "temporary":
		return HandleTemporary, nil
	default:
		return 0, fmt.Errorf("gribfile: handle policy %q: %w", s, ErrInvalidOptions)
	}
}

// handleOpener acquires a descriptor and decodes loc into a live handle.
// The Reader wires this to its fd pool and configured Decoder.
type handleOpener func(loc Locator) (*openHandle, error)

// openHandle couples a decode handle with the pooled descriptor it
// reads from. close releases both exactly once, decoder side first so
// it never reads from a returned descriptor.
type openHandle struct {
	h    Handle
	pf   *PooledFile
	once sync.Once
	err  error
}

func (oh *openHandle) close() error {
	oh.once.Do(func() {
		err := oh.h.Close()
		if oh.pf != nil {
			if cerr := oh.pf.Close(); err == nil {
				err = cerr
			}
		}

		oh.err = err
	})

	return oh.err
}

// handleSlot is per-Field storage for the persistent policy. Other
// policies ignore it.
type handleSlot struct {
	mu sync.Mutex
	oh *openHandle
}

// A handleStore implements one HandlePolicy. with borrows the handle
// for loc and keeps it alive for exactly the duration of fn; callers
// that land on the same record are serialized, since handles are not
// safe for concurrent use.
type handleStore interface {
	with(loc Locator, slot *handleSlot, fn func(Handle) error) error
	release(loc Locator, slot *handleSlot) error
	close() error
}

func newHandleStore(policy HandlePolicy, size int, open handleOpener) (handleStore, error) {
	switch policy {
	case HandleCache:
		if size == 0 {
			size = DefaultHandleCacheSize
		}

		if size < 1 {
			return nil, fmt.Errorf("gribfile: handle cache size %d: %w", size, ErrInvalidOptions)
		}

		return &lruHandles{bound: size, entries: make(map[handleKey]*lruEntry), open: open}, nil
	case HandlePersistent:
		return &persistentHandles{open: open}, nil
	case HandleTemporary:
		return &temporaryHandles{open: open}, nil
	default:
		return nil, fmt.Errorf("gribfile: handle policy %d: %w", int(policy), ErrInvalidOptions)
	}
}

// temporaryHandles opens per call and never retains anything.
type temporaryHandles struct{ open handleOpener }

func (t *temporaryHandles) with(loc Locator, _ *handleSlot, fn func(Handle) error) error {
	oh, err := t.open(loc)
	if err != nil {
		return err
	}

	err = fn(oh.h)
	if cerr := oh.close(); err == nil {
		err = cerr
	}

	return err
}

func (t *temporaryHandles) release(Locator, *handleSlot) error { return nil }

func (t *temporaryHandles) close() error { return nil }

// persistentHandles pins the handle on the Field's slot the first time
// the record is touched. The slot lock doubles as the per-record
// serializer.
type persistentHandles struct{ open handleOpener }

func (p *persistentHandles) with(loc Locator, slot *handleSlot, fn func(Handle) error) error {
	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.oh == nil {
		oh, err := p.open(loc)
		if err != nil {
			return err
		}

		slot.oh = oh
	}

	return fn(slot.oh.h)
}

func (p *persistentHandles) release(_ Locator, slot *handleSlot) error {
	slot.mu.Lock()
	oh := slot.oh
	slot.oh = nil
	slot.mu.Unlock()

	if oh == nil {
		return nil
	}

	return oh.close()
}

// Pinned handles belong to their Fields; FieldList.Close releases them.
func (p *persistentHandles) close() error { return nil }

type handleKey struct {
	path   string
	offset int64
}

type lruEntry struct {
	oh      *openHandle
	refs    int
	lastUse uint64
	evicted bool

	// useMu serializes fn calls that share this handle.
	useMu sync.Mutex
}

// lruHandles is the bounded shared cache. One coarse lock covers lookup,
// creation and eviction, so the bound holds exactly: creating the
// missing entry happens inside the lock and eviction runs in the same
// critical section. An evicted entry still borrowed stays open until
// its last borrower finishes.
type lruHandles struct {
	mu      sync.Mutex
	bound   int
	clock   uint64
	entries map[handleKey]*lruEntry
	open    handleOpener
	closed  bool
}

func (c *lruHandles) with(loc Locator, _ *handleSlot, fn func(Handle) error) error {
	key := handleKey{path: loc.Path, offset: loc.Offset}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("gribfile: handle cache: %w", ErrClosed)
	}

	e, ok := c.entries[key]
	if ok {
		e.refs++
		c.clock++
		e.lastUse = c.clock
	} else {
		oh, err := c.open(loc)
		if err != nil {
			c.mu.Unlock()
			return err
		}

		c.clock++
		e = &lruEntry{oh: oh, refs: 1, lastUse: c.clock}
		c.entries[key] = e
		c.evictLocked()
	}
	c.mu.Unlock()

	e.useMu.Lock()
	err := fn(e.oh.h)
	e.useMu.Unlock()

	c.mu.Lock()
	e.refs--
	closeNow := e.evicted && e.refs == 0
	c.mu.Unlock()

	if closeNow {
		if cerr := e.oh.close(); err == nil {
			err = cerr
		}
	}

	return err
}

func (c *lruHandles) evictLocked() {
	for len(c.entries) > c.bound {
		var (
			victimKey handleKey
			victim    *lruEntry
		)

		for k, e := range c.entries {
			if victim == nil || e.lastUse < victim.lastUse {
				victim, victimKey = e, k
			}
		}

		delete(c.entries, victimKey)
		victim.evicted = true

		if victim.refs == 0 {
			_ = victim.oh.close()
		}
	}
}

func (c *lruHandles) release(loc Locator, _ *handleSlot) error {
	key := handleKey{path: loc.Path, offset: loc.Offset}

	c.mu.Lock()
	e, ok := c.entries[key]
	closeNow := false

	if ok {
		delete(c.entries, key)
		e.evicted = true
		closeNow = e.refs == 0
	}
	c.mu.Unlock()

	if !closeNow {
		return nil
	}

	return e.oh.close()
}

func (c *lruHandles) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}

	c.closed = true

	var idle []*lruEntry

	for k, e := range c.entries {
		delete(c.entries, k)
		e.evicted = true

		if e.refs == 0 {
			idle = append(idle, e)
		}
	}
	c.mu.Unlock()

	var errs []error

	for _, e := range idle {
		if err := e.oh.close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// len reports live entries; used by tests to check the bound invariant.
func (c *lruHandles) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}
