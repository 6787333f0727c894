package gribfile

import (
	"errors"
	"fmt"
	"sync"
)

// FieldRetention controls whether a FieldList keeps Field wrappers or
// builds a fresh one per access.
type FieldRetention int

const (
	// RetainPersistent stores each wrapper on first access and returns
	// the same one afterwards, so per-field memoization accumulates.
	// The default.
	RetainPersistent FieldRetention = iota
	// RetainTemporary builds a fresh wrapper per access and retains
	// nothing between calls.
	RetainTemporary
)

func (r FieldRetention) String() string {
	switch r {
	case RetainPersistent:
		return "persistent"
	case RetainTemporary:
		return "temporary"
	default:
		return fmt.Sprintf("FieldRetention(%d)", int(r))
	}
}

// ParseFieldRetention maps the config spellings "persistent" and
// "temporary" to retention modes.
func ParseFieldRetention(s string) (FieldRetention, error) {
	switch s {
	case "persistent":
		return RetainPersistent, nil
	case "temporary":
		return RetainTemporary, nil
	default:
		return 0, fmt.Errorf("gribfile: field retention %q: %w", s, ErrInvalidOptions)
	}
}

// FieldSeq feeds a deferred [FieldList]. The producer is called at most
// once. It yields fields until it is done or yield returns false, and
// reports a terminal failure by yielding a non-nil error.
type FieldSeq func(yield func(*Field, error) bool)

// A FieldList is an ordered collection of Fields. Eager lists come from
// a [Reader] and know their length without touching records. Deferred
// lists wrap a producer that is drained exactly once, on first use, no
// matter how many goroutines arrive at the same time; a drain failure
// is remembered and returned to every caller.
type FieldList struct {
	idx    *Index
	make   func(loc Locator) *Field
	retain FieldRetention

	mu     sync.Mutex
	fields []*Field

	deferred bool
	src      FieldSeq
	drain    sync.Once
	drainErr error
}

func newEagerFieldList(idx *Index, mk func(Locator) *Field, retain FieldRetention) *FieldList {
	return &FieldList{idx: idx, make: mk, retain: retain}
}

// NewDeferredFieldList returns a list backed by src. Nothing is pulled
// until the first Len, Get, Each or Close.
func NewDeferredFieldList(src FieldSeq) *FieldList {
	return &FieldList{deferred: true, src: src}
}

func (l *FieldList) drainDeferred() {
	l.drain.Do(func() {
		l.src(func(f *Field, err error) bool {
			if err != nil {
				l.drainErr = err
				return false
			}

			l.fields = append(l.fields, f)

			return true
		})
		l.src = nil
	})
}

// Len returns the number of fields. On a deferred list this forces the
// drain.
func (l *FieldList) Len() (int, error) {
	if !l.deferred {
		return l.idx.Len(), nil
	}

	l.drainDeferred()

	if l.drainErr != nil {
		return 0, fmt.Errorf("gribfile: drain deferred list: %w", l.drainErr)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.fields), nil
}

// Get returns field n. Ordinals count from zero; negative values are
// rejected, not interpreted from the end.
func (l *FieldList) Get(n int) (*Field, error) {
	if l.deferred {
		l.drainDeferred()

		if l.drainErr != nil {
			return nil, fmt.Errorf("gribfile: drain deferred list: %w", l.drainErr)
		}

		l.mu.Lock()
		defer l.mu.Unlock()

		if n < 0 || n >= len(l.fields) {
			return nil, fmt.Errorf("gribfile: field %d of %d: %w", n, len(l.fields), ErrOutOfRange)
		}

		return l.fields[n], nil
	}

	loc, err := l.idx.Locator(n)
	if err != nil {
		return nil, err
	}

	if l.retain == RetainTemporary {
		return l.make(loc), nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fields == nil {
		l.fields = make([]*Field, l.idx.Len())
	}

	if l.fields[n] == nil {
		l.fields[n] = l.make(loc)
	}

	return l.fields[n], nil
}

// Each visits every field in order and stops at the first failure,
// reporting which ordinal and byte offset failed.
func (l *FieldList) Each(fn func(n int, f *Field) error) error {
	length, err := l.Len()
	if err != nil {
		return err
	}

	for n := range length {
		f, err := l.Get(n)
		if err != nil {
			return err
		}

		if err := fn(n, f); err != nil {
			return fmt.Errorf("gribfile: field %d at offset %d: %w", n, f.loc.Offset, err)
		}
	}

	return nil
}

// Close releases every retained field. Temporary-retention lists hold
// nothing; deferred lists release whatever the producer yielded.
func (l *FieldList) Close() error {
	if l.deferred {
		l.drainDeferred()
	}

	l.mu.Lock()
	fields := l.fields
	l.fields = nil
	l.mu.Unlock()

	var errs []error

	for _, f := range fields {
		if f == nil {
			continue
		}

		if err := f.Release(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
