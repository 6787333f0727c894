package gribfile

import (
	"errors"
	"fmt"
)

// KeyOptions controls one [Field.Key] lookup.
type KeyOptions struct {
	// Kind selects the representation. TypeAny lets the decoder pick.
	Kind KeyType
	// Default is returned when the record lacks the key, unless Strict
	// is set.
	Default any
	// Strict turns a missing key into an error instead of Default.
	Strict bool
}

// A Field is one record of an archive, accessed lazily. The wrapper
// itself holds no open resources; decode handles are borrowed per call
// under the Reader's handle policy, except that the persistent policy
// pins one on the field until Release.
//
// Fields are safe for concurrent use.
type Field struct {
	loc   Locator
	store handleStore
	meta  *metaCache
	slot  handleSlot
}

// Locator returns the field's byte extent.
func (f *Field) Locator() Locator { return f.loc }

// Key returns the value for name per opts. Missing keys yield
// opts.Default unless opts.Strict is set. Successful lookups are
// memoized when the Reader's metadata cache is on, so repeating one
// returns the same value without touching the decode handle, even
// after the handle was evicted and reopened in between.
func (f *Field) Key(name string, opts KeyOptions) (any, error) {
	mk := newMetaKey(name, opts)
	if f.meta != nil {
		if v, ok := f.meta.lookup(mk); ok {
			return v, nil
		}
	}

	var out any

	err := f.store.with(f.loc, &f.slot, func(h Handle) error {
		v, err := h.Get(name, opts.Kind)
		if err != nil {
			if errors.Is(err, ErrKeyMissing) && !opts.Strict {
				out = opts.Default
				return nil
			}

			return err
		}

		out = v

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", f.loc, err)
	}

	if f.meta != nil {
		out = f.meta.store(mk, out)
	}

	return out, nil
}

// Values returns the record's decoded data values.
func (f *Field) Values() ([]float64, error) {
	var vals []float64

	err := f.store.with(f.loc, &f.slot, func(h Handle) error {
		v, err := h.Values()
		vals = v

		return err
	})
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", f.loc, err)
	}

	return vals, nil
}

// Bytes returns the record's raw bytes.
func (f *Field) Bytes() ([]byte, error) {
	var buf []byte

	err := f.store.with(f.loc, &f.slot, func(h Handle) error {
		b, err := h.Buffer()
		buf = b

		return err
	})
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", f.loc, err)
	}

	return buf, nil
}

// Release drops whatever handle state the policy retains for this
// record: the pinned handle under the persistent policy, the record's
// cache entry under the cache policy. The field stays usable; the next
// operation simply reopens.
func (f *Field) Release() error {
	return f.store.release(f.loc, &f.slot)
}
