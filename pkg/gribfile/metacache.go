package gribfile

import (
	"fmt"
	"sync"
)

// metaKey identifies one memoizable key lookup. The default value is
// folded in as a formatted string so two lookups differing only in
// their fallback occupy distinct entries.
type metaKey struct {
	name   string
	kind   KeyType
	strict bool
	def    string
}

func newMetaKey(name string, opts KeyOptions) metaKey {
	k := metaKey{name: name, kind: opts.Kind, strict: opts.Strict}
	if opts.Default != nil {
		k.def = fmt.Sprintf("%T=%v", opts.Default, opts.Default)
	}

	return k
}

// metaCache memoizes successful key lookups for one Field, so repeating
// a lookup never reopens an evicted handle. Failures are not stored;
// they stay retryable. When two goroutines race on the same key the
// first stored value wins and both observe it.
type metaCache struct {
	mu sync.Mutex
	m  map[metaKey]any
}

func newMetaCache() *metaCache {
	return &metaCache{m: make(map[metaKey]any)}
}

func (mc *metaCache) lookup(k metaKey) (any, bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	v, ok := mc.m[k]

	return v, ok
}

// store records v for k unless another value got there first, and
// returns the value every caller should see.
func (mc *metaCache) store(k metaKey, v any) any {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if prev, ok := mc.m[k]; ok {
		return prev
	}

	mc.m[k] = v

	return v
}
