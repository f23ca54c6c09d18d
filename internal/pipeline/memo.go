// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zeebo/xxh3"
)

// memo caches expensive stage outputs across Build calls of one App. Keys
// combine the stage name, the hash of its input tree and a digest of the
// options the stage reads.
type memo struct {
	cache *lru.Cache[string, any]
}

func newMemo(size int) (*memo, error) {
	cache, err := lru.New[string, any](size)
	if err != nil {
		return nil, fmt.Errorf("create stage cache: %w", err)
	}
	return &memo{cache: cache}, nil
}

func memoKey(stage string, inputHash uint64, options ...any) string {
	return fmt.Sprintf("%s:%016x:%016x", stage, inputHash, xxh3.HashString(fmt.Sprintf("%#v", options)))
}

// remember returns the cached value for key or computes and stores it.
// Errors are not cached. hit reports whether compute was skipped.
func remember[T any](m *memo, key string, compute func() (T, error)) (value T, hit bool, err error) {
	if cached, ok := m.cache.Get(key); ok {
		if v, ok := cached.(T); ok {
			return v, true, nil
		}
	}
	value, err = compute()
	if err != nil {
		return value, false, err
	}
	m.cache.Add(key, value)
	return value, false, nil
}
