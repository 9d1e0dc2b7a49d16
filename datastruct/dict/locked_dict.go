package dict

import "sync"

// LockedDict guards one map with one lock, every key contends on it
type LockedDict struct {
	mu sync.RWMutex
	m  map[string][]byte
}

// MakeLockedDict creates an empty LockedDict
func MakeLockedDict() *LockedDict {
	return &LockedDict{
		m: make(map[string][]byte),
	}
}

// Get returns the value bound to key
func (dict *LockedDict) Get(key string) ([]byte, bool) {
	dict.mu.RLock()
	defer dict.mu.RUnlock()
	val, ok := dict.m[key]
	return val, ok
}

// Put binds val to key
func (dict *LockedDict) Put(key string, val []byte) {
	val = clone(val)
	dict.mu.Lock()
	defer dict.mu.Unlock()
	dict.m[key] = val
}

// Len returns the number of keys
func (dict *LockedDict) Len() int {
	dict.mu.RLock()
	defer dict.mu.RUnlock()
	return len(dict.m)
}

// Close is a no-op
func (dict *LockedDict) Close() {}
