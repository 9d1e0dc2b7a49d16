package dict

import (
	"sync"

	"github.com/spaolacci/murmur3"
)

// DefaultShardCount is used when MakeConcurrentDict gets a non-positive count
const DefaultShardCount = 16

// ConcurrentDict splits the key space over a fixed number of locked shards.
// A key lives in shard murmur3(key) mod N.
type ConcurrentDict struct {
	table []*shard
}

type shard struct {
	mu sync.RWMutex
	m  map[string][]byte
}

// MakeConcurrentDict creates a ConcurrentDict with shardCount shards
func MakeConcurrentDict(shardCount int) *ConcurrentDict {
	if shardCount <= 0 {
		shardCount = DefaultShardCount
	}
	table := make([]*shard, shardCount)
	for i := range table {
		table[i] = &shard{
			m: make(map[string][]byte),
		}
	}
	return &ConcurrentDict{table: table}
}

func (dict *ConcurrentDict) spread(key string) uint32 {
	return murmur3.Sum32([]byte(key)) % uint32(len(dict.table))
}

func (dict *ConcurrentDict) getShard(index uint32) *shard {
	return dict.table[index]
}

// Get returns the value bound to key
func (dict *ConcurrentDict) Get(key string) ([]byte, bool) {
	s := dict.getShard(dict.spread(key))
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.m[key]
	return val, ok
}

// Put binds val to key
func (dict *ConcurrentDict) Put(key string, val []byte) {
	val = clone(val)
	s := dict.getShard(dict.spread(key))
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = val
}

// Len returns the number of keys. Shards are counted one at a time,
// concurrent writes may or may not be included.
func (dict *ConcurrentDict) Len() int {
	total := 0
	for _, s := range dict.table {
		s.mu.RLock()
		total += len(s.m)
		s.mu.RUnlock()
	}
	return total
}

// ShardCount returns the number of shards
func (dict *ConcurrentDict) ShardCount() int {
	return len(dict.table)
}

// Close is a no-op
func (dict *ConcurrentDict) Close() {}
