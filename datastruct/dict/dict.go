// Package dict holds the key space shared by every connection.
//
// Three strategies implement the same Dict contract: a single lock around
// one map, a fixed number of independently locked shards, and a single owner
// goroutine reached by message passing. No implementation holds a lock
// across I/O or a channel operation.
package dict

import (
	"fmt"
	"strings"
)

// Dict is the key space of the server
type Dict interface {
	Get(key string) (val []byte, exists bool) // returns the stored value
	Put(key string, val []byte)               // inserts or overwrites
	Len() int                                 // number of keys
	Close()                                   // releases resources, the dict is unusable afterwards
}

// Strategy names accepted by MakeDict
const (
	KindLocked  = "locked"
	KindSharded = "sharded"
	KindOwner   = "owner"
)

// MakeDict creates a Dict for the named strategy
func MakeDict(kind string, shardCount int, queueSize int) (Dict, error) {
	switch strings.ToLower(kind) {
	case KindLocked:
		return MakeLockedDict(), nil
	case KindSharded, "":
		return MakeConcurrentDict(shardCount), nil
	case KindOwner:
		return MakeOwnerDict(queueSize), nil
	}
	return nil, fmt.Errorf("unknown store kind %q", kind)
}

func clone(val []byte) []byte {
	if val == nil {
		return []byte{}
	}
	c := make([]byte, len(val))
	copy(c, val)
	return c
}
