package dict

import "sync"

// DefaultQueueSize is used when MakeOwnerDict gets a non-positive size
const DefaultQueueSize = 1024

// OwnerDict gives the map to a single goroutine. Callers send requests over
// a channel, each with a one-shot reply channel, and the owner serves them
// in arrival order, answering each exactly once.
type OwnerDict struct {
	reqs      chan *request
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

type opKind int

const (
	opGet opKind = iota
	opPut
	opLen
)

type request struct {
	op    opKind
	key   string
	val   []byte
	reply chan response // buffered, the owner never blocks on it
}

type response struct {
	val    []byte
	exists bool
	n      int
}

// MakeOwnerDict starts the owner goroutine. queueSize bounds the requests
// waiting for it.
func MakeOwnerDict(queueSize int) *OwnerDict {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	dict := &OwnerDict{
		reqs:    make(chan *request, queueSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go dict.serve()
	return dict
}

func (dict *OwnerDict) serve() {
	defer close(dict.stopped)
	m := make(map[string][]byte)
	for {
		select {
		case req := <-dict.reqs:
			switch req.op {
			case opGet:
				val, ok := m[req.key]
				req.reply <- response{val: val, exists: ok}
			case opPut:
				m[req.key] = req.val
				req.reply <- response{}
			case opLen:
				req.reply <- response{n: len(m)}
			}
		case <-dict.done:
			return
		}
	}
}

// do hands req to the owner and waits for the answer.
// ok is false when the dict has been closed.
func (dict *OwnerDict) do(req *request) (resp response, ok bool) {
	req.reply = make(chan response, 1)
	select {
	case dict.reqs <- req:
	case <-dict.done:
		return response{}, false
	}
	select {
	case resp = <-req.reply:
		return resp, true
	case <-dict.stopped:
	}
	// the owner may have answered right before stopping
	select {
	case resp = <-req.reply:
		return resp, true
	default:
		return response{}, false
	}
}

// Get returns the value bound to key, a closed dict reports a miss
func (dict *OwnerDict) Get(key string) ([]byte, bool) {
	resp, ok := dict.do(&request{op: opGet, key: key})
	if !ok {
		return nil, false
	}
	return resp.val, resp.exists
}

// Put binds val to key, it is dropped once the dict is closed
func (dict *OwnerDict) Put(key string, val []byte) {
	dict.do(&request{op: opPut, key: key, val: clone(val)})
}

// Len returns the number of keys
func (dict *OwnerDict) Len() int {
	resp, _ := dict.do(&request{op: opLen})
	return resp.n
}

// Close stops the owner goroutine and waits for it to exit
func (dict *OwnerDict) Close() {
	dict.closeOnce.Do(func() {
		close(dict.done)
	})
	<-dict.stopped
}
