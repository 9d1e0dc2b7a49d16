package connection

import (
	"bufio"
	"net"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"minikv/interface/resp"
	"minikv/lib/sync/atomic"
	"minikv/resp/parser"
)

// Connection represents a connection with a client.
// Reads belong to the goroutine serving it; writes are serialized by mu.
type Connection struct {
	conn   net.Conn
	id     string
	parser *parser.Parser
	writer *bufio.Writer

	// held while a reply is being written
	mu     sync.Mutex
	closed atomic.Boolean
}

// closeTimeout bounds how long Close waits for a reply being written
var closeTimeout = 10 * time.Second

// NewConn wraps an accepted connection
func NewConn(conn net.Conn) *Connection {
	c := &Connection{
		conn:   conn,
		id:     ulid.Make().String(),
		writer: bufio.NewWriter(conn),
	}
	c.parser = parser.NewParser(flushReader{c: c})
	return c
}

// flushReader sends queued replies before blocking on the socket, so a
// client never waits for an answer the server is still holding
type flushReader struct {
	c *Connection
}

func (r flushReader) Read(p []byte) (int, error) {
	if err := r.c.Flush(); err != nil {
		return 0, err
	}
	return r.c.conn.Read(p)
}

// ID returns the unique id of the connection, used in logs
func (c *Connection) ID() string {
	return c.id
}

// RemoteAddr returns the remote network address
func (c *Connection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// ReadFrame reads the next request frame, see parser.Parser.ReadFrame
func (c *Connection) ReadFrame() (resp.Reply, error) {
	return c.parser.ReadFrame()
}

// Buffered reports whether pipelined input is already waiting to be parsed
func (c *Connection) Buffered() int {
	return c.parser.Buffered()
}

// WriteFrame queues one frame in the write buffer, Flush sends it
func (c *Connection) WriteFrame(frame resp.Reply) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.writer.Write(frame.ToBytes())
	return err
}

// Flush sends every queued frame
func (c *Connection) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writer.Flush()
}

// Write sends raw bytes to the client immediately
func (c *Connection) Write(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.writer.Write(b); err != nil {
		return err
	}
	return c.writer.Flush()
}

// Close waits for an in-flight reply, at most closeTimeout, then disconnects.
// Only the first call closes the socket.
func (c *Connection) Close() error {
	if !c.closed.CompareAndSet(false, true) {
		return nil
	}
	idle := make(chan struct{})
	go func() {
		// a writer stuck past the timeout is released by closing the socket
		c.mu.Lock()
		close(idle)
		c.mu.Unlock()
	}()
	timer := time.NewTimer(closeTimeout)
	defer timer.Stop()
	select {
	case <-idle:
	case <-timer.C:
	}
	return c.conn.Close()
}
