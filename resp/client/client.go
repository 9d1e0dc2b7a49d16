package client

import (
	"errors"
	"fmt"
	"net"
	"runtime/debug"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"minikv/interface/resp"
	"minikv/lib/sync/atomic"
	"minikv/lib/sync/wait"
	"minikv/lib/utils"
	"minikv/resp/parser"
	"minikv/resp/reply"
)

var (
	// ErrClientClosed is returned for requests on a closed or broken client
	ErrClientClosed = errors.New("client closed")
	// ErrTimeout is returned when no reply arrives within the request timeout
	ErrTimeout = errors.New("server time out")
	// ErrUnexpectedReply is returned when the reply frame does not fit the command
	ErrUnexpectedReply = errors.New("unexpected reply")
)

// ReplyError is an error frame sent by the server
type ReplyError struct {
	Msg string
}

func (e *ReplyError) Error() string {
	return e.Msg
}

// Client is a pipelined client: requests are written by one goroutine and
// replies are matched to them in order by another.
type Client struct {
	conn        net.Conn
	pendingReqs chan *request // wait to send
	waitingReqs chan *request // waiting response
	ticker      *time.Ticker
	addr        string
	timeout     time.Duration

	closeMu    sync.RWMutex
	closed     bool
	stop       chan struct{}
	writerDone chan struct{}

	broken  atomic.Boolean
	failErr error
	failMu  sync.Mutex

	working *sync.WaitGroup // its counter presents unfinished requests(pending and waiting)
}

// request is a message sends to server
type request struct {
	args      [][]byte
	reply     resp.Reply
	heartbeat bool
	waiting   *wait.Wait
	once      sync.Once
	err       error
}

func (req *request) finish(r resp.Reply, err error) {
	req.once.Do(func() {
		req.reply = r
		req.err = err
		req.waiting.Done()
	})
}

const (
	chanSize          = 256
	maxWait           = 3 * time.Second
	heartbeatInterval = 10 * time.Second
)

// MakeClient creates a new client
func MakeClient(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Client{
		addr:        addr,
		conn:        conn,
		timeout:     maxWait,
		pendingReqs: make(chan *request, chanSize),
		waitingReqs: make(chan *request, chanSize),
		stop:        make(chan struct{}),
		writerDone:  make(chan struct{}),
		working:     &sync.WaitGroup{},
	}, nil
}

// Connect dials addr and starts the client
func Connect(addr string) (*Client, error) {
	c, err := MakeClient(addr)
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}

// SetTimeout changes how long Send waits for a reply, call it before Start
func (client *Client) SetTimeout(timeout time.Duration) {
	if timeout > 0 {
		client.timeout = timeout
	}
}

// Start starts asynchronous goroutines
func (client *Client) Start() {
	client.ticker = time.NewTicker(heartbeatInterval)
	go client.handleWrite()
	go client.handleRead()
	go client.heartbeat()
}

// Close stops asynchronous goroutines and close connection.
// Requests in flight are answered or time out before the socket is closed.
func (client *Client) Close() {
	client.closeMu.Lock()
	if client.closed {
		client.closeMu.Unlock()
		return
	}
	client.closed = true
	if client.ticker != nil {
		client.ticker.Stop()
	}
	close(client.stop)
	close(client.pendingReqs)
	client.closeMu.Unlock()

	// wait stop process
	client.working.Wait()
	if client.ticker != nil {
		<-client.writerDone
	}

	// clean
	client.fail(ErrClientClosed)
}

// Addr returns the server address
func (client *Client) Addr() string {
	return client.addr
}

// Err returns the error that broke the client, nil while it is usable
func (client *Client) Err() error {
	if !client.broken.Get() {
		return nil
	}
	client.failMu.Lock()
	defer client.failMu.Unlock()
	return client.failErr
}

func (client *Client) heartbeat() {
	for {
		select {
		case <-client.ticker.C:
			client.doHeartbeat()
		case <-client.stop:
			return
		}
	}
}

func (client *Client) handleWrite() {
	defer close(client.writerDone)
	for req := range client.pendingReqs {
		client.doRequest(req)
	}
}

// Send sends a request to the server and waits for its reply.
// An error frame is a valid reply, only transport failures return an error.
func (client *Client) Send(args [][]byte) (resp.Reply, error) {
	return client.send(args, false)
}

func (client *Client) doHeartbeat() {
	if _, err := client.send(utils.ToCmdLine("PING"), true); err != nil {
		log.WithError(err).WithField("addr", client.addr).Debug("heartbeat failed")
	}
}

func (client *Client) send(args [][]byte, heartbeat bool) (resp.Reply, error) {
	if len(args) == 0 {
		return nil, errors.New("empty command")
	}
	req := &request{
		args:      args,
		heartbeat: heartbeat,
		waiting:   &wait.Wait{},
	}
	req.waiting.Add(1)

	client.closeMu.RLock()
	if client.closed {
		client.closeMu.RUnlock()
		return nil, ErrClientClosed
	}
	client.working.Add(1)
	defer client.working.Done()
	client.pendingReqs <- req
	client.closeMu.RUnlock()

	if req.waiting.WaitWithTimeout(client.timeout) {
		return nil, ErrTimeout
	}
	if req.err != nil {
		return nil, req.err
	}
	return req.reply, nil
}

func (client *Client) doRequest(req *request) {
	if client.broken.Get() {
		req.finish(nil, client.Err())
		return
	}
	// queued before writing so a fast reply always finds its request
	client.waitingReqs <- req
	if _, err := client.conn.Write(reply.MakeMultiBulkReply(req.args).ToBytes()); err != nil {
		// a partial write desynchronizes the stream, give up on the connection
		client.fail(err)
		req.finish(nil, err)
	}
}

func (client *Client) finishRequest(r resp.Reply) bool {
	defer func() {
		if err := recover(); err != nil {
			log.Error(err, string(debug.Stack()))
		}
	}()
	select {
	case req := <-client.waitingReqs:
		req.finish(r, nil)
		return true
	default:
		return false
	}
}

func (client *Client) handleRead() {
	ch := parser.ParseStream(client.conn)
	for payload := range ch {
		if payload.Err != nil {
			client.fail(payload.Err)
			continue
		}
		if !client.finishRequest(payload.Data) {
			client.fail(fmt.Errorf("%w: reply without request", ErrUnexpectedReply))
		}
	}
}

// fail closes the connection and answers every waiting request with err
func (client *Client) fail(err error) {
	if client.broken.CompareAndSet(false, true) {
		client.failMu.Lock()
		client.failErr = err
		client.failMu.Unlock()
		if !errors.Is(err, ErrClientClosed) {
			log.WithError(err).WithField("addr", client.addr).Warn("client connection broken")
		}
		_ = client.conn.Close()
	}
	for {
		select {
		case req := <-client.waitingReqs:
			req.finish(nil, client.Err())
		default:
			return
		}
	}
}

// Ping checks the server is alive
func (client *Client) Ping() error {
	r, err := client.Send(utils.ToCmdLine("PING"))
	if err != nil {
		return err
	}
	switch r := r.(type) {
	case *reply.StatusReply:
		if r.Status == "PONG" {
			return nil
		}
	case reply.ErrorReply:
		return &ReplyError{Msg: r.Error()}
	}
	return unexpected(r)
}

// Get returns the value of key, exists is false when the key is not set
func (client *Client) Get(key string) (val []byte, exists bool, err error) {
	r, err := client.Send(utils.ToCmdLine("GET", key))
	if err != nil {
		return nil, false, err
	}
	switch r := r.(type) {
	case *reply.BulkReply:
		return r.Arg, true, nil
	case *reply.NullBulkReply:
		return nil, false, nil
	case reply.ErrorReply:
		return nil, false, &ReplyError{Msg: r.Error()}
	}
	return nil, false, unexpected(r)
}

// Set stores value under key
func (client *Client) Set(key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	r, err := client.Send(utils.ToCmdLine2("SET", []byte(key), value))
	if err != nil {
		return err
	}
	switch r := r.(type) {
	case *reply.StatusReply:
		if r.Status == "OK" {
			return nil
		}
	case reply.ErrorReply:
		return &ReplyError{Msg: r.Error()}
	}
	return unexpected(r)
}

func unexpected(r resp.Reply) error {
	return fmt.Errorf("%w: %q", ErrUnexpectedReply, r.ToBytes())
}
