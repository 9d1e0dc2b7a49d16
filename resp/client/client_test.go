package client

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minikv/database"
	"minikv/datastruct/dict"
	"minikv/lib/utils"
	"minikv/resp/handler"
	"minikv/resp/reply"
	"minikv/tcp"
)

func startServer(t *testing.T) string {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	h := handler.MakeHandler(nil, database.NewDatabase(dict.MakeConcurrentDict(4)), nil)
	closeChan := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		tcp.ListenAndServe(listener, h, closeChan)
	}()
	t.Cleanup(func() {
		close(closeChan)
		<-done
	})
	return listener.Addr().String()
}

func TestClientCommands(t *testing.T) {
	addr := startServer(t)
	c, err := Connect(addr)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Ping())

	_, ok, err := c.Get("hello")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set("hello", []byte("world")))
	val, ok, err := c.Get("hello")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("world"), val)

	require.NoError(t, c.Set("empty", nil))
	val, ok, err = c.Get("empty")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, val)

	r, err := c.Send(utils.ToCmdLine("DEL", "hello"))
	require.NoError(t, err)
	assert.Equal(t, "-ERR unknown command 'del'\r\n", string(r.ToBytes()))

	r, err = c.Send(utils.ToCmdLine("PING", "hi"))
	require.NoError(t, err)
	assert.Equal(t, reply.MakeBulkReply([]byte("hi")), r)
}

func TestClientPipelined(t *testing.T) {
	addr := startServer(t)
	c, err := Connect(addr)
	require.NoError(t, err)
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := "key:" + strconv.Itoa(i)
			assert.NoError(t, c.Set(key, []byte(strconv.Itoa(i))))
			val, ok, err := c.Get(key)
			assert.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, strconv.Itoa(i), string(val))
		}(i)
	}
	wg.Wait()
}

func TestClientReplyError(t *testing.T) {
	addr := startServer(t)
	c, err := Connect(addr)
	require.NoError(t, err)
	defer c.Close()

	// a GET with too many arguments is answered with an error frame
	r, err := c.Send(utils.ToCmdLine("GET", "a", "b"))
	require.NoError(t, err)
	assert.True(t, reply.IsErrorReply(r))
	require.NoError(t, c.Ping())
}

func TestClientClose(t *testing.T) {
	addr := startServer(t)
	c, err := Connect(addr)
	require.NoError(t, err)
	require.NoError(t, c.Ping())

	c.Close()
	c.Close()
	assert.ErrorIs(t, c.Ping(), ErrClientClosed)
	_, _, err = c.Get("k")
	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestClientServerGone(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		// read the first request and hang up without answering
		_, _ = conn.Read(make([]byte, 64))
		_ = conn.Close()
	}()

	c, err := Connect(listener.Addr().String())
	require.NoError(t, err)
	defer c.Close()

	err = c.Ping()
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrTimeout))
	assert.Error(t, c.Err())
	assert.Error(t, c.Ping())
}

func TestClientUnexpectedReply(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 64)
		for {
			if _, err := conn.Read(buf); err != nil {
				return
			}
			if _, err := conn.Write([]byte(":1\r\n")); err != nil {
				return
			}
		}
	}()

	c, err := Connect(listener.Addr().String())
	require.NoError(t, err)
	defer c.Close()

	_, _, err = c.Get("k")
	assert.ErrorIs(t, err, ErrUnexpectedReply)
	assert.ErrorIs(t, c.Set("k", []byte("v")), ErrUnexpectedReply)
}

func TestClientTimeout(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()
	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := listener.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	c, err := MakeClient(listener.Addr().String())
	require.NoError(t, err)
	c.SetTimeout(50 * time.Millisecond)
	c.Start()
	defer c.Close()

	assert.ErrorIs(t, c.Ping(), ErrTimeout)
	(<-accepted).Close()
}

func TestPool(t *testing.T) {
	addr := startServer(t)
	ctx := context.Background()
	p := NewPool(ctx, addr, PoolConfig{MaxTotal: 4})
	defer p.Close(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := strconv.Itoa(i)
			err := p.Do(ctx, func(c *Client) error {
				return c.Set(key, []byte(key))
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, p.Active())
	assert.LessOrEqual(t, p.Idle(), 4)

	err := p.Do(ctx, func(c *Client) error {
		val, ok, err := c.Get("7")
		if err != nil {
			return err
		}
		assert.True(t, ok)
		assert.Equal(t, []byte("7"), val)
		return nil
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	assert.Equal(t, boom, p.Do(ctx, func(c *Client) error { return boom }))
}

func TestPoolDialError(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	ctx := context.Background()
	p := NewPool(ctx, addr, PoolConfig{MaxTotal: 1})
	defer p.Close(ctx)
	err = p.Do(ctx, func(c *Client) error { return nil })
	assert.Error(t, err)
}
