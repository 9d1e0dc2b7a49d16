package client

import (
	"context"
	"errors"
	"time"

	pool "github.com/jolestar/go-commons-pool/v2"
)

// PoolConfig bounds a Pool
type PoolConfig struct {
	// MaxTotal caps the number of connections, negative means unlimited
	MaxTotal int
	// MaxIdle caps the number of idle connections kept open
	MaxIdle int
	// Timeout is the per-request reply timeout of pooled clients
	Timeout time.Duration
}

// Pool shares started clients to one server
type Pool struct {
	addr string
	pool *pool.ObjectPool
}

// connectionFactory creates, validates and destroys pooled clients
type connectionFactory struct {
	Peer    string
	Timeout time.Duration
}

func (f *connectionFactory) MakeObject(ctx context.Context) (*pool.PooledObject, error) {
	c, err := MakeClient(f.Peer)
	if err != nil {
		return nil, err
	}
	c.SetTimeout(f.Timeout)
	c.Start()
	return pool.NewPooledObject(c), nil
}

func (f *connectionFactory) DestroyObject(ctx context.Context, object *pool.PooledObject) error {
	c, ok := object.Object.(*Client)
	if !ok {
		return errors.New("type mismatch")
	}
	c.Close()
	return nil
}

// ValidateObject drops clients whose connection broke or that do not answer PING
func (f *connectionFactory) ValidateObject(ctx context.Context, object *pool.PooledObject) bool {
	c, ok := object.Object.(*Client)
	if !ok || c.Err() != nil {
		return false
	}
	return c.Ping() == nil
}

func (f *connectionFactory) ActivateObject(ctx context.Context, object *pool.PooledObject) error {
	return nil
}

func (f *connectionFactory) PassivateObject(ctx context.Context, object *pool.PooledObject) error {
	return nil
}

// NewPool creates a pool of clients connected to addr. Connections are
// dialed lazily on first use.
func NewPool(ctx context.Context, addr string, cfg PoolConfig) *Pool {
	poolCfg := pool.NewDefaultPoolConfig()
	if cfg.MaxTotal != 0 {
		poolCfg.MaxTotal = cfg.MaxTotal
	}
	if cfg.MaxIdle > 0 {
		poolCfg.MaxIdle = cfg.MaxIdle
	}
	poolCfg.TestOnBorrow = true
	factory := &connectionFactory{Peer: addr, Timeout: cfg.Timeout}
	return &Pool{
		addr: addr,
		pool: pool.NewObjectPool(ctx, factory, poolCfg),
	}
}

// Do borrows a client, runs fn with it and gives it back. A client whose
// connection broke during fn is destroyed instead of returned.
func (p *Pool) Do(ctx context.Context, fn func(c *Client) error) error {
	obj, err := p.pool.BorrowObject(ctx)
	if err != nil {
		return err
	}
	c := obj.(*Client)
	fnErr := fn(c)
	if c.Err() != nil || errors.Is(fnErr, ErrTimeout) {
		_ = p.pool.InvalidateObject(ctx, c)
		return fnErr
	}
	if err := p.pool.ReturnObject(ctx, c); err != nil && fnErr == nil {
		return err
	}
	return fnErr
}

// Active returns the number of borrowed clients
func (p *Pool) Active() int {
	return p.pool.GetNumActive()
}

// Idle returns the number of idle clients
func (p *Pool) Idle() int {
	return p.pool.GetNumIdle()
}

// Close destroys every idle client, borrowed clients are destroyed on return
func (p *Pool) Close(ctx context.Context) {
	p.pool.Close(ctx)
}
