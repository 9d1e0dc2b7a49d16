package tcp

import (
	"context"
	"net"
)

// Handler serves accepted connections
type Handler interface {
	Handle(ctx context.Context, conn net.Conn)
	Close() error
}
