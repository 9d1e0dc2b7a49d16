package resp

import "net"

// Reply is one protocol frame. ToBytes returns its exact wire encoding.
type Reply interface {
	ToBytes() []byte
}

// Connection is the server side view of a client connection
type Connection interface {
	ID() string
	RemoteAddr() net.Addr
	Write([]byte) error
}
