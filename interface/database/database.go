package database

import (
	"minikv/interface/resp"
	"minikv/resp/command"
)

// Database executes parsed commands against the shared store
type Database interface {
	Exec(client resp.Connection, cmd command.Command) resp.Reply
	Close()
	AfterClientClose(c resp.Connection) // called once the connection is gone
}
