package database

import (
	"fmt"
	"runtime/debug"

	log "github.com/sirupsen/logrus"

	"minikv/datastruct/dict"
	"minikv/interface/resp"
	"minikv/resp/command"
	"minikv/resp/reply"
)

// Database is the standalone server database, shared by every connection
// for the lifetime of the process
type Database struct {
	db *DB
}

// NewDatabase creates a Database on top of data
func NewDatabase(data dict.Dict) *Database {
	return &Database{
		db: MakeDB(data),
	}
}

// Exec executes a command for client c
func (d *Database) Exec(c resp.Connection, cmd command.Command) (result resp.Reply) {
	defer func() {
		if err := recover(); err != nil {
			log.WithField("conn", connID(c)).
				Warn(fmt.Sprintf("error occurs: %v\n%s", err, string(debug.Stack())))
			result = &reply.UnknownErrReply{}
		}
	}()
	return d.db.Exec(cmd)
}

// Len returns the number of keys
func (d *Database) Len() int {
	return d.db.Len()
}

// Close releases the key space
func (d *Database) Close() {
	d.db.Close()
}

// AfterClientClose is called once a client connection is gone
func (d *Database) AfterClientClose(c resp.Connection) {
	log.WithField("conn", connID(c)).Debug("client closed")
}

func connID(c resp.Connection) string {
	if c == nil {
		return ""
	}
	return c.ID()
}
