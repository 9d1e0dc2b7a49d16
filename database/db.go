package database

import (
	"minikv/datastruct/dict"
	"minikv/interface/resp"
	"minikv/resp/command"
	"minikv/resp/reply"
)

// DB runs commands against one key space
type DB struct {
	data dict.Dict
}

// ExecFunc is the implementation of one command
type ExecFunc func(db *DB, cmd command.Command) resp.Reply

var execTable = make(map[string]ExecFunc)

// registerExec binds a command name, as returned by Command.Name, to its implementation
func registerExec(name string, exec ExecFunc) {
	execTable[name] = exec
}

// MakeDB creates a DB on top of data
func MakeDB(data dict.Dict) *DB {
	return &DB{
		data: data,
	}
}

// Exec runs a parsed command
func (db *DB) Exec(cmd command.Command) resp.Reply {
	exec, ok := execTable[cmd.Name()]
	if !ok {
		return reply.MakeUnknownCommandErrReply(cmd.Name())
	}
	return exec(db, cmd)
}

// Len returns the number of keys
func (db *DB) Len() int {
	return db.data.Len()
}

// Close releases the key space
func (db *DB) Close() {
	db.data.Close()
}
