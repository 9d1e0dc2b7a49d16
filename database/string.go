package database

import (
	"minikv/interface/resp"
	"minikv/resp/command"
	"minikv/resp/reply"
)

// GET key: the value as bulk, null when absent
func execGet(db *DB, cmd command.Command) resp.Reply {
	get := cmd.(*command.Get)
	val, exists := db.data.Get(get.Key)
	if !exists {
		return reply.MakeNullBulkReply()
	}
	return reply.MakeBulkReply(val)
}

// SET key value: always overwrites, answers +OK
func execSet(db *DB, cmd command.Command) resp.Reply {
	set := cmd.(*command.Set)
	db.data.Put(set.Key, set.Value)
	return reply.MakeOkReply()
}

func init() {
	registerExec("get", execGet)
	registerExec("set", execSet)
}
