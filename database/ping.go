package database

import (
	"minikv/interface/resp"
	"minikv/resp/command"
	"minikv/resp/reply"
)

// execPing answers PONG, or echoes the message as a bulk
func execPing(db *DB, cmd command.Command) resp.Reply {
	ping := cmd.(*command.Ping)
	if ping.Message != nil {
		return reply.MakeBulkReply(ping.Message)
	}
	return reply.MakePongReply()
}

func init() {
	registerExec("ping", execPing)
}
