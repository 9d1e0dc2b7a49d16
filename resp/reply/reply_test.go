package reply

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"minikv/interface/resp"
)

func TestToBytes(t *testing.T) {
	tests := []struct {
		name  string
		reply resp.Reply
		want  string
	}{
		{"status", MakeOkReply(), "+OK\r\n"},
		{"pong", MakePongReply(), "+PONG\r\n"},
		{"error", MakeErrReply("ERR boom"), "-ERR boom\r\n"},
		{"int", MakeIntReply(-7), ":-7\r\n"},
		{"bulk", MakeBulkReply([]byte("world")), "$5\r\nworld\r\n"},
		{"empty bulk", MakeBulkReply(nil), "$0\r\n\r\n"},
		{"null", MakeNullBulkReply(), "$-1\r\n"},
		{"empty array", MakeArrayReply(nil), "*0\r\n"},
		{"multi bulk", MakeMultiBulkReply([][]byte{[]byte("GET"), nil}), "*2\r\n$3\r\nGET\r\n$-1\r\n"},
		{"nested", MakeArrayReply([]resp.Reply{MakeIntReply(1), MakeArrayReply([]resp.Reply{MakeOkReply()})}), "*2\r\n:1\r\n*1\r\n+OK\r\n"},
		{"arg num", MakeArgNumErrReply("get"), "-ERR wrong number of arguments for 'get' command\r\n"},
		{"unknown command", MakeUnknownCommandErrReply("del"), "-ERR unknown command 'del'\r\n"},
		{"unknown command crlf", MakeUnknownCommandErrReply("x\r\n+OK"), "-ERR unknown command 'x  +OK'\r\n"},
		{"arg num crlf", MakeArgNumErrReply("a\nb"), "-ERR wrong number of arguments for 'a b' command\r\n"},
		{"status crlf", MakeStatusReply("a\r\nb"), "+a  b\r\n"},
		{"error crlf", MakeErrReply("ERR x\r\n:1"), "-ERR x  :1\r\n"},
		{"syntax", MakeSyntaxErrReply(), "-ERR syntax error\r\n"},
		{"protocol", MakeProtocolErrReply("bad\r\nline"), "-ERR Protocol error: 'bad  line'\r\n"},
		{"unknown", &UnknownErrReply{}, "-ERR unknown\r\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(tt.reply.ToBytes()))
		})
	}
}

func TestIsErrorReply(t *testing.T) {
	assert.True(t, IsErrorReply(MakeErrReply("ERR x")))
	assert.True(t, IsErrorReply(MakeArgNumErrReply("set")))
	assert.False(t, IsErrorReply(MakeOkReply()))
	assert.False(t, IsErrorReply(MakeNullBulkReply()))
	assert.False(t, IsErrorReply(nil))
}
