package command

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minikv/interface/resp"
	"minikv/lib/utils"
	"minikv/resp/reply"
)

func request(args ...string) resp.Reply {
	return reply.MakeMultiBulkReply(utils.ToCmdLine(args...))
}

func TestFromFrame(t *testing.T) {
	tests := []struct {
		name  string
		frame resp.Reply
		want  Command
	}{
		{"get", request("GET", "hello"), &Get{Key: "hello"}},
		{"lower case get", request("get", "hello"), &Get{Key: "hello"}},
		{"mixed case set", request("sEt", "hello", "world"), &Set{Key: "hello", Value: []byte("world")}},
		{"binary value", request("SET", "k", "a\r\n\x00"), &Set{Key: "k", Value: []byte("a\r\n\x00")}},
		{"ping", request("PING"), &Ping{}},
		{"ping message", request("ping", "hi"), &Ping{Message: []byte("hi")}},
		{
			"simple string name",
			reply.MakeArrayReply([]resp.Reply{reply.MakeStatusReply("GET"), reply.MakeBulkReply([]byte("k"))}),
			&Get{Key: "k"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := FromFrame(tt.frame)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cmd)
		})
	}
}

func TestFromFrameArity(t *testing.T) {
	frames := map[string]resp.Reply{
		"get":  request("GET"),
		"set":  request("SET", "k"),
		"ping": request("PING", "a", "b"),
	}
	for name, frame := range frames {
		_, err := FromFrame(frame)
		var argErr *ArgNumError
		require.True(t, errors.As(err, &argErr), "%s: %v", name, err)
		assert.Equal(t, name, argErr.Name)
	}
	_, err := FromFrame(request("GET", "a", "b"))
	assert.Error(t, err)
	_, err = FromFrame(request("SET", "a", "b", "c"))
	assert.Error(t, err)
}

func TestFromFrameUnknown(t *testing.T) {
	_, err := FromFrame(request("DEL", "x"))
	var unknown *UnknownCommandError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "del", unknown.Name)
	assert.Equal(t, "-ERR unknown command 'del'\r\n", string(ErrorReply(err).ToBytes()))
}

func TestFromFrameShape(t *testing.T) {
	frames := []resp.Reply{
		reply.MakeBulkReply([]byte("GET")),
		reply.MakeOkReply(),
		reply.MakeIntReply(1),
		reply.MakeNullBulkReply(),
		reply.MakeArrayReply(nil),
		reply.MakeArrayReply([]resp.Reply{reply.MakeIntReply(1), reply.MakeBulkReply([]byte("k"))}),
		reply.MakeArrayReply([]resp.Reply{reply.MakeNullBulkReply()}),
		reply.MakeArrayReply([]resp.Reply{reply.MakeBulkReply([]byte("GET")), reply.MakeIntReply(1)}),
		reply.MakeArrayReply([]resp.Reply{
			reply.MakeBulkReply([]byte("GET")),
			reply.MakeArrayReply([]resp.Reply{reply.MakeBulkReply([]byte("k"))}),
		}),
	}
	for _, frame := range frames {
		_, err := FromFrame(frame)
		var parseErr *ParseError
		assert.True(t, errors.As(err, &parseErr), "%q: %v", frame.ToBytes(), err)
		assert.True(t, reply.IsErrorReply(ErrorReply(err)))
	}
}

func TestErrorReply(t *testing.T) {
	assert.Equal(t, "-ERR wrong number of arguments for 'get' command\r\n",
		string(ErrorReply(&ArgNumError{Name: "get"}).ToBytes()))
	assert.Equal(t, "-ERR invalid command: expected array\r\n",
		string(ErrorReply(&ParseError{Msg: "expected array"}).ToBytes()))
	assert.Equal(t, "-ERR boom\r\n", string(ErrorReply(errors.New("boom")).ToBytes()))
}
