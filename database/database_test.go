package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"minikv/datastruct/dict"
	"minikv/resp/command"
	"minikv/resp/reply"
)

type otherCommand struct{}

func (otherCommand) Name() string { return "flushall" }

func TestExec(t *testing.T) {
	for _, kind := range []string{dict.KindLocked, dict.KindSharded, dict.KindOwner} {
		t.Run(kind, func(t *testing.T) {
			data, err := dict.MakeDict(kind, 4, 4)
			assert.NoError(t, err)
			d := NewDatabase(data)
			defer d.Close()

			assert.Equal(t, reply.MakeNullBulkReply(), d.Exec(nil, &command.Get{Key: "hello"}))
			assert.Equal(t, reply.MakeNullBulkReply(), d.Exec(nil, &command.Get{Key: "hello"}))

			assert.Equal(t, reply.MakeOkReply(), d.Exec(nil, &command.Set{Key: "hello", Value: []byte("world")}))
			assert.Equal(t, reply.MakeBulkReply([]byte("world")), d.Exec(nil, &command.Get{Key: "hello"}))

			assert.Equal(t, reply.MakeOkReply(), d.Exec(nil, &command.Set{Key: "hello", Value: []byte("there")}))
			assert.Equal(t, reply.MakeBulkReply([]byte("there")), d.Exec(nil, &command.Get{Key: "hello"}))

			assert.Equal(t, reply.MakeOkReply(), d.Exec(nil, &command.Set{Key: "empty", Value: []byte{}}))
			assert.Equal(t, "$0\r\n\r\n", string(d.Exec(nil, &command.Get{Key: "empty"}).ToBytes()))

			assert.Equal(t, 2, d.Len())
		})
	}
}

func TestExecPing(t *testing.T) {
	d := NewDatabase(dict.MakeLockedDict())
	assert.Equal(t, "+PONG\r\n", string(d.Exec(nil, &command.Ping{}).ToBytes()))
	assert.Equal(t, "$2\r\nhi\r\n", string(d.Exec(nil, &command.Ping{Message: []byte("hi")}).ToBytes()))
}

func TestExecUnregistered(t *testing.T) {
	d := NewDatabase(dict.MakeLockedDict())
	assert.Equal(t, "-ERR unknown command 'flushall'\r\n", string(d.Exec(nil, otherCommand{}).ToBytes()))
}

type panicDict struct{ dict.Dict }

func (panicDict) Get(string) ([]byte, bool) { panic("broken") }

func TestExecRecover(t *testing.T) {
	d := NewDatabase(panicDict{dict.MakeLockedDict()})
	result := d.Exec(nil, &command.Get{Key: "k"})
	assert.True(t, reply.IsErrorReply(result))
}
