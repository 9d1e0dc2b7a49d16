package reply

import (
	"bytes"
	"strconv"
	"strings"

	"minikv/interface/resp"
)

var (
	nullBulkReplyBytes = []byte("$-1\r\n")

	// CRLF is the line separator of the protocol
	CRLF = "\r\n"
)

// BulkReply stores a binary-safe string
type BulkReply struct {
	Arg []byte
}

// MakeBulkReply creates BulkReply. A nil arg is stored as an empty bulk,
// use MakeNullBulkReply for absence of value.
func MakeBulkReply(arg []byte) *BulkReply {
	if arg == nil {
		arg = []byte{}
	}
	return &BulkReply{Arg: arg}
}

// ToBytes marshal redis.Reply, "redis" -> $5\r\nredis\r\n
func (r *BulkReply) ToBytes() []byte {
	var buf bytes.Buffer
	buf.Grow(len(r.Arg) + 16)
	buf.WriteByte('$')
	buf.WriteString(strconv.Itoa(len(r.Arg)))
	buf.WriteString(CRLF)
	buf.Write(r.Arg)
	buf.WriteString(CRLF)
	return buf.Bytes()
}

// NullBulkReply is the absence of a value
type NullBulkReply struct{}

var theNullBulkReply = &NullBulkReply{}

// MakeNullBulkReply creates a new NullBulkReply
func MakeNullBulkReply() *NullBulkReply {
	return theNullBulkReply
}

// ToBytes marshal redis.Reply
func (r *NullBulkReply) ToBytes() []byte {
	return nullBulkReplyBytes
}

// ArrayReply is an ordered sequence of frames, a command line is an array of bulks
type ArrayReply struct {
	Replies []resp.Reply
}

// MakeArrayReply creates ArrayReply
func MakeArrayReply(replies []resp.Reply) *ArrayReply {
	if replies == nil {
		replies = []resp.Reply{}
	}
	return &ArrayReply{Replies: replies}
}

// MakeMultiBulkReply creates an array of bulk strings, nil args become null bulks
func MakeMultiBulkReply(args [][]byte) *ArrayReply {
	replies := make([]resp.Reply, len(args))
	for i, arg := range args {
		if arg == nil {
			replies[i] = theNullBulkReply
		} else {
			replies[i] = MakeBulkReply(arg)
		}
	}
	return &ArrayReply{Replies: replies}
}

// ToBytes marshal redis.Reply
func (r *ArrayReply) ToBytes() []byte {
	var buf bytes.Buffer
	buf.WriteByte('*')
	buf.WriteString(strconv.Itoa(len(r.Replies)))
	buf.WriteString(CRLF)
	for _, item := range r.Replies {
		buf.Write(item.ToBytes())
	}
	return buf.Bytes()
}

// StatusReply stores a simple status string
type StatusReply struct {
	Status string
}

// lineReplacer keeps text of simple and error frames on a single line
var lineReplacer = strings.NewReplacer("\r", " ", "\n", " ")

func oneLine(s string) string {
	if strings.ContainsAny(s, "\r\n") {
		return lineReplacer.Replace(s)
	}
	return s
}

// MakeStatusReply creates StatusReply, CR and LF become spaces
func MakeStatusReply(status string) *StatusReply {
	return &StatusReply{Status: oneLine(status)}
}

// ToBytes marshal redis.Reply
func (r *StatusReply) ToBytes() []byte {
	return []byte("+" + r.Status + CRLF)
}

// MakeOkReply returns a fresh +OK
func MakeOkReply() *StatusReply {
	return &StatusReply{Status: "OK"}
}

// MakePongReply returns a fresh +PONG
func MakePongReply() *StatusReply {
	return &StatusReply{Status: "PONG"}
}

// IntReply stores an int64 number
type IntReply struct {
	Code int64
}

// MakeIntReply creates int reply
func MakeIntReply(code int64) *IntReply {
	return &IntReply{Code: code}
}

// ToBytes marshal redis.Reply
func (r *IntReply) ToBytes() []byte {
	return []byte(":" + strconv.FormatInt(r.Code, 10) + CRLF)
}

// ErrorReply is an error and redis.Reply
type ErrorReply interface {
	Error() string
	ToBytes() []byte
}

// StandardErrReply represents server error
type StandardErrReply struct {
	Status string
}

// MakeErrReply creates StandardErrReply, CR and LF become spaces
func MakeErrReply(status string) *StandardErrReply {
	return &StandardErrReply{Status: oneLine(status)}
}

// ToBytes marshal redis.Reply
func (r *StandardErrReply) ToBytes() []byte {
	return []byte("-" + r.Status + CRLF)
}

func (r *StandardErrReply) Error() string {
	return r.Status
}

// IsErrorReply returns true if the given reply is an error frame
func IsErrorReply(reply resp.Reply) bool {
	if reply == nil {
		return false
	}
	if _, ok := reply.(ErrorReply); ok {
		return true
	}
	b := reply.ToBytes()
	return len(b) > 0 && b[0] == '-'
}
