package reply

// UnknownErrReply represents an internal failure while serving a command
type UnknownErrReply struct{}

var unknownErrBytes = []byte("-ERR unknown\r\n")

// ToBytes marshals redis.Reply
func (r *UnknownErrReply) ToBytes() []byte {
	return unknownErrBytes
}

func (r *UnknownErrReply) Error() string {
	return "ERR unknown"
}

// ArgNumErrReply represents wrong number of arguments for command
type ArgNumErrReply struct {
	Cmd string
}

// MakeArgNumErrReply represents wrong number of arguments for command
func MakeArgNumErrReply(cmd string) *ArgNumErrReply {
	return &ArgNumErrReply{Cmd: oneLine(cmd)}
}

// ToBytes marshals redis.Reply
func (r *ArgNumErrReply) ToBytes() []byte {
	return []byte("-" + r.Error() + "\r\n")
}

func (r *ArgNumErrReply) Error() string {
	return "ERR wrong number of arguments for '" + r.Cmd + "' command"
}

// UnknownCommandErrReply answers a command name outside the command table
type UnknownCommandErrReply struct {
	Cmd string
}

// MakeUnknownCommandErrReply creates UnknownCommandErrReply.
// The name is client input, CR and LF in it become spaces.
func MakeUnknownCommandErrReply(cmd string) *UnknownCommandErrReply {
	return &UnknownCommandErrReply{Cmd: oneLine(cmd)}
}

// ToBytes marshals redis.Reply
func (r *UnknownCommandErrReply) ToBytes() []byte {
	return []byte("-" + r.Error() + "\r\n")
}

func (r *UnknownCommandErrReply) Error() string {
	return "ERR unknown command '" + r.Cmd + "'"
}

// SyntaxErrReply represents meeting unexpected arguments
type SyntaxErrReply struct{}

var syntaxErrBytes = []byte("-ERR syntax error\r\n")
var theSyntaxErrReply = &SyntaxErrReply{}

// MakeSyntaxErrReply creates syntax error
func MakeSyntaxErrReply() *SyntaxErrReply {
	return theSyntaxErrReply
}

// ToBytes marshals redis.Reply
func (r *SyntaxErrReply) ToBytes() []byte {
	return syntaxErrBytes
}

func (r *SyntaxErrReply) Error() string {
	return "ERR syntax error"
}

// ProtocolErrReply represents meeting unexpected byte during parse requests
type ProtocolErrReply struct {
	Msg string
}

// MakeProtocolErrReply creates ProtocolErrReply
func MakeProtocolErrReply(msg string) *ProtocolErrReply {
	// the message may quote raw input
	return &ProtocolErrReply{Msg: oneLine(msg)}
}

// ToBytes marshals redis.Reply
func (r *ProtocolErrReply) ToBytes() []byte {
	return []byte("-" + r.Error() + "\r\n")
}

func (r *ProtocolErrReply) Error() string {
	return "ERR Protocol error: '" + r.Msg + "'"
}
