// Package command turns request frames into typed commands.
//
// A request is an array whose first element names the command and whose
// remaining elements are its arguments. Names are matched case-insensitively.
package command

import (
	"errors"
	"strconv"
	"strings"

	"minikv/interface/resp"
	"minikv/resp/reply"
)

// Command is one of *Get, *Set or *Ping
type Command interface {
	Name() string
}

// ParseError means the frame is well-formed but is not a valid command
type ParseError struct {
	Msg string
}

func (e *ParseError) Error() string {
	return "invalid command: " + e.Msg
}

// ArgNumError means the command got the wrong number of arguments
type ArgNumError struct {
	Name string
}

func (e *ArgNumError) Error() string {
	return "wrong number of arguments for '" + e.Name + "' command"
}

// UnknownCommandError means the name is not in the command table
type UnknownCommandError struct {
	Name string
}

func (e *UnknownCommandError) Error() string {
	return "unknown command '" + e.Name + "'"
}

type parseFunc func(args [][]byte) (Command, error)

type command struct {
	parse parseFunc
	arity int
}

var cmdTable = make(map[string]*command)

// register adds a command to the table.
// arity counts the name: GET k -> 2; a negative arity -n means at least n.
func register(name string, parse parseFunc, arity int) {
	name = strings.ToLower(name)
	cmdTable[name] = &command{
		parse: parse,
		arity: arity,
	}
}

// FromFrame parses a request frame
func FromFrame(frame resp.Reply) (Command, error) {
	arr, ok := frame.(*reply.ArrayReply)
	if !ok {
		return nil, &ParseError{Msg: "expected array"}
	}
	if len(arr.Replies) == 0 {
		return nil, &ParseError{Msg: "empty command"}
	}
	args := make([][]byte, len(arr.Replies))
	for i, item := range arr.Replies {
		arg, ok := stringArg(item)
		if !ok {
			if i == 0 {
				return nil, &ParseError{Msg: "command name must be a string"}
			}
			return nil, &ParseError{Msg: "argument " + strconv.Itoa(i) + " must be a string"}
		}
		args[i] = arg
	}
	name := strings.ToLower(string(args[0]))
	cmd, ok := cmdTable[name]
	if !ok {
		return nil, &UnknownCommandError{Name: name}
	}
	if !validateArity(cmd.arity, args) {
		return nil, &ArgNumError{Name: name}
	}
	return cmd.parse(args[1:])
}

func stringArg(r resp.Reply) ([]byte, bool) {
	switch v := r.(type) {
	case *reply.BulkReply:
		return v.Arg, true
	case *reply.StatusReply:
		return []byte(v.Status), true
	}
	return nil, false
}

func validateArity(arity int, cmdArgs [][]byte) bool {
	argNum := len(cmdArgs)
	if arity >= 0 {
		return argNum == arity
	}
	return argNum >= -arity
}

// ErrorReply converts an error returned by FromFrame into an error frame
func ErrorReply(err error) resp.Reply {
	var argNumErr *ArgNumError
	var unknownErr *UnknownCommandError
	var parseErr *ParseError
	switch {
	case errors.As(err, &argNumErr):
		return reply.MakeArgNumErrReply(argNumErr.Name)
	case errors.As(err, &unknownErr):
		return reply.MakeUnknownCommandErrReply(unknownErr.Name)
	case errors.As(err, &parseErr):
		return reply.MakeErrReply("ERR " + parseErr.Error())
	}
	return reply.MakeErrReply("ERR " + err.Error())
}
