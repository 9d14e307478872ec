// Copyright 2025 Outreach Corporation. All Rights Reserved.

// Description:

// Package protocol:
package protocol

import (
	"errors"
	"fmt"
	"strings"

	"github.com/awinterman/anarchoresp/protocol/kind"
	"github.com/awinterman/anarchoresp/protocol/message"
)

type Command struct {
	// Name is the upper-cased name of the command
	Name string

	// Sub is the upper-cased subcommand of container commands such as CLIENT or
	// CONFIG, empty otherwise.
	Sub string

	// Args are all the arguments after the name (and subcommand).
	Args [][]byte

	// Message is the original message
	Message *Message
}

var commandsWithSubOp = map[string]bool{"ACL": true, "CLIENT": true, "CLUSTER": true, "COMMAND": true,
	"CONFIG": true, "FUNCTION": true, "MEMORY": true, "OBJECT": true, "SCRIPT": true, "XINFO": true}

// ErrInvalidCommand is returned when a command is invalid
var ErrInvalidCommand = errors.New("invalid command")

// Cmd reads a command from the msg
//
// Clients send commands to a Redis server as an array of bulk strings. The
// first (and sometimes also the second) bulk string in the array is the
// command's name. Subsequent elements of the array are the arguments for
// the command.
func Cmd(msg Message) (*Command, error) {
	if msg.Kind != kind.Array || msg.IsNull {
		return nil, fmt.Errorf("%w; expected array got %s", ErrInvalidCommand, msg.Kind)
	}
	if len(msg.Elems) == 0 {
		return nil, fmt.Errorf("%w; empty array", ErrInvalidCommand)
	}

	args := make([][]byte, len(msg.Elems))
	for i, elem := range msg.Elems {
		if elem.Kind == kind.BulkString || elem.Kind == kind.SimpleString {
			if text, ok := elem.Text(); ok {
				args[i] = []byte(text)
				continue
			}
		}
		return nil, fmt.Errorf("%w; expected BulkString for %d-th element of message, got %s",
			ErrInvalidCommand, i, elem.Kind)
	}

	cmd := &Command{Message: &msg}
	if cmd.Name = strings.ToUpper(string(args[0])); cmd.Name == "" {
		return nil, fmt.Errorf("%w; expected non-empty string for command name", ErrInvalidCommand)
	}

	startIndex := 1
	if commandsWithSubOp[cmd.Name] && len(args) > 1 {
		cmd.Sub = strings.ToUpper(string(args[1]))
		startIndex = 2
	}
	cmd.Args = args[startIndex:]

	return cmd, nil
}

// FullName is the name followed by the subcommand, if any.
func (cmd *Command) FullName() string {
	if cmd.Sub == "" {
		return cmd.Name
	}
	return cmd.Name + " " + cmd.Sub
}

// NewCommand builds the array of bulk strings a client sends for args.
func NewCommand(args ...string) Message {
	elems := make([]Message, len(args))
	for i := range args {
		elems[i] = message.BulkString(args[i])
	}
	return message.Array(elems...)
}
