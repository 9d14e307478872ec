package protocol

import (
	"testing"

	"gotest.tools/v3/assert"

	"github.com/awinterman/anarchoresp/protocol/message"
)

func TestCmd(t *testing.T) {
	tests := map[string]struct {
		msg      Message
		name     string
		sub      string
		args     []string
		fullName string
	}{
		"plain":              {NewCommand("set", "k", "v"), "SET", "", []string{"k", "v"}, "SET"},
		"sub command":        {NewCommand("config", "get", "maxmemory"), "CONFIG", "GET", []string{"maxmemory"}, "CONFIG GET"},
		"container alone":    {NewCommand("COMMAND"), "COMMAND", "", []string{}, "COMMAND"},
		"simple string args": {message.Array(message.SimpleString("ping")), "PING", "", []string{}, "PING"},
	}

	for name, testcase := range tests {
		t.Run(name, func(t *testing.T) {
			cmd, err := Cmd(testcase.msg)
			assert.NilError(t, err)
			assert.Equal(t, cmd.Name, testcase.name)
			assert.Equal(t, cmd.Sub, testcase.sub)
			assert.Equal(t, cmd.FullName(), testcase.fullName)

			args := make([]string, len(cmd.Args))
			for i := range cmd.Args {
				args[i] = string(cmd.Args[i])
			}
			assert.DeepEqual(t, args, testcase.args)
		})
	}
}

func TestCmd_Invalid(t *testing.T) {
	for name, msg := range map[string]Message{
		"not an array": message.BulkString("PING"),
		"null array":   message.NullArray(),
		"empty":        message.Array(),
		"int element":  message.Array(message.BulkString("GET"), message.Int(1)),
		"null element": message.Array(message.NullBulkString()),
		"empty name":   message.Array(message.BulkString("")),
		"error name":   message.Array(message.Error("PING")),
		"verbatim arg": message.Array(message.BulkString("ECHO"), message.VerbatimString("txt", "hi")),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Cmd(msg)
			assert.ErrorIs(t, err, ErrInvalidCommand)
		})
	}
}
