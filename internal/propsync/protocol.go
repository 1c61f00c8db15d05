package propsync

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/procnet/internal/ir"
)

// Command names.
const (
	CmdSubscribe   = "subscribe"
	CmdUnsubscribe = "unsubscribe"
	CmdSet         = "property.set"
	CmdGet         = "property.get"
	CmdUpdate      = "property.update"
	CmdRemoved     = "property.removed"
)

var (
	// ErrUnknownCommand is returned for a command name the synchronizer
	// does not handle.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrNotSubscribed is returned when unsubscribing a path that has no
	// subscription.
	ErrNotSubscribed = errors.New("not subscribed")
)

// Command is one inbound message.
type Command struct {
	Command string          `json:"command"`
	Path    string          `json:"path"`
	ID      string          `json:"id,omitempty"`
	Value   json.RawMessage `json:"value,omitempty"`
}

// Response answers a Command. Value is set for subscribe and get.
type Response struct {
	Command string          `json:"command"`
	Path    string          `json:"path"`
	ID      string          `json:"id,omitempty"`
	OK      bool            `json:"ok"`
	Value   json.RawMessage `json:"value,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Update is an outbound value push.
type Update struct {
	Command string          `json:"command"`
	Path    string          `json:"path"`
	ID      string          `json:"id,omitempty"`
	Value   json.RawMessage `json:"value,omitempty"`
}

// DecodeCommand parses one JSON command.
func DecodeCommand(data []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return Command{}, fmt.Errorf("decode command: %w", err)
	}
	if cmd.Command == "" {
		return Command{}, errors.New("decode command: missing command")
	}
	return cmd, nil
}

// NewSetCommand builds a property.set command.
func NewSetCommand(path string, v ir.Value) (Command, error) {
	raw, err := ir.MarshalValue(v)
	if err != nil {
		return Command{}, err
	}
	return Command{Command: CmdSet, Path: path, Value: raw}, nil
}

func decodeValue(raw json.RawMessage) (ir.Value, error) {
	if len(raw) == 0 {
		return nil, errors.New("missing value")
	}
	return ir.UnmarshalValue(raw)
}

func encodeValue(v ir.Value) json.RawMessage {
	raw, err := ir.MarshalValue(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return raw
}
