package rpc

import "encoding/json"

const (
	typeCommand  = "command"
	typeResponse = "response"
	typeEvent    = "event"
)

// envelope is the single frame shape exchanged with the backend. Commands
// carry id/to/command/params/timeout, responses echo the id with
// error/message/data, and events carry event/uuid/params.
type envelope struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	To      string          `json:"to,omitempty"`
	Command string          `json:"command,omitempty"`
	Params  map[string]any  `json:"params,omitempty"`
	Timeout float64         `json:"timeout,omitempty"`
	Error   bool            `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Event   string          `json:"event,omitempty"`
	UUID    string          `json:"uuid,omitempty"`
}
