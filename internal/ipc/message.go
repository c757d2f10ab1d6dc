package ipc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// InternalPrefix marks messages addressed to the channel implementation
// rather than to the application.
const InternalPrefix = "NODE_"

// Message is a single document received on the channel.
type Message struct {
	// Body is the compact JSON document without the trailing newline.
	Body json.RawMessage

	// Received is when the message was read off the channel.
	Received time.Time
}

// NewMessage encodes v as a Message.
func NewMessage(v any) (Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Message{}, fmt.Errorf("encode message: %w", err)
	}
	return Message{Body: data}, nil
}

// Decode unmarshals the message body into v.
func (m Message) Decode(v any) error {
	return json.Unmarshal(m.Body, v)
}

// Get returns the value at a gjson path, e.g. "cmd" or "data.items.0".
func (m Message) Get(path string) gjson.Result {
	return gjson.GetBytes(m.Body, path)
}

// Cmd returns the string "cmd" field, or "" if absent or not a string.
func (m Message) Cmd() string {
	r := m.Get("cmd")
	if r.Type != gjson.String {
		return ""
	}
	return r.Str
}

// IsInternal reports whether the message is reserved for the channel.
func (m Message) IsInternal() bool {
	return strings.HasPrefix(m.Cmd(), InternalPrefix)
}

func (m Message) String() string {
	return string(m.Body)
}

// frame validates a JSON document and renders it as a single line.
func frame(doc []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, doc); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
