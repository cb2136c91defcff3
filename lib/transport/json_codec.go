package transport

import (
	"encoding/json"
	"fmt"
)

// JSONCodec encodes commands and messages as plain JSON objects.
// This is the format WebExtension hosts speak and the default for every channel.
type JSONCodec struct{}

var _ Codec = JSONCodec{}

// EncodeCommand implements Codec.
func (JSONCodec) EncodeCommand(cmd Command) ([]byte, error) {
	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("json codec: failed to marshal command %s: %w", cmd.Command, err)
	}
	return data, nil
}

// DecodeMessage implements Codec.
func (JSONCodec) DecodeMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("json codec: failed to unmarshal message: %w", err)
	}
	return msg, nil
}

// EncodeMessage implements Codec.
func (JSONCodec) EncodeMessage(msg Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("json codec: failed to marshal message %s: %w", msg.Type, err)
	}
	return data, nil
}

// DecodeCommand implements Codec.
func (JSONCodec) DecodeCommand(data []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return Command{}, fmt.Errorf("json codec: failed to unmarshal command: %w", err)
	}
	return cmd, nil
}
