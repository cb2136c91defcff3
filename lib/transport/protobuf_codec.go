package transport

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ProtobufCodec carries the same command and message shapes as JSONCodec, encoded as a
// binary google.protobuf.Struct. Numbers travel as doubles, so an integer data value
// decodes as float64 on the far side.
type ProtobufCodec struct{}

var _ Codec = ProtobufCodec{}

// EncodeCommand implements Codec.
func (ProtobufCodec) EncodeCommand(cmd Command) ([]byte, error) {
	fields := map[string]*structpb.Value{
		"command": structpb.NewStringValue(cmd.Command),
	}
	if cmd.Data != nil {
		v, err := toValue(cmd.Data)
		if err != nil {
			return nil, fmt.Errorf("protobuf codec: failed to convert data for %s: %w", cmd.Command, err)
		}
		fields["data"] = v
	}
	return marshalStruct(&structpb.Struct{Fields: fields})
}

// DecodeMessage implements Codec.
func (ProtobufCodec) DecodeMessage(data []byte) (Message, error) {
	s, err := unmarshalStruct(data)
	if err != nil {
		return Message{}, err
	}

	msg := Message{Type: s.GetFields()["type"].GetStringValue()}
	if content, ok := s.GetFields()["content"]; ok {
		raw, err := content.MarshalJSON()
		if err != nil {
			return Message{}, fmt.Errorf("protobuf codec: failed to render content of %s: %w", msg.Type, err)
		}
		msg.Content = raw
	}
	return msg, nil
}

// EncodeMessage implements Codec.
func (ProtobufCodec) EncodeMessage(msg Message) ([]byte, error) {
	fields := map[string]*structpb.Value{
		"type": structpb.NewStringValue(msg.Type),
	}
	if len(msg.Content) > 0 {
		var content any
		if err := json.Unmarshal(msg.Content, &content); err != nil {
			return nil, fmt.Errorf("protobuf codec: content of %s is not JSON: %w", msg.Type, err)
		}
		v, err := structpb.NewValue(content)
		if err != nil {
			return nil, fmt.Errorf("protobuf codec: failed to convert content of %s: %w", msg.Type, err)
		}
		fields["content"] = v
	}
	return marshalStruct(&structpb.Struct{Fields: fields})
}

// DecodeCommand implements Codec.
func (ProtobufCodec) DecodeCommand(data []byte) (Command, error) {
	s, err := unmarshalStruct(data)
	if err != nil {
		return Command{}, err
	}

	cmd := Command{Command: s.GetFields()["command"].GetStringValue()}
	if v, ok := s.GetFields()["data"]; ok {
		cmd.Data = v.AsInterface()
	}
	return cmd, nil
}

// toValue normalizes arbitrary Go values through JSON so structs and typed slices are
// accepted the same way JSONCodec accepts them.
func toValue(data any) (*structpb.Value, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return structpb.NewValue(generic)
}

func marshalStruct(s *structpb.Struct) ([]byte, error) {
	data, err := proto.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("protobuf codec: failed to marshal: %w", err)
	}
	return data, nil
}

func unmarshalStruct(data []byte) (*structpb.Struct, error) {
	s := new(structpb.Struct)
	if err := proto.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("protobuf codec: failed to unmarshal: %w", err)
	}
	return s, nil
}
