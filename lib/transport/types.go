// Package transport provides the channel between the dashboard bridge and its host.
// This file contains the wire types, the Channel interface, and the sentinel errors.
package transport

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrAlreadyRegistered is returned when a second inbound handler is registered on an Adapter.
	ErrAlreadyRegistered = errors.New("transport: inbound handler already registered")
	// ErrChannelClosed is returned by operations on a closed channel.
	ErrChannelClosed = errors.New("transport: channel closed")
	// ErrFrameTooLarge is returned when a stream frame exceeds MaxFrameSize.
	ErrFrameTooLarge = errors.New("transport: frame too large")
)

// Message is an inbound notification from the host.
// Content is left raw; its shape depends on Type and is decoded by the receiver.
type Message struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content,omitempty"`
}

// Command is an outbound request to the host. Data is omitted from the wire when nil.
type Command struct {
	Command string `json:"command"`
	Data    any    `json:"data,omitempty"`
}

// DeliverFunc receives inbound messages. A returned error aborts processing of that
// message only.
type DeliverFunc func(ctx context.Context, msg Message) error

// Channel is the host mechanism an Adapter wraps.
type Channel interface {
	// Subscribe starts delivering inbound messages to deliver, one at a time and in
	// arrival order. It returns once delivery has started. Errors returned by deliver
	// are passed to onError and do not stop delivery.
	Subscribe(ctx context.Context, deliver DeliverFunc, onError func(error)) error
	// Dispatch sends a command to the host.
	Dispatch(ctx context.Context, cmd Command) error
	// Close stops delivery and releases the channel.
	Close() error
}

// Codec converts between wire bytes and the transport types.
type Codec interface {
	EncodeCommand(cmd Command) ([]byte, error)
	DecodeMessage(data []byte) (Message, error)
	// EncodeMessage and DecodeCommand serve the host side of a channel.
	EncodeMessage(msg Message) ([]byte, error)
	DecodeCommand(data []byte) (Command, error)
}
