package transport

import (
	"fmt"
	"io"

	"go.uber.org/zap"
)

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithLogger sets the logger used for dispatch failures and inbound errors.
func WithLogger(logger *zap.Logger) AdapterOption {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger.Named("transport")
		}
	}
}

// WithErrorHandler replaces the default inbound error hook, which logs at error level.
func WithErrorHandler(fn func(error)) AdapterOption {
	return func(a *Adapter) {
		a.onError = fn
	}
}

type channelOptions struct {
	codec  Codec
	closer io.Closer
}

// ChannelOption configures the byte-oriented channels.
type ChannelOption func(*channelOptions)

// WithCodec sets the wire codec. The default is JSONCodec.
func WithCodec(codec Codec) ChannelOption {
	return func(o *channelOptions) {
		if codec != nil {
			o.codec = codec
		}
	}
}

// WithCloser registers a resource the channel closes on Close, after its own cleanup.
// StreamChannel relies on it to unblock a pending read.
func WithCloser(closer io.Closer) ChannelOption {
	return func(o *channelOptions) {
		o.closer = closer
	}
}

func applyChannelOptions(opts []ChannelOption) channelOptions {
	o := channelOptions{codec: JSONCodec{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// CodecByName resolves the codec names accepted in configuration.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSONCodec{}, nil
	case "protobuf", "proto":
		return ProtobufCodec{}, nil
	default:
		return nil, fmt.Errorf("transport: unknown codec %q", name)
	}
}
