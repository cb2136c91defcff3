package transport

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
)

// Adapter wraps a Channel behind the two primitives the bridge uses: a single inbound
// registration and a fire-and-forget command send.
type Adapter struct {
	channel    Channel
	logger     *zap.Logger
	onError    func(error)
	registered atomic.Bool
}

// NewAdapter creates an Adapter over the given channel.
func NewAdapter(channel Channel, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		channel: channel,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.onError == nil {
		a.onError = func(err error) {
			a.logger.Error("inbound message aborted", zap.Error(err))
		}
	}
	return a
}

// OnInbound registers handler to receive every inbound message. It may be called once
// for the lifetime of the adapter; later calls return ErrAlreadyRegistered. A failed
// registration does not count.
func (a *Adapter) OnInbound(ctx context.Context, handler DeliverFunc) error {
	if !a.registered.CompareAndSwap(false, true) {
		return ErrAlreadyRegistered
	}
	if err := a.channel.Subscribe(ctx, handler, a.onError); err != nil {
		a.registered.Store(false)
		return fmt.Errorf("failed to subscribe to host channel: %w", err)
	}
	return nil
}

// SendCommand dispatches a command to the host. A nil data value is left off the wire.
// Dispatch failures are logged and otherwise dropped; the caller never sees them.
func (a *Adapter) SendCommand(ctx context.Context, name string, data any) {
	cmd := Command{Command: name, Data: data}
	if err := a.channel.Dispatch(ctx, cmd); err != nil {
		a.logger.Warn("command dispatch failed", zap.String("command", name), zap.Error(err))
		return
	}
	a.logger.Debug("command dispatched", zap.String("command", name))
}

// Close closes the underlying channel.
func (a *Adapter) Close() error {
	return a.channel.Close()
}
