package transport

import (
	"context"
	"errors"
	"sync"
)

// MemoryChannel is an in-process Channel. The host side pushes messages with Deliver
// and observes commands through Commands or an OnDispatch hook.
type MemoryChannel struct {
	inbound chan Message
	done    chan struct{}

	mu          sync.Mutex
	commands    []Command
	dispatchErr error
	onDispatch  func(Command)
	subscribed  bool
	closed      bool

	closeOnce sync.Once
	reader    readerLoop
}

var _ Channel = (*MemoryChannel)(nil)

// NewMemoryChannel creates a MemoryChannel whose inbound queue holds up to buffer
// undelivered messages.
func NewMemoryChannel(buffer int) *MemoryChannel {
	if buffer < 1 {
		buffer = 1
	}
	return &MemoryChannel{
		inbound: make(chan Message, buffer),
		done:    make(chan struct{}),
	}
}

// Subscribe implements Channel.
func (m *MemoryChannel) Subscribe(ctx context.Context, deliver DeliverFunc, onError func(error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrChannelClosed
	}
	if m.subscribed {
		return errors.New("memory channel: already subscribed")
	}
	m.subscribed = true

	m.reader.start(func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.done:
				return
			case msg := <-m.inbound:
				if err := m.reader.deliver(ctx, deliver, msg); err != nil && onError != nil {
					onError(err)
				}
			}
		}
	})
	return nil
}

// Dispatch implements Channel.
func (m *MemoryChannel) Dispatch(ctx context.Context, cmd Command) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrChannelClosed
	}
	if m.dispatchErr != nil {
		err := m.dispatchErr
		m.mu.Unlock()
		return err
	}
	m.commands = append(m.commands, cmd)
	hook := m.onDispatch
	m.mu.Unlock()

	if hook != nil {
		hook(cmd)
	}
	return nil
}

// Deliver queues a message from the host side. It blocks while the queue is full.
func (m *MemoryChannel) Deliver(ctx context.Context, msg Message) error {
	select {
	case <-m.done:
		return ErrChannelClosed
	default:
	}

	select {
	case m.inbound <- msg:
		return nil
	case <-m.done:
		return ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Commands returns a copy of every command dispatched so far.
func (m *MemoryChannel) Commands() []Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Command, len(m.commands))
	copy(out, m.commands)
	return out
}

// FailDispatch makes every later Dispatch return err. A nil err restores delivery.
func (m *MemoryChannel) FailDispatch(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatchErr = err
}

// OnDispatch installs a hook called after each successful Dispatch. The hook runs on
// the dispatching goroutine and may call Deliver.
func (m *MemoryChannel) OnDispatch(fn func(Command)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDispatch = fn
}

// Close implements Channel. Called from inside a delivery, it returns without waiting
// for the delivery goroutine.
func (m *MemoryChannel) Close() error {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()
		close(m.done)
	})
	m.reader.wait()
	return nil
}
