package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

const (
	// FrameHeaderSize is the length prefix of every frame: a little-endian uint32.
	FrameHeaderSize = 4
	// MaxFrameSize bounds a single frame body.
	MaxFrameSize = 10 * 1024 * 1024
)

// ReadFrame reads one length-prefixed frame, the framing WebExtension native
// messaging uses on stdio.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [FrameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	length := binary.LittleEndian.Uint32(header[:])
	if length > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d exceeds maximum %d", ErrFrameTooLarge, length, MaxFrameSize)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("failed to read frame body: %w", err)
	}
	return body, nil
}

// WriteFrame writes data as one length-prefixed frame.
func WriteFrame(w io.Writer, data []byte) error {
	if len(data) > MaxFrameSize {
		return fmt.Errorf("%w: %d exceeds maximum %d", ErrFrameTooLarge, len(data), MaxFrameSize)
	}

	buf := make([]byte, FrameHeaderSize+len(data))
	binary.LittleEndian.PutUint32(buf, uint32(len(data)))
	copy(buf[FrameHeaderSize:], data)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// StreamChannel runs the bridge protocol over a framed byte stream.
type StreamChannel struct {
	r      io.Reader
	w      io.Writer
	opts   channelOptions

	writeMu    sync.Mutex
	subscribed atomic.Bool
	closed     atomic.Bool
	done       chan struct{}
	closeOnce  sync.Once
	reader     readerLoop
}

var _ Channel = (*StreamChannel)(nil)

// NewStreamChannel creates a channel reading inbound frames from r and writing command
// frames to w.
func NewStreamChannel(r io.Reader, w io.Writer, opts ...ChannelOption) *StreamChannel {
	return &StreamChannel{
		r:      r,
		w:      w,
		opts:   applyChannelOptions(opts),
		done:   make(chan struct{}),
	}
}

// Subscribe implements Channel.
func (s *StreamChannel) Subscribe(ctx context.Context, deliver DeliverFunc, onError func(error)) error {
	if s.closed.Load() {
		return ErrChannelClosed
	}
	if !s.subscribed.CompareAndSwap(false, true) {
		if s.closed.Load() {
			return ErrChannelClosed
		}
		return errors.New("stream channel: already subscribed")
	}

	report := func(err error) {
		if onError != nil {
			onError(err)
		}
	}

	s.reader.start(func() {
		for {
			select {
			case <-s.done:
				return
			default:
			}

			data, err := ReadFrame(s.r)
			if err != nil {
				// A broken frame leaves the stream unaligned, so reading stops here.
				if !errors.Is(err, io.EOF) && !s.closed.Load() {
					report(fmt.Errorf("stream channel: %w", err))
				}
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			default:
			}

			msg, err := s.opts.codec.DecodeMessage(data)
			if err != nil {
				report(err)
				continue
			}
			if err := s.reader.deliver(ctx, deliver, msg); err != nil {
				report(err)
			}
		}
	})
	return nil
}

// Dispatch implements Channel.
func (s *StreamChannel) Dispatch(ctx context.Context, cmd Command) error {
	if s.closed.Load() {
		return ErrChannelClosed
	}

	data, err := s.opts.codec.EncodeCommand(cmd)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return WriteFrame(s.w, data)
}

// Close implements Channel. Without a closer registered through WithCloser a pending
// read cannot be interrupted, so Close returns without waiting for the reader goroutine.
// Close also skips the wait when called from inside a delivery.
func (s *StreamChannel) Close() error {
	var closeErr error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.done)
		if s.subscribed.CompareAndSwap(false, true) {
			s.reader.markStopped()
		}
		if s.opts.closer != nil {
			closeErr = s.opts.closer.Close()
		}
	})
	if s.opts.closer != nil {
		s.reader.wait()
	}
	return closeErr
}
