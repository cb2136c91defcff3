package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketChannel carries one encoded message or command per WebSocket message.
// JSON travels as text frames, any other codec as binary frames.
type WebSocketChannel struct {
	conn *websocket.Conn
	opts channelOptions

	writeMu    sync.Mutex
	subscribed atomic.Bool
	closed     atomic.Bool
	closeOnce  sync.Once
	reader     readerLoop
}

var _ Channel = (*WebSocketChannel)(nil)

// DialWebSocket connects to a host relay at url.
func DialWebSocket(ctx context.Context, url string, header http.Header, opts ...ChannelOption) (*WebSocketChannel, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	return NewWebSocketChannel(conn, opts...), nil
}

// NewWebSocketChannel wraps an established connection.
func NewWebSocketChannel(conn *websocket.Conn, opts ...ChannelOption) *WebSocketChannel {
	return &WebSocketChannel{
		conn: conn,
		opts: applyChannelOptions(opts),
	}
}

func (w *WebSocketChannel) frameType() int {
	if _, ok := w.opts.codec.(JSONCodec); ok {
		return websocket.TextMessage
	}
	return websocket.BinaryMessage
}

// Subscribe implements Channel.
func (w *WebSocketChannel) Subscribe(ctx context.Context, deliver DeliverFunc, onError func(error)) error {
	if w.closed.Load() {
		return ErrChannelClosed
	}
	if !w.subscribed.CompareAndSwap(false, true) {
		return errors.New("websocket channel: already subscribed")
	}

	report := func(err error) {
		if onError != nil {
			onError(err)
		}
	}

	w.reader.start(func() {
		for {
			_, data, err := w.conn.ReadMessage()
			if err != nil {
				if !w.closed.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					report(fmt.Errorf("websocket channel: %w", err))
				}
				return
			}
			if ctx.Err() != nil {
				return
			}

			msg, err := w.opts.codec.DecodeMessage(data)
			if err != nil {
				report(err)
				continue
			}
			if err := w.reader.deliver(ctx, deliver, msg); err != nil {
				report(err)
			}
		}
	})
	return nil
}

// Dispatch implements Channel.
func (w *WebSocketChannel) Dispatch(ctx context.Context, cmd Command) error {
	if w.closed.Load() {
		return ErrChannelClosed
	}

	data, err := w.opts.codec.EncodeCommand(cmd)
	if err != nil {
		return err
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = w.conn.SetWriteDeadline(deadline)
		defer w.conn.SetWriteDeadline(time.Time{})
	}
	if err := w.conn.WriteMessage(w.frameType(), data); err != nil {
		return fmt.Errorf("failed to write %s: %w", cmd.Command, err)
	}
	return nil
}

// Close implements Channel. It sends a close frame before dropping the connection.
// Called from inside a delivery, it returns without waiting for the read goroutine.
func (w *WebSocketChannel) Close() error {
	var closeErr error
	w.closeOnce.Do(func() {
		w.closed.Store(true)

		w.writeMu.Lock()
		_ = w.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		w.writeMu.Unlock()

		closeErr = w.conn.Close()
		if w.opts.closer != nil {
			if err := w.opts.closer.Close(); err != nil && closeErr == nil {
				closeErr = err
			}
		}
	})
	w.reader.wait()
	return closeErr
}
