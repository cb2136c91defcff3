package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newRelay starts a host relay that sends greeting on connect and forwards every frame
// it receives to the returned channel.
func newRelay(t *testing.T, greeting []byte, frameType int) (string, <-chan []byte) {
	t.Helper()

	received := make(chan []byte, 4)
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if err := conn.WriteMessage(frameType, greeting); err != nil {
			return
		}
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received <- data
		}
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http"), received
}

func TestWebSocketChannel_JSON(t *testing.T) {
	url, received := newRelay(t, []byte(`{"type":"prefs","content":{"enabled":true}}`), websocket.TextMessage)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := DialWebSocket(ctx, url, nil)
	require.NoError(t, err)
	defer ch.Close()

	got := make(chan Message, 1)
	require.NoError(t, ch.Subscribe(ctx, func(_ context.Context, msg Message) error {
		got <- msg
		return nil
	}, nil))

	select {
	case msg := <-got:
		assert.Equal(t, "prefs", msg.Type)
		assert.JSONEq(t, `{"enabled":true}`, string(msg.Content))
	case <-ctx.Done():
		t.Fatal("no inbound message")
	}

	require.NoError(t, ch.Dispatch(ctx, Command{Command: "DisableSite", Data: "example.com"}))
	select {
	case data := <-received:
		assert.JSONEq(t, `{"command":"DisableSite","data":"example.com"}`, string(data))
	case <-ctx.Done():
		t.Fatal("relay got no command")
	}
}

func TestWebSocketChannel_Protobuf(t *testing.T) {
	greeting, err := ProtobufCodec{}.EncodeMessage(Message{Type: "sitePref", Content: []byte(`{"site":"a.com","isBlocked":false}`)})
	require.NoError(t, err)
	url, received := newRelay(t, greeting, websocket.BinaryMessage)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := DialWebSocket(ctx, url, nil, WithCodec(ProtobufCodec{}))
	require.NoError(t, err)
	defer ch.Close()

	got := make(chan Message, 1)
	require.NoError(t, ch.Subscribe(ctx, func(_ context.Context, msg Message) error {
		got <- msg
		return nil
	}, nil))

	select {
	case msg := <-got:
		assert.Equal(t, "sitePref", msg.Type)
		assert.JSONEq(t, `{"site":"a.com","isBlocked":false}`, string(msg.Content))
	case <-ctx.Done():
		t.Fatal("no inbound message")
	}

	require.NoError(t, ch.Dispatch(ctx, Command{Command: "EnableUP"}))
	select {
	case data := <-received:
		cmd, err := ProtobufCodec{}.DecodeCommand(data)
		require.NoError(t, err)
		assert.Equal(t, "EnableUP", cmd.Command)
	case <-ctx.Done():
		t.Fatal("relay got no command")
	}
}

func TestWebSocketChannel_DispatchAfterClose(t *testing.T) {
	url, _ := newRelay(t, []byte(`{"type":"noop"}`), websocket.TextMessage)

	ch, err := DialWebSocket(context.Background(), url, nil)
	require.NoError(t, err)
	require.NoError(t, ch.Close())

	assert.ErrorIs(t, ch.Dispatch(context.Background(), Command{Command: "EnableUP"}), ErrChannelClosed)
}
