package hostsim_test

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snowmerak/upbridge/lib/bridge"
	"github.com/snowmerak/upbridge/lib/hostsim"
	"github.com/snowmerak/upbridge/lib/store"
	"github.com/snowmerak/upbridge/lib/transport"
)

func nextEvent(t *testing.T, events <-chan store.Event, want store.EventName) store.Event {
	t.Helper()
	for {
		select {
		case ev := <-events:
			if ev.Name == want {
				return ev
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestHandle_RequestCurrentPrefs(t *testing.T) {
	h := hostsim.New(hostsim.DefaultSeed(), nil)

	replies, err := h.Handle(transport.Command{Command: bridge.CommandRequestCurrentPrefs})
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, bridge.KindPrefs, replies[0].Type)
	assert.JSONEq(t, `{"enabled":true}`, string(replies[0].Content))
}

func TestHandle_PagePayloadIsSerializedEnvelope(t *testing.T) {
	h := hostsim.New(hostsim.DefaultSeed(), nil)

	replies, err := h.Handle(transport.Command{Command: bridge.CommandRequestCurrentPagePayload, Data: float64(2)})
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, bridge.KindPayload, replies[0].Type)

	var serialized string
	require.NoError(t, json.Unmarshal(replies[0].Content, &serialized))

	var env struct {
		Type    string `json:"type"`
		Content struct {
			InterestsProfile []store.InterestEntry `json:"interestsProfile"`
		} `json:"content"`
	}
	require.NoError(t, json.Unmarshal([]byte(serialized), &env))
	assert.Equal(t, bridge.PayloadPageload, env.Type)
	assert.Len(t, env.Content.InterestsProfile, 2)
}

func TestHandle_RejectsBadArguments(t *testing.T) {
	h := hostsim.New(hostsim.DefaultSeed(), nil)

	_, err := h.Handle(transport.Command{Command: bridge.CommandSetInterestSharable, Data: "Cooking"})
	assert.Error(t, err)

	_, err = h.Handle(transport.Command{Command: bridge.CommandEnableSite, Data: 3})
	assert.Error(t, err)
}

func TestHandle_UnknownCommand(t *testing.T) {
	h := hostsim.New(hostsim.DefaultSeed(), nil)

	replies, err := h.Handle(transport.Command{Command: "Reboot"})
	require.NoError(t, err)
	assert.Empty(t, replies)
}

// exercise drives a started bridge through the handshake and one of each command.
func exercise(t *testing.T, b *bridge.Bridge, events <-chan store.Event) {
	t.Helper()
	ctx := context.Background()

	prefs := nextEvent(t, events, store.EventPrefChanged)
	assert.True(t, prefs.Snapshot.Prefs.Enabled)

	pageload := nextEvent(t, events, store.EventPageloadReceived)
	assert.Len(t, pageload.Snapshot.InterestsProfile, bridge.DefaultInterestLimit)
	assert.Equal(t, "Cooking", pageload.Snapshot.InterestsProfile[0].Name)
	assert.Equal(t, 9, pageload.Snapshot.InterestsProfile[0].RoundScore())
	assert.Equal(t, []string{"go.dev", "pkg.go.dev", "github.com"}, pageload.Snapshot.InterestsHosts["Programming"])
	assert.Equal(t, bridge.StateReady, b.State())

	b.DisableSite(ctx, "news.example.com")
	site := nextEvent(t, events, store.EventSitePrefReceived)
	assert.Equal(t, []store.RequestingSite{
		{Name: "news.example.com", IsBlocked: true},
		{Name: "shop.example.com", IsBlocked: true},
	}, site.Snapshot.RequestingSites)

	b.SetInterestSharable(ctx, "Travel", true)
	update := nextEvent(t, events, store.EventSharableUpdateReceived)
	assert.False(t, update.Snapshot.InterestsProfile[1].Meta.Sharable)

	b.Toggle(ctx)
	off := nextEvent(t, events, store.EventPrefChanged)
	assert.False(t, off.Snapshot.Prefs.Enabled)
}

func TestAttach_EndToEnd(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := transport.NewMemoryChannel(64)
	hostsim.New(hostsim.DefaultSeed(), nil).Attach(ctx, ch)

	b := bridge.New(transport.NewAdapter(ch))
	events, unsubscribe := b.View().Events(64)
	defer unsubscribe()

	stop, err := b.Start(ctx)
	require.NoError(t, err)
	defer stop()

	exercise(t, b, events)
}

func TestServe_EndToEnd(t *testing.T) {
	codecs := map[string]transport.Codec{
		"json":     transport.JSONCodec{},
		"protobuf": transport.ProtobufCodec{},
	}

	for name, codec := range codecs {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			cmdR, cmdW := io.Pipe()
			msgR, msgW := io.Pipe()

			served := make(chan error, 1)
			go func() {
				served <- hostsim.New(hostsim.DefaultSeed(), nil).Serve(ctx, cmdR, msgW, codec)
			}()

			ch := transport.NewStreamChannel(msgR, cmdW, transport.WithCodec(codec), transport.WithCloser(msgR))
			b := bridge.New(transport.NewAdapter(ch))
			events, unsubscribe := b.View().Events(64)
			defer unsubscribe()

			stop, err := b.Start(ctx)
			require.NoError(t, err)

			exercise(t, b, events)

			require.NoError(t, stop())
			require.NoError(t, cmdW.Close())
			select {
			case err := <-served:
				assert.NoError(t, err)
			case <-time.After(3 * time.Second):
				t.Fatal("host did not stop at end of stream")
			}
		})
	}
}
