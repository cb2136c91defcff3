// Package hostsim is a stand-in for the privileged host: it answers bridge commands with
// the notifications a real host would send. It backs the fakehost binary and the
// end-to-end tests.
package hostsim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/snowmerak/upbridge/lib/bridge"
	"github.com/snowmerak/upbridge/lib/store"
	"github.com/snowmerak/upbridge/lib/transport"
)

// Seed is the host's initial state.
type Seed struct {
	Prefs            store.Preferences
	InterestsProfile []store.InterestEntry
	InterestsHosts   store.InterestsHosts
	RequestingSites  []store.RequestingSite
}

// DefaultSeed returns a small profile for demos.
func DefaultSeed() Seed {
	return Seed{
		Prefs: store.Preferences{Enabled: true},
		InterestsProfile: []store.InterestEntry{
			{Name: "Cooking", Score: 87, Meta: store.InterestMeta{Sharable: true}},
			{Name: "Travel", Score: 64},
			{Name: "Programming", Score: 55, Meta: store.InterestMeta{Sharable: true}},
			{Name: "Music", Score: 31},
			{Name: "Gardening", Score: 12},
			{Name: "Sports", Score: 4},
		},
		InterestsHosts: store.InterestsHosts{
			"Cooking":     {"seriouseats.com", "allrecipes.com"},
			"Travel":      {"lonelyplanet.com"},
			"Programming": {"go.dev", "pkg.go.dev", "github.com"},
		},
		RequestingSites: []store.RequestingSite{
			{Name: "news.example.com"},
			{Name: "shop.example.com", IsBlocked: true},
		},
	}
}

// Host holds the simulated host state.
type Host struct {
	mu     sync.Mutex
	state  Seed
	logger *zap.Logger
}

// New creates a host from seed.
func New(seed Seed, logger *zap.Logger) *Host {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Host{
		state:  seed,
		logger: logger.Named("hostsim"),
	}
}

// Handle applies cmd and returns the notifications to send back, if any.
func (h *Host) Handle(cmd transport.Command) ([]transport.Message, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.logger.Debug("command received", zap.String("command", cmd.Command))

	switch cmd.Command {
	case bridge.CommandRequestCurrentPrefs:
		return h.prefsLocked()

	case bridge.CommandEnableUP, bridge.CommandDisableUP:
		h.state.Prefs.Enabled = cmd.Command == bridge.CommandEnableUP
		return h.prefsLocked()

	case bridge.CommandRequestCurrentPagePayload:
		limit := len(h.state.InterestsProfile)
		if n, ok := asInt(cmd.Data); ok && n >= 0 && n < limit {
			limit = n
		}
		return h.pageloadLocked(limit)

	case bridge.CommandSetInterestSharable:
		args, ok := cmd.Data.([]any)
		if !ok || len(args) != 2 {
			return nil, fmt.Errorf("hostsim: %s wants [interest, value], got %v", cmd.Command, cmd.Data)
		}
		name, _ := args[0].(string)
		value, _ := args[1].(bool)
		for i := range h.state.InterestsProfile {
			if h.state.InterestsProfile[i].Name == name {
				h.state.InterestsProfile[i].Meta.Sharable = value
			}
		}
		return h.payloadLocked(bridge.PayloadSharableUpdate, map[string]any{
			"sharable": []map[string]any{{"name": name, "sharable": value}},
		})

	case bridge.CommandEnableSite, bridge.CommandDisableSite:
		site, ok := cmd.Data.(string)
		if !ok {
			return nil, fmt.Errorf("hostsim: %s wants a site name, got %v", cmd.Command, cmd.Data)
		}
		blocked := cmd.Command == bridge.CommandDisableSite
		for i := range h.state.RequestingSites {
			if h.state.RequestingSites[i].Name == site {
				h.state.RequestingSites[i].IsBlocked = blocked
			}
		}
		return message(bridge.KindSitePref, bridge.SitePermission{Site: site, IsBlocked: blocked})

	default:
		return nil, nil
	}
}

func (h *Host) prefsLocked() ([]transport.Message, error) {
	return message(bridge.KindPrefs, h.state.Prefs)
}

func (h *Host) pageloadLocked(limit int) ([]transport.Message, error) {
	return h.payloadLocked(bridge.PayloadPageload, map[string]any{
		"interestsProfile": h.state.InterestsProfile[:limit],
		"interestsHosts":   h.state.InterestsHosts,
		"requestingSites":  h.state.RequestingSites,
	})
}

// payloadLocked wraps content in an envelope and serializes the envelope into a JSON
// string, which is how payload messages carry it.
func (h *Host) payloadLocked(kind string, content any) ([]transport.Message, error) {
	env, err := json.Marshal(map[string]any{"type": kind, "content": content})
	if err != nil {
		return nil, fmt.Errorf("hostsim: failed to marshal %s envelope: %w", kind, err)
	}
	return message(bridge.KindPayload, string(env))
}

func message(kind string, content any) ([]transport.Message, error) {
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("hostsim: failed to marshal %s: %w", kind, err)
	}
	return []transport.Message{{Type: kind, Content: raw}}, nil
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// Attach answers every command dispatched on ch by delivering the replies back into it,
// in dispatch order. Replies go through an outbox drained by one goroutine, so a bridge
// dispatching while it handles a message never waits on its own queue.
func (h *Host) Attach(ctx context.Context, ch *transport.MemoryChannel) {
	outbox := make(chan transport.Message, 256)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-outbox:
				if err := ch.Deliver(ctx, msg); err != nil {
					return
				}
			}
		}
	}()

	ch.OnDispatch(func(cmd transport.Command) {
		replies, err := h.Handle(cmd)
		if err != nil {
			h.logger.Warn("command rejected", zap.Error(err))
			return
		}
		for _, msg := range replies {
			select {
			case outbox <- msg:
			case <-ctx.Done():
				return
			}
		}
	})
}

// Serve runs the host over a framed stream until r reaches end of stream or ctx ends.
func (h *Host) Serve(ctx context.Context, r io.Reader, w io.Writer, codec transport.Codec) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		data, err := transport.ReadFrame(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		cmd, err := codec.DecodeCommand(data)
		if err != nil {
			h.logger.Warn("undecodable command", zap.Error(err))
			continue
		}

		replies, err := h.Handle(cmd)
		if err != nil {
			h.logger.Warn("command rejected", zap.Error(err))
			continue
		}
		for _, msg := range replies {
			out, err := codec.EncodeMessage(msg)
			if err != nil {
				return err
			}
			if err := transport.WriteFrame(w, out); err != nil {
				return err
			}
		}
	}
}
