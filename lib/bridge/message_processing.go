package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/snowmerak/upbridge/lib/store"
	"github.com/snowmerak/upbridge/lib/transport"
)

// Inbound message kinds.
const (
	KindPrefs    = "prefs"
	KindPayload  = "payload"
	KindSitePref = "sitePref"
)

// SitePermission is the content of a sitePref message.
type SitePermission struct {
	Site      string `json:"site"`
	IsBlocked bool   `json:"isBlocked"`
}

// HandleMessage processes one inbound message to completion: state is mutated and the
// resulting event published before it returns. Calls are serialized, so messages are
// applied strictly in the order they are handed in.
//
// Unknown kinds are ignored. A payload that cannot be unpacked returns an error wrapping
// ErrMalformedPayload and leaves state and subscribers untouched.
func (b *Bridge) HandleMessage(ctx context.Context, msg transport.Message) error {
	b.handleMu.Lock()
	defer b.handleMu.Unlock()

	if msg.Type == KindPrefs && b.state.CompareAndSwap(int32(StateAwaitingFirstPrefs), int32(StateReady)) {
		b.logger.Info("handshake complete, requesting page payload", zap.Int("limit", b.interestLimit))
		b.RequestPagePayload(ctx)
	}

	switch msg.Type {
	case KindPrefs:
		var prefs store.Preferences
		if err := decodeObject(msg.Content, &prefs); err != nil {
			return fmt.Errorf("%w: prefs: %w", ErrMalformedMessage, err)
		}
		b.store.ReplacePrefs(prefs)
		b.store.Publish(store.EventPrefChanged)

	case KindPayload:
		event, err := b.unpackPayload(msg.Content)
		if err != nil {
			return err
		}
		if event != "" {
			b.store.Publish(event)
		}

	case KindSitePref:
		var perm SitePermission
		if err := decodeObject(msg.Content, &perm); err != nil {
			return fmt.Errorf("%w: sitePref: %w", ErrMalformedMessage, err)
		}
		if !b.store.SetSitePermission(perm.Site, perm.IsBlocked) {
			b.logger.Debug("site permission for unknown site", zap.String("site", perm.Site))
		}
		b.store.Publish(store.EventSitePrefReceived)
	}
	return nil
}

// decodeObject unmarshals raw into v, requiring raw to be a JSON object.
func decodeObject(raw json.RawMessage, v any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return errors.New("content is not an object")
	}
	return json.Unmarshal(trimmed, v)
}
