package bridge

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/snowmerak/upbridge/lib/store"
)

// Payload envelope types.
const (
	PayloadPageload       = "pageload"
	PayloadSharableUpdate = "sharableUpdate"
)

type envelope struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
}

type pageloadContent struct {
	InterestsProfile []store.InterestEntry  `json:"interestsProfile"`
	InterestsHosts   store.InterestsHosts   `json:"interestsHosts"`
	RequestingSites  []store.RequestingSite `json:"requestingSites"`
}

type sharableUpdateContent struct {
	Sharable json.RawMessage `json:"sharable"`
}

// unpackPayload parses the serialized envelope carried by a payload message and applies
// it. It returns the event to publish, or "" for envelope types it does not know.
func (b *Bridge) unpackPayload(content json.RawMessage) (store.EventName, error) {
	var serialized string
	if err := json.Unmarshal(content, &serialized); err != nil {
		return "", fmt.Errorf("%w: content is not a serialized envelope: %w", ErrMalformedPayload, err)
	}

	var env envelope
	if err := json.Unmarshal([]byte(serialized), &env); err != nil {
		return "", fmt.Errorf("%w: failed to parse envelope: %w", ErrMalformedPayload, err)
	}

	switch env.Type {
	case PayloadPageload:
		var c pageloadContent
		if err := decodeObject(env.Content, &c); err != nil {
			return "", fmt.Errorf("%w: pageload: %w", ErrMalformedPayload, err)
		}
		b.store.ReplacePageload(c.InterestsProfile, c.InterestsHosts, c.RequestingSites)
		b.logger.Debug("pageload applied",
			zap.Int("interests", len(c.InterestsProfile)),
			zap.Int("sites", len(c.RequestingSites)))

	case PayloadSharableUpdate:
		var c sharableUpdateContent
		if err := decodeObject(env.Content, &c); err != nil {
			return "", fmt.Errorf("%w: sharableUpdate: %w", ErrMalformedPayload, err)
		}
		// The host has never defined how sharables merge into the profile; the update
		// is announced but not applied.
		b.logger.Debug("sharable update received, not applied", zap.Int("bytes", len(c.Sharable)))

	default:
		return "", nil
	}

	return store.EventName(env.Type + "Received"), nil
}
