package bridge

import "context"

// Outbound command names.
const (
	CommandEnableUP                  = "EnableUP"
	CommandDisableUP                 = "DisableUP"
	CommandRequestCurrentPrefs       = "RequestCurrentPrefs"
	CommandRequestCurrentPagePayload = "RequestCurrentPagePayload"
	CommandSetInterestSharable       = "SetInterestSharable"
	CommandEnableSite                = "EnableSite"
	CommandDisableSite               = "DisableSite"
)

// Every operation below is a one-way send. The host answers, if at all, with a later
// inbound message; nothing correlates that answer with the call and the store is never
// updated ahead of it.

// EnableUP asks the host to turn the feature on.
func (b *Bridge) EnableUP(ctx context.Context) {
	b.adapter.SendCommand(ctx, CommandEnableUP, nil)
}

// DisableUP asks the host to turn the feature off.
func (b *Bridge) DisableUP(ctx context.Context) {
	b.adapter.SendCommand(ctx, CommandDisableUP, nil)
}

// Toggle flips the feature relative to the last preferences received.
func (b *Bridge) Toggle(ctx context.Context) {
	if b.store.Prefs().Enabled {
		b.DisableUP(ctx)
		return
	}
	b.EnableUP(ctx)
}

// RequestPrefs asks the host for a prefs message.
func (b *Bridge) RequestPrefs(ctx context.Context) {
	b.adapter.SendCommand(ctx, CommandRequestCurrentPrefs, nil)
}

// RequestPagePayload asks the host for a payload message covering the configured
// number of interests.
func (b *Bridge) RequestPagePayload(ctx context.Context) {
	b.adapter.SendCommand(ctx, CommandRequestCurrentPagePayload, b.interestLimit)
}

// SetInterestSharable asks the host to persist the sharable flag of an interest.
func (b *Bridge) SetInterestSharable(ctx context.Context, interest string, value bool) {
	b.adapter.SendCommand(ctx, CommandSetInterestSharable, []any{interest, value})
}

// EnableSite asks the host to unblock site.
func (b *Bridge) EnableSite(ctx context.Context, site string) {
	b.adapter.SendCommand(ctx, CommandEnableSite, site)
}

// DisableSite asks the host to block site.
func (b *Bridge) DisableSite(ctx context.Context, site string) {
	b.adapter.SendCommand(ctx, CommandDisableSite, site)
}
