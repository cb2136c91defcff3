// Package bridge connects the dashboard to its host: it sequences the handshake, routes
// inbound notifications into the store, and sends the dashboard's commands outward.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/snowmerak/upbridge/lib/store"
	"github.com/snowmerak/upbridge/lib/transport"
)

// DefaultInterestLimit is how many interests a page payload request asks for.
const DefaultInterestLimit = 5

var (
	// ErrAlreadyStarted is returned by Start on a bridge that is already running.
	ErrAlreadyStarted = errors.New("bridge: already started")
	// ErrMalformedPayload wraps every failure to unpack a payload message.
	ErrMalformedPayload = errors.New("bridge: malformed payload")
	// ErrMalformedMessage wraps shape errors in prefs and sitePref content.
	ErrMalformedMessage = errors.New("bridge: malformed message")
)

// State is the handshake state of a Bridge.
type State int32

const (
	StateUninitialized State = iota
	StateAwaitingFirstPrefs
	StateReady
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateAwaitingFirstPrefs:
		return "AwaitingFirstPrefs"
	case StateReady:
		return "Ready"
	default:
		return "Unknown"
	}
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger for the bridge and the store it owns.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithInterestLimit sets the interest count sent with page payload requests.
// Non-positive values keep the default.
func WithInterestLimit(limit int) Option {
	return func(b *Bridge) {
		if limit > 0 {
			b.interestLimit = limit
		}
	}
}

// WithoutPrefsRequest stops Start from asking the host for the current preferences.
// Use it when the host pushes prefs on connect.
func WithoutPrefsRequest() Option {
	return func(b *Bridge) {
		b.requestPrefsOnStart = false
	}
}

// Bridge is the dashboard side of the host channel.
type Bridge struct {
	id      string
	adapter *transport.Adapter
	store   *store.Store
	logger  *zap.Logger

	interestLimit       int
	requestPrefsOnStart bool

	state    atomic.Int32
	started  atomic.Bool
	handleMu sync.Mutex
}

// New creates a bridge over adapter with an empty store. Nothing is registered with the
// adapter until Start.
func New(adapter *transport.Adapter, opts ...Option) *Bridge {
	b := &Bridge{
		id:                  newBridgeID(),
		adapter:             adapter,
		logger:              zap.NewNop(),
		interestLimit:       DefaultInterestLimit,
		requestPrefsOnStart: true,
	}
	for _, opt := range opts {
		opt(b)
	}

	b.logger = b.logger.Named("bridge").With(zap.String("bridge_id", b.id))
	b.store = store.New(store.WithLogger(b.logger))
	return b
}

func newBridgeID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// ID returns the bridge's unique id, attached to every log line it writes.
func (b *Bridge) ID() string {
	return b.id
}

// State returns the current handshake state.
func (b *Bridge) State() State {
	return State(b.state.Load())
}

// View returns the read-only state view for consumers.
func (b *Bridge) View() store.View {
	return readOnlyView{b.store}
}

// readOnlyView hides the store's write methods from consumers.
type readOnlyView struct {
	store.View
}

// Start registers the bridge for inbound messages and, unless disabled, asks the host
// for the current preferences. The returned stop func ends delivery and closes the
// channel; it is safe to call more than once, including from a store subscriber. If
// registration fails the bridge stays Uninitialized and Start may be retried.
func (b *Bridge) Start(ctx context.Context) (stop func() error, err error) {
	if !b.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	b.state.Store(int32(StateAwaitingFirstPrefs))

	if err := b.adapter.OnInbound(runCtx, b.HandleMessage); err != nil {
		cancel()
		b.state.Store(int32(StateUninitialized))
		b.started.Store(false)
		return nil, fmt.Errorf("failed to start bridge: %w", err)
	}
	b.logger.Info("bridge started")

	if b.requestPrefsOnStart {
		b.RequestPrefs(runCtx)
	}

	var once sync.Once
	var stopErr error
	return func() error {
		once.Do(func() {
			cancel()
			stopErr = b.adapter.Close()
			b.logger.Info("bridge stopped")
		})
		return stopErr
	}, nil
}
