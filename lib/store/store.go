package store

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// View is the read-only face of the state handed to consumers. Every method returns a
// copy; mutating it never reaches the store.
type View interface {
	Prefs() Preferences
	InterestsProfile() []InterestEntry
	InterestsHosts() InterestsHosts
	RequestingSites() []RequestingSite
	// HostsFor returns the hosts recorded for interest, or an empty slice.
	HostsFor(interest string) []string
	Snapshot() Snapshot

	// Subscribe calls fn synchronously on every publish, before the publishing message
	// finishes processing. The returned func removes the subscription.
	Subscribe(fn func(Event)) (unsubscribe func())
	// Events returns a channel receiving every published event. When the channel is
	// full the event is dropped for that subscriber. cancel closes the channel.
	Events(buffer int) (events <-chan Event, cancel func())
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger.Named("store")
		}
	}
}

// Store owns the synchronized state. Only the bridge writes to it; consumers get a View.
type Store struct {
	mu        sync.RWMutex
	prefs     Preferences
	interests []InterestEntry
	hosts     InterestsHosts
	sites     []RequestingSite

	subMu       sync.Mutex
	nextSubID   uint64
	subscribers map[uint64]func(Event)
	channels    map[uint64]chan Event

	seq     atomic.Uint64
	dropped atomic.Uint64
	logger  *zap.Logger
}

var _ View = (*Store)(nil)

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		hosts:       make(InterestsHosts),
		subscribers: make(map[uint64]func(Event)),
		channels:    make(map[uint64]chan Event),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Prefs implements View.
func (s *Store) Prefs() Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs
}

// InterestsProfile implements View.
func (s *Store) InterestsProfile() []InterestEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneInterests(s.interests)
}

// InterestsHosts implements View.
func (s *Store) InterestsHosts() InterestsHosts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneHosts(s.hosts)
}

// RequestingSites implements View.
func (s *Store) RequestingSites() []RequestingSite {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSites(s.sites)
}

// HostsFor implements View.
func (s *Store) HostsFor(interest string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hosts := s.hosts[interest]
	out := make([]string, len(hosts))
	copy(out, hosts)
	return out
}

// Snapshot implements View.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Prefs:            s.prefs,
		InterestsProfile: cloneInterests(s.interests),
		InterestsHosts:   cloneHosts(s.hosts),
		RequestingSites:  cloneSites(s.sites),
	}
}

// ReplacePrefs replaces the preferences.
func (s *Store) ReplacePrefs(prefs Preferences) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs = prefs
}

// ReplacePageload replaces the interests profile, the interest hosts, and the requesting
// sites in one critical section, so no reader sees a mix of old and new.
func (s *Store) ReplacePageload(interests []InterestEntry, hosts InterestsHosts, sites []RequestingSite) {
	interests = cloneInterests(interests)
	hosts = cloneHosts(hosts)
	sites = cloneSites(sites)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.interests = interests
	s.hosts = hosts
	s.sites = sites
}

// SetSitePermission sets IsBlocked on the first site named site. It reports whether a
// site matched; no match leaves the state untouched.
func (s *Store) SetSitePermission(site string, blocked bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.sites {
		if s.sites[i].Name == site {
			s.sites[i].IsBlocked = blocked
			return true
		}
	}
	return false
}

// Publish emits name with a snapshot of the current state to every subscriber. It
// returns after all synchronous subscribers have run.
func (s *Store) Publish(name EventName) Event {
	ev := Event{
		Name:     name,
		Seq:      s.seq.Add(1),
		Snapshot: s.Snapshot(),
	}

	s.subMu.Lock()
	fns := make([]func(Event), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	for id, ch := range s.channels {
		select {
		case ch <- withSnapshot(ev):
		default:
			s.dropped.Add(1)
			s.logger.Warn("event dropped for slow subscriber", zap.Uint64("subscriber", id), zap.Stringer("event", ev))
		}
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(withSnapshot(ev))
	}
	return ev
}

// withSnapshot gives each subscriber its own copy of the snapshot.
func withSnapshot(ev Event) Event {
	ev.Snapshot = ev.Snapshot.Clone()
	return ev
}

// Dropped returns how many channel deliveries were dropped because a subscriber's
// buffer was full.
func (s *Store) Dropped() uint64 {
	return s.dropped.Load()
}

// Subscribe implements View.
func (s *Store) Subscribe(fn func(Event)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.nextSubID++
	id := s.nextSubID
	s.subscribers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			delete(s.subscribers, id)
		})
	}
}

// Events implements View.
func (s *Store) Events(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	s.subMu.Lock()
	s.nextSubID++
	id := s.nextSubID
	s.channels[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			delete(s.channels, id)
			close(ch)
		})
	}
}
