// Package store holds the dashboard state synchronized from the host and publishes a
// named event after every change.
package store

import (
	"encoding/json"
	"math"
	"strconv"
)

// EventName identifies a published state transition.
type EventName string

const (
	EventPrefChanged            EventName = "prefChanged"
	EventPageloadReceived       EventName = "pageloadReceived"
	EventSharableUpdateReceived EventName = "sharableUpdateReceived"
	EventSitePrefReceived       EventName = "sitePrefReceived"
)

// Preferences is the host's feature switch. It is always replaced wholesale.
type Preferences struct {
	Enabled bool `json:"enabled"`
}

// InterestMeta carries per-interest flags.
type InterestMeta struct {
	Sharable bool `json:"sharable"`
}

// UnmarshalJSON accepts any JSON value for sharable and keeps its truthiness, since
// hosts have sent 0/1 and omitted the field.
func (m *InterestMeta) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Sharable = truthy(raw["sharable"])
	return nil
}

func truthy(raw json.RawMessage) bool {
	var v any
	if len(raw) == 0 || json.Unmarshal(raw, &v) != nil {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0 && !math.IsNaN(t)
	case string:
		return t != ""
	case nil:
		return false
	default:
		return true
	}
}

// InterestEntry is one interest in the profile, scored 0-100.
type InterestEntry struct {
	Name  string       `json:"name"`
	Score float64      `json:"score"`
	Meta  InterestMeta `json:"meta"`
}

// RoundScore maps the raw score onto the dashboard's 0-10 bar scale.
func (e InterestEntry) RoundScore() int {
	return int(math.Round(e.Score / 10))
}

// InterestsHosts maps an interest name to the hosts that contributed to it, in host order.
type InterestsHosts map[string][]string

// RequestingSite is a site that asked for the profile, and whether it is blocked.
type RequestingSite struct {
	Name      string `json:"name"`
	IsBlocked bool   `json:"isBlocked"`
}

// Snapshot is a self-consistent copy of the whole state.
type Snapshot struct {
	Prefs            Preferences      `json:"prefs"`
	InterestsProfile []InterestEntry  `json:"interestsProfile"`
	InterestsHosts   InterestsHosts   `json:"interestsHosts"`
	RequestingSites  []RequestingSite `json:"requestingSites"`
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		Prefs:            s.Prefs,
		InterestsProfile: cloneInterests(s.InterestsProfile),
		InterestsHosts:   cloneHosts(s.InterestsHosts),
		RequestingSites:  cloneSites(s.RequestingSites),
	}
}

// Event is handed to subscribers after a state transition. Seq increases by one per
// publish over the store's lifetime.
type Event struct {
	Name     EventName `json:"event"`
	Seq      uint64    `json:"seq"`
	Snapshot Snapshot  `json:"snapshot"`
}

// String implements fmt.Stringer.
func (e Event) String() string {
	return string(e.Name) + "#" + strconv.FormatUint(e.Seq, 10)
}

func cloneInterests(in []InterestEntry) []InterestEntry {
	out := make([]InterestEntry, len(in))
	copy(out, in)
	return out
}

func cloneSites(in []RequestingSite) []RequestingSite {
	out := make([]RequestingSite, len(in))
	copy(out, in)
	return out
}

func cloneHosts(in InterestsHosts) InterestsHosts {
	out := make(InterestsHosts, len(in))
	for name, hosts := range in {
		cp := make([]string, len(hosts))
		copy(cp, hosts)
		out[name] = cp
	}
	return out
}
