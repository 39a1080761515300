package status

import (
	"sync"
	"sync/atomic"
	"time"

	"musicpresence/controller"
	"musicpresence/models"
)

// Track is the JSON form of a published track.
type Track struct {
	Title      string     `json:"title"`
	Artist     string     `json:"artist"`
	Album      string     `json:"album,omitempty"`
	ArtworkURL string     `json:"artworkUrl,omitempty"`
	SourceURL  string     `json:"sourceUrl,omitempty"`
	Source     string     `json:"source,omitempty"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
}

// Update is sent on /status and to every WebSocket subscriber. Type is
// "change" while a track is shown and "stop" otherwise.
type Update struct {
	Type      string     `json:"type"`
	State     string     `json:"state"`
	Connected bool       `json:"connected"`
	Source    string     `json:"source"`
	Ticks     uint64     `json:"ticks"`
	LastPoll  *time.Time `json:"lastPoll,omitempty"`
	LastError string     `json:"lastError,omitempty"`
	Track     *Track     `json:"track,omitempty"`
}

func newUpdate(s controller.Snapshot) Update {
	u := Update{
		Type:      "stop",
		State:     s.State.String(),
		Connected: s.Connected,
		Source:    s.Source,
		Ticks:     s.Ticks,
		LastError: s.LastError,
	}
	if !s.LastPoll.IsZero() {
		at := s.LastPoll
		u.LastPoll = &at
	}
	if s.Track != nil {
		u.Type = "change"
		u.Track = newTrack(*s.Track)
	}
	return u
}

func newTrack(t models.TrackInfo) *Track {
	out := &Track{
		Title:      t.Title,
		Artist:     t.Artist,
		Album:      t.Album,
		ArtworkURL: t.ArtworkURL,
		SourceURL:  t.SourceURL,
		Source:     t.Source,
	}
	if !t.StartedAt.IsZero() {
		at := t.StartedAt
		out.StartedAt = &at
	}
	return out
}

const subscriberBuffer = 8

// Hub keeps the latest loop snapshot and fans updates out to subscribers.
// Observe never blocks: a subscriber whose buffer is full misses updates.
type Hub struct {
	latest atomic.Pointer[Update]

	mu          sync.Mutex
	subscribers map[chan Update]struct{}
}

func NewHub() *Hub {
	h := &Hub{subscribers: make(map[chan Update]struct{})}
	h.latest.Store(&Update{Type: "stop", State: controller.StateIdle.String()})
	return h
}

func (h *Hub) Observe(s controller.Snapshot) {
	u := newUpdate(s)
	h.latest.Store(&u)

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		select {
		case ch <- u:
		default:
		}
	}
}

func (h *Hub) Latest() Update {
	return *h.latest.Load()
}

// Subscribe returns a channel of updates and a function that must be called
// to stop receiving them.
func (h *Hub) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, subscriberBuffer)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subscribers, ch)
			h.mu.Unlock()
		})
	}
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}
