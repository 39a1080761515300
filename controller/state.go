package controller

import (
	"time"

	"musicpresence/models"
)

type State int

const (
	StateIdle State = iota
	StatePolling
	StatePublishing
	StateIdempotent
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StatePublishing:
		return "publishing"
	case StateIdempotent:
		return "idempotent"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// PresenceState is what the loop believes Discord is showing. It is owned
// by the loop goroutine.
type PresenceState struct {
	LastPublished *models.TrackInfo
	Connected     bool
}

// Snapshot is an immutable copy of the loop state handed to observers.
type Snapshot struct {
	State     State
	Connected bool
	Track     *models.TrackInfo
	Source    string
	Ticks     uint64
	LastPoll  time.Time
	LastError string
}

// Observer receives a snapshot after every state transition. Observe runs on
// the loop goroutine and must not block.
type Observer interface {
	Observe(Snapshot)
}

type ObserverFunc func(Snapshot)

func (f ObserverFunc) Observe(s Snapshot) { f(s) }
