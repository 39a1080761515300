// Package detector decides whether a newly observed track is worth pushing to
// the presence sink.
package detector

import "musicpresence/models"

type ActionKind int

const (
	NoOp ActionKind = iota
	Publish
	Clear
)

func (k ActionKind) String() string {
	switch k {
	case Publish:
		return "publish"
	case Clear:
		return "clear"
	default:
		return "noop"
	}
}

// Action is the outcome of Detect. Track is set only for Publish.
type Action struct {
	Kind  ActionKind
	Track *models.TrackInfo
}

// Detect compares the current observation against the last published track.
// Tracks are compared by title and artist only, so album or artwork changes
// never cause a republish.
func Detect(current, last *models.TrackInfo) Action {
	switch {
	case current == nil && last == nil:
		return Action{Kind: NoOp}
	case current == nil:
		return Action{Kind: Clear}
	case last == nil:
		return Action{Kind: Publish, Track: current}
	case current.SameTrack(*last):
		return Action{Kind: NoOp}
	default:
		return Action{Kind: Publish, Track: current}
	}
}
