package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrEmptyTitle = errors.New("track title is empty")

// TrackInfo is a normalized "what is currently playing" value. A nil *TrackInfo
// means nothing is playing; a non-nil value always has a title.
type TrackInfo struct {
	Title      string
	Artist     string
	Album      string
	ArtworkURL string
	SourceURL  string
	StartedAt  time.Time
	// Source is the display name of the service the track was read from, e.g. "YouTube Music".
	Source string
}

const UnknownArtist = "Unknown Artist"

// NewTrackInfo trims the title and artist and rejects an empty title.
// An empty artist is replaced with UnknownArtist.
func NewTrackInfo(title, artist string) (*TrackInfo, error) {
	title = strings.TrimSpace(title)
	artist = strings.TrimSpace(artist)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	if artist == "" {
		artist = UnknownArtist
	}
	return &TrackInfo{Title: title, Artist: artist}, nil
}

// Key is the comparison key used for change detection. Album, artwork, links
// and timestamps are deliberately not part of it.
func (t TrackInfo) Key() string {
	return strings.TrimSpace(t.Title) + "\x1f" + strings.TrimSpace(t.Artist)
}

// SameTrack reports whether both tracks share a comparison key.
func (t TrackInfo) SameTrack(other TrackInfo) bool {
	return t.Key() == other.Key()
}

func (t TrackInfo) WithStartedAt(at time.Time) TrackInfo {
	t.StartedAt = at
	return t
}

func (t TrackInfo) WithoutArtwork() TrackInfo {
	t.ArtworkURL = ""
	return t
}

func (t TrackInfo) HasArtwork() bool {
	return t.ArtworkURL != ""
}

func (t TrackInfo) String() string {
	return fmt.Sprintf("%q by %s", t.Title, t.Artist)
}
