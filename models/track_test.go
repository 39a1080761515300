package models

import (
	"errors"
	"testing"
	"time"
)

func TestNewTrackInfo(t *testing.T) {
	tests := []struct {
		name       string
		title      string
		artist     string
		wantArtist string
		wantErr    error
	}{
		{"valid", "Song A", "Artist X", "Artist X", nil},
		{"trimmed", "  Song A ", " Artist X ", "Artist X", nil},
		{"missing artist", "Song A", "", UnknownArtist, nil},
		{"empty title", "", "Artist X", "", ErrEmptyTitle},
		{"blank title", "   ", "Artist X", "", ErrEmptyTitle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewTrackInfo(tt.title, tt.artist)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("NewTrackInfo() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				if got != nil {
					t.Errorf("NewTrackInfo() = %+v, want nil", got)
				}
				return
			}
			if got.Artist != tt.wantArtist {
				t.Errorf("Artist = %q, want %q", got.Artist, tt.wantArtist)
			}
		})
	}
}

func TestSameTrackIgnoresDecorations(t *testing.T) {
	a := TrackInfo{Title: "Song A", Artist: "Artist X"}
	b := TrackInfo{
		Title:      "Song A",
		Artist:     "Artist X",
		Album:      "New Album",
		ArtworkURL: "https://example.com/a.jpg",
		SourceURL:  "https://music.youtube.com/watch?v=abc",
		StartedAt:  time.Unix(1700000000, 0),
	}
	if !a.SameTrack(b) {
		t.Error("expected tracks differing only in album/artwork/link/time to be the same")
	}

	c := TrackInfo{Title: "Song A", Artist: "Artist Y"}
	if a.SameTrack(c) {
		t.Error("expected different artist to be a different track")
	}
}

func TestWithHelpersDoNotMutate(t *testing.T) {
	orig := TrackInfo{Title: "Song", Artist: "Artist", ArtworkURL: "https://example.com/a.jpg"}

	stripped := orig.WithoutArtwork()
	if stripped.HasArtwork() {
		t.Error("WithoutArtwork() still has artwork")
	}
	if !orig.HasArtwork() {
		t.Error("WithoutArtwork() mutated the receiver")
	}

	at := time.Unix(1700000000, 0)
	stamped := orig.WithStartedAt(at)
	if !stamped.StartedAt.Equal(at) || !orig.StartedAt.IsZero() {
		t.Error("WithStartedAt() should only change the copy")
	}
}
