package detector

import (
	"testing"

	"musicpresence/models"
)

func track(title, artist string) *models.TrackInfo {
	return &models.TrackInfo{Title: title, Artist: artist}
}

func TestDetect(t *testing.T) {
	songA := track("Song A", "Artist X")

	tests := []struct {
		name    string
		current *models.TrackInfo
		last    *models.TrackInfo
		want    ActionKind
	}{
		{"nothing before or now", nil, nil, NoOp},
		{"stopped playing", nil, songA, Clear},
		{"first track", songA, nil, Publish},
		{"same track", track("Song A", "Artist X"), songA, NoOp},
		{"title changed", track("Song B", "Artist X"), songA, Publish},
		{"artist changed", track("Song A", "Artist Y"), songA, Publish},
		{"surrounding whitespace", track(" Song A ", "Artist X "), songA, NoOp},
		{"case differs", track("song a", "Artist X"), songA, Publish},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Detect(tt.current, tt.last)
			if got.Kind != tt.want {
				t.Fatalf("Detect() = %v, want %v", got.Kind, tt.want)
			}
			if got.Kind == Publish && got.Track != tt.current {
				t.Errorf("Detect() track = %v, want %v", got.Track, tt.current)
			}
			if got.Kind != Publish && got.Track != nil {
				t.Errorf("Detect() track = %v, want nil for %v", got.Track, got.Kind)
			}
		})
	}
}

func TestDetectIgnoresAlbumAndArtwork(t *testing.T) {
	last := &models.TrackInfo{
		Title:      "Song A",
		Artist:     "Artist X",
		Album:      "Old Album",
		ArtworkURL: "https://lh3.googleusercontent.com/old",
	}
	variants := []models.TrackInfo{
		{Title: "Song A", Artist: "Artist X"},
		{Title: "Song A", Artist: "Artist X", Album: "New Album"},
		{Title: "Song A", Artist: "Artist X", ArtworkURL: "https://lh3.googleusercontent.com/new"},
		{Title: "Song A", Artist: "Artist X", Album: "New Album", ArtworkURL: "https://example.com/x.png"},
	}
	for _, v := range variants {
		current := v
		if got := Detect(&current, last); got.Kind != NoOp {
			t.Errorf("Detect(%+v) = %v, want noop", current, got.Kind)
		}
	}
}

func TestDetectPublishesWithoutArtwork(t *testing.T) {
	current := &models.TrackInfo{Title: "Song A", Artist: "Artist X"}
	got := Detect(current, nil)
	if got.Kind != Publish || got.Track.HasArtwork() {
		t.Errorf("Detect() = %+v, want publish of a text-only track", got)
	}
}

func TestActionKindString(t *testing.T) {
	if NoOp.String() != "noop" || Publish.String() != "publish" || Clear.String() != "clear" {
		t.Error("unexpected ActionKind strings")
	}
}
