package presence

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"musicpresence/models"
)

const (
	maxTextLength   = 128
	maxLabelLength  = 32
	maxImageLength  = 256
	minTextLength   = 2
	defaultListenOn = "🎧 Listen"
)

// Activity is the SET_ACTIVITY body. Assets and timestamps reuse the
// discordgo gateway types since the IPC schema is identical.
type Activity struct {
	Type       discordgo.ActivityType `json:"type"`
	Details    string                 `json:"details,omitempty"`
	State      string                 `json:"state,omitempty"`
	Timestamps *discordgo.TimeStamps  `json:"timestamps,omitempty"`
	Assets     *discordgo.Assets      `json:"assets,omitempty"`
	Buttons    []Button               `json:"buttons,omitempty"`
}

type Button struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// BuildActivity translates a track into a listening activity. Artwork becomes
// the large image, with the fallback asset as the small image when it is the
// icon of the track's service. Without artwork the fallback asset key is used
// as the large image.
func BuildActivity(track models.TrackInfo, fallbackImage string) Activity {
	activity := Activity{
		Type:    discordgo.ActivityTypeListening,
		Details: fitText("🎵 "+track.Title, maxTextLength),
		State:   fitText("👤 "+track.Artist, maxTextLength),
	}

	if !track.StartedAt.IsZero() {
		activity.Timestamps = &discordgo.TimeStamps{StartTimestamp: track.StartedAt.Unix()}
	}

	largeText := fitText(track.Title+" — "+track.Artist, maxTextLength)

	switch {
	case track.HasArtwork() && len(track.ArtworkURL) <= maxImageLength:
		activity.Assets = &discordgo.Assets{
			LargeImageID: track.ArtworkURL,
			LargeText:    largeText,
		}
		if fallbackImage != "" && strings.EqualFold(assetKey(track.Source), fallbackImage) {
			activity.Assets.SmallImageID = fallbackImage
			activity.Assets.SmallText = fitText(track.Source, maxTextLength)
		}
	case fallbackImage != "":
		activity.Assets = &discordgo.Assets{
			LargeImageID: fallbackImage,
			LargeText:    largeText,
		}
	}

	if button, ok := listenButton(track); ok {
		activity.Buttons = []Button{button}
	}

	return activity
}

// textOnly drops every image reference, keeping text, timestamps and buttons.
func (a Activity) textOnly() Activity {
	a.Assets = nil
	return a
}

func (a Activity) hasImages() bool {
	return a.Assets != nil
}

func listenButton(track models.TrackInfo) (Button, bool) {
	if track.SourceURL == "" {
		return Button{}, false
	}
	u, err := url.Parse(track.SourceURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Button{}, false
	}
	label := defaultListenOn
	if service := serviceForHost(u.Host); service != "" {
		label = "🎧 Listen on " + service
	} else if track.Source != "" {
		label = "🎧 Listen on " + track.Source
	}
	return Button{Label: fitText(label, maxLabelLength), URL: track.SourceURL}, true
}

var knownServices = map[string]string{
	"music.youtube.com": "YouTube Music",
	"www.youtube.com":   "YouTube",
	"youtube.com":       "YouTube",
	"youtu.be":          "YouTube",
	"open.spotify.com":  "Spotify",
	"music.apple.com":   "Apple Music",
	"tidal.com":         "TIDAL",
	"listen.tidal.com":  "TIDAL",
}

// serviceForHost names the service a deep link points at, which may differ
// from the service the track was detected on when the link was resolved later.
func serviceForHost(host string) string {
	return knownServices[strings.ToLower(host)]
}

// assetKey turns a service name into the asset key naming convention,
// e.g. "YouTube Music" into "youtubemusic".
func assetKey(service string) string {
	return strings.ToLower(strings.Join(strings.Fields(service), ""))
}

// fitText truncates s to max runes with an ellipsis and pads it to Discord's
// two character minimum.
func fitText(s string, max int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > max {
		runes := []rune(s)
		s = string(runes[:max-1]) + "…"
	}
	for utf8.RuneCountInString(s) < minTextLength {
		s += " "
	}
	return s
}
