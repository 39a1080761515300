package window

import (
	"fmt"
	"regexp"
	"strings"

	"musicpresence/models"
)

// Window is one visible top-level window. Process is the executable name on
// Windows and the WM_CLASS on X11; it may be empty.
type Window struct {
	Title   string
	Process string
}

// Player recognizes the now-playing title of one music player.
type Player struct {
	Name string
	// Processes restricts matching to windows owned by these processes
	// (case-insensitive substring). Empty means any window.
	Processes []string
	// Parse returns ok=false when the title does not belong to the player and
	// a nil track when the player is open but idle.
	Parse func(title string) (track *models.TrackInfo, ok bool)
}

func (p Player) owns(w Window) bool {
	if len(p.Processes) == 0 {
		return true
	}
	process := strings.ToLower(w.Process)
	for _, name := range p.Processes {
		if strings.Contains(process, strings.ToLower(name)) {
			return true
		}
	}
	return false
}

var browserSuffixes = []string{
	" - Google Chrome",
	" - Chromium",
	" - Mozilla Firefox",
	" — Mozilla Firefox",
	" - Microsoft Edge",
	" - Microsoft​ Edge",
	" - Brave",
	" - Opera",
	" - Vivaldi",
}

var unreadPrefix = regexp.MustCompile(`^\(\d+\)\s+`)

func stripBrowser(title string) string {
	title = strings.TrimSpace(title)
	for _, suffix := range browserSuffixes {
		title = strings.TrimSuffix(title, suffix)
	}
	return unreadPrefix.ReplaceAllString(title, "")
}

func track(title, artist, player string) *models.TrackInfo {
	t, err := models.NewTrackInfo(title, artist)
	if err != nil {
		return nil
	}
	t.Source = player
	return t
}

// ParseYouTubeMusic handles "<track> - <artist> - YouTube Music" browser tabs.
// A bare "<page> - YouTube Music" tab is YouTube Music with nothing playing.
func ParseYouTubeMusic(title string) (*models.TrackInfo, bool) {
	title = stripBrowser(title)
	if title == "YouTube Music" {
		return nil, true
	}
	rest, found := strings.CutSuffix(title, " - YouTube Music")
	if !found {
		return nil, false
	}
	idx := strings.LastIndex(rest, " - ")
	if idx < 0 {
		return nil, true
	}
	return track(rest[:idx], rest[idx+3:], "YouTube Music"), true
}

// ParseSpotify handles the Spotify desktop client, which shows "<artist> - <track>".
func ParseSpotify(title string) (*models.TrackInfo, bool) {
	title = strings.TrimSpace(title)
	switch title {
	case "":
		return nil, false
	case "Spotify", "Spotify Premium", "Spotify Free":
		return nil, true
	}
	artist, song, found := strings.Cut(title, " - ")
	if !found {
		return track(title, "", "Spotify"), true
	}
	return track(song, artist, "Spotify"), true
}

// ParseTidal handles the TIDAL desktop client, which shows "<track> - <artist>".
func ParseTidal(title string) (*models.TrackInfo, bool) {
	title = strings.TrimSpace(title)
	switch title {
	case "":
		return nil, false
	case "TIDAL":
		return nil, true
	}
	idx := strings.LastIndex(title, " - ")
	if idx < 0 {
		return track(title, "", "TIDAL"), true
	}
	return track(title[:idx], title[idx+3:], "TIDAL"), true
}

// ParseAppleMusic handles music.apple.com tabs such as
// "Song - Single by Artist - Apple Music".
func ParseAppleMusic(title string) (*models.TrackInfo, bool) {
	title = stripBrowser(title)
	idx := strings.Index(title, "Apple Music")
	if idx < 0 {
		return nil, false
	}
	title = strings.TrimSpace(strings.TrimSuffix(title[:idx+len("Apple Music")], " - Apple Music"))
	if title == "Apple Music" {
		return nil, true
	}

	cut := strings.LastIndex(title, " by ")
	if cut < 0 {
		return nil, true
	}
	song, artist := title[:cut], title[cut+4:]
	for _, suffix := range []string{" - Album", " - Single", " - EP"} {
		if i := strings.LastIndex(song, suffix); i >= 0 {
			song = song[:i]
			break
		}
	}
	song = strings.TrimLeftFunc(song, func(r rune) bool { return r < 32 })
	return track(song, artist, "Apple Music"), true
}

// BuiltinPlayers are tried in order before any configured pattern.
var BuiltinPlayers = []Player{
	{Name: "YouTube Music", Parse: ParseYouTubeMusic},
	{Name: "Spotify", Processes: []string{"spotify"}, Parse: ParseSpotify},
	{Name: "TIDAL", Processes: []string{"tidal"}, Parse: ParseTidal},
	{Name: "Apple Music", Parse: ParseAppleMusic},
}

// PatternPlayer builds a Player from a regular expression with "title" and
// optional "artist" named groups, as configured in title_patterns.
func PatternPlayer(pattern string) (Player, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Player{}, fmt.Errorf("compile title pattern %q: %w", pattern, err)
	}
	titleIdx := re.SubexpIndex("title")
	if titleIdx < 0 {
		return Player{}, fmt.Errorf("title pattern %q has no (?P<title>...) group", pattern)
	}
	artistIdx := re.SubexpIndex("artist")

	return Player{
		Name: "Music",
		Parse: func(title string) (*models.TrackInfo, bool) {
			m := re.FindStringSubmatch(stripBrowser(title))
			if m == nil {
				return nil, false
			}
			var artist string
			if artistIdx >= 0 {
				artist = m[artistIdx]
			}
			return track(m[titleIdx], artist, "Music"), true
		},
	}, nil
}
