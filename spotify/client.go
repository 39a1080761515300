package spotify

import (
	"context"
	"fmt"
	"strings"
	"time"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
	spotifyclient "github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"

	"musicpresence/config"
	"musicpresence/models"
	"musicpresence/source"
)

// Source reports the track currently playing on the user's Spotify account.
type Source struct {
	client *spotifyclient.Client
	now    func() time.Time
	logger *log.Entry
}

// New builds a Source from the cached user token. Run cmd/spotifyauth once to
// create the cache.
func New(ctx context.Context, cfg config.SpotifyConfig) (*Source, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET must be set")
	}
	tok, err := LoadToken(cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("%w (run spotifyauth first)", err)
	}

	conf := OAuthConfig(cfg.ClientID, cfg.ClientSecret, cfg.RedirectURL)
	ts := newPersistingTokenSource(conf.TokenSource(ctx, tok), cfg.TokenFile, tok)
	return NewWithClient(spotifyclient.New(oauth2.NewClient(ctx, ts))), nil
}

func NewWithClient(client *spotifyclient.Client) *Source {
	return &Source{
		client: client,
		now:    time.Now,
		logger: log.WithFields(log.Fields{"module": "spotify"}),
	}
}

func (s *Source) Name() string { return "spotify" }

func (s *Source) Current(ctx context.Context) (*models.TrackInfo, error) {
	span := sentry.StartSpan(ctx, "spotify.currently_playing")
	span.Description = "Get currently playing track from Spotify API"
	defer span.Finish()

	playing, err := s.client.PlayerCurrentlyPlaying(span.Context())
	if err != nil {
		span.Status = sentry.SpanStatusUnavailable
		return nil, source.Unavailable(fmt.Errorf("spotify currently playing: %w", err))
	}
	span.Status = sentry.SpanStatusOK

	if playing == nil || playing.Item == nil || !playing.Playing {
		s.logger.Trace("Nothing playing on Spotify")
		return nil, nil
	}

	item := playing.Item
	artists := make([]string, 0, len(item.Artists))
	for _, artist := range item.Artists {
		artists = append(artists, artist.Name)
	}

	track, err := models.NewTrackInfo(item.Name, strings.Join(artists, ", "))
	if err != nil {
		return nil, nil
	}
	track.Album = item.Album.Name
	track.Source = "Spotify"
	track.SourceURL = item.ExternalURLs["spotify"]
	if len(item.Album.Images) > 0 {
		track.ArtworkURL = item.Album.Images[0].URL
	}
	if playing.Progress > 0 {
		track.StartedAt = s.now().Add(-time.Duration(playing.Progress) * time.Millisecond).Truncate(time.Second)
	}

	span.SetData("track_id", string(item.ID))
	s.logger.Debugf("Spotify is playing '%s' by %v", track.Title, artists)
	return track, nil
}
