package spotify

import (
	"context"
	"fmt"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
	spotifyclient "github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"

	"musicpresence/models"
	"musicpresence/source"
)

// Resolver finds album art and an open.spotify.com link by searching the
// catalogue. It needs only application credentials.
type Resolver struct {
	client *spotifyclient.Client
	logger *log.Entry
}

func NewResolver(ctx context.Context, clientID, clientSecret string) *Resolver {
	cc := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	return NewResolverWithClient(spotifyclient.New(cc.Client(ctx)))
}

func NewResolverWithClient(client *spotifyclient.Client) *Resolver {
	return &Resolver{
		client: client,
		logger: log.WithFields(log.Fields{"module": "spotify", "function": "Resolve"}),
	}
}

func (r *Resolver) Name() string { return "spotify" }

func (r *Resolver) Resolve(ctx context.Context, track models.TrackInfo) (source.Artwork, error) {
	query := "track:" + track.Title
	if track.Artist != models.UnknownArtist {
		query += " artist:" + track.Artist
	}

	span := sentry.StartSpan(ctx, "spotify.search")
	span.Description = "Search Spotify API"
	span.SetTag("query", query)
	defer span.Finish()

	results, err := r.client.Search(span.Context(), query, spotifyclient.SearchTypeTrack, spotifyclient.Limit(1))
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		return source.Artwork{}, fmt.Errorf("spotify search: %w", err)
	}
	span.Status = sentry.SpanStatusOK

	if results.Tracks == nil || len(results.Tracks.Tracks) == 0 {
		return source.Artwork{}, source.ErrNoArtwork
	}

	hit := results.Tracks.Tracks[0]
	art := source.Artwork{PageURL: hit.ExternalURLs["spotify"]}
	if len(hit.Album.Images) > 0 {
		art.ImageURL = hit.Album.Images[0].URL
	}
	r.logger.Tracef("Spotify match for %s: %s", track, hit.Name)
	return art, nil
}
