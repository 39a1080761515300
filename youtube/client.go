package youtube

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"strings"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"
	ytapi "google.golang.org/api/youtube/v3"

	"musicpresence/models"
	"musicpresence/source"
)

// ParseVideoID returns the video id of a youtube.com, music.youtube.com or
// youtu.be link, or "" for anything else.
func ParseVideoID(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	switch strings.ToLower(parsedURL.Host) {
	case "www.youtube.com", "youtube.com", "m.youtube.com", "music.youtube.com":
		return parsedURL.Query().Get("v")
	case "youtu.be":
		return strings.Trim(parsedURL.Path, "/")
	}
	return ""
}

// ThumbnailURL is the high quality thumbnail served for every public video.
func ThumbnailURL(videoID string) string {
	return "https://i.ytimg.com/vi/" + videoID + "/hqdefault.jpg"
}

// Resolver finds artwork and a watch link for a track, first from an existing
// YouTube link and otherwise through a Data API search.
type Resolver struct {
	service *ytapi.Service
	logger  *log.Entry
}

// NewResolver creates the Data API client. With an empty apiKey only the
// link-based lookup is available.
func NewResolver(ctx context.Context, apiKey string, opts ...option.ClientOption) (*Resolver, error) {
	r := &Resolver{logger: log.WithFields(log.Fields{"module": "youtube", "function": "Resolve"})}
	if apiKey == "" {
		return r, nil
	}

	service, err := ytapi.NewService(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("error creating YouTube client: %w", err)
	}
	r.service = service
	return r, nil
}

func (r *Resolver) Name() string { return "youtube" }

func (r *Resolver) Resolve(ctx context.Context, track models.TrackInfo) (source.Artwork, error) {
	if id := ParseVideoID(track.SourceURL); id != "" {
		return source.Artwork{ImageURL: ThumbnailURL(id)}, nil
	}
	if r.service == nil {
		return source.Artwork{}, source.ErrNoArtwork
	}
	return r.search(ctx, track)
}

func (r *Resolver) search(ctx context.Context, track models.TrackInfo) (source.Artwork, error) {
	query := track.Title
	if track.Artist != models.UnknownArtist {
		query += " " + track.Artist
	}

	span := sentry.StartSpan(ctx, "youtube.search")
	span.Description = "Search YouTube API"
	span.SetTag("query", query)
	defer span.Finish()

	call := r.service.Search.List([]string{"snippet"}).
		Q(query).
		MaxResults(1).
		Type("video").
		VideoCategoryId("10").
		Context(span.Context())

	response, err := call.Do()
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		return source.Artwork{}, fmt.Errorf("error querying YouTube: %w", err)
	}
	span.Status = sentry.SpanStatusOK

	for _, item := range response.Items {
		if item.Id == nil || item.Id.Kind != "youtube#video" || item.Id.VideoId == "" {
			continue
		}
		art := source.Artwork{
			PageURL:  "https://www.youtube.com/watch?v=" + item.Id.VideoId,
			ImageURL: ThumbnailURL(item.Id.VideoId),
		}
		if item.Snippet != nil {
			if best := bestThumbnail(item.Snippet.Thumbnails); best != "" {
				art.ImageURL = best
			}
			r.logger.Tracef("video found for %s: %s", track, html.UnescapeString(item.Snippet.Title))
		}
		return art, nil
	}
	return source.Artwork{}, source.ErrNoArtwork
}

func bestThumbnail(t *ytapi.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	for _, thumb := range []*ytapi.Thumbnail{t.Maxres, t.Standard, t.High, t.Medium, t.Default} {
		if thumb != nil && thumb.Url != "" {
			return thumb.Url
		}
	}
	return ""
}
