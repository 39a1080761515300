package source

import (
	"context"
	"errors"

	sentry "github.com/getsentry/sentry-go"
	lru "github.com/hashicorp/golang-lru/v2"
	log "github.com/sirupsen/logrus"

	"musicpresence/models"
)

// ErrNoArtwork is returned by a Resolver that found nothing for a track.
var ErrNoArtwork = errors.New("no artwork found")

// Artwork is what a Resolver can contribute to a track.
type Artwork struct {
	ImageURL string
	PageURL  string
}

func (a Artwork) empty() bool {
	return a.ImageURL == "" && a.PageURL == ""
}

// Resolver looks up artwork or a deep link for a track that lacks them.
type Resolver interface {
	Name() string
	Resolve(ctx context.Context, track models.TrackInfo) (Artwork, error)
}

type enriched struct {
	src       Source
	resolvers []Resolver
	cache     *lru.Cache[string, Artwork]
	logger    *log.Entry
}

// WithArtwork decorates src so that tracks missing artwork or a deep link are
// passed through resolvers in order. Results, including misses, are cached by
// track key; resolver errors are logged and never fail the poll.
func WithArtwork(src Source, cacheSize int, resolvers ...Resolver) (Source, error) {
	if len(resolvers) == 0 {
		return src, nil
	}
	if cacheSize <= 0 {
		cacheSize = 128
	}
	cache, err := lru.New[string, Artwork](cacheSize)
	if err != nil {
		return nil, err
	}
	return &enriched{
		src:       src,
		resolvers: resolvers,
		cache:     cache,
		logger:    log.WithFields(log.Fields{"module": "source", "source": src.Name()}),
	}, nil
}

func (e *enriched) Name() string { return e.src.Name() }

func (e *enriched) Current(ctx context.Context) (*models.TrackInfo, error) {
	track, err := e.src.Current(ctx)
	if err != nil || track == nil {
		return track, err
	}
	if track.HasArtwork() && track.SourceURL != "" {
		return track, nil
	}

	key := track.Key()
	art, ok := e.cache.Get(key)
	if !ok {
		var cacheable bool
		art, cacheable = e.resolve(ctx, *track)
		if cacheable {
			e.cache.Add(key, art)
		}
	}

	out := *track
	if out.ArtworkURL == "" {
		out.ArtworkURL = art.ImageURL
	}
	if out.SourceURL == "" {
		out.SourceURL = art.PageURL
	}
	return &out, nil
}

// resolve runs the resolvers in order, letting later ones build on what
// earlier ones found. The result is cacheable unless a resolver failed with
// something other than ErrNoArtwork.
func (e *enriched) resolve(ctx context.Context, track models.TrackInfo) (Artwork, bool) {
	span := sentry.StartSpan(ctx, "source.resolve_artwork")
	span.Description = "Resolve artwork for " + track.String()
	defer span.Finish()

	var found Artwork
	cacheable := true
	for _, r := range e.resolvers {
		if track.HasArtwork() && track.SourceURL != "" {
			break
		}

		art, err := r.Resolve(ctx, track)
		if err != nil {
			if !errors.Is(err, ErrNoArtwork) {
				cacheable = false
				e.logger.WithField("resolver", r.Name()).Warnf("Artwork lookup failed for %s: %v", track, err)
				sentry.CaptureException(err)
			} else {
				e.logger.WithField("resolver", r.Name()).Debugf("No artwork for %s", track)
			}
			continue
		}
		if art.empty() {
			continue
		}

		if track.ArtworkURL == "" && art.ImageURL != "" {
			track.ArtworkURL = art.ImageURL
			found.ImageURL = art.ImageURL
		}
		if track.SourceURL == "" && art.PageURL != "" {
			track.SourceURL = art.PageURL
			found.PageURL = art.PageURL
		}
	}

	span.SetData("image_found", found.ImageURL != "")
	span.SetData("page_found", found.PageURL != "")
	span.Status = sentry.SpanStatusOK
	return found, cacheable
}
