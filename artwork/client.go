package artwork

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"

	"musicpresence/models"
	"musicpresence/source"
)

// PageResolver scrapes the track's own page (its SourceURL) for artwork.
type PageResolver struct {
	httpClient *http.Client
}

func NewPageResolver(httpClient *http.Client) *PageResolver {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &PageResolver{httpClient: httpClient}
}

func (p *PageResolver) Name() string { return "page" }

func (p *PageResolver) Resolve(ctx context.Context, track models.TrackInfo) (source.Artwork, error) {
	if track.SourceURL == "" {
		return source.Artwork{}, source.ErrNoArtwork
	}
	u, err := url.Parse(track.SourceURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return source.Artwork{}, source.ErrNoArtwork
	}

	span := sentry.StartSpan(ctx, "artwork.scrape")
	span.Description = "Scrape track page for artwork"
	span.SetTag("host", u.Host)
	defer span.Finish()

	image, err := p.scrape(span.Context(), u.String())
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		return source.Artwork{}, err
	}
	span.Status = sentry.SpanStatusOK
	return source.Artwork{ImageURL: absolute(u, image)}, nil
}

func (p *PageResolver) scrape(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}

	// Set realistic User-Agent to avoid blocks
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	log.Tracef("Fetching track page: %s", pageURL)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", source.ErrNoArtwork
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	image, err := extractFromJSONLD(doc)
	if err == nil {
		log.Debugf("Extracted artwork from JSON-LD: %s", image)
		return image, nil
	}
	log.Debugf("JSON-LD extraction failed (%v), trying Open Graph fallback", err)

	image, err = extractFromOpenGraph(doc)
	if err != nil {
		log.Debugf("No artwork on %s: %v", pageURL, err)
		return "", source.ErrNoArtwork
	}
	return image, nil
}

func absolute(base *url.URL, ref string) string {
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(r).String()
}
