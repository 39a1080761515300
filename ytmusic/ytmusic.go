package ytmusic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"

	"musicpresence/models"
	"musicpresence/source"
)

const (
	defaultEndpoint = origin + "/youtubei/v1/browse?prettyPrint=false"
	clientName      = "WEB_REMIX"
	clientVersion   = "1.20240918.01.00"
	userAgent       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Source reads the newest entry of the YouTube Music listening history and
// treats it as the current track.
type Source struct {
	headers    http.Header
	endpoint   string
	httpClient *http.Client
	now        func() time.Time
	logger     *log.Entry
}

type Option func(*Source)

func WithEndpoint(endpoint string) Option {
	return func(s *Source) { s.endpoint = endpoint }
}

func WithHTTPClient(c *http.Client) Option {
	return func(s *Source) { s.httpClient = c }
}

// New loads the browser headers file. A missing or unreadable file is
// returned as an error so startup can report it.
func New(headersFile string, opts ...Option) (*Source, error) {
	headers, err := LoadHeaders(headersFile)
	if err != nil {
		return nil, err
	}
	s := &Source{
		headers:    headers,
		endpoint:   defaultEndpoint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
		logger:     log.WithFields(log.Fields{"module": "ytmusic"}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger.Info("YouTube Music API initialized")
	return s, nil
}

func (s *Source) Name() string { return "ytmusic" }

type browseRequest struct {
	Context struct {
		Client struct {
			ClientName    string `json:"clientName"`
			ClientVersion string `json:"clientVersion"`
			HL            string `json:"hl"`
		} `json:"client"`
		User struct{} `json:"user"`
	} `json:"context"`
	BrowseID string `json:"browseId"`
}

func (s *Source) Current(ctx context.Context) (*models.TrackInfo, error) {
	span := sentry.StartSpan(ctx, "ytmusic.get_history")
	span.Description = "Fetch YouTube Music listening history"
	defer span.Finish()

	body, err := s.browse(span.Context(), "FEmusic_history")
	if err != nil {
		span.Status = sentry.SpanStatusUnavailable
		return nil, source.Unavailable(err)
	}

	entry, err := parseHistory(body)
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		return nil, source.Unavailable(fmt.Errorf("decode history: %w", err))
	}
	span.Status = sentry.SpanStatusOK
	if entry == nil {
		s.logger.Debug("No listening history found")
		return nil, nil
	}

	track, err := models.NewTrackInfo(entry.Title, strings.Join(entry.Artists, ", "))
	if err != nil {
		return nil, nil
	}
	track.Album = entry.Album
	track.ArtworkURL = entry.Thumbnail
	track.SourceURL = origin + "/watch?v=" + entry.VideoID
	track.Source = "YouTube Music"

	span.SetData("video_id", entry.VideoID)
	return track, nil
}

func (s *Source) browse(ctx context.Context, browseID string) ([]byte, error) {
	var payload browseRequest
	payload.Context.Client.ClientName = clientName
	payload.Context.Client.ClientVersion = clientVersion
	payload.Context.Client.HL = "en"
	payload.BrowseID = browseID

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header = s.headers.Clone()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", origin)
	req.Header.Set("X-Origin", origin)
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", userAgent)
	}
	authorize(req.Header, s.now())

	s.logger.Tracef("POST %s (%s)", s.endpoint, browseID)
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 8<<20))
}
