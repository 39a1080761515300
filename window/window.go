package window

import (
	"context"
	"errors"
	"fmt"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"

	"musicpresence/models"
	"musicpresence/source"
)

// ErrUnsupported is returned by the default lister on platforms without a
// window enumeration backend.
var ErrUnsupported = errors.New("window listing is not supported on this platform")

// Lister returns the visible top-level windows.
type Lister func(ctx context.Context) ([]Window, error)

// Source detects the current track from window titles.
type Source struct {
	players []Player
	list    Lister
	logger  *log.Entry
}

type Option func(*Source)

// WithLister replaces the platform window lister.
func WithLister(l Lister) Option {
	return func(s *Source) { s.list = l }
}

// New builds a window Source with the built-in players followed by one player
// per extra pattern.
func New(patterns []string, opts ...Option) (*Source, error) {
	players := append([]Player(nil), BuiltinPlayers...)
	for _, pattern := range patterns {
		p, err := PatternPlayer(pattern)
		if err != nil {
			return nil, err
		}
		players = append(players, p)
	}

	s := &Source{
		players: players,
		list:    listWindows,
		logger:  log.WithFields(log.Fields{"module": "window"}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Source) Name() string { return "window" }

// Current returns the first track found, trying players in order. A player
// that is open but idle does not stop the search.
func (s *Source) Current(ctx context.Context) (*models.TrackInfo, error) {
	span := sentry.StartSpan(ctx, "window.current")
	span.Description = "Scan window titles"
	defer span.Finish()

	windows, err := s.list(ctx)
	if err != nil {
		span.Status = sentry.SpanStatusUnavailable
		return nil, source.Unavailable(fmt.Errorf("list windows: %w", err))
	}
	span.SetData("windows", len(windows))

	for _, p := range s.players {
		for _, w := range windows {
			if w.Title == "" || !p.owns(w) {
				continue
			}
			track, ok := p.Parse(w.Title)
			if !ok {
				continue
			}
			if track == nil {
				s.logger.Tracef("%s is open but idle", p.Name)
				continue
			}
			s.logger.WithField("player", p.Name).Tracef("Matched window %q", w.Title)
			span.Status = sentry.SpanStatusOK
			return track, nil
		}
	}

	span.Status = sentry.SpanStatusOK
	return nil, nil
}
