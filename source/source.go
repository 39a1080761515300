package source

import (
	"context"
	"errors"
	"fmt"

	"musicpresence/models"
)

// ErrUnavailable marks any failure to read the current track. Callers treat
// it as "nothing playing" for the tick in which it happened.
var ErrUnavailable = errors.New("track source unavailable")

// Source reports what is playing right now. A nil track with a nil error
// means nothing is playing.
type Source interface {
	Name() string
	Current(ctx context.Context) (*models.TrackInfo, error)
}

// Unavailable wraps err so that errors.Is(err, ErrUnavailable) holds.
func Unavailable(err error) error {
	if err == nil || errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

// Func adapts a plain function to the Source interface.
type Func struct {
	SourceName string
	Fn         func(ctx context.Context) (*models.TrackInfo, error)
}

func (f Func) Name() string { return f.SourceName }

func (f Func) Current(ctx context.Context) (*models.TrackInfo, error) {
	return f.Fn(ctx)
}
