package controller

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"

	"musicpresence/detector"
	"musicpresence/models"
	"musicpresence/presence"
	"musicpresence/sentryhelper"
	"musicpresence/source"
)

// Publisher is the presence sink driven by the loop. *presence.Client
// implements it.
type Publisher interface {
	Connect(ctx context.Context) error
	Connected() bool
	Publish(ctx context.Context, track models.TrackInfo) error
	Clear(ctx context.Context) error
	Close() error
}

type Options struct {
	Interval   time.Duration
	IOTimeout  time.Duration
	MaxRetries int
	RetryDelay time.Duration
	Observer   Observer
}

type Controller struct {
	source    source.Source
	publisher Publisher
	opts      Options
	logger    *log.Entry
	now       func() time.Time

	state     State
	presence  PresenceState
	ticks     uint64
	lastPoll  time.Time
	lastError string

	// firstSeen anchors the start timestamp of a track the source reports
	// without one, so retries after a failed publish keep the same start.
	firstSeenKey string
	firstSeenAt  time.Time

	// exhausted is set once a full backoff run fails. Until a connect
	// succeeds, each tick makes a single attempt so polling keeps its pace.
	exhausted bool
}

func New(src source.Source, pub Publisher, opts Options) *Controller {
	if opts.Interval <= 0 {
		opts.Interval = 15 * time.Second
	}
	if opts.IOTimeout <= 0 {
		opts.IOTimeout = 10 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 5
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 5 * time.Second
	}
	return &Controller{
		source:    src,
		publisher: pub,
		opts:      opts,
		logger:    log.WithFields(log.Fields{"module": "controller"}),
		now:       time.Now,
	}
}

func (c *Controller) State() State { return c.state }

func (c *Controller) Presence() PresenceState { return c.presence }

// Run polls until ctx is cancelled. The first poll happens immediately. A
// cancelled ctx never interrupts an in-flight source or IPC call; it is
// checked between ticks and while waiting to reconnect.
func (c *Controller) Run(ctx context.Context) error {
	c.logger.Infof("🎵 Polling %s every %s", c.source.Name(), c.opts.Interval)

	ticker := time.NewTicker(c.opts.Interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return nil
		}
		c.Tick(ctx)

		select {
		case <-ctx.Done():
			c.logger.Info("🛑 Shutting down...")
			return nil
		case <-ticker.C:
		}
	}
}

// Tick runs one Idle → Polling → (Publishing | Idempotent) → Idle cycle,
// passing through Reconnecting when the channel is lost.
func (c *Controller) Tick(ctx context.Context) {
	c.ticks++
	ctx, tx := sentryhelper.StartTickTransaction(ctx, c.source.Name(), c.ticks)
	defer tx.Finish()

	c.setState(StatePolling)
	current := c.poll(ctx)

	action := detector.Detect(current, c.presence.LastPublished)
	tx.SetTag("action", action.Kind.String())

	var err error
	switch action.Kind {
	case detector.NoOp:
		c.setState(StateIdempotent)
	case detector.Publish:
		c.setState(StatePublishing)
		err = c.publish(ctx, *action.Track)
	case detector.Clear:
		c.setState(StatePublishing)
		err = c.clear(ctx)
	}

	if err != nil && !presence.IsRejected(err) {
		c.presence.Connected = false
		c.reconnect(ctx)
	}
	c.setState(StateIdle)
}

func (c *Controller) poll(ctx context.Context) *models.TrackInfo {
	span := sentryhelper.StartSpan(ctx, "controller.poll", c.source.Name())
	defer span.Finish()

	ioCtx, cancel := c.ioContext(span.Context())
	defer cancel()

	c.lastPoll = c.now()
	track, err := c.source.Current(ioCtx)
	if err != nil {
		c.lastError = err.Error()
		c.logger.Warnf("Failed to get track from %s: %v", c.source.Name(), err)
		sentryhelper.AddBreadcrumb(ctx, "source", err.Error())
		return nil
	}

	if track != nil {
		if key := track.Key(); key != c.firstSeenKey {
			c.firstSeenKey = key
			c.firstSeenAt = c.lastPoll
			c.logger.Infof("New track detected: %s", track)
		}
	} else {
		c.firstSeenKey = ""
	}
	return track
}

func (c *Controller) publish(ctx context.Context, track models.TrackInfo) error {
	if track.StartedAt.IsZero() {
		track.StartedAt = c.firstSeenAt
	}

	ioCtx, cancel := c.ioContext(ctx)
	defer cancel()

	err := c.publisher.Publish(ioCtx, track)
	switch {
	case err == nil:
		c.lastError = ""
		c.presence.Connected = true
		c.presence.LastPublished = &track
	case presence.IsRejected(err):
		// Remembered anyway: the same payload would be rejected on every tick.
		c.lastError = err.Error()
		c.presence.LastPublished = &track
		c.logger.Errorf("Discord rejected presence for %s: %v", track, err)
		sentryhelper.CaptureException(ctx, err)
	default:
		c.lastError = err.Error()
		c.logger.Warnf("Failed to update presence: %v", err)
	}
	return err
}

func (c *Controller) clear(ctx context.Context) error {
	ioCtx, cancel := c.ioContext(ctx)
	defer cancel()

	err := c.publisher.Clear(ioCtx)
	switch {
	case err == nil:
		c.lastError = ""
		c.presence.Connected = true
		c.presence.LastPublished = nil
	case presence.IsRejected(err):
		c.lastError = err.Error()
		c.presence.LastPublished = nil
		c.logger.Errorf("Discord rejected clearing presence: %v", err)
		sentryhelper.CaptureException(ctx, err)
	default:
		c.lastError = err.Error()
		c.logger.Warnf("Failed to clear presence: %v", err)
	}
	return err
}

// Reconnect makes up to MaxRetries connect attempts with exponential backoff
// starting at RetryDelay. It gives up early when ctx is cancelled and reports
// whether the channel is up. After a failed run, later calls make a single
// attempt without waiting until one succeeds.
func (c *Controller) Reconnect(ctx context.Context) bool {
	c.reconnect(ctx)
	c.setState(StateIdle)
	return c.presence.Connected
}

func (c *Controller) reconnect(ctx context.Context) {
	c.setState(StateReconnecting)

	if c.exhausted {
		c.reconnectOnce(ctx)
		return
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.opts.RetryDelay
	exp.MaxInterval = 8 * c.opts.RetryDelay
	exp.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(c.opts.MaxRetries-1)), ctx)

	attempt := 0
	connect := func() error {
		attempt++
		ioCtx, cancel := c.ioContext(ctx)
		defer cancel()
		return c.publisher.Connect(ioCtx)
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warnf("Discord connection failed (attempt %d/%d): %v, retrying in %s",
			attempt, c.opts.MaxRetries, err, wait.Round(time.Millisecond))
	}

	if err := backoff.RetryNotify(connect, policy, notify); err != nil {
		c.presence.Connected = false
		c.lastError = err.Error()
		if ctx.Err() != nil {
			c.logger.Info("Reconnect abandoned, shutting down")
			return
		}
		c.logger.Warnf("Failed to reconnect to Discord after %d attempts, retrying once per poll...", attempt)
		sentryhelper.CaptureMessage(ctx, "discord reconnect exhausted")
		c.exhausted = true
		return
	}

	c.presence.Connected = true
	c.logger.Info("✅ Connected to Discord")
}

func (c *Controller) reconnectOnce(ctx context.Context) {
	ioCtx, cancel := c.ioContext(ctx)
	defer cancel()

	if err := c.publisher.Connect(ioCtx); err != nil {
		c.presence.Connected = false
		c.lastError = err.Error()
		c.logger.Debugf("Discord still unreachable: %v", err)
		return
	}

	c.exhausted = false
	c.presence.Connected = true
	c.logger.Info("✅ Connected to Discord")
}

// Shutdown performs the best-effort clear and closes the channel. It uses its
// own timeout since the loop context is already cancelled.
func (c *Controller) Shutdown() {
	if c.publisher.Connected() {
		ctx, cancel := context.WithTimeout(context.Background(), c.opts.IOTimeout)
		if err := c.publisher.Clear(ctx); err != nil {
			c.logger.Debugf("Error clearing presence: %v", err)
		}
		cancel()
	}
	if err := c.publisher.Close(); err != nil {
		c.logger.Debugf("Error closing Discord connection: %v", err)
	}
	c.presence = PresenceState{}
	c.logger.Info("✅ Cleanup completed")
}

// ioContext bounds one source or IPC call. It is detached from ctx's
// cancellation so a stop signal never cuts a call short.
func (c *Controller) ioContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), c.opts.IOTimeout)
}

func (c *Controller) setState(s State) {
	if c.state != s {
		c.logger.Tracef("state %s → %s", c.state, s)
	}
	c.state = s
	if c.opts.Observer != nil {
		c.opts.Observer.Observe(c.snapshot())
	}
}

func (c *Controller) snapshot() Snapshot {
	var track *models.TrackInfo
	if c.presence.LastPublished != nil {
		copied := *c.presence.LastPublished
		track = &copied
	}
	return Snapshot{
		State:     c.state,
		Connected: c.presence.Connected,
		Track:     track,
		Source:    c.source.Name(),
		Ticks:     c.ticks,
		LastPoll:  c.lastPoll,
		LastError: c.lastError,
	}
}
