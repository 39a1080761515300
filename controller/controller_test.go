package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"musicpresence/models"
	"musicpresence/presence"
	"musicpresence/source"
)

// scriptedSource returns one observation per call, repeating the last one.
type scriptedSource struct {
	steps []*models.TrackInfo
	errs  []error
	calls int
}

func (s *scriptedSource) Name() string { return "scripted" }

func (s *scriptedSource) Current(context.Context) (*models.TrackInfo, error) {
	i := s.calls
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	s.calls++
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if s.steps[i] == nil {
		return nil, err
	}
	t := *s.steps[i]
	return &t, err
}

type fakePublisher struct {
	mu         sync.Mutex
	connected  bool
	published  []models.TrackInfo
	clears     int
	connects   int
	closed     bool
	publishErr error
	clearErr   error
	connectErr error
}

func (f *fakePublisher) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakePublisher) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakePublisher) Publish(_ context.Context, track models.TrackInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		if presence.IsConnectionFailure(f.publishErr) {
			f.connected = false
		}
		return f.publishErr
	}
	f.connected = true
	f.published = append(f.published, track)
	return nil
}

func (f *fakePublisher) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clearErr != nil {
		return f.clearErr
	}
	f.clears++
	return nil
}

func (f *fakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.connected = false
	return nil
}

var (
	songA = &models.TrackInfo{Title: "Song A", Artist: "Artist X"}
	songB = &models.TrackInfo{Title: "Song B", Artist: "Artist X"}

	errNotConnected = &presence.PublishError{Kind: presence.KindNotConnected}
	errRejected     = &presence.PublishError{Kind: presence.KindRejected, Code: 4000, Message: "bad image"}
)

func newTestController(src source.Source, pub Publisher) *Controller {
	return New(src, pub, Options{
		Interval:   time.Millisecond,
		IOTimeout:  time.Second,
		MaxRetries: 5,
		RetryDelay: time.Millisecond,
	})
}

func tickN(c *Controller, n int) {
	for i := 0; i < n; i++ {
		c.Tick(context.Background())
	}
}

func TestIdenticalObservationsPublishOnce(t *testing.T) {
	src := &scriptedSource{steps: []*models.TrackInfo{songA, songA, songA}}
	pub := &fakePublisher{}
	c := newTestController(src, pub)

	tickN(c, 3)

	if len(pub.published) != 1 {
		t.Fatalf("published %d times, want 1", len(pub.published))
	}
	if c.State() != StateIdle {
		t.Errorf("state = %s, want idle", c.State())
	}
	if last := c.Presence().LastPublished; last == nil || !last.SameTrack(*songA) {
		t.Errorf("LastPublished = %+v", last)
	}
}

func TestAlbumOnlyChangeDoesNotRepublish(t *testing.T) {
	withAlbum := &models.TrackInfo{Title: "Song A", Artist: "Artist X", Album: "Album Z", ArtworkURL: "https://img"}
	src := &scriptedSource{steps: []*models.TrackInfo{songA, withAlbum}}
	pub := &fakePublisher{}
	c := newTestController(src, pub)

	tickN(c, 2)

	if len(pub.published) != 1 {
		t.Errorf("published %d times, want 1", len(pub.published))
	}
}

func TestTrackChangeRepublishes(t *testing.T) {
	src := &scriptedSource{steps: []*models.TrackInfo{songA, songB}}
	pub := &fakePublisher{}
	c := newTestController(src, pub)

	tickN(c, 2)

	if len(pub.published) != 2 || pub.published[1].Title != "Song B" {
		t.Errorf("published = %+v", pub.published)
	}
}

func TestTrackThenNothingClears(t *testing.T) {
	src := &scriptedSource{steps: []*models.TrackInfo{songA, nil, nil}}
	pub := &fakePublisher{}
	c := newTestController(src, pub)

	tickN(c, 3)

	if len(pub.published) != 1 || pub.clears != 1 {
		t.Errorf("published %d, cleared %d; want 1 and 1", len(pub.published), pub.clears)
	}
	if c.Presence().LastPublished != nil {
		t.Error("LastPublished should be nil after a clear")
	}
}

func TestNothingPlayingNeverTouchesPublisher(t *testing.T) {
	src := &scriptedSource{steps: []*models.TrackInfo{nil}}
	pub := &fakePublisher{}
	c := newTestController(src, pub)

	tickN(c, 3)

	if len(pub.published) != 0 || pub.clears != 0 || pub.connects != 0 {
		t.Errorf("publisher used: %+v", pub)
	}
}

func TestSourceErrorCountsAsNothingPlaying(t *testing.T) {
	src := &scriptedSource{
		steps: []*models.TrackInfo{songA, nil},
		errs:  []error{nil, source.Unavailable(errors.New("wmctrl missing"))},
	}
	pub := &fakePublisher{}
	c := newTestController(src, pub)

	tickN(c, 2)

	if pub.clears != 1 {
		t.Errorf("clears = %d, want 1", pub.clears)
	}
}

func TestStartedAtStampedAtFirstDetection(t *testing.T) {
	src := &scriptedSource{steps: []*models.TrackInfo{songA}}
	pub := &fakePublisher{publishErr: errNotConnected, connectErr: errNotConnected}
	c := newTestController(src, pub)

	first := time.Unix(1700000000, 0)
	c.now = func() time.Time { return first }
	c.Tick(context.Background())

	pub.publishErr, pub.connectErr = nil, nil
	c.now = func() time.Time { return first.Add(time.Minute) }
	c.Tick(context.Background())

	if len(pub.published) != 1 {
		t.Fatalf("published %d times, want 1", len(pub.published))
	}
	if !pub.published[0].StartedAt.Equal(first) {
		t.Errorf("StartedAt = %v, want first detection %v", pub.published[0].StartedAt, first)
	}
}

func TestSourceStartedAtIsKept(t *testing.T) {
	started := time.Unix(1600000000, 0)
	src := &scriptedSource{steps: []*models.TrackInfo{{Title: "Song A", Artist: "Artist X", StartedAt: started}}}
	pub := &fakePublisher{}
	c := newTestController(src, pub)

	c.Tick(context.Background())

	if !pub.published[0].StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", pub.published[0].StartedAt, started)
	}
}

func TestNotConnectedFailuresNeverStopPolling(t *testing.T) {
	src := &scriptedSource{steps: []*models.TrackInfo{songA}}
	pub := &fakePublisher{publishErr: errNotConnected, connectErr: errNotConnected}
	c := newTestController(src, pub)

	tickN(c, 5)

	if src.calls != 5 {
		t.Errorf("source calls = %d, want 5", src.calls)
	}
	// One full backoff run, then a single attempt per tick.
	if want := 5 + 4; pub.connects != want {
		t.Errorf("connect attempts = %d, want %d", pub.connects, want)
	}
	if c.Presence().Connected || c.Presence().LastPublished != nil {
		t.Errorf("presence = %+v, want disconnected and nothing published", c.Presence())
	}
	if c.State() != StateIdle {
		t.Errorf("state = %s, want idle", c.State())
	}
}

func TestExhaustedReconnectRecoversWithSingleAttempt(t *testing.T) {
	src := &scriptedSource{steps: []*models.TrackInfo{songA}}
	pub := &fakePublisher{publishErr: errNotConnected, connectErr: errNotConnected}
	c := newTestController(src, pub)

	c.Tick(context.Background())
	if pub.connects != 5 {
		t.Fatalf("connects after first tick = %d, want 5", pub.connects)
	}

	pub.connectErr = nil
	c.Tick(context.Background())
	if pub.connects != 6 || !c.Presence().Connected {
		t.Fatalf("connects = %d, presence = %+v, want one more attempt and connected", pub.connects, c.Presence())
	}

	// A later outage gets a full backoff run again.
	pub.connectErr = errNotConnected
	c.Tick(context.Background())
	if pub.connects != 6+5 {
		t.Errorf("connects = %d, want %d", pub.connects, 6+5)
	}
}

func TestRunKeepsPollingPaceWhileDisconnected(t *testing.T) {
	src := &scriptedSource{steps: []*models.TrackInfo{songA}}
	pub := &fakePublisher{publishErr: errNotConnected, connectErr: errNotConnected}
	c := New(src, pub, Options{
		Interval:   20 * time.Millisecond,
		IOTimeout:  time.Second,
		MaxRetries: 3,
		RetryDelay: 50 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 600*time.Millisecond)
	defer cancel()
	if err := c.Run(ctx); err != nil {
		t.Fatal(err)
	}

	// The first tick spends up to ~200ms in backoff; the rest run every 20ms.
	if src.calls < 10 {
		t.Errorf("source polls = %d, want at least 10 at the configured interval", src.calls)
	}
	pub.mu.Lock()
	defer pub.mu.Unlock()
	if pub.connects > src.calls+2 {
		t.Errorf("connects = %d for %d polls, want a single attempt per poll after the first", pub.connects, src.calls)
	}
}

func TestReconnectSuccessDoesNotRepublishUntilNextTick(t *testing.T) {
	src := &scriptedSource{steps: []*models.TrackInfo{songA}}
	pub := &fakePublisher{publishErr: errNotConnected}
	c := newTestController(src, pub)

	c.Tick(context.Background())
	if pub.connects != 1 || !c.Presence().Connected {
		t.Fatalf("connects = %d, presence = %+v", pub.connects, c.Presence())
	}
	if len(pub.published) != 0 {
		t.Fatal("reconnect should not publish by itself")
	}

	pub.publishErr = nil
	c.Tick(context.Background())
	if len(pub.published) != 1 {
		t.Errorf("published %d times after reconnect, want 1", len(pub.published))
	}
}

func TestRejectedIsRememberedAndNotRetried(t *testing.T) {
	src := &scriptedSource{steps: []*models.TrackInfo{songA, songA}}
	pub := &fakePublisher{publishErr: errRejected, connected: true}
	c := newTestController(src, pub)

	tickN(c, 2)

	if pub.connects != 0 {
		t.Errorf("connects = %d, rejection must not trigger a reconnect", pub.connects)
	}
	if last := c.Presence().LastPublished; last == nil || !last.SameTrack(*songA) {
		t.Errorf("LastPublished = %+v, want the rejected track", last)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	src := &scriptedSource{steps: []*models.TrackInfo{songA}}
	pub := &fakePublisher{}
	c := newTestController(src, pub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop")
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.published) != 1 {
		t.Errorf("published %d times, want 1", len(pub.published))
	}
}

func TestRunWithCancelledContextDoesNothing(t *testing.T) {
	src := &scriptedSource{steps: []*models.TrackInfo{songA}}
	c := newTestController(src, &fakePublisher{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if src.calls != 0 {
		t.Errorf("source calls = %d, want 0", src.calls)
	}
}

func TestReconnectAbandonedOnCancel(t *testing.T) {
	pub := &fakePublisher{connectErr: errNotConnected}
	c := New(&scriptedSource{steps: []*models.TrackInfo{nil}}, pub, Options{MaxRetries: 5, RetryDelay: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	if c.Reconnect(ctx) {
		t.Fatal("Reconnect() = true")
	}
	if time.Since(start) > time.Second {
		t.Error("backoff wait should end when the context is cancelled")
	}
	if pub.connects != 1 {
		t.Errorf("connects = %d, want 1", pub.connects)
	}
}

func TestShutdownClearsAndCloses(t *testing.T) {
	src := &scriptedSource{steps: []*models.TrackInfo{songA}}
	pub := &fakePublisher{}
	c := newTestController(src, pub)
	c.Tick(context.Background())

	c.Shutdown()

	if pub.clears != 1 || !pub.closed {
		t.Errorf("clears = %d closed = %v", pub.clears, pub.closed)
	}
}

func TestShutdownWithoutConnectionOnlyCloses(t *testing.T) {
	pub := &fakePublisher{}
	c := newTestController(&scriptedSource{steps: []*models.TrackInfo{nil}}, pub)

	c.Shutdown()

	if pub.clears != 0 || !pub.closed {
		t.Errorf("clears = %d closed = %v", pub.clears, pub.closed)
	}
}

func TestObserverSeesTransitions(t *testing.T) {
	src := &scriptedSource{steps: []*models.TrackInfo{songA, songA}}
	var states []State
	var last Snapshot
	c := New(src, &fakePublisher{}, Options{
		IOTimeout:  time.Second,
		RetryDelay: time.Millisecond,
		Observer: ObserverFunc(func(s Snapshot) {
			states = append(states, s.State)
			last = s
		}),
	})

	tickN(c, 2)

	want := []State{StatePolling, StatePublishing, StateIdle, StatePolling, StateIdempotent, StateIdle}
	if len(states) != len(want) {
		t.Fatalf("states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("states = %v, want %v", states, want)
		}
	}
	if !last.Connected || last.Track == nil || last.Track.Title != "Song A" || last.Ticks != 2 || last.Source != "scripted" {
		t.Errorf("last snapshot = %+v", last)
	}
}
