package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	sentry "github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"musicpresence/models"
)

type Dialer func(ctx context.Context) (net.Conn, error)

type Options struct {
	ClientID      string
	FallbackImage string
	// Timeout bounds every IPC exchange when the context carries no earlier deadline.
	Timeout time.Duration
	// Dial defaults to DialDiscord.
	Dial Dialer
	// PID reported with SET_ACTIVITY, defaults to os.Getpid().
	PID int
}

// Client owns the IPC channel to the local Discord client.
type Client struct {
	opts   Options
	logger *log.Entry
	mu     sync.Mutex
	conn   net.Conn
}

func NewClient(opts Options) *Client {
	if opts.Dial == nil {
		opts.Dial = DialDiscord
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.PID == 0 {
		opts.PID = os.Getpid()
	}
	return &Client{
		opts:   opts,
		logger: log.WithFields(log.Fields{"module": "presence"}),
	}
}

func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Connect dials Discord and performs the handshake. It is a no-op when a
// channel is already established.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Client) connectLocked(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	conn, err := c.opts.Dial(dialCtx)
	if err != nil {
		return notConnected(err)
	}
	c.conn = conn

	if err := c.handshake(ctx); err != nil {
		c.dropLocked()
		return err
	}

	c.logger.Info("Connected to Discord")
	return nil
}

func (c *Client) handshake(ctx context.Context) error {
	c.setDeadline(ctx)
	if err := writeFrame(c.conn, opHandshake, handshake{Version: 1, ClientID: c.opts.ClientID}); err != nil {
		return classify(err)
	}

	op, body, err := readFrame(c.conn)
	if err != nil {
		return classify(err)
	}
	switch op {
	case opFrame:
		var ready response
		if err := json.Unmarshal(body, &ready); err != nil {
			return notConnected(fmt.Errorf("decode handshake reply: %w", err))
		}
		if ready.Evt != "READY" {
			return notConnected(fmt.Errorf("unexpected handshake event %q", ready.Evt))
		}
		return nil
	case opClose:
		var closed errorData
		_ = json.Unmarshal(body, &closed)
		return &PublishError{Kind: KindNotConnected, Code: closed.Code, Message: closed.Message}
	default:
		return notConnected(fmt.Errorf("unexpected handshake opcode %d", op))
	}
}

// Publish shows track as the current activity. A rejected payload that
// carried images is resent once without them; a text-only rejection is final.
func (c *Client) Publish(ctx context.Context, track models.TrackInfo) error {
	span := sentry.StartSpan(ctx, "presence.publish")
	span.Description = "Set Discord activity"
	span.SetTag("has_artwork", fmt.Sprint(track.HasArtwork()))
	defer span.Finish()

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connectLocked(ctx); err != nil {
		span.Status = sentry.SpanStatusUnavailable
		return err
	}

	activity := BuildActivity(track, c.opts.FallbackImage)
	err := c.setActivityLocked(ctx, &activity)
	if IsRejected(err) && activity.hasImages() {
		c.logger.WithField("artwork", track.ArtworkURL).Warnf("Activity rejected (%v), retrying without artwork", err)
		textOnly := activity.textOnly()
		err = c.setActivityLocked(ctx, &textOnly)
	}
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		return err
	}

	c.logger.Infof("🎶 Now Playing: %s by %s", track.Title, track.Artist)
	span.Status = sentry.SpanStatusOK
	return nil
}

// Clear removes the activity.
func (c *Client) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connectLocked(ctx); err != nil {
		return err
	}
	if err := c.setActivityLocked(ctx, nil); err != nil {
		return err
	}
	c.logger.Info("⏹️ Cleared Discord presence")
	return nil
}

// Close sends a best-effort CLOSE frame and releases the channel.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = writeFrame(c.conn, opClose, struct{}{})
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) setActivityLocked(ctx context.Context, activity *Activity) error {
	req := command{
		Cmd:   "SET_ACTIVITY",
		Args:  activityArgs{PID: c.opts.PID, Activity: activity},
		Nonce: uuid.NewString(),
	}

	if err := ctx.Err(); err != nil {
		return &PublishError{Kind: KindTimeout, Err: err}
	}

	c.setDeadline(ctx)
	if err := writeFrame(c.conn, opFrame, req); err != nil {
		c.dropLocked()
		return classify(err)
	}

	for {
		op, body, err := readFrame(c.conn)
		if err != nil {
			c.dropLocked()
			return classify(err)
		}

		switch op {
		case opPing:
			var pong any = struct{}{}
			if len(body) > 0 {
				pong = json.RawMessage(body)
			}
			if err := writeFrame(c.conn, opPong, pong); err != nil {
				c.dropLocked()
				return classify(err)
			}
			continue
		case opClose:
			var closed errorData
			_ = json.Unmarshal(body, &closed)
			c.dropLocked()
			return &PublishError{Kind: KindNotConnected, Code: closed.Code, Message: closed.Message}
		case opFrame:
		default:
			continue
		}

		var resp response
		if err := json.Unmarshal(body, &resp); err != nil {
			c.dropLocked()
			return notConnected(fmt.Errorf("decode reply: %w", err))
		}
		if resp.Nonce != req.Nonce {
			c.logger.Tracef("Skipping unrelated frame %s/%s", resp.Cmd, resp.Evt)
			continue
		}
		if resp.Evt == "ERROR" {
			var data errorData
			_ = json.Unmarshal(resp.Data, &data)
			return &PublishError{Kind: KindRejected, Code: data.Code, Message: data.Message}
		}
		return nil
	}
}

// setDeadline applies the earlier of the context deadline and the configured timeout.
func (c *Client) setDeadline(ctx context.Context) {
	deadline := time.Now().Add(c.opts.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetDeadline(deadline)
}

func (c *Client) dropLocked() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
		c.logger.Warn("Discord connection dropped")
	}
}

func classify(err error) error {
	var netErr net.Error
	if errors.Is(err, os.ErrDeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &PublishError{Kind: KindTimeout, Err: err}
	}
	return notConnected(err)
}
