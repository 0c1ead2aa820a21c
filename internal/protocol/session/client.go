package session

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/danmuck/skelstream/internal/observability"
	"github.com/danmuck/skelstream/internal/router"
	"github.com/rs/zerolog/log"
)

var (
	ErrRouterRequired = errors.New("session: router required")
	ErrAlreadyStarted = errors.New("session: already started")
	ErrNotStarted     = errors.New("session: not started")
)

// Status is a coarse connection state for status displays.
type Status int

const (
	StatusConnecting Status = iota
	StatusAwaitingHandshake
	StatusSkeletonLoaded
	StatusDisconnected
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusAwaitingHandshake:
		return "awaiting_handshake"
	case StatusSkeletonLoaded:
		return "skeleton_loaded"
	case StatusDisconnected:
		return "disconnected"
	case StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// StatusFunc observes status changes. It runs on the reader goroutine and
// must not block.
type StatusFunc func(Status)

type Option func(*Client)

// WithDialer replaces the websocket dialer, mainly for tests.
func WithDialer(d Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

func WithStatus(fn StatusFunc) Option {
	return func(c *Client) { c.status = fn }
}

// Client is one explicitly owned pose-stream session. Skeletons created on a
// connection are dropped from the router when that connection ends.
type Client struct {
	cfg    Config
	dialer Dialer
	router *router.Router
	status StatusFunc
	rng    *rand.Rand

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
}

func New(cfg Config, rt *router.Router, opts ...Option) (*Client, error) {
	if rt == nil {
		return nil, ErrRouterRequired
	}
	cfg = cfg.WithDefaults()
	if err := cfg.ValidateClientTransport(); err != nil {
		return nil, err
	}
	c := &Client{
		cfg:    cfg,
		dialer: WebsocketDialer{Config: cfg},
		router: rt,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Router() *router.Router {
	return c.router
}

// Start launches the reader goroutine. ctx bounds the whole session.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return ErrAlreadyStarted
	}
	c.started = true
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	go c.run(runCtx)
	return nil
}

// Stop ends the session and waits for the reader to exit. It returns the
// error that ended the session, if any, other than cancellation.
func (c *Client) Stop() error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return ErrNotStarted
	}
	cancel := c.cancel
	c.mu.Unlock()

	cancel()
	<-c.done
	return c.Err()
}

// Done is closed when the reader goroutine exits.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Client) setErr(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

func (c *Client) notify(s Status) {
	if c.status != nil {
		c.status(s)
	}
}

func (c *Client) run(ctx context.Context) {
	defer close(c.done)
	defer c.notify(StatusStopped)
	defer c.router.Reset()

	attempt := 0
	for {
		c.notify(StatusConnecting)
		attempt++
		t, err := c.dialer.Dial(ctx)
		observability.RecordConnect(err == nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Int("attempt", attempt).Str("url", c.cfg.URL).Err(err).Msg("session.Client dial failed")
			if !c.shouldRetry(attempt) {
				c.setErr(err)
				return
			}
			if sleepBackoff(ctx, c.cfg.Backoff, attempt, c.rng) != nil {
				return
			}
			continue
		}
		attempt = 0

		log.Info().Str("url", c.cfg.URL).Msg("session.Client connected")
		c.notify(StatusAwaitingHandshake)
		err = c.serve(ctx, t)
		c.router.Reset()
		c.notify(StatusDisconnected)
		if ctx.Err() != nil {
			return
		}
		log.Warn().Str("url", c.cfg.URL).Err(err).Bool("reconnect", c.cfg.Reconnect).Msg("session.Client disconnected")
		if !c.cfg.Reconnect {
			c.setErr(err)
			return
		}
		if sleepBackoff(ctx, c.cfg.Backoff, 1, c.rng) != nil {
			return
		}
	}
}

// serve reads until the transport fails or ctx ends. Cancelling ctx closes
// the transport to unblock Receive.
func (c *Client) serve(ctx context.Context, t Transport) error {
	stop := context.AfterFunc(ctx, func() { _ = t.Close() })
	defer func() {
		stop()
		_ = t.Close()
	}()

	for {
		msg, err := t.Receive()
		if err != nil {
			return err
		}
		res := c.router.Route(msg)
		if res.Action == router.ActionHandshake && res.Skeleton != nil {
			c.notify(StatusSkeletonLoaded)
		}
	}
}

func (c *Client) shouldRetry(attempt int) bool {
	if c.cfg.MaxConnectAttempts <= 0 {
		return true
	}
	return attempt < c.cfg.MaxConnectAttempts
}
