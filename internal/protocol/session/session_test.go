package session

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danmuck/skelstream/internal/protocol"
	"github.com/danmuck/skelstream/internal/router"
	"github.com/danmuck/skelstream/internal/skeleton"
	"github.com/danmuck/skelstream/internal/testutil/posetest"
	"github.com/danmuck/skelstream/internal/testutil/testlog"
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/net/websocket"
)

func TestNextBackoffDelayDeterministicNoJitter(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
		Jitter:       false,
	}
	if got := NextBackoffDelay(cfg, 1, nil); got != 250*time.Millisecond {
		t.Fatalf("attempt1 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 2, nil); got != 500*time.Millisecond {
		t.Fatalf("attempt2 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 3, nil); got != time.Second {
		t.Fatalf("attempt3 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 6, nil); got != 5*time.Second {
		t.Fatalf("attempt6 got=%v", got)
	}
}

func TestSleepBackoffHonorsCancel(t *testing.T) {
	testlog.Start(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := sleepBackoff(ctx, BackoffConfig{InitialDelay: time.Hour}, 1, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestValidateClientTransport(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		name string
		cfg  Config
		want error
	}{
		{"dev ws", Config{URL: "ws://localhost:8765"}, nil},
		{"dev wss", Config{URL: "wss://example.com/stream"}, nil},
		{"bad scheme", Config{URL: "http://localhost:8765"}, ErrInvalidURL},
		{"no host", Config{URL: "ws:///path"}, ErrInvalidURL},
		{"bad mode", Config{URL: "ws://localhost", SecurityMode: "chaos"}, ErrInvalidSecurityMode},
		{"prod ws", Config{URL: "ws://localhost", SecurityMode: SecurityModeProduction}, ErrTLSRequired},
		{"prod insecure", Config{
			URL:          "wss://localhost",
			SecurityMode: SecurityModeProduction,
			TLS:          TLSConfig{InsecureSkipVerify: true},
		}, ErrTLSInsecureSkipNotAllow},
		{"prod wss", Config{URL: "wss://localhost", SecurityMode: " Production "}, nil},
	}
	for _, tc := range cases {
		err := tc.cfg.ValidateClientTransport()
		if tc.want == nil && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if tc.want != nil && !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestConfigWithDefaults(t *testing.T) {
	testlog.Start(t)
	cfg := Config{URL: "ws://example:1", ReadTimeout: -1}.WithDefaults()
	if cfg.URL != "ws://example:1" {
		t.Fatalf("url overwritten: %q", cfg.URL)
	}
	if cfg.ConnectTimeout != 5*time.Second || cfg.ReadTimeout != 0 {
		t.Fatalf("unexpected timeouts: connect=%v read=%v", cfg.ConnectTimeout, cfg.ReadTimeout)
	}
	if cfg.SecurityMode != SecurityModeDevelopment || cfg.Backoff.Multiplier != 2 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestCodecMapsPayloadTypes(t *testing.T) {
	testlog.Start(t)
	data, pt, err := marshalMessage(protocol.BinaryMessage([]byte{1, 2}))
	if err != nil || pt != websocket.BinaryFrame || len(data) != 2 {
		t.Fatalf("binary marshal: pt=%d err=%v", pt, err)
	}
	_, pt, err = marshalMessage(protocol.TextMessage("{}"))
	if err != nil || pt != websocket.TextFrame {
		t.Fatalf("text marshal: pt=%d err=%v", pt, err)
	}
	if _, _, err := marshalMessage("raw"); err == nil {
		t.Fatalf("expected error for unsupported value")
	}

	var msg protocol.Message
	if err := unmarshalMessage([]byte("{}"), websocket.TextFrame, &msg); err != nil || msg.Kind != protocol.MessageText {
		t.Fatalf("text unmarshal: kind=%v err=%v", msg.Kind, err)
	}
	if err := unmarshalMessage([]byte{0}, websocket.BinaryFrame, &msg); err != nil || msg.Kind != protocol.MessageBinary {
		t.Fatalf("binary unmarshal: kind=%v err=%v", msg.Kind, err)
	}
	if err := unmarshalMessage(nil, websocket.PingFrame, &msg); err == nil {
		t.Fatalf("expected error for ping payload")
	}
}

type fakeTransport struct {
	msgs   chan protocol.Message
	closed chan struct{}
	once   sync.Once
}

func newFakeTransport(msgs ...protocol.Message) *fakeTransport {
	ch := make(chan protocol.Message, len(msgs))
	for _, m := range msgs {
		ch <- m
	}
	return &fakeTransport{msgs: ch, closed: make(chan struct{})}
}

// end makes Receive return io.EOF once queued messages are drained.
func (f *fakeTransport) end() *fakeTransport {
	close(f.msgs)
	return f
}

func (f *fakeTransport) Receive() (protocol.Message, error) {
	select {
	case m, ok := <-f.msgs:
		if !ok {
			return protocol.Message{}, io.EOF
		}
		return m, nil
	case <-f.closed:
		return protocol.Message{}, net.ErrClosed
	}
}

func (f *fakeTransport) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

type fakeDialer struct {
	mu         sync.Mutex
	transports []Transport
	err        error
	dials      atomic.Int32
}

func (d *fakeDialer) Dial(ctx context.Context) (Transport, error) {
	d.dials.Add(1)
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.transports) == 0 {
		if d.err != nil {
			return nil, d.err
		}
		return nil, errors.New("no transport")
	}
	t := d.transports[0]
	d.transports = d.transports[1:]
	return t, nil
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func fastBackoff(cfg Config) Config {
	cfg.Backoff = BackoffConfig{InitialDelay: time.Millisecond, Multiplier: 1, MaxDelay: time.Millisecond}
	return cfg
}

func TestNewRequiresRouter(t *testing.T) {
	testlog.Start(t)
	if _, err := New(DefaultConfig(), nil); !errors.Is(err, ErrRouterRequired) {
		t.Fatalf("expected ErrRouterRequired, got %v", err)
	}
	if _, err := New(Config{URL: "tcp://x"}, router.New(router.Config{}, nil)); !errors.Is(err, ErrInvalidURL) {
		t.Fatalf("expected ErrInvalidURL, got %v", err)
	}
}

func TestClientRoutesMessagesUntilStopped(t *testing.T) {
	testlog.Start(t)
	tr := newFakeTransport(
		protocol.BinaryMessage(posetest.Frame(0, posetest.TranslationBlock(8, 8, 8))),
		protocol.TextMessage(posetest.JSON(t, posetest.Chain(2))),
		protocol.BinaryMessage(posetest.Frame(1, posetest.TranslationBlock(1, 2, 3))),
	)
	var statuses []Status
	var statusMu sync.Mutex
	rt := router.New(router.Config{}, nil)
	c, err := New(DefaultConfig(), rt,
		WithDialer(&fakeDialer{transports: []Transport{tr}}),
		WithStatus(func(s Status) {
			statusMu.Lock()
			statuses = append(statuses, s)
			statusMu.Unlock()
		}),
	)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := c.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}

	var sk *skeleton.Skeleton
	waitFor(t, "frame applied", func() bool {
		all := rt.Skeletons()
		if len(all) != 1 {
			return false
		}
		sk = all[0]
		return sk.LocalMatrix(0).Col(3) == (mgl32.Vec4{1, 2, 3, 1})
	})

	if err := c.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if len(rt.Skeletons()) != 0 {
		t.Fatalf("session end must drop skeletons")
	}
	statusMu.Lock()
	defer statusMu.Unlock()
	want := []Status{StatusConnecting, StatusAwaitingHandshake, StatusSkeletonLoaded, StatusDisconnected, StatusStopped}
	if len(statuses) != len(want) {
		t.Fatalf("expected statuses %v, got %v", want, statuses)
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Fatalf("expected statuses %v, got %v", want, statuses)
		}
	}
}

func TestClientStopsAfterMaxConnectAttempts(t *testing.T) {
	testlog.Start(t)
	dialErr := errors.New("refused")
	d := &fakeDialer{err: dialErr}
	cfg := fastBackoff(DefaultConfig())
	cfg.MaxConnectAttempts = 3
	c, err := New(cfg, router.New(router.Config{}, nil), WithDialer(d))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("client did not give up")
	}
	if !errors.Is(c.Err(), dialErr) {
		t.Fatalf("expected dial error, got %v", c.Err())
	}
	if got := d.dials.Load(); got != 3 {
		t.Fatalf("expected 3 dials, got %d", got)
	}
}

func TestClientWithoutReconnectEndsOnDisconnect(t *testing.T) {
	testlog.Start(t)
	tr := newFakeTransport(protocol.TextMessage(posetest.JSON(t, posetest.Chain(1)))).end()
	rt := router.New(router.Config{}, nil)
	c, _ := New(DefaultConfig(), rt, WithDialer(&fakeDialer{transports: []Transport{tr}}))
	_ = c.Start(context.Background())
	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("client did not end")
	}
	if !errors.Is(c.Err(), io.EOF) {
		t.Fatalf("expected io.EOF, got %v", c.Err())
	}
	if !errors.Is(c.Stop(), io.EOF) {
		t.Fatalf("stop should report the ending error")
	}
}

func TestClientReconnectStartsFresh(t *testing.T) {
	testlog.Start(t)
	first := newFakeTransport(protocol.TextMessage(posetest.JSON(t, posetest.Chain(3)))).end()
	second := newFakeTransport(protocol.TextMessage(posetest.JSON(t, posetest.Chain(1))))
	d := &fakeDialer{transports: []Transport{first, second}}
	cfg := fastBackoff(DefaultConfig())
	cfg.Reconnect = true
	rt := router.New(router.Config{}, nil)
	c, _ := New(cfg, rt, WithDialer(d))
	_ = c.Start(context.Background())

	waitFor(t, "second handshake", func() bool {
		all := rt.Skeletons()
		return d.dials.Load() == 2 && len(all) == 1 && all[0].Len() == 1
	})
	if err := c.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestClientOverWebsocket(t *testing.T) {
	testlog.Start(t)
	handshake := posetest.JSON(t, posetest.Chain(2))
	srv := httptest.NewServer(websocket.Handler(func(ws *websocket.Conn) {
		msgs := []protocol.Message{
			protocol.TextMessage(`{"type": "HELLO"}`),
			protocol.TextMessage(handshake),
			protocol.BinaryMessage(posetest.Frame(1, posetest.TranslationFloats(
				[3]float32{1, 0, 0},
				[3]float32{0, 2, 0},
			))),
		}
		for _, m := range msgs {
			if err := Codec.Send(ws, m); err != nil {
				return
			}
		}
		var m protocol.Message
		_ = Codec.Receive(ws, &m) // block until the client closes
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.URL = "ws" + strings.TrimPrefix(srv.URL, "http")
	cfg.Origin = srv.URL
	rt := router.New(router.Config{}, nil)
	c, err := New(cfg, rt)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "websocket frame applied", func() bool {
		all := rt.Skeletons()
		return len(all) == 1 && all[0].LocalMatrix(1).Col(3) == (mgl32.Vec4{0, 2, 0, 1})
	})
	if err := c.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
