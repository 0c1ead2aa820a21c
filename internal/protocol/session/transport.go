package session

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/danmuck/skelstream/internal/protocol"
	"golang.org/x/net/websocket"
)

// Transport delivers whole inbound messages.
type Transport interface {
	Receive() (protocol.Message, error)
	Close() error
}

// Dialer opens a Transport.
type Dialer interface {
	Dial(ctx context.Context) (Transport, error)
}

// Codec moves protocol.Message values over a websocket, mapping text and
// binary frames to MessageText and MessageBinary.
var Codec = websocket.Codec{Marshal: marshalMessage, Unmarshal: unmarshalMessage}

func marshalMessage(v interface{}) ([]byte, byte, error) {
	var msg protocol.Message
	switch m := v.(type) {
	case protocol.Message:
		msg = m
	case *protocol.Message:
		msg = *m
	default:
		return nil, 0, websocket.ErrNotSupported
	}
	switch msg.Kind {
	case protocol.MessageText:
		return msg.Data, websocket.TextFrame, nil
	case protocol.MessageBinary:
		return msg.Data, websocket.BinaryFrame, nil
	default:
		return nil, 0, fmt.Errorf("session: cannot send message kind %d", msg.Kind)
	}
}

func unmarshalMessage(data []byte, payloadType byte, v interface{}) error {
	msg, ok := v.(*protocol.Message)
	if !ok {
		return websocket.ErrNotSupported
	}
	switch payloadType {
	case websocket.TextFrame:
		msg.Kind = protocol.MessageText
	case websocket.BinaryFrame:
		msg.Kind = protocol.MessageBinary
	default:
		return fmt.Errorf("session: unexpected payload type %d", payloadType)
	}
	msg.Data = data
	return nil
}

// WebsocketDialer dials ws:// and wss:// URLs.
type WebsocketDialer struct {
	Config Config
}

func (d WebsocketDialer) Dial(ctx context.Context) (Transport, error) {
	cfg := d.Config
	if err := cfg.ValidateClientTransport(); err != nil {
		return nil, err
	}
	wsCfg, err := websocket.NewConfig(cfg.URL, cfg.Origin)
	if err != nil {
		return nil, err
	}
	wsCfg.Dialer = &net.Dialer{Timeout: cfg.ConnectTimeout}
	if wsCfg.Location.Scheme == "wss" {
		tlsCfg, err := cfg.clientTLSConfig(wsCfg.Location.Hostname())
		if err != nil {
			return nil, err
		}
		wsCfg.TlsConfig = tlsCfg
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	conn, err := wsCfg.DialContext(dialCtx)
	if err != nil {
		return nil, err
	}
	if cfg.MaxMessageBytes > 0 {
		conn.MaxPayloadBytes = cfg.MaxMessageBytes
	}
	return &wsTransport{conn: conn, readTimeout: cfg.ReadTimeout}, nil
}

type wsTransport struct {
	conn        *websocket.Conn
	readTimeout time.Duration
	closeOnce   sync.Once
	closeErr    error
}

func (t *wsTransport) Receive() (protocol.Message, error) {
	if t.readTimeout > 0 {
		if err := t.conn.SetReadDeadline(time.Now().Add(t.readTimeout)); err != nil {
			return protocol.Message{}, err
		}
	}
	var msg protocol.Message
	if err := Codec.Receive(t.conn, &msg); err != nil {
		return protocol.Message{}, err
	}
	return msg, nil
}

func (t *wsTransport) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}
