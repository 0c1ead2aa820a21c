package session

import "time"

// BackoffConfig defines retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// SecurityMode gates which transports a client may use.
type SecurityMode string

const (
	SecurityModeDevelopment SecurityMode = "development"
	SecurityModeProduction  SecurityMode = "production"
)

// TLSConfig configures wss:// connections.
type TLSConfig struct {
	CAFile             string
	ServerName         string
	InsecureSkipVerify bool
}

// Config defines transport/session defaults.
type Config struct {
	URL    string
	Origin string

	SecurityMode SecurityMode
	TLS          TLSConfig

	ConnectTimeout time.Duration
	// ReadTimeout bounds the wait for the next message; 0 waits forever.
	ReadTimeout time.Duration
	// MaxMessageBytes caps one inbound message; 0 leaves the transport default.
	MaxMessageBytes int

	// Reconnect redials after the stream ends instead of stopping.
	Reconnect bool
	// MaxConnectAttempts bounds consecutive failed dials; 0 retries forever.
	MaxConnectAttempts int
	Backoff            BackoffConfig
}

// DefaultConfig returns client defaults.
func DefaultConfig() Config {
	return Config{
		URL:             "ws://localhost:8765",
		Origin:          "http://localhost/",
		SecurityMode:    SecurityModeDevelopment,
		ConnectTimeout:  5 * time.Second,
		ReadTimeout:     15 * time.Second,
		MaxMessageBytes: 8 * 1024 * 1024,
		Reconnect:       false,
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
	}
}

// WithDefaults fills zero-valued fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.URL == "" {
		c.URL = d.URL
	}
	if c.Origin == "" {
		c.Origin = d.Origin
	}
	c.SecurityMode = NormalizeSecurityMode(c.SecurityMode)
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.ReadTimeout < 0 {
		c.ReadTimeout = 0
	}
	if c.MaxMessageBytes < 0 {
		c.MaxMessageBytes = 0
	}
	if c.Backoff.InitialDelay <= 0 {
		c.Backoff.InitialDelay = d.Backoff.InitialDelay
	}
	if c.Backoff.Multiplier <= 0 {
		c.Backoff.Multiplier = d.Backoff.Multiplier
	}
	if c.Backoff.MaxDelay <= 0 {
		c.Backoff.MaxDelay = d.Backoff.MaxDelay
	}
	return c
}
