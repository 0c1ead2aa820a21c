package config

import (
	"strings"
	"time"

	"github.com/danmuck/skelstream/internal/protocol/session"
	"github.com/danmuck/skelstream/internal/router"
	"github.com/danmuck/skelstream/internal/skeleton"
)

// Session converts a validated ClientConfig into session settings.
func (c ClientConfig) Session() session.Config {
	return session.Config{
		URL:                strings.TrimSpace(c.URL),
		Origin:             strings.TrimSpace(c.Origin),
		SecurityMode:       session.SecurityMode(c.SecurityMode),
		ConnectTimeout:     mustDuration(c.ConnectTimeout),
		ReadTimeout:        mustDuration(c.ReadTimeout),
		MaxMessageBytes:    c.MaxMessageBytes,
		Reconnect:          c.Reconnect,
		MaxConnectAttempts: c.MaxConnectAttempts,
		TLS: session.TLSConfig{
			CAFile:             c.TLS.CAFile,
			ServerName:         c.TLS.ServerName,
			InsecureSkipVerify: c.TLS.InsecureSkipVerify,
		},
		Backoff: session.BackoffConfig{
			InitialDelay: mustDuration(c.Backoff.InitialDelay),
			Multiplier:   c.Backoff.Multiplier,
			MaxDelay:     mustDuration(c.Backoff.MaxDelay),
			Jitter:       c.Backoff.Jitter,
		},
	}.WithDefaults()
}

// Router converts a validated ClientConfig into router settings.
func (c ClientConfig) Router() router.Config {
	policy, _ := skeleton.ParseFramePolicy(strings.TrimSpace(c.FramePolicy))
	return router.Config{FramePolicy: policy}
}

// StatusEvery is the debug scene reporting interval; 0 disables it.
func (c ClientConfig) StatusEvery() time.Duration {
	return mustDuration(c.StatusInterval)
}

func mustDuration(raw string) time.Duration {
	d, err := parseDuration(raw)
	if err != nil {
		return 0
	}
	return d
}
