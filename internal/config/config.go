package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	burnt "github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/danmuck/skelstream/internal/skeleton"
	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SKELSTREAM_"

type BackoffConfig struct {
	InitialDelay string  `toml:"initial_delay" yaml:"initial_delay" env:"INITIAL_DELAY"`
	Multiplier   float64 `toml:"multiplier" yaml:"multiplier" env:"MULTIPLIER"`
	MaxDelay     string  `toml:"max_delay" yaml:"max_delay" env:"MAX_DELAY"`
	Jitter       bool    `toml:"jitter" yaml:"jitter" env:"JITTER"`
}

type TLSConfig struct {
	CAFile             string `toml:"ca_file" yaml:"ca_file" env:"CA_FILE"`
	ServerName         string `toml:"server_name" yaml:"server_name" env:"SERVER_NAME"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify" yaml:"insecure_skip_verify" env:"INSECURE_SKIP_VERIFY"`
}

// ClientConfig is the pose-stream client file/env configuration. Durations
// are Go duration strings ("5s", "250ms").
type ClientConfig struct {
	URL                string        `toml:"url" yaml:"url" env:"URL"`
	Origin             string        `toml:"origin" yaml:"origin" env:"ORIGIN"`
	SecurityMode       string        `toml:"security_mode" yaml:"security_mode" env:"SECURITY_MODE"`
	FramePolicy        string        `toml:"frame_policy" yaml:"frame_policy" env:"FRAME_POLICY"`
	Reconnect          bool          `toml:"reconnect" yaml:"reconnect" env:"RECONNECT"`
	MaxConnectAttempts int           `toml:"max_connect_attempts" yaml:"max_connect_attempts" env:"MAX_CONNECT_ATTEMPTS"`
	ConnectTimeout     string        `toml:"connect_timeout" yaml:"connect_timeout" env:"CONNECT_TIMEOUT"`
	ReadTimeout        string        `toml:"read_timeout" yaml:"read_timeout" env:"READ_TIMEOUT"`
	MaxMessageBytes    int           `toml:"max_message_bytes" yaml:"max_message_bytes" env:"MAX_MESSAGE_BYTES"`
	MetricsAddr        string        `toml:"metrics_addr" yaml:"metrics_addr" env:"METRICS_ADDR"`
	StatusInterval     string        `toml:"status_interval" yaml:"status_interval" env:"STATUS_INTERVAL"`
	Backoff            BackoffConfig `toml:"backoff" yaml:"backoff" envPrefix:"BACKOFF_"`
	TLS                TLSConfig     `toml:"tls" yaml:"tls" envPrefix:"TLS_"`
}

// SimConfig configures the pose-stream simulator.
type SimConfig struct {
	Addr        string   `toml:"addr" yaml:"addr" env:"SIM_ADDR"`
	Bones       int      `toml:"bones" yaml:"bones" env:"SIM_BONES"`
	FPS         int      `toml:"fps" yaml:"fps" env:"SIM_FPS"`
	CorsOrigins []string `toml:"cors_origins" yaml:"cors_origins" env:"SIM_CORS_ORIGINS"`
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		URL:             "ws://localhost:8765/ws",
		Origin:          "http://localhost/",
		SecurityMode:    "development",
		FramePolicy:     "clamp",
		ConnectTimeout:  "5s",
		ReadTimeout:     "15s",
		MaxMessageBytes: 8 * 1024 * 1024,
		StatusInterval:  "2s",
		Backoff: BackoffConfig{
			InitialDelay: "250ms",
			Multiplier:   2.0,
			MaxDelay:     "5s",
			Jitter:       true,
		},
	}
}

func DefaultSimConfig() SimConfig {
	return SimConfig{
		Addr:        ":8765",
		Bones:       8,
		FPS:         30,
		CorsOrigins: []string{"http://localhost:5173"},
	}
}

// LoadClientConfig overlays a TOML or YAML file onto DefaultClientConfig,
// then applies environment overrides and validates. An empty path skips the
// file.
func LoadClientConfig(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig()
	if path != "" {
		if isYAML(path) {
			if err := loadYAML(path, &cfg); err != nil {
				return ClientConfig{}, err
			}
		} else {
			meta, err := burnt.DecodeFile(path, &cfg)
			if err != nil {
				return ClientConfig{}, fmt.Errorf("config parse failed (%s): %w", path, err)
			}
			for _, key := range meta.Undecoded() {
				log.Warn().Str("path", path).Str("key", key.String()).Msg("config.LoadClientConfig unknown key")
			}
		}
	}
	if err := ApplyEnv(&cfg); err != nil {
		return ClientConfig{}, err
	}
	if err := ValidateClientConfig(cfg); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

// LoadSimConfig reads a simulator config the same way as LoadClientConfig.
func LoadSimConfig(path string) (SimConfig, error) {
	cfg := DefaultSimConfig()
	if path != "" {
		var err error
		if isYAML(path) {
			err = loadYAML(path, &cfg)
		} else {
			err = loadToml(path, &cfg)
		}
		if err != nil {
			return SimConfig{}, err
		}
	}
	if err := ApplyEnv(&cfg); err != nil {
		return SimConfig{}, err
	}
	if err := ValidateSimConfig(cfg); err != nil {
		return SimConfig{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields of target from SKELSTREAM_* variables.
func ApplyEnv(target any) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func loadYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateClientConfig(cfg ClientConfig) error {
	if strings.TrimSpace(cfg.URL) == "" {
		return fmt.Errorf("client config missing url")
	}
	if _, ok := skeleton.ParseFramePolicy(strings.TrimSpace(cfg.FramePolicy)); !ok {
		return fmt.Errorf("client config frame_policy %q must be clamp or strict", cfg.FramePolicy)
	}
	if cfg.MaxConnectAttempts < 0 {
		return fmt.Errorf("client config max_connect_attempts must be >= 0")
	}
	if cfg.MaxMessageBytes < 0 {
		return fmt.Errorf("client config max_message_bytes must be >= 0")
	}
	durations := map[string]string{
		"connect_timeout":       cfg.ConnectTimeout,
		"read_timeout":          cfg.ReadTimeout,
		"status_interval":       cfg.StatusInterval,
		"backoff.initial_delay": cfg.Backoff.InitialDelay,
		"backoff.max_delay":     cfg.Backoff.MaxDelay,
	}
	for key, raw := range durations {
		if _, err := parseDuration(raw); err != nil {
			return fmt.Errorf("client config %s: %w", key, err)
		}
	}
	return nil
}

func ValidateSimConfig(cfg SimConfig) error {
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("sim config missing addr")
	}
	if cfg.Bones <= 0 {
		return fmt.Errorf("sim config bones must be > 0")
	}
	if cfg.FPS <= 0 || cfg.FPS > 1000 {
		return fmt.Errorf("sim config fps must be in 1..1000")
	}
	return nil
}

// parseDuration treats an empty string as zero.
func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return time.ParseDuration(raw)
}
