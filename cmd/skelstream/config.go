package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/danmuck/skelstream/internal/config"
)

type cliFlags struct {
	configPath string
	url        string
	policy     string
	reconnect  bool
	metrics    string
}

func parseFlags(fs *flag.FlagSet, args []string) (cliFlags, error) {
	var f cliFlags
	fs.StringVar(&f.configPath, "config", "", "client config path (.toml, .yaml)")
	fs.StringVar(&f.url, "url", "", "pose stream url (ws:// or wss://)")
	fs.StringVar(&f.policy, "policy", "", "frame length policy: clamp|strict")
	fs.BoolVar(&f.reconnect, "reconnect", false, "reconnect after the stream drops")
	fs.StringVar(&f.metrics, "metrics", "", "metrics listen address, empty to disable")
	if err := fs.Parse(args); err != nil {
		return cliFlags{}, err
	}
	return f, nil
}

// loadClientConfig reads the file and environment, then lets explicitly set
// flags win.
func loadClientConfig(fs *flag.FlagSet, f cliFlags) (config.ClientConfig, error) {
	cfg, err := config.LoadClientConfig(f.configPath)
	if err != nil {
		return config.ClientConfig{}, err
	}

	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "url":
			cfg.URL = strings.TrimSpace(f.url)
		case "policy":
			cfg.FramePolicy = strings.TrimSpace(f.policy)
		case "reconnect":
			cfg.Reconnect = f.reconnect
		case "metrics":
			cfg.MetricsAddr = strings.TrimSpace(f.metrics)
		}
	})

	if err := config.ValidateClientConfig(cfg); err != nil {
		return config.ClientConfig{}, fmt.Errorf("flags: %w", err)
	}
	return cfg, nil
}
