package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "client":
		return clientTemplate, nil
	case "sim":
		return simTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

// Validate loads path as the given kind and reports the first problem.
func Validate(path, kind string) error {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "client":
		_, err := LoadClientConfig(path)
		return err
	case "sim":
		_, err := LoadSimConfig(path)
		return err
	default:
		return fmt.Errorf("unknown config kind: %s", kind)
	}
}

const clientTemplate = `url = "ws://localhost:8765/ws"
origin = "http://localhost/"
security_mode = "development"
frame_policy = "clamp"
reconnect = true
max_connect_attempts = 0
connect_timeout = "5s"
read_timeout = "15s"
max_message_bytes = 8388608
metrics_addr = ""
status_interval = "2s"

[backoff]
initial_delay = "250ms"
multiplier = 2.0
max_delay = "5s"
jitter = true

[tls]
ca_file = ""
server_name = ""
insecure_skip_verify = false
`

const simTemplate = `addr = ":8765"
bones = 8
fps = 30
cors_origins = ["http://localhost:5173"]
`
