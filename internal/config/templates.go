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
	case "tool":
		return toolTemplate, nil
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

const clientTemplate = `name = "amqpctl"
address = "localhost:5672"
max_connect_attempts = 0

[session]
connect_timeout = "5s"
handshake_timeout = "5s"
write_timeout = "15s"
heartbeat = "10s"
frame_max = 131072

[session.queue]
max_pending = 0
overflow = "unbounded"

[session.backoff]
initial = "250ms"
max = "5s"
multiplier = 2.0
jitter = true
`

const toolTemplate = `client_config = "client.toml"
admin_addr = ":9200"
heartbeat = "10s"
max_connect_attempts = 0
cors_origins = ["http://localhost:3000"]
`
