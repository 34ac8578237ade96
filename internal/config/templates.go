package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "server":
		return serverTemplate, nil
	case "client":
		return clientTemplate, nil
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

const serverTemplate = `name = "wspacketsd"
addr = ":9300"
path = "/ws"
cors_origins = ["http://localhost:3000"]
read_buffer_size = 4096
write_buffer_size = 4096
write_timeout = "10s"
fragment_size = 0
initial_accumulator = 32
broadcast_workers = 16
metrics = true
`

const clientTemplate = `url = "ws://127.0.0.1:9300/ws"
from = "anon"
dial_attempts = 5
fragment_size = 0
`
