package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "bridge":
		return bridgeTemplate, nil
	case "ctl":
		return ctlTemplate, nil
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

const bridgeTemplate = `# shogund bridge daemon configuration
heartbeat = "15s"

[host]
address = "localhost:52800"
connect_timeout = "10s"
handshake_timeout = "5s"
call_timeout = "10s"
# idle-read bound once streaming; "0s" disables it
socket_timeout = "0s"

[monitor]
poll_interval = "1s"
base_delay = "1s"
growth = 1.5
max_delay = "15s"
max_attempts = 10

[osc]
enabled = true
listen_addr = "0.0.0.0:5555"
broadcast_addr = "255.255.255.255:9000"
message_rate = 4.0
message_burst = 8

[feed]
enabled = true
listen_addr = ":8870"
# Control endpoints stay disabled until a token is set.
auth_token = ""
cors_origins = ["http://localhost:3000"]
`

const ctlTemplate = `# shogunctl CLI configuration
[host]
address = "localhost:52800"
connect_timeout = "10s"
handshake_timeout = "5s"
call_timeout = "10s"
# idle-read bound once streaming; "0s" disables it
socket_timeout = "0s"
`
