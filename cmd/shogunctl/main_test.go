package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/shogunctl/internal/monitor"
)

func TestHostConfigFlagOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctl.toml")
	body := "[host]\naddress = \"file-host:52800\"\ncall_timeout = \"4s\"\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := hostConfig(path, "flag-host:52800", 2*time.Second)
	if err != nil {
		t.Fatalf("hostConfig: %v", err)
	}
	if cfg.Address != "flag-host:52800" {
		t.Fatalf("address got=%q", cfg.Address)
	}
	if cfg.CallTimeout != 2*time.Second {
		t.Fatalf("call timeout got=%s", cfg.CallTimeout)
	}
}

func TestHostConfigDefaults(t *testing.T) {
	cfg, err := hostConfig("", "", 0)
	if err != nil {
		t.Fatalf("hostConfig: %v", err)
	}
	if cfg.Address != "localhost:52800" {
		t.Fatalf("address got=%q", cfg.Address)
	}
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run([]string{"-addr", "localhost:52800", "shimmer"}, &out, &errOut); code != 2 {
		t.Fatalf("exit code got=%d want=2", code)
	}
	if !strings.Contains(errOut.String(), "unknown command") {
		t.Fatalf("stderr got=%q", errOut.String())
	}
}

func TestRunWithoutCommandPrintsUsage(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run(nil, &out, &errOut); code != 2 {
		t.Fatalf("exit code got=%d want=2", code)
	}
	if !strings.Contains(errOut.String(), "usage: shogunctl") {
		t.Fatalf("stderr got=%q", errOut.String())
	}
}

func TestFormatEvent(t *testing.T) {
	at := time.Date(2025, 3, 9, 10, 30, 0, 0, time.UTC)
	cases := []struct {
		ev   monitor.Event
		want string
	}{
		{monitor.Event{Kind: monitor.EventConnectionUp, Value: "1.12.2", At: at}, "10:30:00 connected version=1.12.2"},
		{monitor.Event{Kind: monitor.EventConnectionDown, Reason: "read: EOF", At: at}, "10:30:00 disconnected reason=read: EOF"},
		{monitor.Event{Kind: monitor.EventRecordingStarted, At: at}, "10:30:00 recording started"},
		{monitor.Event{Kind: monitor.EventFieldChanged, Field: "capture_name", Value: "take-02", At: at}, `10:30:00 capture_name="take-02"`},
	}
	for _, tc := range cases {
		if got := formatEvent(tc.ev); got != tc.want {
			t.Fatalf("formatEvent got=%q want=%q", got, tc.want)
		}
	}
}
