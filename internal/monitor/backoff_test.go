package monitor

import (
	"math/rand"
	"testing"
	"time"

	"github.com/danmuck/shogunctl/internal/testutil/testlog"
)

func TestNextDelayDeterministicNoJitter(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		Base:     time.Second,
		Growth:   1.5,
		MaxDelay: 15 * time.Second,
	}
	want := []time.Duration{
		1000 * time.Millisecond,
		1500 * time.Millisecond,
		2250 * time.Millisecond,
		3375 * time.Millisecond,
		5062500 * time.Microsecond,
	}
	for i, w := range want {
		if got := NextDelay(cfg, i+1, nil); got != w {
			t.Fatalf("attempt%d got=%v want=%v", i+1, got, w)
		}
	}
	if got := NextDelay(cfg, 12, nil); got != 15*time.Second {
		t.Fatalf("attempt12 got=%v want cap", got)
	}
}

func TestNextDelayJitterRange(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		Base:     time.Second,
		Growth:   1.5,
		MaxDelay: 15 * time.Second,
		Jitter:   true,
	}
	rng := rand.New(rand.NewSource(7))
	got := NextDelay(cfg, 1, rng)
	if got < 500*time.Millisecond || got > 1500*time.Millisecond {
		t.Fatalf("jittered attempt1 out of range got=%v", got)
	}
	if got := NextDelay(cfg, 1, nil); got != 500*time.Millisecond {
		t.Fatalf("nil rng jitter got=%v", got)
	}
}

func TestReconnectDelayCooldownAfterBudget(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.Client.Address = "127.0.0.1:1"
	cfg.MaxAttempts = 3
	m, err := New(cfg)
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	if got := m.reconnectDelay(3); got != NextDelay(cfg.Backoff, 3, nil) {
		t.Fatalf("attempt3 got=%v", got)
	}
	if got := m.reconnectDelay(4); got != cfg.Backoff.MaxDelay {
		t.Fatalf("attempt4 got=%v want steady cooldown", got)
	}
	if got := m.reconnectDelay(40); got != cfg.Backoff.MaxDelay {
		t.Fatalf("attempt40 got=%v want steady cooldown", got)
	}
}
