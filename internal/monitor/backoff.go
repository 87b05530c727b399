package monitor

import (
	"math"
	"math/rand"
	"time"
)

// BackoffConfig shapes the reconnect delay schedule.
type BackoffConfig struct {
	Base     time.Duration
	Growth   float64
	MaxDelay time.Duration
	Jitter   bool
}

// NextDelay returns the reconnect delay for attempt n (1-based):
// min(base * growth^(n-1), max), optionally jittered into 0.5x..1.5x.
func NextDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if cfg.Base <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	growth := cfg.Growth
	if growth < 1.0 {
		growth = 1.0
	}
	delay := float64(cfg.Base) * math.Pow(growth, float64(attempt-1))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if cfg.Jitter {
		f := 0.5
		if rng != nil {
			f = 0.5 + rng.Float64()
		}
		delay *= f
	}
	return time.Duration(delay)
}
