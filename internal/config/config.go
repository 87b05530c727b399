package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// HostConfig locates the terminal and bounds its per-connection timeouts.
// A timeout set to "0s" disables that bound; socket_timeout (idle reads)
// is off unless configured.
type HostConfig struct {
	Address          string
	ConnectTimeout   time.Duration
	HandshakeTimeout time.Duration
	CallTimeout      time.Duration
	SocketTimeout    time.Duration
}

// MonitorConfig tunes the reconnect loop and watched-field polling.
type MonitorConfig struct {
	PollInterval time.Duration
	BaseDelay    time.Duration
	Growth       float64
	MaxDelay     time.Duration
	MaxAttempts  int
}

// OSCConfig tunes the OSC control and broadcast surface.
type OSCConfig struct {
	Enabled       bool
	ListenAddr    string
	BroadcastAddr string
	MessageRate   float64
	MessageBurst  int
}

// FeedConfig tunes the HTTP status feed.
type FeedConfig struct {
	Enabled     bool
	ListenAddr  string
	AuthToken   string
	CORSOrigins []string
}

// BridgeConfig is the daemon's full configuration.
type BridgeConfig struct {
	Host      HostConfig
	Monitor   MonitorConfig
	OSC       OSCConfig
	Feed      FeedConfig
	Heartbeat time.Duration
}

// CtlConfig is the one-shot CLI's configuration.
type CtlConfig struct {
	Host HostConfig
}

func DefaultHostConfig() HostConfig {
	return HostConfig{
		Address:          "localhost:52800",
		ConnectTimeout:   10 * time.Second,
		HandshakeTimeout: 5 * time.Second,
		CallTimeout:      10 * time.Second,
	}
}

func DefaultBridgeConfig() BridgeConfig {
	return BridgeConfig{
		Host: DefaultHostConfig(),
		Monitor: MonitorConfig{
			PollInterval: time.Second,
			BaseDelay:    time.Second,
			Growth:       1.5,
			MaxDelay:     15 * time.Second,
			MaxAttempts:  10,
		},
		OSC: OSCConfig{
			Enabled:       true,
			ListenAddr:    "0.0.0.0:5555",
			BroadcastAddr: "255.255.255.255:9000",
			MessageRate:   4,
			MessageBurst:  8,
		},
		Feed: FeedConfig{
			Enabled:    true,
			ListenAddr: ":8870",
		},
		Heartbeat: 15 * time.Second,
	}
}

func DefaultCtlConfig() CtlConfig {
	return CtlConfig{Host: DefaultHostConfig()}
}

// rawBridgeConfig mirrors the TOML file shape; durations ride as strings.
type rawBridgeConfig struct {
	Heartbeat string        `toml:"heartbeat"`
	Host      rawHostConfig `toml:"host"`
	Monitor   rawMonitorCfg `toml:"monitor"`
	OSC       rawOSCConfig  `toml:"osc"`
	Feed      rawFeedConfig `toml:"feed"`
}

type rawHostConfig struct {
	Address          string `toml:"address"`
	ConnectTimeout   string `toml:"connect_timeout"`
	HandshakeTimeout string `toml:"handshake_timeout"`
	CallTimeout      string `toml:"call_timeout"`
	SocketTimeout    string `toml:"socket_timeout"`
}

type rawMonitorCfg struct {
	PollInterval string  `toml:"poll_interval"`
	BaseDelay    string  `toml:"base_delay"`
	Growth       float64 `toml:"growth"`
	MaxDelay     string  `toml:"max_delay"`
	MaxAttempts  int     `toml:"max_attempts"`
}

type rawOSCConfig struct {
	Enabled       bool    `toml:"enabled"`
	ListenAddr    string  `toml:"listen_addr"`
	BroadcastAddr string  `toml:"broadcast_addr"`
	MessageRate   float64 `toml:"message_rate"`
	MessageBurst  int     `toml:"message_burst"`
}

type rawFeedConfig struct {
	Enabled     bool     `toml:"enabled"`
	ListenAddr  string   `toml:"listen_addr"`
	AuthToken   string   `toml:"auth_token"`
	CORSOrigins []string `toml:"cors_origins"`
}

type rawCtlConfig struct {
	Host rawHostConfig `toml:"host"`
}

// LoadBridgeConfig reads a TOML file over the defaults; absent keys keep
// their default values.
func LoadBridgeConfig(path string) (BridgeConfig, error) {
	cfg := DefaultBridgeConfig()

	var raw rawBridgeConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return BridgeConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}

	if err := applyHost(&cfg.Host, meta, raw.Host); err != nil {
		return BridgeConfig{}, err
	}
	if err := applyDuration(&cfg.Heartbeat, meta, raw.Heartbeat, "heartbeat"); err != nil {
		return BridgeConfig{}, err
	}
	if err := applyDuration(&cfg.Monitor.PollInterval, meta, raw.Monitor.PollInterval, "monitor", "poll_interval"); err != nil {
		return BridgeConfig{}, err
	}
	if err := applyDuration(&cfg.Monitor.BaseDelay, meta, raw.Monitor.BaseDelay, "monitor", "base_delay"); err != nil {
		return BridgeConfig{}, err
	}
	if err := applyDuration(&cfg.Monitor.MaxDelay, meta, raw.Monitor.MaxDelay, "monitor", "max_delay"); err != nil {
		return BridgeConfig{}, err
	}
	if meta.IsDefined("monitor", "growth") {
		cfg.Monitor.Growth = raw.Monitor.Growth
	}
	if meta.IsDefined("monitor", "max_attempts") {
		cfg.Monitor.MaxAttempts = raw.Monitor.MaxAttempts
	}

	if meta.IsDefined("osc", "enabled") {
		cfg.OSC.Enabled = raw.OSC.Enabled
	}
	if meta.IsDefined("osc", "listen_addr") {
		cfg.OSC.ListenAddr = strings.TrimSpace(raw.OSC.ListenAddr)
	}
	if meta.IsDefined("osc", "broadcast_addr") {
		cfg.OSC.BroadcastAddr = strings.TrimSpace(raw.OSC.BroadcastAddr)
	}
	if meta.IsDefined("osc", "message_rate") {
		cfg.OSC.MessageRate = raw.OSC.MessageRate
	}
	if meta.IsDefined("osc", "message_burst") {
		cfg.OSC.MessageBurst = raw.OSC.MessageBurst
	}

	if meta.IsDefined("feed", "enabled") {
		cfg.Feed.Enabled = raw.Feed.Enabled
	}
	if meta.IsDefined("feed", "listen_addr") {
		cfg.Feed.ListenAddr = strings.TrimSpace(raw.Feed.ListenAddr)
	}
	if meta.IsDefined("feed", "auth_token") {
		cfg.Feed.AuthToken = strings.TrimSpace(raw.Feed.AuthToken)
	}
	if meta.IsDefined("feed", "cors_origins") {
		cfg.Feed.CORSOrigins = raw.Feed.CORSOrigins
	}

	if err := ValidateBridgeConfig(cfg); err != nil {
		return BridgeConfig{}, err
	}
	return cfg, nil
}

// LoadCtlConfig reads the CLI config file over the defaults.
func LoadCtlConfig(path string) (CtlConfig, error) {
	cfg := DefaultCtlConfig()

	var raw rawCtlConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return CtlConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := applyHost(&cfg.Host, meta, raw.Host); err != nil {
		return CtlConfig{}, err
	}
	if err := ValidateHostConfig(cfg.Host); err != nil {
		return CtlConfig{}, err
	}
	return cfg, nil
}

func applyHost(dst *HostConfig, meta toml.MetaData, raw rawHostConfig) error {
	if meta.IsDefined("host", "address") {
		dst.Address = strings.TrimSpace(raw.Address)
	}
	if err := applyDuration(&dst.ConnectTimeout, meta, raw.ConnectTimeout, "host", "connect_timeout"); err != nil {
		return err
	}
	if err := applyDuration(&dst.HandshakeTimeout, meta, raw.HandshakeTimeout, "host", "handshake_timeout"); err != nil {
		return err
	}
	if err := applyDuration(&dst.CallTimeout, meta, raw.CallTimeout, "host", "call_timeout"); err != nil {
		return err
	}
	return applyDuration(&dst.SocketTimeout, meta, raw.SocketTimeout, "host", "socket_timeout")
}

func applyDuration(dst *time.Duration, meta toml.MetaData, raw string, key ...string) error {
	if !meta.IsDefined(key...) {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("config parse %s: %w", strings.Join(key, "."), err)
	}
	*dst = d
	return nil
}

func ValidateBridgeConfig(cfg BridgeConfig) error {
	if err := ValidateHostConfig(cfg.Host); err != nil {
		return err
	}
	if cfg.Monitor.PollInterval <= 0 {
		return fmt.Errorf("bridge config: poll_interval must be positive")
	}
	if cfg.Monitor.BaseDelay <= 0 || cfg.Monitor.MaxDelay < cfg.Monitor.BaseDelay {
		return fmt.Errorf("bridge config: backoff delays invalid (base=%s max=%s)",
			cfg.Monitor.BaseDelay, cfg.Monitor.MaxDelay)
	}
	if cfg.Monitor.Growth < 1.0 {
		return fmt.Errorf("bridge config: growth must be >= 1.0")
	}
	if cfg.OSC.Enabled {
		if err := validateHostPort("osc.listen_addr", cfg.OSC.ListenAddr); err != nil {
			return err
		}
		if err := validateHostPort("osc.broadcast_addr", cfg.OSC.BroadcastAddr); err != nil {
			return err
		}
	}
	if cfg.Feed.Enabled && strings.TrimSpace(cfg.Feed.ListenAddr) == "" {
		return fmt.Errorf("bridge config: feed.listen_addr required when feed enabled")
	}
	return nil
}

func ValidateHostConfig(cfg HostConfig) error {
	if strings.TrimSpace(cfg.Address) == "" {
		return fmt.Errorf("config: host.address required")
	}
	if cfg.ConnectTimeout < 0 || cfg.HandshakeTimeout < 0 ||
		cfg.CallTimeout < 0 || cfg.SocketTimeout < 0 {
		return fmt.Errorf("config: host timeouts must not be negative")
	}
	return validateHostPort("host.address", cfg.Address)
}

func validateHostPort(key, addr string) error {
	if _, _, err := net.SplitHostPort(strings.TrimSpace(addr)); err != nil {
		return fmt.Errorf("config: %s %q: %w", key, addr, err)
	}
	return nil
}
