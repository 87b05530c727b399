package config

import (
	"github.com/danmuck/shogunctl/internal/bridge"
	"github.com/danmuck/shogunctl/internal/client"
	"github.com/danmuck/shogunctl/internal/feed"
	"github.com/danmuck/shogunctl/internal/monitor"
	"github.com/danmuck/shogunctl/internal/oscbridge"
)

// ClientConfig converts the host section into a terminal client config.
func ClientConfig(cfg HostConfig) client.Config {
	return client.Config{
		Address:          cfg.Address,
		ConnectTimeout:   cfg.ConnectTimeout,
		HandshakeTimeout: cfg.HandshakeTimeout,
		CallTimeout:      cfg.CallTimeout,
		SocketTimeout:    cfg.SocketTimeout,
	}
}

// BridgeServiceConfig assembles the daemon config from the loaded file.
func BridgeServiceConfig(cfg BridgeConfig) bridge.Config {
	return bridge.Config{
		Monitor: monitor.Config{
			Client:       ClientConfig(cfg.Host),
			PollInterval: cfg.Monitor.PollInterval,
			Backoff: monitor.BackoffConfig{
				Base:     cfg.Monitor.BaseDelay,
				Growth:   cfg.Monitor.Growth,
				MaxDelay: cfg.Monitor.MaxDelay,
			},
			MaxAttempts: cfg.Monitor.MaxAttempts,
		},
		OSC: oscbridge.Config{
			ListenAddr:    cfg.OSC.ListenAddr,
			BroadcastAddr: cfg.OSC.BroadcastAddr,
			MessageRate:   cfg.OSC.MessageRate,
			MessageBurst:  cfg.OSC.MessageBurst,
		},
		OSCEnabled: cfg.OSC.Enabled,
		Feed: feed.Config{
			ListenAddr:  cfg.Feed.ListenAddr,
			AuthToken:   cfg.Feed.AuthToken,
			CORSOrigins: cfg.Feed.CORSOrigins,
		},
		FeedEnabled: cfg.Feed.Enabled,
		Heartbeat:   cfg.Heartbeat,
	}
}
