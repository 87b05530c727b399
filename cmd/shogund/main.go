package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danmuck/shogunctl/internal/bridge"
	"github.com/danmuck/shogunctl/internal/config"
	"github.com/danmuck/shogunctl/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "path to bridge config TOML (defaults apply when omitted)")
	logLevel := flag.String("log-level", "", "override log level: trace|debug|info|warn|error")
	flag.Parse()

	logging.ConfigureRuntime()
	if *logLevel != "" && !logging.SetLevel(*logLevel) {
		fmt.Fprintf(os.Stderr, "shogund: unknown log level %q\n", *logLevel)
		os.Exit(2)
	}

	cfg := config.DefaultBridgeConfig()
	if *configPath != "" {
		loaded, err := config.LoadBridgeConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "shogund: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	svc, err := bridge.NewService(config.BridgeServiceConfig(cfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "shogund: %v\n", err)
		os.Exit(1)
	}
	if err := svc.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "shogund: %v\n", err)
		os.Exit(1)
	}
}
