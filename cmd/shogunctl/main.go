package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danmuck/shogunctl/internal/client"
	"github.com/danmuck/shogunctl/internal/config"
	"github.com/danmuck/shogunctl/internal/logging"
	"github.com/danmuck/shogunctl/internal/monitor"
	"github.com/danmuck/shogunctl/internal/shogun"
)

const usage = `usage: shogunctl [flags] <command> [args]

commands:
  status              terminal and capture state summary
  appinfo             application name, version, changeset
  start [-name NAME]  start a capture, optionally setting its name first
  stop [-id ID]       stop a capture (id 0 stops the active one)
  name [VALUE]        get or set the capture name
  description [VALUE] get or set the capture description
  folder [VALUE]      get or set the capture folder
  raw -cmd NAME [-args JSON]  issue a raw command with a JSON argument list
  watch               stream connection and capture-change events

flags:
  -config PATH   ctl config TOML
  -addr ADDR     terminal host:port (overrides config)
  -timeout DUR   per-command timeout (overrides config)
  -log-level L   trace|debug|info|warn|error
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out, errOut io.Writer) int {
	flags := flag.NewFlagSet("shogunctl", flag.ContinueOnError)
	flags.SetOutput(errOut)
	configPath := flags.String("config", "", "ctl config TOML")
	addr := flags.String("addr", "", "terminal host:port")
	timeout := flags.Duration("timeout", 0, "per-command timeout")
	logLevel := flags.String("log-level", "warn", "log level")
	flags.Usage = func() { fmt.Fprint(errOut, usage) }
	if err := flags.Parse(args); err != nil {
		return 2
	}

	logging.ConfigureRuntime()
	logging.SetLevel(*logLevel)

	if flags.NArg() == 0 {
		fmt.Fprint(errOut, usage)
		return 2
	}

	cfg, err := hostConfig(*configPath, *addr, *timeout)
	if err != nil {
		fmt.Fprintf(errOut, "shogunctl: %v\n", err)
		return 1
	}

	command, rest := flags.Arg(0), flags.Args()[1:]
	if command == "watch" {
		return runWatch(cfg, out, errOut)
	}
	return runCommand(command, rest, cfg, out, errOut)
}

// hostConfig layers config file, then flags, over the defaults.
func hostConfig(path, addr string, timeout time.Duration) (client.Config, error) {
	host := config.DefaultHostConfig()
	if path != "" {
		loaded, err := config.LoadCtlConfig(path)
		if err != nil {
			return client.Config{}, err
		}
		host = loaded.Host
	}
	if addr != "" {
		host.Address = addr
	}
	if timeout > 0 {
		host.CallTimeout = timeout
	}
	return config.ClientConfig(host), nil
}

var commands = map[string]bool{
	"status": true, "appinfo": true, "start": true, "stop": true,
	"name": true, "description": true, "folder": true, "raw": true,
}

func runCommand(command string, args []string, cfg client.Config, out, errOut io.Writer) int {
	if !commands[command] {
		fmt.Fprintf(errOut, "shogunctl: unknown command %q\n%s", command, usage)
		return 2
	}
	cli, err := connect(cfg)
	if err != nil {
		fmt.Fprintf(errOut, "shogunctl: %v\n", err)
		return 1
	}
	defer cli.Close()

	capture := shogun.NewCaptureService(cli)
	switch command {
	case "status":
		err = printStatus(out, cli, capture)
	case "appinfo":
		err = printAppInfo(out, cli)
	case "start":
		err = startCapture(out, capture, args, errOut)
	case "stop":
		err = stopCapture(out, capture, args, errOut)
	case "name":
		err = getOrSet(out, args, capture.CaptureName, capture.SetCaptureName)
	case "description":
		err = getOrSet(out, args, capture.CaptureDescription, capture.SetCaptureDescription)
	case "folder":
		err = getOrSet(out, args, capture.CaptureFolder, capture.SetCaptureFolder)
	case "raw":
		err = rawCommand(out, cli, args, errOut)
	}
	if err != nil {
		fmt.Fprintf(errOut, "shogunctl: %v\n", err)
		return 1
	}
	return 0
}

func connect(cfg client.Config) (*client.Client, error) {
	cli, err := client.New(cfg, shogun.NewCatalog())
	if err != nil {
		return nil, err
	}
	ctx := context.Background()
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := cli.Connect(ctx); err != nil {
		return nil, err
	}
	return cli, nil
}

func printStatus(out io.Writer, cli *client.Client, capture *shogun.CaptureService) error {
	info, err := shogun.NewTerminalService(cli).AppInfo()
	if err != nil {
		return err
	}
	name, err := capture.CaptureName()
	if err != nil {
		return err
	}
	folder, err := capture.CaptureFolder()
	if err != nil {
		return err
	}
	state, err := capture.LatestCaptureState()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "host       %s (%s %s, protocol %s)\n",
		cli.Config().Address, info.Name, info.Version, cli.Version())
	fmt.Fprintf(out, "capture    %q in %q\n", name, folder)
	fmt.Fprintf(out, "state      %s\n", state)
	return nil
}

func printAppInfo(out io.Writer, cli *client.Client) error {
	info, err := shogun.NewTerminalService(cli).AppInfo()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "name      %s\nversion   %s\nchangeset %s\n", info.Name, info.Version, info.Changeset)
	return nil
}

func startCapture(out io.Writer, capture *shogun.CaptureService, args []string, errOut io.Writer) error {
	flags := flag.NewFlagSet("start", flag.ContinueOnError)
	flags.SetOutput(errOut)
	name := flags.String("name", "", "capture name to set before starting")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *name != "" {
		if err := capture.SetCaptureName(*name); err != nil {
			return err
		}
	}
	id, err := capture.StartCapture()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "started capture id=%d\n", id)
	return nil
}

func stopCapture(out io.Writer, capture *shogun.CaptureService, args []string, errOut io.Writer) error {
	flags := flag.NewFlagSet("stop", flag.ContinueOnError)
	flags.SetOutput(errOut)
	id := flags.Uint("id", 0, "capture id (0 stops the active capture)")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if err := capture.StopCapture(uint32(*id)); err != nil {
		return err
	}
	fmt.Fprintf(out, "stopped capture id=%d\n", *id)
	return nil
}

// getOrSet reads the field with no args, writes it with one.
func getOrSet(out io.Writer, args []string, get func() (string, error), set func(string) error) error {
	if len(args) == 0 {
		value, err := get()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, value)
		return nil
	}
	if err := set(args[0]); err != nil {
		return err
	}
	fmt.Fprintln(out, "ok")
	return nil
}

func rawCommand(out io.Writer, cli *client.Client, args []string, errOut io.Writer) error {
	flags := flag.NewFlagSet("raw", flag.ContinueOnError)
	flags.SetOutput(errOut)
	name := flags.String("cmd", "", "command name, e.g. CaptureServices.CaptureName")
	rawArgs := flags.String("args", "[]", "JSON argument list")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *name == "" {
		return fmt.Errorf("raw: -cmd required")
	}
	code, payload, err := cli.CallJSON(*name, []byte(*rawArgs))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "code=%s payload=%s\n", code, payload)
	return nil
}

func runWatch(cfg client.Config, out, errOut io.Writer) int {
	mon, err := monitor.New(monitor.Config{Client: cfg})
	if err != nil {
		fmt.Fprintf(errOut, "shogunctl: %v\n", err)
		return 1
	}
	if err := mon.Start(); err != nil {
		fmt.Fprintf(errOut, "shogunctl: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		mon.Stop()
	}()

	fmt.Fprintf(out, "watching %s (interrupt to stop)\n", cfg.Address)
	for ev := range mon.Events() {
		fmt.Fprintln(out, formatEvent(ev))
	}
	return 0
}

func formatEvent(ev monitor.Event) string {
	stamp := ev.At.Format(time.TimeOnly)
	switch ev.Kind {
	case monitor.EventConnectionUp:
		return fmt.Sprintf("%s connected version=%s", stamp, ev.Value)
	case monitor.EventConnectionDown:
		return fmt.Sprintf("%s disconnected reason=%s", stamp, ev.Reason)
	case monitor.EventRecordingStarted:
		return fmt.Sprintf("%s recording started", stamp)
	case monitor.EventRecordingStopped:
		return fmt.Sprintf("%s recording stopped", stamp)
	default:
		return fmt.Sprintf("%s %s=%q", stamp, ev.Field, ev.Value)
	}
}
