// Command offpay is the device-side CLI: it provisions the PIN, creates and
// scans payment payloads, and syncs the local ledger with the sync server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mmynk/offpay/internal/config"
	"github.com/mmynk/offpay/pkg/logging"
)

const usage = `usage: offpay [-config file] <command> [flags]

commands:
  setup-pin   provision the payment PIN
  clear-pin   remove the payment PIN
  send        authorize a payment and print its payload
  receive     record a payment from a scanned payload
  reissue     print the payload of an unsynced sent payment again
  history     list ledger records and totals
  sync        submit unsynced records to the sync server
  token       print a device token for the sync server
`

type command func(ctx context.Context, d *device, args []string) error

var commands = map[string]command{
	"setup-pin": runSetupPIN,
	"clear-pin": runClearPIN,
	"send":      runSend,
	"receive":   runReceive,
	"reissue":   runReissue,
	"history":   runHistory,
	"sync":      runSync,
	"token":     runToken,
}

func main() {
	os.Exit(run())
}

func run() int {
	global := flag.NewFlagSet("offpay", flag.ContinueOnError)
	configFile := global.String("config", "", "path to config file (default: ./offpay.yaml if present)")
	global.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	if err := global.Parse(os.Args[1:]); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		global.Usage()
		return 2
	}

	name, args := global.Arg(0), global.Args()[1:]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
		global.Usage()
		return 2
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "offpay: %v\n", err)
		return 1
	}
	logging.Setup(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := openDevice(ctx, cfg)
	if err != nil {
		slog.Error("Failed to open device storage", "database", cfg.DBPath, "error", err)
		return 1
	}
	defer d.Close()

	err = cmd(ctx, d, args)
	if werr := d.writeMetrics(); werr != nil {
		slog.Warn("Metrics export failed", "file", cfg.MetricsFile, "error", werr)
	}
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 2
		}
		fmt.Fprintf(os.Stderr, "offpay %s: %v\n", name, err)
		return 1
	}
	return 0
}
