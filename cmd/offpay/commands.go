package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mmynk/offpay/internal/calculator"
	"github.com/mmynk/offpay/internal/payload"
	"github.com/mmynk/offpay/internal/reconcile"
	"github.com/mmynk/offpay/internal/service"
	"github.com/mmynk/offpay/internal/syncrpc"
)

// Replaced in tests.
var (
	stdout io.Writer = os.Stdout
	stdin  io.Reader = os.Stdin
)

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

// lineReader returns successive lines of stdin, used for values not given
// as flags so secrets stay out of the process list and shell history.
func lineReader() func(prompt string) (string, error) {
	scanner := bufio.NewScanner(stdin)
	scanner.Buffer(make([]byte, 0, 4096), 64*1024)
	return func(prompt string) (string, error) {
		fmt.Fprint(os.Stderr, prompt)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		return strings.TrimSpace(scanner.Text()), nil
	}
}

// readSecret returns value, or the next stdin line when value is empty.
// Missing input yields an empty string so the flow reports it.
func readSecret(next func(string) (string, error), value, prompt string) (string, error) {
	if value != "" {
		return value, nil
	}
	line, err := next(prompt)
	if errors.Is(err, io.EOF) {
		return "", nil
	}
	return line, err
}

func runSetupPIN(ctx context.Context, d *device, args []string) error {
	fs := newFlagSet("setup-pin")
	pinFlag := fs.String("pin", "", "new PIN, 4-8 digits (read from stdin if omitted)")
	confirmFlag := fs.String("confirm", "", "new PIN again (read from stdin if omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	next := lineReader()
	pin, err := readSecret(next, *pinFlag, "New PIN: ")
	if err != nil {
		return err
	}
	confirm, err := readSecret(next, *confirmFlag, "Confirm PIN: ")
	if err != nil {
		return err
	}

	if err := d.pins.Setup(ctx, pin, confirm); err != nil {
		return err
	}
	fmt.Fprintln(stdout, "PIN configured")
	return nil
}

func runClearPIN(ctx context.Context, d *device, args []string) error {
	if err := newFlagSet("clear-pin").Parse(args); err != nil {
		return err
	}
	if err := d.pins.Clear(ctx); err != nil {
		return err
	}
	fmt.Fprintln(stdout, "PIN cleared")
	return nil
}

func runSend(ctx context.Context, d *device, args []string) error {
	fs := newFlagSet("send")
	amount := fs.String("amount", "", "amount to pay")
	pinFlag := fs.String("pin", "", "payment PIN (read from stdin if omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pin, err := readSecret(lineReader(), *pinFlag, "PIN: ")
	if err != nil {
		return err
	}

	form := &service.SendForm{Amount: *amount, PIN: pin}
	result, err := d.send.Submit(ctx, form)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Recorded payment #%d of %s\n", result.Transaction.ID, result.Transaction.Amount)
	fmt.Fprintln(stdout, result.Payload)
	return nil
}

func runReceive(ctx context.Context, d *device, args []string) error {
	fs := newFlagSet("receive")
	raw := fs.String("payload", "", "scanned payload text (read from stdin if omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	text := *raw
	if text == "" {
		line, err := lineReader()("Payload: ")
		if err != nil {
			return fmt.Errorf("failed to read payload: %w", err)
		}
		text = line
	}

	result, err := d.receive.Process(ctx, text)
	if err != nil {
		var perr *payload.ParseError
		if errors.As(err, &perr) {
			return fmt.Errorf("invalid payment data: %w", err)
		}
		return err
	}

	fmt.Fprintf(stdout, "Received %s: %s\n", result.Amount, result.Details)
	return nil
}

func runReissue(ctx context.Context, d *device, args []string) error {
	fs := newFlagSet("reissue")
	id := fs.Int64("id", 0, "ledger id of the sent payment")
	if err := fs.Parse(args); err != nil {
		return err
	}

	result, err := d.send.Reissue(ctx, *id)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, result.Payload)
	return nil
}

func runHistory(ctx context.Context, d *device, args []string) error {
	if err := newFlagSet("history").Parse(args); err != nil {
		return err
	}

	txs, err := d.store.ListTransactions(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tAMOUNT\tTIME\tDETAILS\tSYNCED")
	for _, tx := range txs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%t\n",
			tx.ID, tx.Type, tx.Amount, time.UnixMilli(tx.Timestamp).Format(time.DateTime), tx.Details, tx.IsSynced)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	s := calculator.Summarize(txs)
	fmt.Fprintf(stdout, "\nSent %s (%d)  Received %s (%d)  Net %s  Unsynced %d\n",
		s.TotalSent, s.SentCount, s.TotalReceived, s.ReceivedCount, s.Net, s.UnsyncedCount)
	return nil
}

func runSync(ctx context.Context, d *device, args []string) error {
	if err := newFlagSet("sync").Parse(args); err != nil {
		return err
	}

	tokens, err := d.tokens()
	if err != nil {
		return err
	}

	client := syncrpc.NewClient(http.DefaultClient, d.cfg.SyncURL, tokens, d.cfg.DeviceID)
	r := reconcile.New(d.store, client,
		reconcile.WithSubmitTimeout(d.cfg.SyncTimeout),
		reconcile.WithMetrics(d.metrics),
	)

	report, err := r.SyncAll(ctx)
	if report != nil {
		fmt.Fprintf(stdout, "Synced %d of %d\n", report.Synced, report.Attempted)
		for _, f := range report.Failures {
			fmt.Fprintf(stdout, "  #%d: %v\n", f.TransactionID, f.Err)
		}
	}
	if err != nil {
		return err
	}
	if len(report.Failures) > 0 {
		return fmt.Errorf("%d records left unsynced", len(report.Failures))
	}
	return nil
}

func runToken(ctx context.Context, d *device, args []string) error {
	if err := newFlagSet("token").Parse(args); err != nil {
		return err
	}

	tokens, err := d.tokens()
	if err != nil {
		return err
	}
	token, err := tokens.Generate(d.cfg.DeviceID)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, token)
	return nil
}
