package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mmynk/offpay/internal/auth"
	"github.com/mmynk/offpay/internal/config"
	"github.com/mmynk/offpay/internal/metrics"
	"github.com/mmynk/offpay/internal/payload"
	"github.com/mmynk/offpay/internal/service"
	"github.com/mmynk/offpay/internal/storage/sqlite"
	"github.com/mmynk/offpay/internal/vault"
)

// device wires the local store, vault and flows for one CLI invocation.
type device struct {
	cfg      *config.Config
	store    *sqlite.SQLiteStore
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	pins    *service.PINSetupService
	send    *service.SendService
	receive *service.ReceiveService
}

func openDevice(ctx context.Context, cfg *config.Config) (*device, error) {
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	opts := []service.Option{service.WithMetrics(m)}
	if cfg.PayloadSecret != "" {
		sealer, err := payload.NewSealer([]byte(cfg.PayloadSecret))
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to create payload sealer: %w", err)
		}
		opts = append(opts, service.WithSealer(sealer))
	}

	// A vault that fails to open only disables PIN-gated commands.
	var pins service.PINStore
	v, err := vault.Open(ctx, store, cfg.KeyFile, vault.Options{HashCost: cfg.PINHashCost})
	if err != nil {
		slog.Error("Credential vault unavailable", "key_file", cfg.KeyFile, "error", err)
		pins = service.UnavailableVault(err)
	} else {
		pins = v
	}

	return &device{
		cfg:      cfg,
		store:    store,
		registry: registry,
		metrics:  m,
		pins:    service.NewPINSetupService(pins, opts...),
		send:    service.NewSendService(pins, store, opts...),
		receive: service.NewReceiveService(store, opts...),
	}, nil
}

// writeMetrics exports the counters of this invocation to the configured
// textfile. It is a no-op when no file is configured.
func (d *device) writeMetrics() error {
	if d.cfg.MetricsFile == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(d.cfg.MetricsFile, d.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

func (d *device) Close() error {
	return d.store.Close()
}

func (d *device) tokens() (*auth.JWTManager, error) {
	if d.cfg.DeviceID == "" || d.cfg.DeviceSecret == "" {
		return nil, fmt.Errorf("device_id and device_secret must be configured")
	}
	return auth.NewJWTManager(d.cfg.DeviceSecret, d.cfg.TokenTTL), nil
}
