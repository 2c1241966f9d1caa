// Command syncserver is the reference acknowledgment service that devices
// sync their ledgers against.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/offpay/internal/auth"
	"github.com/mmynk/offpay/internal/config"
	"github.com/mmynk/offpay/internal/metrics"
	"github.com/mmynk/offpay/internal/middleware"
	"github.com/mmynk/offpay/internal/storage/sqlite"
	"github.com/mmynk/offpay/internal/syncrpc"
	"github.com/mmynk/offpay/pkg/logging"
)

func main() {
	configFile := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel)

	if cfg.DeviceSecret == "" {
		slog.Error("device_secret must be set to verify device tokens")
		os.Exit(1)
	}

	// Initialize SQLite storage
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", cfg.DBPath)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	jwtManager := auth.NewJWTManager(cfg.DeviceSecret, cfg.TokenTTL)
	handler := newHandler(syncrpc.NewSyncService(store, metrics.New(reg)), jwtManager, reg)

	srv := &http.Server{
		Addr: cfg.ListenAddr,
		// Wrap with h2c for HTTP/2 without TLS (required for Connect)
		Handler:           h2c.NewHandler(loggingMiddleware(handler), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Shutdown failed", "error", err)
		}
	}()

	slog.Info("Sync server starting", "address", cfg.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Sync server stopped")
}

// newHandler mounts the sync service, metrics and health check.
func newHandler(svc *syncrpc.SyncService, jwtManager *auth.JWTManager, reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()

	path, syncHandler := syncrpc.NewHandler(svc,
		connect.WithInterceptors(middleware.LoggingInterceptor(), middleware.RequireAuth(jwtManager)),
	)
	mux.Handle(path, syncHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	return mux
}

// loggingMiddleware logs non-RPC requests. RPCs are logged by the Connect
// interceptor.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)

		if r.URL.Path == syncrpc.SubmitProcedure {
			return
		}
		slog.Debug("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
