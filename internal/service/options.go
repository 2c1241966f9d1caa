package service

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/offpay/internal/metrics"
	"github.com/mmynk/offpay/internal/payload"
)

// Option configures a flow service.
type Option func(*options)

type options struct {
	sealer  *payload.Sealer
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
}

func buildOptions(opts []Option) options {
	o := options{
		logger: slog.Default(),
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithSealer encrypts outgoing payloads and enables opening sealed ones.
func WithSealer(s *payload.Sealer) Option {
	return func(o *options) { o.sealer = s }
}

// WithMetrics records flow outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithLogger replaces slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDGenerator replaces the UUID correlation id generator.
func WithIDGenerator(newID func() string) Option {
	return func(o *options) { o.newID = newID }
}
