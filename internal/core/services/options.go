package services

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ewilliams-labs/songform/internal/core/ports"
	"github.com/ewilliams-labs/songform/internal/metrics"
)

const (
	DefaultAnalysisTimeout = 120 * time.Second
	DefaultMaxUploadBytes  = 50 << 20

	blobCleanupTimeout = 10 * time.Second
)

type settings struct {
	now             func() time.Time
	newID           func() string
	logger          *slog.Logger
	metrics         *metrics.Metrics
	events          ports.EventDispatcher
	analysisTimeout time.Duration
	maxUploadBytes  int64
}

// Option customizes a service.
type Option func(*settings)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// WithIDGenerator overrides the uuid generator.
func WithIDGenerator(newID func() string) Option {
	return func(s *settings) { s.newID = newID }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *settings) { s.metrics = m }
}

// WithEvents sets where change notifications are queued.
func WithEvents(d ports.EventDispatcher) Option {
	return func(s *settings) { s.events = d }
}

// WithAnalysisTimeout bounds a single call to the analysis provider.
func WithAnalysisTimeout(d time.Duration) Option {
	return func(s *settings) { s.analysisTimeout = d }
}

// WithMaxUploadBytes caps the accepted audio size.
func WithMaxUploadBytes(n int64) Option {
	return func(s *settings) { s.maxUploadBytes = n }
}

func newSettings(component string, opts []Option) settings {
	s := settings{
		now:             func() time.Time { return time.Now().UTC() },
		newID:           uuid.NewString,
		logger:          slog.Default(),
		events:          discardEvents{},
		analysisTimeout: DefaultAnalysisTimeout,
		maxUploadBytes:  DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.events == nil {
		s.events = discardEvents{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", component)

	// Stored timestamps match the coarsest driver precision (postgres
	// timestamptz) so every repository round-trips them exactly.
	clock := s.now
	s.now = func() time.Time { return clock().Truncate(time.Microsecond) }
	return s
}

type discardEvents struct{}

func (discardEvents) Dispatch(ports.Event) {}
