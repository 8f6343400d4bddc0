package transform

import (
	"log/slog"
	"runtime"

	"github.com/google/uuid"
)

// Default settings used when no option overrides them.
const (
	DefaultHistoryLimit = 100
	DefaultCacheSize    = 64
)

type config struct {
	logger       *slog.Logger
	metrics      *Metrics
	workers      int
	historyLimit int
	cacheSize    int
	newID        func() ID
}

func defaultConfig() config {
	return config{
		workers:      runtime.NumCPU(),
		historyLimit: DefaultHistoryLimit,
		cacheSize:    DefaultCacheSize,
		newID:        func() ID { return ID(uuid.NewString()) },
	}
}

func newConfig(opts []Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = Logger()
	}
	if cfg.metrics == nil {
		cfg.metrics = NewMetrics(nil)
	}
	if cfg.workers <= 0 {
		cfg.workers = 1
	}
	return cfg
}

// Option configures a Pipeline or a Session.
type Option func(*config)

// WithLogger sets the logger. Without it the package logger is used.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithMetrics sets the collectors updated while rendering and editing.
func WithMetrics(m *Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// WithWorkers bounds how many children of one group are computed concurrently.
func WithWorkers(n int) Option {
	return func(c *config) { c.workers = n }
}

// WithHistoryLimit caps the number of undo steps kept. Zero means unlimited.
func WithHistoryLimit(n int) Option {
	return func(c *config) { c.historyLimit = n }
}

// WithOutputCache sets how many kernel results are memoised. Zero disables the memo.
func WithOutputCache(n int) Option {
	return func(c *config) { c.cacheSize = n }
}

// WithIDGenerator replaces the uuid based id generator.
func WithIDGenerator(fn func() ID) Option {
	return func(c *config) { c.newID = fn }
}
