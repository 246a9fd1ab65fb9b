package batcher

import "github.com/rs/zerolog"

// Option configures a Contract, Deployer or Submitter.
type Option func(*config)

// BatchOption configures a Batch.
type BatchOption func(*batchConfig)

// config holds the settings shared by the builders and submitters.
type config struct {
	logger          zerolog.Logger
	metrics         *Metrics
	safetyFactor    SafetyFactor
	toleranceBlocks uint64
	waitFinalized   bool
	maxBatchCalls   int
}

// defaultConfig returns the default configuration.
func defaultConfig() *config {
	return &config{
		logger:          zerolog.Nop(),
		metrics:         NopMetrics(),
		safetyFactor:    DefaultSafetyFactor,
		toleranceBlocks: DefaultToleranceBlocks,
		maxBatchCalls:   DefaultMaxBatchCalls,
	}
}

func newConfig(opts []Option) *config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithLogger sets the structured logger. Default is zerolog.Nop().
func WithLogger(logger zerolog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics sink. A nil value keeps the no-op metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *config) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithSafetyFactor sets the multiplier applied to dry-run weight and
// storage deposit charges. Values below 1 are raised to 1.
// Default is 1.01.
func WithSafetyFactor(f SafetyFactor) Option {
	return func(c *config) {
		if f < 1 {
			f = 1
		}
		c.safetyFactor = f
	}
}

// WithToleranceBlocks sets the number of blocks the maximum block weight is
// divided across when estimating the per-call ceiling. Zero keeps the default of 10.
func WithToleranceBlocks(n uint64) Option {
	return func(c *config) {
		if n > 0 {
			c.toleranceBlocks = n
		}
	}
}

// WithFinalized makes submissions wait for finality instead of block inclusion.
func WithFinalized() Option {
	return func(c *config) {
		c.waitFinalized = true
	}
}

// WithMaxBatchCalls sets the call limit used when the submitter plans a batch.
func WithMaxBatchCalls(max int) Option {
	return func(c *config) {
		if max > 0 {
			c.maxBatchCalls = max
		}
	}
}

// batchConfig holds configuration for Batch.Plan().
type batchConfig struct {
	maxCalls int
}

// defaultBatchConfig returns the default batch configuration.
func defaultBatchConfig() *batchConfig {
	return &batchConfig{
		maxCalls: DefaultMaxBatchCalls,
	}
}

// WithMaxCalls sets a maximum call limit for the batch.
// Default is 256 calls.
func WithMaxCalls(max int) BatchOption {
	return func(c *batchConfig) {
		if max > 0 {
			c.maxCalls = max
		}
	}
}
