package service

// OptimizeProgress is called after each optimizer iteration.
// iteration is the running total; chiSquare is the best value so far.
type OptimizeProgress func(iteration int, chiSquare, temperature float64)

// OptimizeOption configures the behaviour of an Optimize call.
type OptimizeOption func(*OptimizeConfig)

// OptimizeConfig holds the resolved configuration for an Optimize call.
type OptimizeConfig struct {
	progress OptimizeProgress
	sink     ResultSink
	seed     uint64
	seedSet  bool
}

// NewOptimizeConfig applies all options and returns the resolved config.
func NewOptimizeConfig(opts ...OptimizeOption) OptimizeConfig {
	var cfg OptimizeConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Progress returns the progress callback, or nil if none was set.
func (c OptimizeConfig) Progress() OptimizeProgress { return c.progress }

// Sink returns the result sink, or nil if none was set.
func (c OptimizeConfig) Sink() ResultSink { return c.sink }

// Seed returns the PRNG seed override and whether one was set.
func (c OptimizeConfig) Seed() (uint64, bool) { return c.seed, c.seedSet }

// WithProgress sets a callback invoked after each iteration.
func WithProgress(fn OptimizeProgress) OptimizeOption {
	return func(c *OptimizeConfig) {
		c.progress = fn
	}
}

// WithSink appends the optimized model to sink when the run completes.
func WithSink(sink ResultSink) OptimizeOption {
	return func(c *OptimizeConfig) {
		c.sink = sink
	}
}

// WithSeed overrides the optimizer's PRNG seed for one call.
func WithSeed(seed uint64) OptimizeOption {
	return func(c *OptimizeConfig) {
		c.seed = seed
		c.seedSet = true
	}
}
