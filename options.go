package linefit

import (
	"io"
	"log/slog"

	"github.com/helixml/linefit/domain/atomic"
	"github.com/helixml/linefit/internal/config"
)

// clientConfig holds configuration for Client construction.
// Use newClientConfig() to create with defaults from internal/config.
type clientConfig struct {
	app     config.AppConfig
	table   *atomic.Table
	logger  *slog.Logger
	closers []io.Closer
}

// newClientConfig creates a clientConfig with defaults from internal/config.
func newClientConfig() *clientConfig {
	return &clientConfig{
		app: config.NewAppConfig(),
	}
}

// Option configures the Client.
type Option func(*clientConfig)

// WithConfig replaces the whole application configuration, typically one
// loaded with config.LoadConfig.
func WithConfig(cfg config.AppConfig) Option {
	return func(c *clientConfig) {
		c.app = cfg
	}
}

// WithSQLite stores fits in a SQLite database at path.
func WithSQLite(path string) Option {
	return func(c *clientConfig) {
		c.app = c.app.Apply(config.WithDBURL("sqlite:///" + path))
	}
}

// WithPostgres stores fits in PostgreSQL.
func WithPostgres(dsn string) Option {
	return func(c *clientConfig) {
		c.app = c.app.Apply(config.WithDBURL(dsn))
	}
}

// WithAtomFile sets the atomic line list to load.
func WithAtomFile(path string) Option {
	return func(c *clientConfig) {
		c.app = c.app.Apply(config.WithAtomFile(path))
	}
}

// WithAtomicTable uses an already loaded atomic table instead of reading
// the atom file.
func WithAtomicTable(t *atomic.Table) Option {
	return func(c *clientConfig) {
		c.table = t
	}
}

// WithWorkerCount sets the number of sweep workers.
// Defaults to one per CPU. Values < 0 are ignored.
func WithWorkerCount(n int) Option {
	return func(c *clientConfig) {
		c.app = c.app.Apply(config.WithWorkerCount(n))
	}
}

// WithInstrument sets the spectrograph line-spread function.
func WithInstrument(i config.InstrumentConfig) Option {
	return func(c *clientConfig) {
		c.app = c.app.Apply(config.WithInstrument(i))
	}
}

// WithAnneal sets the annealing optimizer configuration.
func WithAnneal(a config.AnnealConfig) Option {
	return func(c *clientConfig) {
		c.app = c.app.Apply(config.WithAnneal(a))
	}
}

// WithExternal configures the external optimizer process.
func WithExternal(e config.ExternalConfig) Option {
	return func(c *clientConfig) {
		c.app = c.app.Apply(config.WithExternal(e))
	}
}

// WithMetricsAddr serves /metrics and /healthz on addr while the client is open.
func WithMetricsAddr(addr string) Option {
	return func(c *clientConfig) {
		c.app = c.app.Apply(config.WithMetricsAddr(addr))
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}

// WithCloser registers a resource to be closed when the Client shuts down.
func WithCloser(c io.Closer) Option {
	return func(cfg *clientConfig) {
		cfg.closers = append(cfg.closers, c)
	}
}
