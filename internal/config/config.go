// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultLogLevel           = "INFO"
	DefaultWorkerCount        = 0
	DefaultInstrumentVDisp    = 1.3
	DefaultInstrumentVSig     = 3.0
	DefaultInstrumentShift    = 3
	DefaultMaxIterations      = 200
	DefaultMaxTotalIterations = 20000
	DefaultMinTemperature     = 1e-3
	DefaultStepFloor          = 0.01
	DefaultStepDecay          = 0.9
	DefaultCoolingRate        = 0.9
	DefaultChi2Padding        = 10.0
	DefaultExternalTimeout    = 600 * time.Second
	DefaultAtomFileName       = "atom.dat"
)

// LogFormat represents the log output format.
type LogFormat string

// LogFormat values.
const (
	LogFormatPretty LogFormat = "pretty"
	LogFormatJSON   LogFormat = "json"
)

// InstrumentConfig describes the spectrograph line-spread function.
type InstrumentConfig struct {
	vdisp float64
	vsig  float64
	shift int
}

// NewInstrumentConfig creates an InstrumentConfig with the calibrated defaults.
func NewInstrumentConfig() InstrumentConfig {
	return InstrumentConfig{
		vdisp: DefaultInstrumentVDisp,
		vsig:  DefaultInstrumentVSig,
		shift: DefaultInstrumentShift,
	}
}

// VDisp returns the velocity width of one pixel in km/s.
func (i InstrumentConfig) VDisp() float64 { return i.vdisp }

// VSig returns the line-spread sigma in km/s.
func (i InstrumentConfig) VSig() float64 { return i.vsig }

// Shift returns the post-smoothing sample shift.
func (i InstrumentConfig) Shift() int { return i.shift }

// WithVDisp returns a new config with the specified pixel width.
func (i InstrumentConfig) WithVDisp(v float64) InstrumentConfig {
	i.vdisp = v
	return i
}

// WithVSig returns a new config with the specified sigma.
func (i InstrumentConfig) WithVSig(v float64) InstrumentConfig {
	i.vsig = v
	return i
}

// WithShift returns a new config with the specified shift.
func (i InstrumentConfig) WithShift(n int) InstrumentConfig {
	i.shift = n
	return i
}

// AnnealConfig holds the numeric knobs of the annealing optimizer.
type AnnealConfig struct {
	maxIterations      int
	maxTotalIterations int
	minTemperature     float64
	stepFloor          float64
	stepDecay          float64
	coolingRate        float64
	chi2Padding        float64
	seed               uint64
}

// NewAnnealConfig creates an AnnealConfig with defaults.
func NewAnnealConfig() AnnealConfig {
	return AnnealConfig{
		maxIterations:      DefaultMaxIterations,
		maxTotalIterations: DefaultMaxTotalIterations,
		minTemperature:     DefaultMinTemperature,
		stepFloor:          DefaultStepFloor,
		stepDecay:          DefaultStepDecay,
		coolingRate:        DefaultCoolingRate,
		chi2Padding:        DefaultChi2Padding,
	}
}

// MaxIterations returns the inner iteration budget per temperature.
func (a AnnealConfig) MaxIterations() int { return a.maxIterations }

// MaxTotalIterations returns the total iteration cap.
func (a AnnealConfig) MaxTotalIterations() int { return a.maxTotalIterations }

// MinTemperature returns the stopping temperature.
func (a AnnealConfig) MinTemperature() float64 { return a.minTemperature }

// StepFloor returns the step size that forces cooling.
func (a AnnealConfig) StepFloor() float64 { return a.stepFloor }

// StepDecay returns the step multiplier after a non-improving accepted step.
func (a AnnealConfig) StepDecay() float64 { return a.stepDecay }

// CoolingRate returns the maximum temperature multiplier.
func (a AnnealConfig) CoolingRate() float64 { return a.coolingRate }

// Chi2Padding returns the critical chi-square padding.
func (a AnnealConfig) Chi2Padding() float64 { return a.chi2Padding }

// Seed returns the base PRNG seed.
func (a AnnealConfig) Seed() uint64 { return a.seed }

// AnnealOption is a functional option for AnnealConfig.
type AnnealOption func(*AnnealConfig)

// WithMaxIterations sets the inner iteration budget.
func WithMaxIterations(n int) AnnealOption {
	return func(a *AnnealConfig) {
		if n > 0 {
			a.maxIterations = n
		}
	}
}

// WithMaxTotalIterations sets the total iteration cap.
func WithMaxTotalIterations(n int) AnnealOption {
	return func(a *AnnealConfig) {
		if n > 0 {
			a.maxTotalIterations = n
		}
	}
}

// WithMinTemperature sets the stopping temperature.
func WithMinTemperature(v float64) AnnealOption {
	return func(a *AnnealConfig) {
		if v > 0 {
			a.minTemperature = v
		}
	}
}

// WithStepFloor sets the step floor.
func WithStepFloor(v float64) AnnealOption {
	return func(a *AnnealConfig) {
		if v > 0 {
			a.stepFloor = v
		}
	}
}

// WithStepDecay sets the step decay.
func WithStepDecay(v float64) AnnealOption {
	return func(a *AnnealConfig) {
		if v > 0 {
			a.stepDecay = v
		}
	}
}

// WithCoolingRate sets the cooling rate.
func WithCoolingRate(v float64) AnnealOption {
	return func(a *AnnealConfig) {
		if v > 0 {
			a.coolingRate = v
		}
	}
}

// WithChi2Padding sets the critical chi-square padding.
func WithChi2Padding(v float64) AnnealOption {
	return func(a *AnnealConfig) { a.chi2Padding = v }
}

// WithSeed sets the base PRNG seed.
func WithSeed(seed uint64) AnnealOption {
	return func(a *AnnealConfig) { a.seed = seed }
}

// NewAnnealConfigWithOptions creates an AnnealConfig with functional options.
func NewAnnealConfigWithOptions(opts ...AnnealOption) AnnealConfig {
	return NewAnnealConfig().Apply(opts...)
}

// Apply returns a new AnnealConfig with the given options applied.
func (a AnnealConfig) Apply(opts ...AnnealOption) AnnealConfig {
	for _, opt := range opts {
		opt(&a)
	}
	return a
}

// ExternalConfig configures the external optimizer process.
type ExternalConfig struct {
	command string
	args    []string
	timeout time.Duration
}

// NewExternalConfig creates an ExternalConfig with defaults.
func NewExternalConfig() ExternalConfig {
	return ExternalConfig{timeout: DefaultExternalTimeout}
}

// Command returns the executable.
func (e ExternalConfig) Command() string { return e.command }

// Args returns a copy of the arguments.
func (e ExternalConfig) Args() []string {
	result := make([]string, len(e.args))
	copy(result, e.args)
	return result
}

// Timeout returns the per-invocation timeout.
func (e ExternalConfig) Timeout() time.Duration { return e.timeout }

// IsConfigured returns true if a command is set.
func (e ExternalConfig) IsConfigured() bool { return e.command != "" }

// WithCommand returns a new config with the specified command and arguments.
func (e ExternalConfig) WithCommand(command string, args ...string) ExternalConfig {
	e.command = command
	e.args = append([]string(nil), args...)
	return e
}

// WithTimeout returns a new config with the specified timeout.
func (e ExternalConfig) WithTimeout(d time.Duration) ExternalConfig {
	if d > 0 {
		e.timeout = d
	}
	return e
}

// AppConfig holds the main application configuration.
type AppConfig struct {
	dataDir     string
	dbURL       string
	dbMaxConns  int
	logLevel    string
	logFormat   LogFormat
	logFile     string
	atomFile    string
	workerCount int
	metricsAddr string
	instrument  InstrumentConfig
	anneal      AnnealConfig
	external    ExternalConfig
}

// DefaultDataDir returns the default data directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".linefit"
	}
	return filepath.Join(home, ".linefit")
}

// PrepareDataDir creates the data directory if it does not exist and returns it.
func PrepareDataDir(dataDir string) (string, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	return dataDir, nil
}

// NewAppConfig creates a new AppConfig with defaults. The fit database is
// disabled until a DB URL is set.
func NewAppConfig() AppConfig {
	return AppConfig{
		dataDir:     DefaultDataDir(),
		logLevel:    DefaultLogLevel,
		logFormat:   LogFormatPretty,
		workerCount: DefaultWorkerCount,
		instrument:  NewInstrumentConfig(),
		anneal:      NewAnnealConfig(),
		external:    NewExternalConfig(),
	}
}

// DataDir returns the data directory.
func (c AppConfig) DataDir() string { return c.dataDir }

// DBURL returns the fit database URL, or "" when disabled.
func (c AppConfig) DBURL() string { return c.dbURL }

// DBMaxOpenConns returns the database connection cap; 0 means unlimited.
func (c AppConfig) DBMaxOpenConns() int { return c.dbMaxConns }

// LogLevel returns the log level.
func (c AppConfig) LogLevel() string { return c.logLevel }

// LogFormat returns the log format.
func (c AppConfig) LogFormat() LogFormat { return c.logFormat }

// LogFile returns the rotating log file path, or "" for stderr.
func (c AppConfig) LogFile() string { return c.logFile }

// AtomFile returns the atomic line list path. It defaults to atom.dat in
// the data directory.
func (c AppConfig) AtomFile() string {
	if c.atomFile != "" {
		return c.atomFile
	}
	return filepath.Join(c.dataDir, DefaultAtomFileName)
}

// WorkerCount returns the configured sweep worker count; 0 means one per CPU.
func (c AppConfig) WorkerCount() int { return c.workerCount }

// Workers returns the effective sweep worker count.
func (c AppConfig) Workers() int {
	if c.workerCount > 0 {
		return c.workerCount
	}
	return runtime.NumCPU()
}

// MetricsAddr returns the status server address, or "" when disabled.
func (c AppConfig) MetricsAddr() string { return c.metricsAddr }

// Instrument returns the instrument configuration.
func (c AppConfig) Instrument() InstrumentConfig { return c.instrument }

// Anneal returns the annealing configuration.
func (c AppConfig) Anneal() AnnealConfig { return c.anneal }

// External returns the external optimizer configuration.
func (c AppConfig) External() ExternalConfig { return c.external }

// HasDatabase reports whether a fit database is configured.
func (c AppConfig) HasDatabase() bool { return c.dbURL != "" }

// EnsureDataDir creates the data directory if it doesn't exist.
func (c AppConfig) EnsureDataDir() error {
	_, err := PrepareDataDir(c.dataDir)
	return err
}

// AppConfigOption is a functional option for AppConfig.
type AppConfigOption func(*AppConfig)

// WithDataDir sets the data directory.
func WithDataDir(dir string) AppConfigOption {
	return func(c *AppConfig) { c.dataDir = dir }
}

// WithDBURL sets the fit database URL.
func WithDBURL(url string) AppConfigOption {
	return func(c *AppConfig) { c.dbURL = url }
}

// WithDBMaxOpenConns caps the number of open database connections.
func WithDBMaxOpenConns(n int) AppConfigOption {
	return func(c *AppConfig) {
		if n >= 0 {
			c.dbMaxConns = n
		}
	}
}

// WithLogLevel sets the log level.
func WithLogLevel(level string) AppConfigOption {
	return func(c *AppConfig) { c.logLevel = level }
}

// WithLogFormat sets the log format.
func WithLogFormat(format LogFormat) AppConfigOption {
	return func(c *AppConfig) { c.logFormat = format }
}

// WithLogFile sets the rotating log file path.
func WithLogFile(path string) AppConfigOption {
	return func(c *AppConfig) { c.logFile = path }
}

// WithAtomFile sets the atomic line list path.
func WithAtomFile(path string) AppConfigOption {
	return func(c *AppConfig) { c.atomFile = path }
}

// WithWorkerCount sets the number of sweep workers. Negative values are ignored.
func WithWorkerCount(n int) AppConfigOption {
	return func(c *AppConfig) {
		if n >= 0 {
			c.workerCount = n
		}
	}
}

// WithMetricsAddr sets the status server address.
func WithMetricsAddr(addr string) AppConfigOption {
	return func(c *AppConfig) { c.metricsAddr = addr }
}

// WithInstrument sets the instrument configuration.
func WithInstrument(i InstrumentConfig) AppConfigOption {
	return func(c *AppConfig) { c.instrument = i }
}

// WithAnneal sets the annealing configuration.
func WithAnneal(a AnnealConfig) AppConfigOption {
	return func(c *AppConfig) { c.anneal = a }
}

// WithExternal sets the external optimizer configuration.
func WithExternal(e ExternalConfig) AppConfigOption {
	return func(c *AppConfig) { c.external = e }
}

// NewAppConfigWithOptions creates an AppConfig with functional options.
func NewAppConfigWithOptions(opts ...AppConfigOption) AppConfig {
	c := NewAppConfig()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Apply returns a new AppConfig with the given options applied.
func (c AppConfig) Apply(opts ...AppConfigOption) AppConfig {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// LogAttrs returns slog attributes for logging the configuration.
func (c AppConfig) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("data_dir", c.dataDir),
		slog.String("db_url", c.maskedDBURL()),
		slog.String("log_level", c.logLevel),
		slog.String("atom_file", c.AtomFile()),
		slog.Int("workers", c.Workers()),
		slog.Float64("instrument_vdisp", c.instrument.VDisp()),
		slog.Float64("instrument_vsig", c.instrument.VSig()),
		slog.Int("instrument_shift", c.instrument.Shift()),
		slog.Int("anneal_max_iterations", c.anneal.MaxIterations()),
		slog.Int("anneal_max_total_iterations", c.anneal.MaxTotalIterations()),
		slog.String("external_command", c.external.Command()),
		slog.String("metrics_addr", c.metricsAddr),
	}
}

func (c AppConfig) maskedDBURL() string {
	if c.dbURL == "" {
		return "(disabled)"
	}
	if strings.HasPrefix(c.dbURL, "sqlite:") {
		return c.dbURL
	}
	return "postgres://***@***"
}

// ParseArgs splits a whitespace-separated argument list.
func ParseArgs(s string) []string {
	return strings.Fields(s)
}
