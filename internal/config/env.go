package config

import (
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvConfig holds all environment-based configuration.
// Nested structs use underscore delimiter (e.g., ANNEAL_MAX_ITERATIONS).
type EnvConfig struct {
	// DataDir is the data directory path.
	// Env: DATA_DIR
	// Default: ~/.linefit
	DataDir string `envconfig:"DATA_DIR"`

	// DBURL is the fit database connection URL. Empty disables the database.
	// Env: DB_URL
	DBURL string `envconfig:"DB_URL"`

	// DBMaxOpenConns caps PostgreSQL connections. SQLite always uses one.
	// Env: DB_MAX_OPEN_CONNS (default: 0, unlimited)
	DBMaxOpenConns int `envconfig:"DB_MAX_OPEN_CONNS" default:"0"`

	// LogLevel is the log verbosity level.
	// Env: LOG_LEVEL (default: INFO)
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`

	// LogFormat is the log output format (pretty or json).
	// Env: LOG_FORMAT (default: pretty)
	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// LogFile sends logs to a rotating file instead of stderr.
	// Env: LOG_FILE
	LogFile string `envconfig:"LOG_FILE"`

	// AtomFile is the atomic line list.
	// Env: ATOM_FILE
	// Default: {data_dir}/atom.dat
	AtomFile string `envconfig:"ATOM_FILE"`

	// WorkerCount is the number of sweep workers; 0 means one per CPU.
	// Env: WORKER_COUNT (default: 0)
	WorkerCount int `envconfig:"WORKER_COUNT" default:"0"`

	// MetricsAddr enables the metrics and health server.
	// Env: METRICS_ADDR
	MetricsAddr string `envconfig:"METRICS_ADDR"`

	// Instrument configures the line-spread function.
	Instrument InstrumentEnv `envconfig:"INSTRUMENT"`

	// Anneal configures the annealing optimizer.
	Anneal AnnealEnv `envconfig:"ANNEAL"`

	// External configures the external optimizer.
	External ExternalEnv `envconfig:"EXTERNAL"`
}

// InstrumentEnv holds environment configuration for the instrument.
type InstrumentEnv struct {
	// Env: INSTRUMENT_VDISP (default: 1.3)
	VDisp float64 `envconfig:"VDISP" default:"1.3"`

	// Env: INSTRUMENT_VSIG (default: 3.0)
	VSig float64 `envconfig:"VSIG" default:"3.0"`

	// Env: INSTRUMENT_SHIFT (default: 3)
	Shift int `envconfig:"SHIFT" default:"3"`
}

// AnnealEnv holds environment configuration for the annealing optimizer.
type AnnealEnv struct {
	// Env: ANNEAL_MAX_ITERATIONS (default: 200)
	MaxIterations int `envconfig:"MAX_ITERATIONS" default:"200"`

	// Env: ANNEAL_MAX_TOTAL_ITERATIONS (default: 20000)
	MaxTotalIterations int `envconfig:"MAX_TOTAL_ITERATIONS" default:"20000"`

	// Env: ANNEAL_MIN_TEMPERATURE (default: 0.001)
	MinTemperature float64 `envconfig:"MIN_TEMPERATURE" default:"0.001"`

	// Env: ANNEAL_STEP_FLOOR (default: 0.01)
	StepFloor float64 `envconfig:"STEP_FLOOR" default:"0.01"`

	// Env: ANNEAL_STEP_DECAY (default: 0.9)
	StepDecay float64 `envconfig:"STEP_DECAY" default:"0.9"`

	// Env: ANNEAL_COOLING_RATE (default: 0.9)
	CoolingRate float64 `envconfig:"COOLING_RATE" default:"0.9"`

	// Env: ANNEAL_CHI2_PADDING (default: 10)
	Chi2Padding float64 `envconfig:"CHI2_PADDING" default:"10"`

	// Env: ANNEAL_SEED (default: 0)
	Seed uint64 `envconfig:"SEED" default:"0"`
}

// ExternalEnv holds environment configuration for the external optimizer.
type ExternalEnv struct {
	// Command is the optimizer executable.
	// Env: EXTERNAL_COMMAND
	Command string `envconfig:"COMMAND"`

	// Args is a whitespace-separated argument list; {fit} is replaced by
	// the fit file path.
	// Env: EXTERNAL_ARGS
	Args string `envconfig:"ARGS"`

	// Timeout is the per-invocation timeout in seconds.
	// Env: EXTERNAL_TIMEOUT (default: 600)
	Timeout float64 `envconfig:"TIMEOUT" default:"600"`
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// LoadFromEnvWithPrefix loads configuration with a custom prefix.
// For example, prefix "LINEFIT" would require LINEFIT_DATA_DIR instead of DATA_DIR.
func LoadFromEnvWithPrefix(prefix string) (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// ToAppConfig converts EnvConfig to AppConfig.
func (e EnvConfig) ToAppConfig() AppConfig {
	cfg := NewAppConfig()

	if e.DataDir != "" {
		cfg = applyOption(cfg, WithDataDir(e.DataDir))
	}
	if e.DBURL != "" {
		cfg = applyOption(cfg, WithDBURL(e.DBURL))
	}
	if e.DBMaxOpenConns > 0 {
		cfg = applyOption(cfg, WithDBMaxOpenConns(e.DBMaxOpenConns))
	}
	if e.LogLevel != "" {
		cfg = applyOption(cfg, WithLogLevel(e.LogLevel))
	}
	if e.LogFormat != "" {
		cfg = applyOption(cfg, WithLogFormat(parseLogFormat(e.LogFormat)))
	}
	if e.LogFile != "" {
		cfg = applyOption(cfg, WithLogFile(e.LogFile))
	}
	if e.AtomFile != "" {
		cfg = applyOption(cfg, WithAtomFile(e.AtomFile))
	}
	cfg = applyOption(cfg, WithWorkerCount(e.WorkerCount))
	if e.MetricsAddr != "" {
		cfg = applyOption(cfg, WithMetricsAddr(e.MetricsAddr))
	}

	cfg = applyOption(cfg, WithInstrument(e.Instrument.ToInstrumentConfig()))
	cfg = applyOption(cfg, WithAnneal(e.Anneal.ToAnnealConfig()))
	cfg = applyOption(cfg, WithExternal(e.External.ToExternalConfig()))

	return cfg
}

// applyOption applies an option to the config.
func applyOption(cfg AppConfig, opt AppConfigOption) AppConfig {
	opt(&cfg)
	return cfg
}

// ToInstrumentConfig converts InstrumentEnv to InstrumentConfig.
func (i InstrumentEnv) ToInstrumentConfig() InstrumentConfig {
	return NewInstrumentConfig().
		WithVDisp(i.VDisp).
		WithVSig(i.VSig).
		WithShift(i.Shift)
}

// ToAnnealConfig converts AnnealEnv to AnnealConfig.
func (a AnnealEnv) ToAnnealConfig() AnnealConfig {
	return NewAnnealConfigWithOptions(
		WithMaxIterations(a.MaxIterations),
		WithMaxTotalIterations(a.MaxTotalIterations),
		WithMinTemperature(a.MinTemperature),
		WithStepFloor(a.StepFloor),
		WithStepDecay(a.StepDecay),
		WithCoolingRate(a.CoolingRate),
		WithChi2Padding(a.Chi2Padding),
		WithSeed(a.Seed),
	)
}

// ToExternalConfig converts ExternalEnv to ExternalConfig.
func (x ExternalEnv) ToExternalConfig() ExternalConfig {
	cfg := NewExternalConfig().WithTimeout(time.Duration(x.Timeout * float64(time.Second)))
	if x.Command != "" {
		cfg = cfg.WithCommand(x.Command, ParseArgs(x.Args)...)
	}
	return cfg
}

// parseLogFormat parses a log format string.
func parseLogFormat(s string) LogFormat {
	switch strings.ToLower(s) {
	case "json":
		return LogFormatJSON
	default:
		return LogFormatPretty
	}
}
