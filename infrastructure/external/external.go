// Package external runs a vendor optimizer as a subprocess.
package external

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/helixml/linefit/domain/fit"
	"github.com/helixml/linefit/domain/service"
	"github.com/helixml/linefit/infrastructure/fitfile"
	"github.com/vmihailenco/msgpack/v5"
)

// FitPlaceholder is replaced in Args by the path of the temporary fit file.
const FitPlaceholder = "{fit}"

// DefaultTimeout bounds one external invocation.
const DefaultTimeout = 600 * time.Second

// Errors returned by the external optimizer.
var (
	ErrTimeout       = errors.New("external optimizer timed out")
	ErrNoCommand     = errors.New("external optimizer command not configured")
	ErrNoCandidates  = errors.New("external optimizer returned no candidates")
	ErrBadCandidates = errors.New("malformed candidate buffer")
)

// ExitError reports a non-zero exit of the external process.
type ExitError struct {
	Code   int
	Stderr string
}

// Error implements error.
func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("external optimizer exited with code %d", e.Code)
	}
	return fmt.Sprintf("external optimizer exited with code %d: %s", e.Code, msg)
}

// Candidate is one model proposed by the external process. Values are keyed
// by parameter reference ("<id>:<attr>").
type Candidate struct {
	ChiSquare float64            `msgpack:"chi2"`
	Values    map[string]float64 `msgpack:"values"`
}

// Config configures the subprocess.
type Config struct {
	Command string
	Args    []string
	Timeout time.Duration
	Dir     string
}

// Optimizer delegates optimization to an external program.
type Optimizer struct {
	synth  service.Synthesizer
	cfg    Config
	logger *slog.Logger
}

var _ service.Optimizer = (*Optimizer)(nil)

// NewOptimizer creates an Optimizer. The synthesizer re-scores whatever the
// process returns so results are comparable with the internal optimizer.
func NewOptimizer(synth service.Synthesizer, cfg Config, logger *slog.Logger) (*Optimizer, error) {
	if synth == nil {
		return nil, fmt.Errorf("NewOptimizer: nil synthesizer")
	}
	if cfg.Command == "" {
		return nil, ErrNoCommand
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Optimizer{synth: synth, cfg: cfg, logger: logger}, nil
}

// Config returns the subprocess configuration.
func (o *Optimizer) Config() Config { return o.cfg }

// Optimize writes model to a temporary fit file, runs the configured command
// on it and applies the result. A non-empty stdout is decoded as a msgpack
// array of candidates and the lowest chi-square candidate wins; otherwise the
// fit file rewritten by the process is read back.
func (o *Optimizer) Optimize(ctx context.Context, model *fit.Model, opts ...service.OptimizeOption) (service.Result, error) {
	callCfg := service.NewOptimizeConfig(opts...)

	workDir, err := os.MkdirTemp(o.cfg.Dir, "linefit-external-*")
	if err != nil {
		return service.Result{}, fmt.Errorf("create work dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	fitPath := filepath.Join(workDir, "model.xml")
	if err := fitfile.WriteFile(fitPath, model); err != nil {
		return service.Result{}, err
	}

	stdout, err := o.run(ctx, fitPath, callCfg)
	if err != nil {
		return service.Result{}, err
	}

	best := model.Copy()
	if len(bytes.TrimSpace(stdout)) > 0 {
		candidate, err := BestCandidate(stdout)
		if err != nil {
			return service.Result{}, err
		}
		if err := Apply(best, candidate); err != nil {
			return service.Result{}, err
		}
	} else {
		rewritten, err := fitfile.ReadFile(fitPath)
		if err != nil {
			return service.Result{}, fmt.Errorf("read back fit file: %w", err)
		}
		best = rewritten
		best.SetDataset(model.DatasetPath(), model.Dataset())
	}

	if err := o.synth.UpdateDOF(best); err != nil {
		return service.Result{}, err
	}
	chi2, err := o.synth.Evaluate(best)
	if err != nil {
		return service.Result{}, err
	}
	best.SetChiSquare(chi2)

	if progress := callCfg.Progress(); progress != nil {
		progress(1, chi2, 0)
	}

	result := service.Result{
		Model:       best,
		ChiSquare:   chi2,
		Iterations:  1,
		Accepted:    1,
		Diagnostics: fit.Diagnose(best),
	}
	for _, d := range result.Diagnostics {
		o.logger.Warn("fit diagnostic", slog.String("diagnostic", d.String()))
	}

	if sink := callCfg.Sink(); sink != nil {
		if err := sink.Append(ctx, service.NewRecord(best)); err != nil {
			return result, fmt.Errorf("append result: %w", err)
		}
	}
	return result, nil
}

func (o *Optimizer) run(ctx context.Context, fitPath string, callCfg service.OptimizeConfig) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	args := make([]string, len(o.cfg.Args))
	for i, a := range o.cfg.Args {
		args[i] = strings.ReplaceAll(a, FitPlaceholder, fitPath)
	}

	cmd := exec.CommandContext(ctx, o.cfg.Command, args...)
	cmd.Dir = filepath.Dir(fitPath)
	if seed, ok := callCfg.Seed(); ok {
		cmd.Env = append(os.Environ(), fmt.Sprintf("LINEFIT_SEED=%d", seed))
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	o.logger.Debug("external optimizer finished",
		slog.String("command", o.cfg.Command),
		slog.Duration("duration", time.Since(start)),
	)

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w after %s", ErrTimeout, o.cfg.Timeout)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &ExitError{Code: exitErr.ExitCode(), Stderr: stderr.String()}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("run external optimizer: %w", err)
	}
	return stdout.Bytes(), nil
}

// BestCandidate decodes a msgpack candidate array and returns the one with
// the lowest chi-square.
func BestCandidate(buf []byte) (Candidate, error) {
	var candidates []Candidate
	if err := msgpack.Unmarshal(buf, &candidates); err != nil {
		return Candidate{}, fmt.Errorf("%w: %w", ErrBadCandidates, err)
	}
	if len(candidates) == 0 {
		return Candidate{}, ErrNoCandidates
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.ChiSquare < best.ChiSquare {
			best = c
		}
	}
	return best, nil
}

// EncodeCandidates encodes candidates in the buffer format BestCandidate reads.
func EncodeCandidates(candidates []Candidate) ([]byte, error) {
	return msgpack.Marshal(candidates)
}

// Apply writes a candidate's values into m. Locked parameters keep their
// values.
func Apply(m *fit.Model, c Candidate) error {
	for key, v := range c.Values {
		ref, err := fit.ParseParameterRef(key)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrBadCandidates, err)
		}
		if ref.Attribute.IsContinuum() && ref.Entity == fit.UnsetID {
			return fmt.Errorf("%w: %s names a continuum point without an id", ErrBadCandidates, key)
		}
		p, err := m.Param(ref)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrBadCandidates, err)
		}
		if p.Locked {
			continue
		}
		if err := m.SetParam(ref, v); err != nil {
			return fmt.Errorf("%w: %w", ErrBadCandidates, err)
		}
	}
	m.SetChiSquare(c.ChiSquare)
	return nil
}
