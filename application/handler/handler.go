// Package handler provides task handlers for processing sweep jobs.
package handler

import (
	"context"
	"fmt"

	"github.com/helixml/linefit/domain/fit"
	"github.com/helixml/linefit/domain/task"
)

// Tracker provides progress tracking for task execution.
type Tracker interface {
	SetTotal(ctx context.Context, total int)
	SetCurrent(ctx context.Context, current int, message string)
	Fail(ctx context.Context, message string)
	Complete(ctx context.Context)
}

// TrackerFactory creates trackers for progress reporting.
type TrackerFactory interface {
	ForJob(operation task.Operation, job string) Tracker
}

// Handler defines the interface for task operation handlers.
type Handler interface {
	Execute(ctx context.Context, payload map[string]any) error
}

// ExtractInt64 extracts an int64 value from the payload.
func ExtractInt64(payload map[string]any, key string) (int64, error) {
	val, ok := payload[key]
	if !ok {
		return 0, fmt.Errorf("missing required field: %s", key)
	}

	switch v := val.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case float64:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("invalid type for %s: %T", key, val)
	}
}

// ExtractUint64 extracts a uint64 value from the payload.
func ExtractUint64(payload map[string]any, key string) (uint64, error) {
	val, ok := payload[key]
	if !ok {
		return 0, fmt.Errorf("missing required field: %s", key)
	}

	switch v := val.(type) {
	case uint64:
		return v, nil
	case int:
		return uint64(v), nil
	case int64:
		return uint64(v), nil
	case float64:
		return uint64(v), nil
	default:
		return 0, fmt.Errorf("invalid type for %s: %T", key, val)
	}
}

// ExtractFloat64 extracts a float64 value from the payload.
func ExtractFloat64(payload map[string]any, key string) (float64, error) {
	val, ok := payload[key]
	if !ok {
		return 0, fmt.Errorf("missing required field: %s", key)
	}

	switch v := val.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("invalid type for %s: %T", key, val)
	}
}

// ExtractString extracts a string value from the payload.
func ExtractString(payload map[string]any, key string) (string, error) {
	val, ok := payload[key]
	if !ok {
		return "", fmt.Errorf("missing required field: %s", key)
	}

	s, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("invalid type for %s: expected string, got %T", key, val)
	}

	return s, nil
}

// JobPayload holds the fields of one sweep job extracted from a task payload.
type JobPayload struct {
	job   string
	index int
	ref   fit.ParameterRef
	step  int
	value float64
	seed  uint64
}

// NewJobPayload builds the task payload for one sweep job.
func NewJobPayload(index int, ref fit.ParameterRef, step int, value float64, seed uint64) map[string]any {
	return map[string]any{
		task.KeyJob:       JobName(ref, step),
		task.KeyIndex:     index,
		task.KeyEntity:    ref.Entity,
		task.KeyAttribute: string(ref.Attribute),
		task.KeyStep:      step,
		task.KeyValue:     value,
		task.KeySeed:      seed,
	}
}

// JobName returns "<entity>_<attr>_<step>", the job's result file stem.
func JobName(ref fit.ParameterRef, step int) string {
	return fmt.Sprintf("%s_%d", ref.Column(), step)
}

// Job returns the job name.
func (p JobPayload) Job() string { return p.job }

// Index returns the job's position in the sweep.
func (p JobPayload) Index() int { return p.index }

// Ref returns the scanned parameter.
func (p JobPayload) Ref() fit.ParameterRef { return p.ref }

// Step returns the step within the scanned range.
func (p JobPayload) Step() int { return p.step }

// Value returns the value the scanned parameter is locked at.
func (p JobPayload) Value() float64 { return p.value }

// Seed returns the job's PRNG seed.
func (p JobPayload) Seed() uint64 { return p.seed }

// ExtractJobPayload extracts the sweep job fields from a task payload.
func ExtractJobPayload(payload map[string]any) (JobPayload, error) {
	job, err := ExtractString(payload, task.KeyJob)
	if err != nil {
		return JobPayload{}, err
	}
	index, err := ExtractInt64(payload, task.KeyIndex)
	if err != nil {
		return JobPayload{}, err
	}
	entity, err := ExtractString(payload, task.KeyEntity)
	if err != nil {
		return JobPayload{}, err
	}
	name, err := ExtractString(payload, task.KeyAttribute)
	if err != nil {
		return JobPayload{}, err
	}
	attr, err := fit.ParseAttribute(name)
	if err != nil {
		return JobPayload{}, err
	}
	step, err := ExtractInt64(payload, task.KeyStep)
	if err != nil {
		return JobPayload{}, err
	}
	value, err := ExtractFloat64(payload, task.KeyValue)
	if err != nil {
		return JobPayload{}, err
	}
	seed, err := ExtractUint64(payload, task.KeySeed)
	if err != nil {
		return JobPayload{}, err
	}

	return JobPayload{
		job:   job,
		index: int(index),
		ref:   fit.NewParameterRef(entity, attr),
		step:  int(step),
		value: value,
		seed:  seed,
	}, nil
}
