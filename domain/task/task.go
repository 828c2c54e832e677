// Package task provides job descriptor types for parallel sweep processing.
package task

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"
)

// Payload keys carried by sweep jobs.
const (
	KeyJob       = "job"
	KeyIndex     = "index"
	KeyEntity    = "entity"
	KeyAttribute = "attribute"
	KeyStep      = "step"
	KeyValue     = "value"
	KeySeed      = "seed"
)

// Task is an immutable job descriptor waiting to be processed.
type Task struct {
	id        int64
	dedupKey  string
	operation Operation
	payload   map[string]any
	createdAt time.Time
}

// NewTask creates a new Task with the given operation and payload.
// The dedup key is generated from the operation and the payload's job name.
func NewTask(operation Operation, payload map[string]any) Task {
	p := copyPayload(payload)
	return Task{
		dedupKey:  createDedupKey(operation, p),
		operation: operation,
		payload:   p,
		createdAt: time.Now().UTC(),
	}
}

// ID returns the task ID.
func (t Task) ID() int64 { return t.id }

// DedupKey returns the deduplication key.
func (t Task) DedupKey() string { return t.dedupKey }

// Operation returns the task operation.
func (t Task) Operation() Operation { return t.operation }

// Payload returns a copy of the task payload.
func (t Task) Payload() map[string]any {
	return copyPayload(t.payload)
}

// CreatedAt returns when the task was created.
func (t Task) CreatedAt() time.Time { return t.createdAt }

// WithID returns a copy of the task with the given ID.
func (t Task) WithID(id int64) Task {
	t.id = id
	return t
}

// PayloadJSON returns the payload as JSON bytes.
func (t Task) PayloadJSON() ([]byte, error) {
	return json.Marshal(t.payload)
}

// createDedupKey creates a unique key for deduplication.
// Format: "{operation}:{job}"
func createDedupKey(operation Operation, payload map[string]any) string {
	return fmt.Sprintf("%s:%v", operation, payload[KeyJob])
}

// copyPayload creates a shallow copy of the payload map.
func copyPayload(payload map[string]any) map[string]any {
	if payload == nil {
		return make(map[string]any)
	}
	result := make(map[string]any, len(payload))
	maps.Copy(result, payload)
	return result
}
