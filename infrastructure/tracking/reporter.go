// Package tracking delivers sweep job status changes to observers.
package tracking

import (
	"context"

	"github.com/helixml/linefit/domain/task"
)

// Reporter receives job status changes.
type Reporter interface {
	OnChange(ctx context.Context, status task.Status) error
}
