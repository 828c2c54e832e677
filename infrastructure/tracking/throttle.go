package tracking

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/helixml/linefit/domain/task"
)

var (
	_ Reporter  = (*Throttle)(nil)
	_ io.Closer = (*Throttle)(nil)
)

// Throttle forwards status changes to another Reporter at most once per
// interval for each job. Terminal states are always forwarded immediately
// and discard any update still held for the job. Held updates are
// forwarded by Flush.
type Throttle struct {
	next     Reporter
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	last    map[string]time.Time
	pending map[string]task.Status
}

// NewThrottle wraps next so each job reports at most once per interval.
func NewThrottle(next Reporter, interval time.Duration) *Throttle {
	return &Throttle{
		next:     next,
		interval: interval,
		now:      time.Now,
		last:     make(map[string]time.Time),
		pending:  make(map[string]task.Status),
	}
}

// OnChange forwards or holds status.
func (t *Throttle) OnChange(ctx context.Context, status task.Status) error {
	id := status.ID()

	t.mu.Lock()
	if status.State().IsTerminal() {
		delete(t.last, id)
		delete(t.pending, id)
		t.mu.Unlock()
		return t.next.OnChange(ctx, status)
	}

	now := t.now()
	if last, ok := t.last[id]; ok && now.Sub(last) < t.interval {
		t.pending[id] = status
		t.mu.Unlock()
		return nil
	}
	t.last[id] = now
	delete(t.pending, id)
	t.mu.Unlock()

	return t.next.OnChange(ctx, status)
}

// Flush forwards every held update, in job order.
func (t *Throttle) Flush(ctx context.Context) error {
	t.mu.Lock()
	held := t.pending
	t.pending = make(map[string]task.Status)
	t.mu.Unlock()

	ids := make([]string, 0, len(held))
	for id := range held {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var errs []error
	for _, id := range ids {
		if err := t.next.OnChange(ctx, held[id]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close flushes held updates.
func (t *Throttle) Close() error {
	return t.Flush(context.Background())
}
