// Package ui delivers the changes of a sync run to the presentation layer.
package ui

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"tasksync/internal/entity"
)

// Sink receives the change set of one sync run.
type Sink interface {
	Refresh(ctx context.Context, changes entity.ChangeSet) error
}

// Toaster shows a short message to the user.
type Toaster interface {
	Toast(msg string)
}

var _ Sink = (*Dispatcher)(nil)

// Dispatcher posts refreshes to a single goroutine that owns the
// presentation state, so refreshes never overlap and keep their order.
type Dispatcher struct {
	next Sink
	mu   sync.Mutex
	pool *pool.Pool
}

func NewDispatcher(next Sink) *Dispatcher {
	return &Dispatcher{next: next, pool: pool.New().WithMaxGoroutines(1)}
}

// Refresh hands the change set to the worker and returns. It blocks only
// while an earlier refresh is still being applied. Failures are logged.
func (d *Dispatcher) Refresh(ctx context.Context, changes entity.ChangeSet) error {
	bg := context.WithoutCancel(ctx)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pool.Go(func() {
		if err := d.next.Refresh(bg, changes); err != nil {
			log.Err(err).Msg("ui refresh finished with errors")
		}
	})
	return nil
}

// Wait blocks until every queued refresh has been applied. The dispatcher
// accepts new refreshes afterwards.
func (d *Dispatcher) Wait() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pool.Wait()
	d.pool = pool.New().WithMaxGoroutines(1)
}
