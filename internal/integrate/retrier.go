package integrate

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/crestline-eng/intaked/internal/logging"
	"github.com/crestline-eng/intaked/internal/pipeline"
)

// Retrier wraps an integrator with an in-memory pending queue. A failed
// submission parks the record; Flush resubmits parked records, keeping
// those that fail again. The record's accepted outcome is never revisited;
// only delivery is deferred.
type Retrier struct {
	next pipeline.Integrator
	log  *logging.Logger

	mu      sync.Mutex
	pending map[string]pipeline.Record
}

// NewRetrier wraps next with the pending queue.
func NewRetrier(next pipeline.Integrator, log *logging.Logger) *Retrier {
	return &Retrier{
		next:    next,
		log:     log.Named("integrate"),
		pending: make(map[string]pipeline.Record),
	}
}

// Submit implements pipeline.Integrator.
func (r *Retrier) Submit(ctx context.Context, rec pipeline.Record) error {
	err := r.next.Submit(ctx, rec)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	r.mu.Lock()
	r.pending[rec.MessageID] = rec
	n := len(r.pending)
	r.mu.Unlock()

	r.log.Warn(ctx, "submission parked for retry",
		zap.String("message_id", rec.MessageID),
		zap.Int("pending", n),
		zap.Error(err),
	)
	return err
}

// Flush resubmits every parked record once. Records that fail again stay
// parked. Returns the number of records delivered.
func (r *Retrier) Flush(ctx context.Context) int {
	r.mu.Lock()
	batch := make([]pipeline.Record, 0, len(r.pending))
	for _, rec := range r.pending {
		batch = append(batch, rec)
	}
	r.mu.Unlock()

	delivered := 0
	for _, rec := range batch {
		if err := r.next.Submit(ctx, rec); err != nil {
			if ctx.Err() != nil {
				break
			}
			continue
		}
		r.mu.Lock()
		delete(r.pending, rec.MessageID)
		r.mu.Unlock()
		delivered++
	}

	if delivered > 0 {
		r.log.Info(ctx, "parked submissions delivered", zap.Int("delivered", delivered))
	}
	return delivered
}

// Pending returns the number of parked records.
func (r *Retrier) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
