package pipeline

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/crestline-eng/intaked/internal/logging"
	"github.com/crestline-eng/intaked/internal/mail"
)

// Pool fans messages out to a fixed number of workers, each running the
// orchestrator. Per-message failures are logged and do not stop the pool;
// only context cancellation ends a run.
type Pool struct {
	orch    *Orchestrator
	workers int
	log     *logging.Logger
}

// NewPool builds a worker pool over the orchestrator.
func NewPool(orch *Orchestrator, workers int, log *logging.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{orch: orch, workers: workers, log: log.Named("pool")}
}

// Run consumes messages until the channel closes or ctx is cancelled.
func (p *Pool) Run(ctx context.Context, messages <-chan mail.RawMessage) error {
	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < p.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case msg, ok := <-messages:
					if !ok {
						return nil
					}
					if _, err := p.orch.Process(ctx, msg); err != nil {
						if ctx.Err() != nil {
							return ctx.Err()
						}
						p.log.Error(ctx, "pipeline processing failed",
							zap.String("message_id", msg.ID),
							zap.Error(err),
						)
					}
				}
			}
		})
	}
	return g.Wait()
}
