package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/crestline-eng/intaked/internal/config"
	"github.com/crestline-eng/intaked/internal/extract"
	"github.com/crestline-eng/intaked/internal/logging"
	"github.com/crestline-eng/intaked/internal/mail"
	"github.com/crestline-eng/intaked/internal/validate"
)

var tracer = otel.Tracer("github.com/crestline-eng/intaked/internal/pipeline")

// ReviewPublisher announces quarantined records to the review channel.
type ReviewPublisher interface {
	Publish(ctx context.Context, rec Record) error
}

// Integrator submits accepted records to the downstream record store.
type Integrator interface {
	Submit(ctx context.Context, rec Record) error
}

// Orchestrator runs the full intake flow for one message and records
// exactly one outcome for it. Processing is synchronous per message;
// concurrency comes from the worker pool running many messages at once.
type Orchestrator struct {
	selector   *extract.Selector
	classifier *mail.Classifier
	chain      *validate.Chain
	gate       *Gate
	store      OutcomeStore
	review     ReviewPublisher
	integrator Integrator
	log        *logging.Logger

	maxRetries  int
	baseBackoff time.Duration
}

// NewOrchestrator wires the pipeline. review and integrator may be nil;
// quarantined and accepted records then wait in the outcome store.
func NewOrchestrator(
	cfg *config.Config,
	selector *extract.Selector,
	classifier *mail.Classifier,
	chain *validate.Chain,
	store OutcomeStore,
	review ReviewPublisher,
	integrator Integrator,
	log *logging.Logger,
) *Orchestrator {
	return &Orchestrator{
		selector:    selector,
		classifier:  classifier,
		chain:       chain,
		gate:        NewGate(cfg.Pipeline),
		store:       store,
		review:      review,
		integrator:  integrator,
		log:         log.Named("pipeline"),
		maxRetries:  cfg.Extraction.MaxRetries,
		baseBackoff: cfg.Extraction.BaseBackoff.Duration(),
	}
}

// Process runs one message through selection, extraction, validation, and
// adjudication. A message that already has a stored outcome is replayed
// without side effects. Cancellation before the outcome is stored leaves
// no state behind, so the message can be resubmitted cleanly.
func (o *Orchestrator) Process(ctx context.Context, msg mail.RawMessage) (Record, error) {
	if rec, ok, err := o.store.Get(ctx, msg.ID); err != nil {
		return Record{}, fmt.Errorf("outcome lookup failed: %w", err)
	} else if ok {
		ReplaysTotal.Inc()
		o.log.Info(ctx, "duplicate message, replaying stored outcome",
			zap.String("message_id", msg.ID),
			zap.String("outcome", string(rec.Outcome)),
		)
		return rec, nil
	}

	ctx, span := tracer.Start(ctx, "pipeline.process",
		trace.WithAttributes(attribute.String("message.id", msg.ID)))
	defer span.End()

	start := time.Now()
	defer func() { ProcessDuration.Observe(time.Since(start).Seconds()) }()

	sens := o.classifier.Classify(msg)
	sel := o.selector.Select(ctx, msg, sens, o.gate.mode)
	SelectionsTotal.WithLabelValues(string(sel.Strategy)).Inc()

	result, err := o.runExtraction(ctx, sel, msg)
	if err != nil {
		if ctx.Err() != nil {
			// Cancelled mid-flight: record nothing, the message stays
			// eligible for a clean rerun.
			return Record{}, ctx.Err()
		}
		rec := Record{
			MessageID: msg.ID,
			Outcome:   OutcomeRejected,
			Strategy:  sel.Strategy,
			Reason:    fmt.Sprintf("extraction failed on every strategy: %v", err),
			DecidedAt: time.Now().UTC(),
		}
		return o.commit(ctx, rec)
	}

	verdicts := o.chain.Validate(ctx, validate.Subject{Result: result, Received: msg.ReceivedAt})
	for _, v := range verdicts {
		VerdictsTotal.WithLabelValues(v.Stage, string(v.Outcome)).Inc()
	}
	decision := o.gate.Decide(result, verdicts)

	rec := Record{
		MessageID:  msg.ID,
		Outcome:    decision.Outcome,
		Strategy:   result.Strategy,
		Degraded:   result.Degraded,
		Confidence: result.Confidence,
		Fields:     result.Fields,
		Verdicts:   verdicts,
		Reason:     decision.Reason,
		DecidedAt:  time.Now().UTC(),
	}
	return o.commit(ctx, rec)
}

// commit stores the record and triggers the outcome's side effect. Losing
// the store race to a concurrent duplicate replays the winner's record.
func (o *Orchestrator) commit(ctx context.Context, rec Record) (Record, error) {
	if err := o.store.Put(ctx, rec); err != nil {
		if errors.Is(err, ErrAlreadyDecided) {
			existing, _, gerr := o.store.Get(ctx, rec.MessageID)
			if gerr != nil {
				return Record{}, gerr
			}
			ReplaysTotal.Inc()
			return existing, nil
		}
		return Record{}, fmt.Errorf("failed to store outcome: %w", err)
	}

	OutcomesTotal.WithLabelValues(string(rec.Outcome)).Inc()
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("pipeline.outcome", string(rec.Outcome)))
	o.log.Info(ctx, "outcome recorded",
		zap.String("message_id", rec.MessageID),
		zap.String("outcome", string(rec.Outcome)),
		zap.String("strategy", string(rec.Strategy)),
		zap.Float64("confidence", rec.Confidence),
		zap.Bool("degraded", rec.Degraded),
		zap.String("reason", rec.Reason),
	)

	switch rec.Outcome {
	case OutcomeQuarantined:
		QuarantineDepth.Inc()
		if o.review != nil {
			if err := o.review.Publish(ctx, rec); err != nil {
				// The record stays quarantined in the store; reviewers
				// can still find it through the pending list.
				o.log.Warn(ctx, "failed to publish review request",
					zap.String("message_id", rec.MessageID),
					zap.Error(err),
				)
			}
		}
	case OutcomeAccepted:
		o.submitDownstream(ctx, rec)
	}
	return rec, nil
}

// submitDownstream pushes an accepted record to the integrator. Failure
// leaves the outcome standing; the integrator's retry path redelivers.
func (o *Orchestrator) submitDownstream(ctx context.Context, rec Record) {
	if o.integrator == nil {
		return
	}
	if err := o.integrator.Submit(ctx, rec); err != nil {
		IntegrationPushesTotal.WithLabelValues("error").Inc()
		o.log.Warn(ctx, "downstream submission failed, queued for retry",
			zap.String("message_id", rec.MessageID),
			zap.Error(err),
		)
		return
	}
	IntegrationPushesTotal.WithLabelValues("success").Inc()
}

// Resolve applies a review decision to a quarantined message. On accept the
// resolved record is submitted downstream.
func (o *Orchestrator) Resolve(ctx context.Context, messageID string, final Outcome, reviewer string) (Record, error) {
	rec, err := o.store.Resolve(ctx, messageID, final, reviewer)
	if err != nil {
		return Record{}, err
	}

	ReviewDecisionsTotal.WithLabelValues(string(final)).Inc()
	QuarantineDepth.Dec()
	o.log.Info(ctx, "review decision applied",
		zap.String("message_id", messageID),
		zap.String("decision", string(final)),
		zap.String("reviewer", reviewer),
	)

	if rec.Outcome == OutcomeAccepted {
		o.submitDownstream(ctx, rec)
	}
	return rec, nil
}

// Pending lists records waiting on a review decision.
func (o *Orchestrator) Pending(ctx context.Context) ([]Record, error) {
	return o.store.Quarantined(ctx)
}

// runExtraction walks the demotion ladder: each strategy gets its retry
// budget, then control falls to the next lower strategy. The returned error
// is the last strategy's failure once nothing below rules remains.
func (o *Orchestrator) runExtraction(ctx context.Context, sel extract.Selection, msg mail.RawMessage) (extract.Result, error) {
	for {
		strategy, ok := o.selector.Strategy(sel.Strategy)
		if !ok {
			return extract.Result{}, fmt.Errorf("strategy %q not registered", sel.Strategy)
		}

		result, err := o.attemptWithRetry(ctx, strategy, msg)
		if err == nil {
			result.Degraded = result.Degraded || sel.Degraded
			return result, nil
		}
		if ctx.Err() != nil {
			return extract.Result{}, err
		}

		next, ok := o.selector.Demote(sel.Strategy)
		if !ok {
			return extract.Result{}, err
		}
		DemotionsTotal.WithLabelValues(string(sel.Strategy)).Inc()
		o.log.Warn(ctx, "extraction strategy demoted",
			zap.String("message_id", msg.ID),
			zap.String("from", string(sel.Strategy)),
			zap.String("to", string(next.Strategy)),
			zap.Error(err),
		)
		sel = next
	}
}

// attemptWithRetry runs one strategy with exponential backoff. Only errors
// the strategy marks retryable consume the retry budget; anything else
// fails immediately.
func (o *Orchestrator) attemptWithRetry(ctx context.Context, strategy extract.Strategy, msg mail.RawMessage) (extract.Result, error) {
	backoff := o.baseBackoff
	var lastErr error

	for attempt := 0; attempt <= o.maxRetries; attempt++ {
		result, err := strategy.Extract(ctx, msg)
		if err == nil {
			ExtractionAttempts.WithLabelValues(string(strategy.ID()), "success").Inc()
			return result, nil
		}
		ExtractionAttempts.WithLabelValues(string(strategy.ID()), "error").Inc()
		lastErr = err

		if !extract.IsRetryable(err) || attempt == o.maxRetries {
			break
		}

		o.log.Debug(ctx, "retrying extraction",
			zap.String("message_id", msg.ID),
			zap.String("strategy", string(strategy.ID())),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return extract.Result{}, ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	return extract.Result{}, lastErr
}
