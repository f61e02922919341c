// Package review bridges quarantined records to human reviewers over NATS.
// Pending records are announced on one subject; decisions arrive on another
// and are applied to the outcome store exactly once.
package review

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/crestline-eng/intaked/internal/config"
	"github.com/crestline-eng/intaked/internal/logging"
	"github.com/crestline-eng/intaked/internal/pipeline"
)

// Request is the review payload published for a quarantined record.
type Request struct {
	MessageID  string         `json:"message_id"`
	Strategy   string         `json:"strategy"`
	Confidence float64        `json:"confidence"`
	Fields     map[string]any `json:"fields"`
	Verdicts   any            `json:"verdicts"`
	Reason     string         `json:"reason"`
	DecidedAt  time.Time      `json:"decided_at"`
}

// Decision is a reviewer's call on a quarantined record.
type Decision struct {
	MessageID string `json:"message_id"`
	Decision  string `json:"decision"` // "accepted" or "rejected"
	Reviewer  string `json:"reviewer"`
	Note      string `json:"note,omitempty"`
}

// Outcome maps the decision to a pipeline outcome.
func (d Decision) Outcome() (pipeline.Outcome, error) {
	switch d.Decision {
	case string(pipeline.OutcomeAccepted):
		return pipeline.OutcomeAccepted, nil
	case string(pipeline.OutcomeRejected):
		return pipeline.OutcomeRejected, nil
	default:
		return "", fmt.Errorf("decision must be accepted or rejected, got %q", d.Decision)
	}
}

// Resolver applies a review decision. Implemented by the pipeline
// orchestrator.
type Resolver interface {
	Resolve(ctx context.Context, messageID string, final pipeline.Outcome, reviewer string) (pipeline.Record, error)
}

// Connect opens the NATS connection for review traffic.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// Bridge publishes review requests and consumes review decisions.
type Bridge struct {
	nc       *nats.Conn
	pending  string
	decision string
	log      *logging.Logger
	sub      *nats.Subscription
}

// NewBridge builds the review bridge over an established connection.
func NewBridge(nc *nats.Conn, cfg config.ReviewConfig, log *logging.Logger) *Bridge {
	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = "intake"
	}
	return &Bridge{
		nc:       nc,
		pending:  prefix + ".review.pending",
		decision: prefix + ".review.decision",
		log:      log.Named("review"),
	}
}

// Publish implements pipeline.ReviewPublisher.
func (b *Bridge) Publish(ctx context.Context, rec pipeline.Record) error {
	req := Request{
		MessageID:  rec.MessageID,
		Strategy:   string(rec.Strategy),
		Confidence: rec.Confidence,
		Fields:     rec.Fields,
		Verdicts:   rec.Verdicts,
		Reason:     rec.Reason,
		DecidedAt:  rec.DecidedAt,
	}
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode review request: %w", err)
	}
	if err := b.nc.Publish(b.pending, data); err != nil {
		return fmt.Errorf("failed to publish review request: %w", err)
	}
	b.log.Info(ctx, "review request published",
		zap.String("message_id", rec.MessageID),
		zap.String("subject", b.pending),
	)
	return nil
}

// Listen subscribes to the decision subject and applies each decision via
// the resolver. A decision for an already-resolved record is logged and
// dropped; exactly-once lives in the outcome store, not here.
func (b *Bridge) Listen(resolver Resolver) error {
	sub, err := b.nc.Subscribe(b.decision, func(msg *nats.Msg) {
		ctx := context.Background()

		var dec Decision
		if err := json.Unmarshal(msg.Data, &dec); err != nil {
			b.log.Warn(ctx, "unparseable review decision", zap.Error(err))
			return
		}
		final, err := dec.Outcome()
		if err != nil {
			b.log.Warn(ctx, "invalid review decision",
				zap.String("message_id", dec.MessageID),
				zap.Error(err),
			)
			return
		}

		if _, err := resolver.Resolve(ctx, dec.MessageID, final, dec.Reviewer); err != nil {
			b.log.Warn(ctx, "review decision not applied",
				zap.String("message_id", dec.MessageID),
				zap.String("decision", dec.Decision),
				zap.Error(err),
			)
			return
		}
		b.log.Info(ctx, "review decision applied",
			zap.String("message_id", dec.MessageID),
			zap.String("decision", dec.Decision),
			zap.String("reviewer", dec.Reviewer),
		)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", b.decision, err)
	}
	b.sub = sub
	return nil
}

// Close drains the decision subscription.
func (b *Bridge) Close() error {
	if b.sub != nil {
		return b.sub.Drain()
	}
	return nil
}
