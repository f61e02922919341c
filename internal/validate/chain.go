package validate

import (
	"context"

	"go.uber.org/zap"

	"github.com/crestline-eng/intaked/internal/logging"
)

// Stage is one validation step. Stages are pure over the subject and the
// verdicts accumulated so far; chain state never leaks between records.
// A returned error is a stage-internal fault, distinct from a reject
// verdict, and is downgraded to a diagnostic flag by the chain.
type Stage interface {
	Name() string
	Check(ctx context.Context, subj Subject, prior []Verdict) (Verdict, error)
}

// Chain runs stages in fixed order. A reject verdict short-circuits the
// remaining stages; flags accumulate and all later stages still run.
type Chain struct {
	stages []Stage
	log    *logging.Logger
}

// NewChain builds a chain over the given stages, in execution order.
func NewChain(log *logging.Logger, stages ...Stage) *Chain {
	return &Chain{stages: stages, log: log.Named("validate")}
}

// NewDefaultChain builds the standard chain: schema, business rules,
// model-assisted plausibility. checker may be nil.
func NewDefaultChain(log *logging.Logger, checker Checker) *Chain {
	return NewChain(log,
		NewSchemaStage(),
		NewSemanticStage(),
		NewPlausibilityStage(checker),
	)
}

// Validate produces one verdict per stage, stopping early only on reject.
// Re-invoking restarts the chain from the first stage.
func (c *Chain) Validate(ctx context.Context, subj Subject) []Verdict {
	verdicts := make([]Verdict, 0, len(c.stages))

	for _, stage := range c.stages {
		verdict, err := stage.Check(ctx, subj, verdicts)
		if err != nil {
			// A malfunctioning validator must not silently drop the
			// record or veto it: record the fault and keep going.
			verdict = Verdict{
				Stage:    stage.Name(),
				Outcome:  Flag,
				Severity: SeverityWarn,
				Reason:   "validator fault: " + err.Error(),
			}
			c.log.Warn(ctx, "validation stage fault",
				zap.String("stage", stage.Name()),
				zap.String("message_id", subj.Result.MessageID),
				zap.Error(err),
			)
		}

		verdicts = append(verdicts, verdict)
		if verdict.Outcome == Reject {
			break
		}
	}

	return verdicts
}
