package pipeline

import (
	"fmt"
	"strings"

	"github.com/crestline-eng/intaked/internal/config"
	"github.com/crestline-eng/intaked/internal/extract"
	"github.com/crestline-eng/intaked/internal/validate"
)

// Decision is the gate's disposition for one record.
type Decision struct {
	Outcome Outcome
	Reason  string
}

// Gate turns extraction confidence and validation verdicts into exactly one
// outcome. Any reject verdict is decisive. Flagged records are released
// automatically only when confidence clears the threshold and no flag rises
// above the configured severity ceiling; in manual mode every flagged
// record goes to review.
type Gate struct {
	mode      string
	threshold float64
	ceiling   validate.Severity
}

// NewGate builds the adjudication gate from pipeline configuration.
func NewGate(cfg config.PipelineConfig) *Gate {
	return &Gate{
		mode:      cfg.Mode,
		threshold: cfg.ConfidenceThreshold,
		ceiling:   validate.Severity(cfg.FlagCeiling),
	}
}

// Decide assigns the outcome for one record. It is a pure function of its
// inputs: the same result and verdicts always produce the same decision.
func (g *Gate) Decide(result extract.Result, verdicts []validate.Verdict) Decision {
	var flags []validate.Verdict
	for _, v := range verdicts {
		switch v.Outcome {
		case validate.Reject:
			return Decision{
				Outcome: OutcomeRejected,
				Reason:  fmt.Sprintf("%s: %s", v.Stage, v.Reason),
			}
		case validate.Flag:
			flags = append(flags, v)
		}
	}

	if len(flags) == 0 {
		return Decision{
			Outcome: OutcomeAccepted,
			Reason:  "all validation stages passed",
		}
	}

	if g.mode == config.ModeManual {
		return Decision{
			Outcome: OutcomeQuarantined,
			Reason:  "manual mode: flagged record requires review",
		}
	}

	// Confidence equal to the threshold clears it.
	if result.Confidence < g.threshold {
		return Decision{
			Outcome: OutcomeQuarantined,
			Reason: fmt.Sprintf("confidence %.2f below threshold %.2f with %d flag(s)",
				result.Confidence, g.threshold, len(flags)),
		}
	}
	for _, v := range flags {
		if v.Severity.Exceeds(g.ceiling) {
			return Decision{
				Outcome: OutcomeQuarantined,
				Reason: fmt.Sprintf("%s flag severity %s exceeds ceiling %s",
					v.Stage, v.Severity, g.ceiling),
			}
		}
	}

	return Decision{
		Outcome: OutcomeAccepted,
		Reason:  fmt.Sprintf("auto-released with %d tolerated flag(s): %s", len(flags), summarize(flags)),
	}
}

func summarize(flags []validate.Verdict) string {
	parts := make([]string, 0, len(flags))
	for _, v := range flags {
		parts = append(parts, v.Stage)
	}
	return strings.Join(parts, ", ")
}
