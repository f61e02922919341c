package extract

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/crestline-eng/intaked/internal/config"
	"github.com/crestline-eng/intaked/internal/logging"
	"github.com/crestline-eng/intaked/internal/mail"
)

// templateMarkers are the section markers of the standard assignment form.
// A body containing all of them is structured enough for the rule-based
// strategy.
var templateMarkers = []string{
	"requesting party insurance company",
	"carrier claim number",
	"adjuster name",
	"date of loss",
}

// Selection is the audited outcome of strategy selection: the chosen
// strategy plus the rationale recorded for later review.
type Selection struct {
	Strategy  ID
	Rationale string

	// Degraded marks a fallback pick made because the preferred
	// strategy was unavailable.
	Degraded bool
}

// Selector routes each message to an extraction strategy based on
// sensitivity, structural signals, and the operating mode. Selection has
// no side effects on the message; the decision itself is logged for audit.
type Selector struct {
	strategies map[ID]Strategy
	log        *logging.Logger
}

// NewSelector builds a selector over the given strategies. The rule-based
// strategy must always be present; cloud and local are optional.
func NewSelector(log *logging.Logger, strategies ...Strategy) *Selector {
	m := make(map[ID]Strategy, len(strategies))
	for _, s := range strategies {
		m[s.ID()] = s
	}
	return &Selector{strategies: m, log: log.Named("selector")}
}

// Strategy returns the strategy registered under id.
func (s *Selector) Strategy(id ID) (Strategy, bool) {
	st, ok := s.strategies[id]
	return st, ok
}

// Select picks the strategy for one message. Precedence:
//
//  1. Regulated content in automated mode stays in the controlled
//     environment: local model, or rules when no local model is up.
//  2. A body matching the standard form layout goes to rules (cheapest,
//     fully auditable).
//  3. Everything else goes to the cloud model, demoting to local and
//     finally rules when unavailable.
//
// Select never fails: the rule-based strategy is the terminal fallback,
// marked degraded when it stands in for an unavailable model.
func (s *Selector) Select(ctx context.Context, msg mail.RawMessage, sens mail.Sensitivity, mode string) Selection {
	sel := s.decide(msg, sens, mode)
	s.log.Info(ctx, "strategy selected",
		zap.String("message_id", msg.ID),
		zap.String("strategy", string(sel.Strategy)),
		zap.String("rationale", sel.Rationale),
		zap.Bool("degraded", sel.Degraded),
	)
	return sel
}

func (s *Selector) decide(msg mail.RawMessage, sens mail.Sensitivity, mode string) Selection {
	if sens.Regulated && mode == config.ModeAutomated {
		if s.available(StrategyLocal) {
			return Selection{
				Strategy:  StrategyLocal,
				Rationale: "regulated personal data; inference stays local",
			}
		}
		// Regulated content never goes to the cloud in automated mode.
		return Selection{
			Strategy:  StrategyRules,
			Rationale: "regulated personal data and no local model; rules fallback",
			Degraded:  true,
		}
	}

	if MatchesTemplate(msg.Body) {
		return Selection{
			Strategy:  StrategyRules,
			Rationale: "body matches standard assignment form",
		}
	}

	if s.available(StrategyCloud) {
		return Selection{
			Strategy:  StrategyCloud,
			Rationale: "unstructured content; cloud model default",
		}
	}
	if s.available(StrategyLocal) {
		return Selection{
			Strategy:  StrategyLocal,
			Rationale: "cloud unavailable; local model fallback",
			Degraded:  true,
		}
	}
	return Selection{
		Strategy:  StrategyRules,
		Rationale: "no model available; rules fallback",
		Degraded:  true,
	}
}

// Demote returns the next lower-capability strategy after from has
// exhausted its retries: cloud -> local -> rules. Unavailable strategies
// are skipped. ok is false once nothing below rules remains.
func (s *Selector) Demote(from ID) (Selection, bool) {
	switch from {
	case StrategyCloud:
		if s.available(StrategyLocal) {
			return Selection{
				Strategy:  StrategyLocal,
				Rationale: "cloud retries exhausted; demoted to local",
				Degraded:  true,
			}, true
		}
		fallthrough
	case StrategyLocal:
		return Selection{
			Strategy:  StrategyRules,
			Rationale: "model retries exhausted; demoted to rules",
			Degraded:  true,
		}, true
	default:
		return Selection{}, false
	}
}

func (s *Selector) available(id ID) bool {
	st, ok := s.strategies[id]
	return ok && st.Available()
}

// MatchesTemplate reports whether the body carries every section marker of
// the standard assignment form.
func MatchesTemplate(body string) bool {
	content := strings.ToLower(mail.Preprocess(body))
	for _, marker := range templateMarkers {
		if !strings.Contains(content, marker) {
			return false
		}
	}
	return true
}
