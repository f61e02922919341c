// Package validate runs extraction results through an ordered chain of
// independent correctness stages: schema, business rules, and model-based
// plausibility.
package validate

import (
	"time"

	"github.com/crestline-eng/intaked/internal/extract"
)

// Outcome is a stage's judgment of a record.
type Outcome string

const (
	Pass   Outcome = "pass"
	Flag   Outcome = "flag"
	Reject Outcome = "reject"
)

// Severity ranks flag verdicts for the adjudication gate.
type Severity string

const (
	SeverityInfo Severity = "info"
	SeverityWarn Severity = "warn"
	SeverityHigh Severity = "high"
)

var severityRank = map[Severity]int{
	SeverityInfo: 0,
	SeverityWarn: 1,
	SeverityHigh: 2,
}

// Exceeds reports whether s ranks above ceiling.
func (s Severity) Exceeds(ceiling Severity) bool {
	return severityRank[s] > severityRank[ceiling]
}

// Verdict is one stage's result for one record.
type Verdict struct {
	Stage    string   `json:"stage"`
	Outcome  Outcome  `json:"outcome"`
	Severity Severity `json:"severity,omitempty"`
	Reason   string   `json:"reason"`

	// Suggestion carries a corrected value when the stage can derive
	// one, keyed by field name.
	Suggestion map[string]string `json:"suggestion,omitempty"`
}

// Subject is the unit of validation: an extraction result plus the
// message metadata the business rules need.
type Subject struct {
	Result   extract.Result
	Received time.Time
}

// Stage names, in chain order.
const (
	StageSchema       = "schema"
	StageSemantic     = "semantic"
	StagePlausibility = "plausibility"
)
