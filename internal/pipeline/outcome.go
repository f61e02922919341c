// Package pipeline orchestrates the intake flow for one message: strategy
// selection, extraction with retries and demotion, the validation chain,
// and the adjudication gate that assigns exactly one outcome per message.
package pipeline

import (
	"errors"
	"time"

	"github.com/crestline-eng/intaked/internal/extract"
	"github.com/crestline-eng/intaked/internal/validate"
)

// Outcome is the pipeline-level disposition of a message.
type Outcome string

const (
	// OutcomeAccepted releases the record to downstream integration.
	OutcomeAccepted Outcome = "accepted"

	// OutcomeQuarantined parks the record for human review. It is the
	// only non-absorbing outcome: a review decision resolves it to
	// accepted or rejected exactly once.
	OutcomeQuarantined Outcome = "quarantined"

	// OutcomeRejected discards the record with a recorded reason.
	OutcomeRejected Outcome = "rejected"
)

// Terminal reports whether the outcome is absorbing. Accepted and rejected
// records never change outcome again.
func (o Outcome) Terminal() bool {
	return o == OutcomeAccepted || o == OutcomeRejected
}

var (
	// ErrAlreadyDecided is returned when storing a record for a message
	// that already has one.
	ErrAlreadyDecided = errors.New("message already has an outcome")

	// ErrNotFound is returned when resolving a message with no record.
	ErrNotFound = errors.New("no outcome recorded for message")

	// ErrNotQuarantined is returned when resolving a record that is not
	// awaiting review.
	ErrNotQuarantined = errors.New("outcome is not quarantined")
)

// Record is the durable per-message outcome. One record exists per message
// ID; reprocessing the same message replays the stored record instead of
// running the pipeline again.
type Record struct {
	MessageID  string             `json:"message_id"`
	Outcome    Outcome            `json:"outcome"`
	Strategy   extract.ID         `json:"strategy,omitempty"`
	Degraded   bool               `json:"degraded,omitempty"`
	Confidence float64            `json:"confidence"`
	Fields     map[string]any     `json:"fields,omitempty"`
	Verdicts   []validate.Verdict `json:"verdicts,omitempty"`
	Reason     string             `json:"reason,omitempty"`
	DecidedAt  time.Time          `json:"decided_at"`

	// Reviewer and ResolvedAt are set when a quarantined record is
	// resolved by a review decision.
	Reviewer   string    `json:"reviewer,omitempty"`
	ResolvedAt time.Time `json:"resolved_at,omitempty"`
}

// resolve applies a review decision to a quarantined record.
func (r *Record) resolve(final Outcome, reviewer string, at time.Time) error {
	if r.Outcome != OutcomeQuarantined {
		return ErrNotQuarantined
	}
	if !final.Terminal() {
		return errors.New("review decision must be accepted or rejected")
	}
	r.Outcome = final
	r.Reviewer = reviewer
	r.ResolvedAt = at
	return nil
}
