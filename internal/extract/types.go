// Package extract converts raw assignment emails into candidate structured
// records. Three strategies share one contract: deterministic rule-based
// matching, a cloud-hosted model, and a locally hosted model.
package extract

import (
	"context"
	"errors"
	"fmt"

	"github.com/crestline-eng/intaked/internal/mail"
)

// ID identifies an extraction strategy.
type ID string

const (
	StrategyRules ID = "rules"
	StrategyCloud ID = "cloud"
	StrategyLocal ID = "local"
)

// Result is the candidate record produced by one strategy for one message.
// Immutable once produced. Field values are string, bool, or []string;
// typed interpretation (dates, phones, emails) happens in validation.
type Result struct {
	MessageID  string
	Strategy   ID
	Fields     map[string]any
	Confidence float64
	Warnings   []string

	// Degraded marks results produced after a fallback selection, e.g.
	// rules standing in for an unreachable cloud strategy.
	Degraded bool
}

// Strategy is the common extraction contract.
type Strategy interface {
	// ID returns the strategy identifier recorded in results.
	ID() ID

	// Extract produces a candidate record from the message, or an
	// *Error when no structured data could be produced.
	Extract(ctx context.Context, msg mail.RawMessage) (Result, error)

	// Available reports whether the strategy is configured and ready.
	Available() bool
}

// Error is the extraction failure taxonomy: a strategy could not produce
// any structured data.
type Error struct {
	Strategy  ID
	Cause     error
	Retryable bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("extraction failed (%s): %v", e.Strategy, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether err is an extraction error worth retrying
// (timeout, upstream 5xx, unreachable endpoint).
func IsRetryable(err error) bool {
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Retryable
	}
	return false
}
