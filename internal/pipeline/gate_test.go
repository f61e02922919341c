package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/crestline-eng/intaked/internal/config"
	"github.com/crestline-eng/intaked/internal/extract"
	"github.com/crestline-eng/intaked/internal/validate"
)

func newGate(mode string, threshold float64, ceiling string) *Gate {
	return NewGate(config.PipelineConfig{
		Mode:                mode,
		ConfidenceThreshold: threshold,
		FlagCeiling:         ceiling,
	})
}

func result(confidence float64) extract.Result {
	return extract.Result{MessageID: "m-1", Strategy: extract.StrategyRules, Confidence: confidence}
}

func flag(sev validate.Severity) validate.Verdict {
	return validate.Verdict{Stage: validate.StageSemantic, Outcome: validate.Flag, Severity: sev, Reason: "x"}
}

func TestGate_CleanRecordAccepted(t *testing.T) {
	g := newGate(config.ModeAutomated, 0.85, "warn")

	d := g.Decide(result(0.2), []validate.Verdict{
		{Stage: validate.StageSchema, Outcome: validate.Pass},
		{Stage: validate.StageSemantic, Outcome: validate.Pass},
	})
	assert.Equal(t, OutcomeAccepted, d.Outcome)
}

func TestGate_RejectVerdictIsDecisive(t *testing.T) {
	g := newGate(config.ModeAutomated, 0.85, "warn")

	d := g.Decide(result(0.99), []validate.Verdict{
		{Stage: validate.StageSchema, Outcome: validate.Reject, Reason: "required field missing"},
	})
	assert.Equal(t, OutcomeRejected, d.Outcome)
	assert.Contains(t, d.Reason, "required field missing")
}

func TestGate_ConfidenceAtThresholdAccepts(t *testing.T) {
	g := newGate(config.ModeAutomated, 0.85, "warn")

	d := g.Decide(result(0.85), []validate.Verdict{flag(validate.SeverityInfo)})
	assert.Equal(t, OutcomeAccepted, d.Outcome)
}

func TestGate_ConfidenceBelowThresholdQuarantines(t *testing.T) {
	g := newGate(config.ModeAutomated, 0.85, "warn")

	d := g.Decide(result(0.8499), []validate.Verdict{flag(validate.SeverityInfo)})
	assert.Equal(t, OutcomeQuarantined, d.Outcome)
}

func TestGate_SeverityAboveCeilingQuarantines(t *testing.T) {
	g := newGate(config.ModeAutomated, 0.85, "warn")

	d := g.Decide(result(0.99), []validate.Verdict{flag(validate.SeverityHigh)})
	assert.Equal(t, OutcomeQuarantined, d.Outcome)
	assert.Contains(t, d.Reason, "exceeds ceiling")
}

func TestGate_SeverityAtCeilingAccepts(t *testing.T) {
	g := newGate(config.ModeAutomated, 0.85, "warn")

	d := g.Decide(result(0.9), []validate.Verdict{flag(validate.SeverityWarn)})
	assert.Equal(t, OutcomeAccepted, d.Outcome)
}

func TestGate_ManualModeQuarantinesAnyFlag(t *testing.T) {
	g := newGate(config.ModeManual, 0.85, "warn")

	d := g.Decide(result(0.99), []validate.Verdict{flag(validate.SeverityInfo)})
	assert.Equal(t, OutcomeQuarantined, d.Outcome)
}

func TestGate_ManualModeCleanRecordStillAccepted(t *testing.T) {
	g := newGate(config.ModeManual, 0.85, "warn")

	d := g.Decide(result(0.5), []validate.Verdict{
		{Stage: validate.StageSchema, Outcome: validate.Pass},
	})
	assert.Equal(t, OutcomeAccepted, d.Outcome)
}

func TestGate_Deterministic(t *testing.T) {
	g := newGate(config.ModeAutomated, 0.85, "warn")
	verdicts := []validate.Verdict{flag(validate.SeverityInfo)}

	first := g.Decide(result(0.85), verdicts)
	second := g.Decide(result(0.85), verdicts)
	assert.Equal(t, first, second)
}
