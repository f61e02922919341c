package validate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crestline-eng/intaked/internal/extract"
	"github.com/crestline-eng/intaked/internal/logging"
)

func validFields() map[string]any {
	return map[string]any{
		extract.FieldInsuranceCompany:   "ABC Insurance",
		extract.FieldHandler:            "John Doe",
		extract.FieldCarrierClaimNumber: "CLM123456",
		extract.FieldInsuredName:        "Jane Smith",
		extract.FieldInsuredContact:     "+12345678901",
		extract.FieldLossAddress:        "123 Main St, Anytown",
		extract.FieldOwnership:          "Owner",
		extract.FieldAdjusterName:       "Mike Johnson",
		extract.FieldAdjusterPhone:      "+10987654321",
		extract.FieldAdjusterEmail:      "mike@example.com",
		extract.FieldPolicyNumber:       "POL789012",
		extract.FieldDateOfLoss:         "2026-01-10",
		extract.FieldCauseOfLoss:        "Windstorm",
		extract.FieldLossDescription:    "Roof damaged, windows broken",
		extract.FieldTypeWind:           true,
	}
}

func subject(fields map[string]any) Subject {
	return Subject{
		Result: extract.Result{
			MessageID:  "m-1",
			Strategy:   extract.StrategyRules,
			Fields:     fields,
			Confidence: 0.9,
		},
		Received: time.Date(2026, 1, 12, 10, 0, 0, 0, time.UTC),
	}
}

func TestSchemaStage_Pass(t *testing.T) {
	v, err := NewSchemaStage().Check(context.Background(), subject(validFields()), nil)
	require.NoError(t, err)
	assert.Equal(t, Pass, v.Outcome)
}

func TestSchemaStage_MissingRequiredRejects(t *testing.T) {
	fields := validFields()
	delete(fields, extract.FieldCarrierClaimNumber)

	v, err := NewSchemaStage().Check(context.Background(), subject(fields), nil)
	require.NoError(t, err)
	assert.Equal(t, Reject, v.Outcome)
	assert.Contains(t, v.Reason, `required field "Carrier Claim Number" missing`)
}

func TestSchemaStage_BadDateRejects(t *testing.T) {
	fields := validFields()
	fields[extract.FieldDateOfLoss] = "sometime last spring"

	v, err := NewSchemaStage().Check(context.Background(), subject(fields), nil)
	require.NoError(t, err)
	assert.Equal(t, Reject, v.Outcome)
	assert.Contains(t, v.Reason, "not a valid date")
}

func TestSchemaStage_BadPhoneRejects(t *testing.T) {
	fields := validFields()
	fields[extract.FieldInsuredContact] = "call my office"

	v, err := NewSchemaStage().Check(context.Background(), subject(fields), nil)
	require.NoError(t, err)
	assert.Equal(t, Reject, v.Outcome)
}

func TestSchemaStage_PhoneSeparatorsAccepted(t *testing.T) {
	fields := validFields()
	fields[extract.FieldInsuredContact] = "(234) 567-8901"

	v, err := NewSchemaStage().Check(context.Background(), subject(fields), nil)
	require.NoError(t, err)
	assert.Equal(t, Pass, v.Outcome)
}

func TestSchemaStage_OptionalTypeProblemFlags(t *testing.T) {
	fields := validFields()
	fields[extract.FieldTypeHail] = "yes"

	v, err := NewSchemaStage().Check(context.Background(), subject(fields), nil)
	require.NoError(t, err)
	assert.Equal(t, Flag, v.Outcome)
	assert.Equal(t, SeverityWarn, v.Severity)
}

func TestSemanticStage_Pass(t *testing.T) {
	v, err := NewSemanticStage().Check(context.Background(), subject(validFields()), nil)
	require.NoError(t, err)
	assert.Equal(t, Pass, v.Outcome)
}

func TestSemanticStage_LossAfterReceivedFlagsWithSuggestion(t *testing.T) {
	fields := validFields()
	fields[extract.FieldDateOfLoss] = "2026-01-13" // one day after received

	v, err := NewSemanticStage().Check(context.Background(), subject(fields), nil)
	require.NoError(t, err)

	assert.Equal(t, Flag, v.Outcome)
	assert.Equal(t, SeverityInfo, v.Severity)
	assert.Equal(t, "2026-01-12", v.Suggestion[extract.FieldDateOfLoss])
}

func TestSemanticStage_OwnershipCasingSuggested(t *testing.T) {
	fields := validFields()
	fields[extract.FieldOwnership] = "owner"

	v, err := NewSemanticStage().Check(context.Background(), subject(fields), nil)
	require.NoError(t, err)
	assert.Equal(t, Flag, v.Outcome)
	assert.Equal(t, "Owner", v.Suggestion[extract.FieldOwnership])
}

func TestSemanticStage_NoAssignmentTypeWarns(t *testing.T) {
	fields := validFields()
	fields[extract.FieldTypeWind] = false

	v, err := NewSemanticStage().Check(context.Background(), subject(fields), nil)
	require.NoError(t, err)
	assert.Equal(t, Flag, v.Outcome)
	assert.Equal(t, SeverityWarn, v.Severity)
}

// fakeChecker is a scripted plausibility checker.
type fakeChecker struct {
	plausible bool
	reasoning string
	err       error
}

func (f *fakeChecker) Assess(ctx context.Context, fields map[string]any) (bool, string, error) {
	return f.plausible, f.reasoning, f.err
}

func TestPlausibilityStage_Implausible(t *testing.T) {
	stage := NewPlausibilityStage(&fakeChecker{plausible: false, reasoning: "hail damage to a basement"})

	v, err := stage.Check(context.Background(), subject(validFields()), nil)
	require.NoError(t, err)
	assert.Equal(t, Flag, v.Outcome)
	assert.Contains(t, v.Reason, "hail damage to a basement")
}

func TestPlausibilityStage_NilCheckerPasses(t *testing.T) {
	v, err := NewPlausibilityStage(nil).Check(context.Background(), subject(validFields()), nil)
	require.NoError(t, err)
	assert.Equal(t, Pass, v.Outcome)
}

func TestChain_AllPass(t *testing.T) {
	chain := NewDefaultChain(logging.NewNop(), &fakeChecker{plausible: true})

	verdicts := chain.Validate(context.Background(), subject(validFields()))
	require.Len(t, verdicts, 3)
	for _, v := range verdicts {
		assert.Equal(t, Pass, v.Outcome, v.Stage)
	}
}

func TestChain_RejectShortCircuits(t *testing.T) {
	fields := validFields()
	delete(fields, extract.FieldInsuredName)

	chain := NewDefaultChain(logging.NewNop(), &fakeChecker{plausible: true})
	verdicts := chain.Validate(context.Background(), subject(fields))

	require.Len(t, verdicts, 1)
	assert.Equal(t, StageSchema, verdicts[0].Stage)
	assert.Equal(t, Reject, verdicts[0].Outcome)
}

func TestChain_FlagsAccumulate(t *testing.T) {
	fields := validFields()
	fields[extract.FieldDateOfLoss] = "2026-01-13"

	chain := NewDefaultChain(logging.NewNop(), &fakeChecker{plausible: false, reasoning: "odd"})
	verdicts := chain.Validate(context.Background(), subject(fields))

	require.Len(t, verdicts, 3)
	assert.Equal(t, Flag, verdicts[1].Outcome)
	assert.Equal(t, Flag, verdicts[2].Outcome)
}

func TestChain_StageFaultBecomesFlag(t *testing.T) {
	chain := NewDefaultChain(logging.NewNop(), &fakeChecker{err: errors.New("model exploded")})

	verdicts := chain.Validate(context.Background(), subject(validFields()))
	require.Len(t, verdicts, 3)
	assert.Equal(t, Flag, verdicts[2].Outcome)
	assert.Contains(t, verdicts[2].Reason, "validator fault")
	assert.Contains(t, verdicts[2].Reason, "model exploded")
}

func TestSeverity_Exceeds(t *testing.T) {
	assert.True(t, SeverityHigh.Exceeds(SeverityWarn))
	assert.False(t, SeverityWarn.Exceeds(SeverityWarn))
	assert.False(t, SeverityInfo.Exceeds(SeverityWarn))
}
