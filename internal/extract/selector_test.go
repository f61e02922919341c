package extract

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crestline-eng/intaked/internal/config"
	"github.com/crestline-eng/intaked/internal/logging"
	"github.com/crestline-eng/intaked/internal/mail"
)

func fullSelector(t *testing.T) *Selector {
	t.Helper()
	return NewSelector(logging.NewNop(),
		NewRuleStrategy(),
		NewCloudStrategy(&fakeModel{}, testRedactor(t), time.Minute),
		NewLocalStrategy(&fakeModel{}, time.Minute),
	)
}

func TestSelect_RegulatedAutomatedPrefersLocal(t *testing.T) {
	s := fullSelector(t)

	sel := s.Select(context.Background(), mail.RawMessage{ID: "m1", Body: "unstructured"},
		mail.Sensitivity{Regulated: true}, config.ModeAutomated)

	assert.Equal(t, StrategyLocal, sel.Strategy)
	assert.False(t, sel.Degraded)
}

func TestSelect_RegulatedManualUsesNormalPolicy(t *testing.T) {
	s := fullSelector(t)

	sel := s.Select(context.Background(), mail.RawMessage{ID: "m2", Body: "unstructured"},
		mail.Sensitivity{Regulated: true}, config.ModeManual)

	assert.Equal(t, StrategyCloud, sel.Strategy)
}

func TestSelect_TemplateGoesToRules(t *testing.T) {
	s := fullSelector(t)

	sel := s.Select(context.Background(), mail.RawMessage{ID: "m3", Body: standardForm},
		mail.Sensitivity{}, config.ModeAutomated)

	assert.Equal(t, StrategyRules, sel.Strategy)
	assert.False(t, sel.Degraded)
}

func TestSelect_DefaultIsCloud(t *testing.T) {
	s := fullSelector(t)

	sel := s.Select(context.Background(), mail.RawMessage{ID: "m4", Body: "free-form text"},
		mail.Sensitivity{}, config.ModeAutomated)

	assert.Equal(t, StrategyCloud, sel.Strategy)
}

func TestSelect_NoModelsFallsBackDegraded(t *testing.T) {
	s := NewSelector(logging.NewNop(), NewRuleStrategy())

	sel := s.Select(context.Background(), mail.RawMessage{ID: "m5", Body: "free-form text"},
		mail.Sensitivity{}, config.ModeAutomated)

	assert.Equal(t, StrategyRules, sel.Strategy)
	assert.True(t, sel.Degraded)
}

func TestSelect_RegulatedNoLocalNeverCloud(t *testing.T) {
	s := NewSelector(logging.NewNop(),
		NewRuleStrategy(),
		NewCloudStrategy(&fakeModel{}, testRedactor(t), time.Minute),
	)

	sel := s.Select(context.Background(), mail.RawMessage{ID: "m6", Body: "free-form"},
		mail.Sensitivity{Regulated: true}, config.ModeAutomated)

	assert.Equal(t, StrategyRules, sel.Strategy)
	assert.True(t, sel.Degraded)
}

func TestDemote_Chain(t *testing.T) {
	s := fullSelector(t)

	sel, ok := s.Demote(StrategyCloud)
	require.True(t, ok)
	assert.Equal(t, StrategyLocal, sel.Strategy)
	assert.True(t, sel.Degraded)

	sel, ok = s.Demote(StrategyLocal)
	require.True(t, ok)
	assert.Equal(t, StrategyRules, sel.Strategy)

	_, ok = s.Demote(StrategyRules)
	assert.False(t, ok)
}

func TestDemote_SkipsUnavailableLocal(t *testing.T) {
	s := NewSelector(logging.NewNop(),
		NewRuleStrategy(),
		NewCloudStrategy(&fakeModel{}, testRedactor(t), time.Minute),
	)

	sel, ok := s.Demote(StrategyCloud)
	require.True(t, ok)
	assert.Equal(t, StrategyRules, sel.Strategy)
}

func TestMatchesTemplate(t *testing.T) {
	assert.True(t, MatchesTemplate(standardForm))
	assert.False(t, MatchesTemplate("Hi, the roof is leaking, please send someone."))
}
