package extract

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crestline-eng/intaked/internal/config"
	"github.com/crestline-eng/intaked/internal/mail"
)

// fakeModel is a scripted ModelClient.
type fakeModel struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeModel) Call(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func testRedactor(t *testing.T) *mail.Classifier {
	t.Helper()
	c, err := mail.NewClassifier(config.Default().Sensitivity)
	require.NoError(t, err)
	return c
}

func TestCloudStrategy_Extract(t *testing.T) {
	model := &fakeModel{response: `{"Carrier Claim Number": "CLM-9", "confidence": 0.9}`}
	s := NewCloudStrategy(model, testRedactor(t), time.Minute)

	res, err := s.Extract(context.Background(), mail.RawMessage{ID: "m1", Body: "claim email"})
	require.NoError(t, err)

	assert.Equal(t, StrategyCloud, res.Strategy)
	assert.Equal(t, "CLM-9", res.Fields[FieldCarrierClaimNumber])
	assert.Equal(t, 0.9, res.Confidence)
}

func TestCloudStrategy_RedactsBeforeSending(t *testing.T) {
	model := &fakeModel{response: `{"Handler": "Jo", "confidence": 0.5}`}
	s := NewCloudStrategy(model, testRedactor(t), time.Minute)

	_, err := s.Extract(context.Background(), mail.RawMessage{
		ID:   "m2",
		Body: "Insured SSN 123-45-6789, claim CLM-1",
	})
	require.NoError(t, err)

	require.Len(t, model.prompts, 1)
	assert.NotContains(t, model.prompts[0], "123-45-6789")
	assert.Contains(t, model.prompts[0], "[REDACTED:SSN]")
	assert.Contains(t, model.prompts[0], "CLM-1")
}

func TestCloudStrategy_CallFailureIsRetryable(t *testing.T) {
	model := &fakeModel{err: errors.New("upstream 503")}
	s := NewCloudStrategy(model, testRedactor(t), time.Minute)

	_, err := s.Extract(context.Background(), mail.RawMessage{ID: "m3", Body: "x"})
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}

func TestCloudStrategy_TimeoutIsRetryable(t *testing.T) {
	model := &fakeModel{err: context.DeadlineExceeded}
	s := NewCloudStrategy(model, testRedactor(t), time.Minute)

	_, err := s.Extract(context.Background(), mail.RawMessage{ID: "m4", Body: "x"})
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}

func TestCloudStrategy_MalformedResponseNotRetryable(t *testing.T) {
	model := &fakeModel{response: "sorry, no can do"}
	s := NewCloudStrategy(model, testRedactor(t), time.Minute)

	_, err := s.Extract(context.Background(), mail.RawMessage{ID: "m5", Body: "x"})
	require.Error(t, err)
	assert.False(t, IsRetryable(err))

	var ee *Error
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, StrategyCloud, ee.Strategy)
}

func TestLocalStrategy_DoesNotRedact(t *testing.T) {
	model := &fakeModel{response: `{"Handler": "Jo", "confidence": 0.5}`}
	s := NewLocalStrategy(model, time.Minute)

	_, err := s.Extract(context.Background(), mail.RawMessage{
		ID:   "m6",
		Body: "Insured SSN 123-45-6789",
	})
	require.NoError(t, err)

	require.Len(t, model.prompts, 1)
	assert.Contains(t, model.prompts[0], "123-45-6789")
	assert.False(t, strings.Contains(model.prompts[0], "[REDACTED:SSN]"))
}

func TestLocalStrategy_Availability(t *testing.T) {
	assert.False(t, NewLocalStrategy(nil, 0).Available())
	assert.True(t, NewLocalStrategy(&fakeModel{}, 0).Available())
}
