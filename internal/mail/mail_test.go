package mail

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crestline-eng/intaked/internal/config"
)

func TestPreprocess_StripsFooters(t *testing.T) {
	body := "Carrier Claim Number: CLM-1\nLoss Address: 12 Oak St\n--\nJane Doe\nRegards,\nJane"
	got := Preprocess(body)

	assert.Contains(t, got, "Carrier Claim Number: CLM-1")
	assert.Contains(t, got, "Loss Address: 12 Oak St")
	assert.NotContains(t, got, "Regards,")
	assert.NotContains(t, got, "--")
}

func TestPreprocess_TrimsWhitespace(t *testing.T) {
	assert.Equal(t, "hello", Preprocess("  \n hello \n  "))
}

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := NewClassifier(config.Default().Sensitivity)
	require.NoError(t, err)
	return c
}

func TestClassify_KeywordHit(t *testing.T) {
	c := newTestClassifier(t)

	s := c.Classify(RawMessage{Body: "The patient reported water damage after the storm."})
	assert.True(t, s.Regulated)
	assert.Contains(t, s.Markers, "keyword:patient")
}

func TestClassify_SSNPattern(t *testing.T) {
	c := newTestClassifier(t)

	s := c.Classify(RawMessage{Body: "Insured SSN 123-45-6789 on file."})
	assert.True(t, s.Regulated)
	assert.Contains(t, s.Markers, "pattern:ssn")
}

func TestClassify_CleanMessage(t *testing.T) {
	c := newTestClassifier(t)

	s := c.Classify(RawMessage{Body: "Hail damage to roof, inspection requested."})
	assert.False(t, s.Regulated)
	assert.Empty(t, s.Markers)
}

func TestClassify_CustomPattern(t *testing.T) {
	c, err := NewClassifier(config.SensitivityConfig{
		Patterns: []string{`\bPOL-\d{6}\b`},
	})
	require.NoError(t, err)

	s := c.Classify(RawMessage{Body: "policy POL-123456"})
	assert.True(t, s.Regulated)
	assert.Contains(t, s.Markers, "pattern:custom_0")
}

func TestNewClassifier_RejectsBadPattern(t *testing.T) {
	_, err := NewClassifier(config.SensitivityConfig{Patterns: []string{"("}})
	assert.Error(t, err)
}

func TestRedact_ReplacesPII(t *testing.T) {
	c := newTestClassifier(t)

	out := c.Redact("SSN 123-45-6789, claim CLM-9")
	assert.NotContains(t, out, "123-45-6789")
	assert.Contains(t, out, "[REDACTED:SSN]")
	assert.Contains(t, out, "claim CLM-9")
}

func TestParseRFC822_SinglePart(t *testing.T) {
	raw := "Message-Id: <abc@example.com>\r\n" +
		"From: Jane Adjuster <jane@carrier.example>\r\n" +
		"Subject: New Assignment\r\n" +
		"Date: Mon, 12 Jan 2026 10:00:00 +0000\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"Carrier Claim Number: CLM-42\r\n"

	msg, err := ParseRFC822([]byte(raw), time.Now())
	require.NoError(t, err)

	assert.Equal(t, "abc@example.com", msg.ID)
	assert.Equal(t, "jane@carrier.example", msg.Sender)
	assert.Equal(t, "New Assignment", msg.Subject)
	assert.Contains(t, msg.Body, "Carrier Claim Number: CLM-42")
	assert.Equal(t, 2026, msg.ReceivedAt.Year())
}

func TestParseRFC822_MissingMessageIDGetsUUID(t *testing.T) {
	raw := "From: a@b.example\r\nSubject: x\r\nContent-Type: text/plain\r\n\r\nbody\r\n"

	msg, err := ParseRFC822([]byte(raw), time.Now())
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
}
