package mail

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/crestline-eng/intaked/internal/config"
)

// builtinPatterns always apply, in addition to configured keywords and
// patterns. Named so classification markers and redactions are auditable.
var builtinPatterns = []struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}{
	{
		"ssn",
		regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
		"[REDACTED:SSN]",
	},
	{
		"dob",
		regexp.MustCompile(`(?i)\b(?:date of birth|dob)\s*[:=]?\s*\d{1,2}[/-]\d{1,2}[/-]\d{2,4}`),
		"[REDACTED:DOB]",
	},
	{
		"medicare_id",
		regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}-[A-Z]\d?\b`),
		"[REDACTED:MEDICARE_ID]",
	},
	{
		"credit_card",
		regexp.MustCompile(`\b(?:\d[ -]?){13,16}\b`),
		"[REDACTED:CARD]",
	},
}

// Classifier detects regulated personal data in message bodies. Safe for
// concurrent use; the compiled state is read-only after construction.
type Classifier struct {
	keywords []string
	patterns []compiledPattern
}

type compiledPattern struct {
	name  string
	regex *regexp.Regexp
}

// NewClassifier compiles the configured sensitivity keywords and patterns.
func NewClassifier(cfg config.SensitivityConfig) (*Classifier, error) {
	keywords := make([]string, 0, len(cfg.Keywords))
	for _, kw := range cfg.Keywords {
		keywords = append(keywords, strings.ToLower(kw))
	}

	patterns := make([]compiledPattern, 0, len(cfg.Patterns))
	for i, p := range cfg.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid sensitivity pattern %q: %w", p, err)
		}
		patterns = append(patterns, compiledPattern{
			name:  fmt.Sprintf("custom_%d", i),
			regex: re,
		})
	}

	return &Classifier{keywords: keywords, patterns: patterns}, nil
}

// Classify computes the sensitivity of a message from its subject and body.
func (c *Classifier) Classify(msg RawMessage) Sensitivity {
	content := strings.ToLower(msg.Subject + "\n" + msg.Body)

	var markers []string
	for _, kw := range c.keywords {
		if strings.Contains(content, kw) {
			markers = append(markers, "keyword:"+kw)
		}
	}
	for _, p := range builtinPatterns {
		if p.regex.MatchString(msg.Body) {
			markers = append(markers, "pattern:"+p.name)
		}
	}
	for _, p := range c.patterns {
		if p.regex.MatchString(msg.Body) {
			markers = append(markers, "pattern:"+p.name)
		}
	}

	return Sensitivity{Regulated: len(markers) > 0, Markers: markers}
}

// Redact replaces known regulated-data patterns in content with named
// placeholders. Applied before any content leaves the controlled
// environment (cloud extraction).
func (c *Classifier) Redact(content string) string {
	result := content
	for _, p := range builtinPatterns {
		result = p.regex.ReplaceAllString(result, p.replacement)
	}
	for _, p := range c.patterns {
		result = p.regex.ReplaceAllString(result, "[REDACTED:"+p.name+"]")
	}
	return result
}
