package validate

import (
	"context"
	"fmt"
	"strings"

	"github.com/crestline-eng/intaked/internal/extract"
)

// SemanticStage checks domain constraints the schema cannot express. A
// violation flags the record with a suggested correction when one can be
// derived; this stage never rejects.
type SemanticStage struct{}

// NewSemanticStage returns the business-rule validation stage.
func NewSemanticStage() *SemanticStage { return &SemanticStage{} }

// Name implements Stage.
func (s *SemanticStage) Name() string { return StageSemantic }

// Check implements Stage.
func (s *SemanticStage) Check(ctx context.Context, subj Subject, _ []Verdict) (Verdict, error) {
	var (
		findings   []string
		severity   = SeverityInfo
		suggestion map[string]string
	)

	suggest := func(field, value string) {
		if suggestion == nil {
			suggestion = make(map[string]string)
		}
		suggestion[field] = value
	}
	raise := func(sev Severity) {
		if sev.Exceeds(severity) {
			severity = sev
		}
	}

	// A loss cannot postdate the email reporting it.
	if raw, ok := subj.Result.Fields[extract.FieldDateOfLoss].(string); ok {
		if lossDate, ok := ParseDate(raw); ok && !subj.Received.IsZero() {
			if lossDate.After(subj.Received) {
				findings = append(findings, fmt.Sprintf(
					"date of loss %s is after the email's received date %s",
					lossDate.Format("2006-01-02"), subj.Received.Format("2006-01-02")))
				suggest(extract.FieldDateOfLoss, subj.Received.Format("2006-01-02"))
				raise(SeverityInfo)
			}
		}
	}

	// Ownership should be in canonical casing for downstream storage.
	if raw, ok := subj.Result.Fields[extract.FieldOwnership].(string); ok {
		canonical := canonicalOwnership(raw)
		if canonical != "" && canonical != raw {
			findings = append(findings, fmt.Sprintf("ownership %q is not in canonical form", raw))
			suggest(extract.FieldOwnership, canonical)
			raise(SeverityInfo)
		}
	}

	// An assignment with no type ticked at all is suspect.
	if noAssignmentType(subj.Result.Fields) {
		findings = append(findings, "no assignment type is ticked")
		raise(SeverityWarn)
	}

	// A claim number that looks like free text rather than an identifier.
	if raw, ok := subj.Result.Fields[extract.FieldCarrierClaimNumber].(string); ok {
		if strings.Count(raw, " ") > 3 {
			findings = append(findings, fmt.Sprintf("carrier claim number %q does not look like an identifier", raw))
			raise(SeverityWarn)
		}
	}

	if len(findings) == 0 {
		return Verdict{
			Stage:   StageSemantic,
			Outcome: Pass,
			Reason:  "all business rules satisfied",
		}, nil
	}
	return Verdict{
		Stage:      StageSemantic,
		Outcome:    Flag,
		Severity:   severity,
		Reason:     strings.Join(findings, "; "),
		Suggestion: suggestion,
	}, nil
}

func canonicalOwnership(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "owner":
		return "Owner"
	case "tenant":
		return "Tenant"
	default:
		return ""
	}
}

// noAssignmentType reports whether every assignment-type checkbox is
// either absent or false.
func noAssignmentType(fields map[string]any) bool {
	boxes := []string{
		extract.FieldTypeWind,
		extract.FieldTypeStructural,
		extract.FieldTypeHail,
		extract.FieldTypeFoundation,
		extract.FieldTypeOther,
	}
	seen := false
	for _, name := range boxes {
		v, ok := fields[name]
		if !ok {
			continue
		}
		seen = true
		if ticked, ok := v.(bool); ok && ticked {
			return false
		}
	}
	return seen
}
