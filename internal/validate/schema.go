package validate

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/crestline-eng/intaked/internal/extract"
)

// dateLayouts are the calendar formats accepted for date fields.
var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

var (
	phonePattern = regexp.MustCompile(`^\+?1?\d{9,15}$`)
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// ParseDate parses a date field value against the accepted layouts.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// normalizePhone strips common separators before format checking.
func normalizePhone(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, s)
}

// SchemaStage checks field presence, type conformance, and format against
// the assignment schema. A missing or unusable required field rejects the
// record; format problems on optional fields only flag it.
type SchemaStage struct{}

// NewSchemaStage returns the schema validation stage.
func NewSchemaStage() *SchemaStage { return &SchemaStage{} }

// Name implements Stage.
func (s *SchemaStage) Name() string { return StageSchema }

// Check implements Stage.
func (s *SchemaStage) Check(ctx context.Context, subj Subject, _ []Verdict) (Verdict, error) {
	var rejects, flags []string

	for _, spec := range extract.Schema() {
		value, ok := subj.Result.Fields[spec.Name]
		if !ok || isEmpty(value) {
			if spec.Required {
				rejects = append(rejects, fmt.Sprintf("required field %q missing", spec.Name))
			}
			continue
		}

		if problem := checkValue(spec, value); problem != "" {
			if spec.Required {
				rejects = append(rejects, problem)
			} else {
				flags = append(flags, problem)
			}
		}
	}

	switch {
	case len(rejects) > 0:
		return Verdict{
			Stage:   StageSchema,
			Outcome: Reject,
			Reason:  strings.Join(rejects, "; "),
		}, nil
	case len(flags) > 0:
		return Verdict{
			Stage:    StageSchema,
			Outcome:  Flag,
			Severity: SeverityWarn,
			Reason:   strings.Join(flags, "; "),
		}, nil
	default:
		return Verdict{
			Stage:   StageSchema,
			Outcome: Pass,
			Reason:  "all schema checks passed",
		}, nil
	}
}

// checkValue verifies one field value against its spec. Returns a problem
// description, or "" when the value conforms.
func checkValue(spec extract.FieldSpec, value any) string {
	switch spec.Kind {
	case extract.KindBool:
		if _, ok := value.(bool); !ok {
			return fmt.Sprintf("field %q must be a boolean", spec.Name)
		}
	case extract.KindList:
		if _, ok := value.([]string); !ok {
			return fmt.Sprintf("field %q must be a list", spec.Name)
		}
	default:
		str, ok := value.(string)
		if !ok {
			return fmt.Sprintf("field %q must be text", spec.Name)
		}
		switch spec.Kind {
		case extract.KindDate:
			if _, ok := ParseDate(str); !ok {
				return fmt.Sprintf("field %q is not a valid date: %q", spec.Name, str)
			}
		case extract.KindPhone:
			if !phonePattern.MatchString(normalizePhone(str)) {
				return fmt.Sprintf("field %q is not a valid phone number: %q", spec.Name, str)
			}
		case extract.KindEmail:
			if !emailPattern.MatchString(str) {
				return fmt.Sprintf("field %q is not a valid email address: %q", spec.Name, str)
			}
		case extract.KindEnum:
			if !containsFold(spec.Enum, str) {
				return fmt.Sprintf("field %q must be one of %s, got %q",
					spec.Name, strings.Join(spec.Enum, "/"), str)
			}
		}
	}
	return ""
}

func containsFold(options []string, v string) bool {
	for _, o := range options {
		if strings.EqualFold(o, v) {
			return true
		}
	}
	return false
}

func isEmpty(v any) bool {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val) == ""
	case []string:
		return len(val) == 0
	case nil:
		return true
	default:
		return false
	}
}
