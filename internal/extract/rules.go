package extract

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/crestline-eng/intaked/internal/mail"
)

// fieldPattern binds a field name to its line-marker regex. Group 1 is the
// captured value.
type fieldPattern struct {
	field string
	regex *regexp.Regexp
}

// checkboxPattern matches "Label [x]" style assignment-type boxes. Group 1
// is present only when the box is ticked.
type checkboxPattern struct {
	field string
	regex *regexp.Regexp
}

// RuleStrategy extracts fields from the standard assignment-form layout
// using deterministic pattern matching. The compiled patterns are read-only
// after construction and safe to share across concurrent extractions.
type RuleStrategy struct {
	fields     []fieldPattern
	checkboxes []checkboxPattern
}

// NewRuleStrategy compiles the assignment-form patterns.
func NewRuleStrategy() *RuleStrategy {
	mk := func(field, expr string) fieldPattern {
		return fieldPattern{field: field, regex: regexp.MustCompile(`(?i)` + expr)}
	}
	box := func(field, label string) checkboxPattern {
		return checkboxPattern{
			field: field,
			regex: regexp.MustCompile(`(?i)` + label + `\s*\[\s*(x)?\s*\]`),
		}
	}

	return &RuleStrategy{
		fields: []fieldPattern{
			mk(FieldInsuranceCompany, `Requesting Party Insurance Company:[ \t]*(.*)`),
			mk(FieldHandler, `Handler:[ \t]*(.*)`),
			mk(FieldCarrierClaimNumber, `Carrier Claim Number:[ \t]*(.*)`),
			mk(FieldInsuredName, `(?m)^[ \t]*Name:[ \t]*(.*)`),
			mk(FieldInsuredContact, `Contact #:[ \t]*(.*)`),
			mk(FieldLossAddress, `Loss Address:[ \t]*(.*)`),
			mk(FieldPublicAdjuster, `Public Adjuster:[ \t]*(.*)`),
			mk(FieldOwnership, `\b(Owner|Tenant)\b`),
			mk(FieldAdjusterName, `Adjuster Name:[ \t]*(.*)`),
			mk(FieldAdjusterPhone, `Adjuster Phone Number:[ \t]*(.*)`),
			mk(FieldAdjusterEmail, `Adjuster Email:[ \t]*(.*)`),
			mk(FieldJobTitle, `Job Title:[ \t]*(.*)`),
			mk(FieldAdjusterAddress, `(?m)^[ \t]*Address:[ \t]*(.*)`),
			mk(FieldPolicyNumber, `Policy #:[ \t]*(.*)`),
			mk(FieldDateOfLoss, `Date of Loss(?:/Occurrence)?:[ \t]*(.*)`),
			mk(FieldCauseOfLoss, `Cause of loss:[ \t]*(.*)`),
			mk(FieldFactsOfLoss, `Facts of Loss:[ \t]*(.*)`),
			mk(FieldLossDescription, `Loss Description:[ \t]*(.*)`),
			mk(FieldResidenceOccupied, `Residence Occupied During Loss:[ \t]*(.*)`),
			mk(FieldSomeoneHome, `Someone home at time of damage:[ \t]*(.*)`),
			mk(FieldRepairProgress, `Repair or Mitigation Progress:[ \t]*(.*)`),
			mk(FieldPropertyType, `(?m)^[ \t]*Type:[ \t]*(.*)`),
			mk(FieldInspectionType, `Inspection type:[ \t]*(.*)`),
			mk(FieldAdditionalDetails, `Additional details/Special Instructions:[ \t]*(.*)`),
		},
		checkboxes: []checkboxPattern{
			box(FieldTypeWind, `Wind`),
			box(FieldTypeStructural, `Structural`),
			box(FieldTypeHail, `Hail`),
			box(FieldTypeFoundation, `Foundation`),
			box(FieldTypeOther, `Other`),
		},
	}
}

// ID implements Strategy.
func (r *RuleStrategy) ID() ID { return StrategyRules }

// Available implements Strategy. The rule set is always ready.
func (r *RuleStrategy) Available() bool { return true }

// Extract applies the form patterns to the message body. Confidence is the
// fraction of expected field markers that matched, so identical input
// always yields identical confidence.
func (r *RuleStrategy) Extract(ctx context.Context, msg mail.RawMessage) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, &Error{Strategy: StrategyRules, Cause: err, Retryable: false}
	}

	body := mail.Preprocess(msg.Body)

	fields := make(map[string]any)
	var warnings []string
	matched := 0

	for _, p := range r.fields {
		m := p.regex.FindStringSubmatch(body)
		if m == nil {
			warnings = append(warnings, fmt.Sprintf("field %q not found", p.field))
			continue
		}
		value := strings.TrimSpace(m[1])
		if value == "" {
			warnings = append(warnings, fmt.Sprintf("field %q empty", p.field))
			continue
		}
		fields[p.field] = value
		matched++
	}

	for _, p := range r.checkboxes {
		m := p.regex.FindStringSubmatch(body)
		if m == nil {
			continue
		}
		fields[p.field] = m[1] != ""
		matched++
	}

	if len(msg.Attachments) > 0 {
		names := make([]string, 0, len(msg.Attachments))
		for _, a := range msg.Attachments {
			names = append(names, a.Filename)
		}
		fields[FieldAttachments] = names
	}

	if matched == 0 {
		return Result{}, &Error{
			Strategy:  StrategyRules,
			Cause:     errors.New("no recognized field markers in message body"),
			Retryable: false,
		}
	}

	total := len(r.fields) + len(r.checkboxes)
	return Result{
		MessageID:  msg.ID,
		Strategy:   StrategyRules,
		Fields:     fields,
		Confidence: float64(matched) / float64(total),
		Warnings:   warnings,
	}, nil
}

var _ Strategy = (*RuleStrategy)(nil)
