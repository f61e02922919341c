package validate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/crestline-eng/intaked/internal/extract"
)

// plausibilityPrompt asks the model to judge field combinations, not to
// re-extract. The stage only raises suspicion; it has no veto authority.
const plausibilityPrompt = `You review structured records extracted from forensic engineering assignment emails.

Judge whether the following field combination is plausible for a real
assignment. Look for contradictions such as a property type inconsistent
with the described damage, or a cause of loss that does not match the loss
description.

Respond ONLY with a JSON object:
{"plausible": true/false, "reasoning": "one or two sentences"}

Record:
`

// Checker assesses the plausibility of an extracted record.
type Checker interface {
	Assess(ctx context.Context, fields map[string]any) (plausible bool, reasoning string, err error)
}

// ModelChecker implements Checker over a language model client.
type ModelChecker struct {
	client extract.ModelClient
}

// NewModelChecker builds a model-backed plausibility checker.
func NewModelChecker(client extract.ModelClient) *ModelChecker {
	return &ModelChecker{client: client}
}

// Assess implements Checker.
func (m *ModelChecker) Assess(ctx context.Context, fields map[string]any) (bool, string, error) {
	record, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		return false, "", fmt.Errorf("failed to encode record: %w", err)
	}

	response, err := m.client.Call(ctx, plausibilityPrompt+string(record))
	if err != nil {
		return false, "", fmt.Errorf("plausibility model call failed: %w", err)
	}

	var parsed struct {
		Plausible bool   `json:"plausible"`
		Reasoning string `json:"reasoning"`
	}
	cleaned := strings.TrimSpace(response)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return false, "", fmt.Errorf("unparseable plausibility response: %w", err)
	}
	return parsed.Plausible, parsed.Reasoning, nil
}

// PlausibilityStage flags statistically implausible field combinations
// using an auxiliary model. It never rejects: an implausible record is
// flagged for adjudication, and with no checker configured the stage
// passes every record.
type PlausibilityStage struct {
	checker Checker
}

// NewPlausibilityStage returns the model-assisted plausibility stage.
// checker may be nil, which disables the check.
func NewPlausibilityStage(checker Checker) *PlausibilityStage {
	return &PlausibilityStage{checker: checker}
}

// Name implements Stage.
func (p *PlausibilityStage) Name() string { return StagePlausibility }

// Check implements Stage.
func (p *PlausibilityStage) Check(ctx context.Context, subj Subject, _ []Verdict) (Verdict, error) {
	if p.checker == nil {
		return Verdict{
			Stage:   StagePlausibility,
			Outcome: Pass,
			Reason:  "plausibility check disabled",
		}, nil
	}

	plausible, reasoning, err := p.checker.Assess(ctx, subj.Result.Fields)
	if err != nil {
		// The chain converts stage faults into diagnostic flags.
		return Verdict{}, err
	}

	if plausible {
		return Verdict{
			Stage:   StagePlausibility,
			Outcome: Pass,
			Reason:  "record is plausible",
		}, nil
	}
	return Verdict{
		Stage:    StagePlausibility,
		Outcome:  Flag,
		Severity: SeverityWarn,
		Reason:   "implausible field combination: " + reasoning,
	}, nil
}
