package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// promptHeader instructs the model on the task and output contract.
const promptHeader = `You extract structured data from forensic engineering assignment emails.

Extract the fields listed below from the email and respond with a single JSON object.
Use the field names exactly as given. Use "" for text fields you cannot find,
false for unticked assignment-type checkboxes, and [] for an empty attachment list.
Dates must be formatted YYYY-MM-DD.

Also include a top-level "confidence" number between 0 and 1 reflecting how
certain you are that the extracted values are correct.

Respond ONLY with the JSON object, no additional text.`

// BuildPrompt renders the extraction prompt for the given email body.
func BuildPrompt(body string) string {
	var b strings.Builder
	b.WriteString(promptHeader)
	b.WriteString("\n\nFields to extract:\n")
	for _, spec := range Schema() {
		b.WriteString("- ")
		b.WriteString(spec.Name)
		switch spec.Kind {
		case KindBool:
			b.WriteString(" (true/false)")
		case KindDate:
			b.WriteString(" (YYYY-MM-DD)")
		case KindList:
			b.WriteString(" (list of file names)")
		case KindEnum:
			b.WriteString(" (one of: " + strings.Join(spec.Enum, ", ") + ")")
		}
		b.WriteString("\n")
	}
	b.WriteString("\nEmail content:\n")
	b.WriteString(body)
	return b.String()
}

// ParseModelResponse parses a model's JSON reply into extraction fields and
// a confidence score. Models sometimes wrap JSON in markdown fences or
// prose; the outermost JSON object is located before decoding. When the
// model reports no usable confidence, the fraction of expected fields it
// filled in serves as the fallback heuristic.
func ParseModelResponse(content string) (map[string]any, float64, []string, error) {
	jsonStr, err := outermostJSON(content)
	if err != nil {
		return nil, 0, nil, err
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		return nil, 0, nil, fmt.Errorf("model response is not valid JSON: %w", err)
	}

	confidence := -1.0
	if v, ok := raw["confidence"]; ok {
		if f, ok := v.(float64); ok && f >= 0 && f <= 1 {
			confidence = f
		}
		delete(raw, "confidence")
	}

	fields := make(map[string]any, len(raw))
	for name, value := range raw {
		if norm, ok := normalizeValue(value); ok {
			fields[name] = norm
		}
	}

	var warnings []string
	filled := 0
	expected := Schema()
	for _, spec := range expected {
		v, ok := fields[spec.Name]
		if !ok || isEmptyValue(v) {
			warnings = append(warnings, fmt.Sprintf("field %q not found", spec.Name))
			continue
		}
		filled++
	}

	if confidence < 0 {
		confidence = float64(filled) / float64(len(expected))
	}

	return fields, confidence, warnings, nil
}

// outermostJSON strips markdown fences and returns the outermost JSON
// object embedded in content.
func outermostJSON(content string) (string, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return "", errors.New("no JSON object in model response")
	}
	return content[start : end+1], nil
}

// normalizeValue coerces decoded JSON values into the field value types the
// pipeline carries: string, bool, or []string.
func normalizeValue(v any) (any, bool) {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), true
	case bool:
		return val, true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case []any:
		items := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				s = strings.TrimSpace(s)
				if s != "" {
					items = append(items, s)
				}
			}
		}
		return items, true
	default:
		return nil, false
	}
}

func isEmptyValue(v any) bool {
	switch val := v.(type) {
	case string:
		return val == ""
	case []string:
		return len(val) == 0
	default:
		return false
	}
}
