// Package integrate submits accepted assignment records to Quickbase.
package integrate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/crestline-eng/intaked/internal/config"
	"github.com/crestline-eng/intaked/internal/extract"
	"github.com/crestline-eng/intaked/internal/logging"
	"github.com/crestline-eng/intaked/internal/pipeline"
)

const userAgent = "intaked/1.0"

// Field IDs of the Quickbase assignment table.
const (
	fidInsuranceCompany   = "6"
	fidHandler            = "7"
	fidCarrierClaimNumber = "8"
	fidInsuredName        = "9"
	fidInsuredContact     = "10"
	fidLossAddress        = "11"
	fidPublicAdjuster     = "12"
	fidOwnership          = "13"
	fidAdjusterName       = "14"
	fidAdjusterPhone      = "15"
	fidAdjusterEmail      = "16"
	fidJobTitle           = "17"
	fidAdjusterAddress    = "18"
	fidPolicyNumber       = "19"
	fidDateOfLoss         = "20"
	fidCauseOfLoss        = "21"
	fidFactsOfLoss        = "22"
	fidLossDescription    = "23"
	fidResidenceOccupied  = "24"
	fidSomeoneHome        = "25"
	fidRepairProgress     = "26"
	fidPropertyType       = "27"
	fidInspectionType     = "28"
	fidAssignmentTypes    = "29"
	fidAdditionalDetails  = "31"
	fidAttachments        = "32"
)

var fieldIDs = map[string]string{
	extract.FieldInsuranceCompany:   fidInsuranceCompany,
	extract.FieldHandler:            fidHandler,
	extract.FieldCarrierClaimNumber: fidCarrierClaimNumber,
	extract.FieldInsuredName:        fidInsuredName,
	extract.FieldInsuredContact:     fidInsuredContact,
	extract.FieldLossAddress:        fidLossAddress,
	extract.FieldPublicAdjuster:     fidPublicAdjuster,
	extract.FieldOwnership:          fidOwnership,
	extract.FieldAdjusterName:       fidAdjusterName,
	extract.FieldAdjusterPhone:      fidAdjusterPhone,
	extract.FieldAdjusterEmail:      fidAdjusterEmail,
	extract.FieldJobTitle:           fidJobTitle,
	extract.FieldAdjusterAddress:    fidAdjusterAddress,
	extract.FieldPolicyNumber:       fidPolicyNumber,
	extract.FieldDateOfLoss:         fidDateOfLoss,
	extract.FieldCauseOfLoss:        fidCauseOfLoss,
	extract.FieldFactsOfLoss:        fidFactsOfLoss,
	extract.FieldLossDescription:    fidLossDescription,
	extract.FieldResidenceOccupied:  fidResidenceOccupied,
	extract.FieldSomeoneHome:        fidSomeoneHome,
	extract.FieldRepairProgress:     fidRepairProgress,
	extract.FieldPropertyType:       fidPropertyType,
	extract.FieldInspectionType:     fidInspectionType,
	extract.FieldAdditionalDetails:  fidAdditionalDetails,
}

// assignmentTypeLabels maps checkbox fields to their Quickbase labels, in
// report order.
var assignmentTypeLabels = []struct {
	field string
	label string
}{
	{extract.FieldTypeWind, "Wind"},
	{extract.FieldTypeStructural, "Structural"},
	{extract.FieldTypeHail, "Hail"},
	{extract.FieldTypeFoundation, "Foundation"},
	{extract.FieldTypeOther, "Other"},
}

// Error is a Quickbase submission failure. Retryable failures (timeouts,
// 429, 5xx) may be resubmitted; others indicate a payload or auth problem.
type Error struct {
	StatusCode int
	Message    string
	Retryable  bool
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("quickbase request failed (%d): %s", e.StatusCode, e.Message)
	}
	return "quickbase request failed: " + e.Message
}

// Client inserts assignment records into a Quickbase table.
type Client struct {
	baseURL    string
	realm      string
	token      config.Secret
	tableID    string
	maxRetries int
	httpClient *http.Client
	log        *logging.Logger
}

// NewClient builds a Quickbase client from configuration.
func NewClient(cfg config.QuickbaseConfig, log *logging.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		realm:      cfg.RealmHostname,
		token:      cfg.UserToken,
		tableID:    cfg.TableID,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{Timeout: cfg.Timeout.Duration()},
		log:        log.Named("quickbase"),
	}
}

// Configured reports whether the client has credentials and a target table.
func (c *Client) Configured() bool {
	return c.token.IsSet() && c.tableID != ""
}

// Submit implements pipeline.Integrator. The record's fields are mapped to
// Quickbase field IDs and inserted as one row.
func (c *Client) Submit(ctx context.Context, rec pipeline.Record) error {
	if !c.Configured() {
		return &Error{Message: "quickbase is not configured", Retryable: false}
	}

	payload := map[string]any{
		"to":   c.tableID,
		"data": []map[string]any{{"fields": MapFields(rec.Fields)}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return &Error{Message: "failed to encode payload: " + err.Error(), Retryable: false}
	}

	backoff := 500 * time.Millisecond
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		err := c.post(ctx, body)
		if err == nil {
			c.log.Info(ctx, "record inserted",
				zap.String("message_id", rec.MessageID),
				zap.String("table_id", c.tableID),
			)
			return nil
		}
		lastErr = err

		var qe *Error
		if !errors.As(err, &qe) || !qe.Retryable || attempt == c.maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	return lastErr
}

func (c *Client) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/records", bytes.NewReader(body))
	if err != nil {
		return &Error{Message: err.Error(), Retryable: false}
	}
	req.Header.Set("QB-Realm-Hostname", c.realm)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Authorization", "QB-USER-TOKEN "+c.token.Value())
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &Error{Message: err.Error(), Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &Error{
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(detail)),
		Retryable:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
	}
}

// MapFields converts canonical field names to the Quickbase field-ID
// payload shape. Checkbox fields collapse into one comma-joined list;
// unmapped fields are dropped.
func MapFields(fields map[string]any) map[string]map[string]any {
	mapped := make(map[string]map[string]any)

	for name, value := range fields {
		fid, ok := fieldIDs[name]
		if !ok {
			continue
		}
		mapped[fid] = map[string]any{"value": value}
	}

	var types []string
	for _, at := range assignmentTypeLabels {
		if ticked, ok := fields[at.field].(bool); ok && ticked {
			types = append(types, at.label)
		}
	}
	if len(types) > 0 {
		mapped[fidAssignmentTypes] = map[string]any{"value": strings.Join(types, ", ")}
	}

	if names := stringList(fields[extract.FieldAttachments]); len(names) > 0 {
		mapped[fidAttachments] = map[string]any{"value": strings.Join(names, ", ")}
	}

	return mapped
}

// stringList coerces a list field value. Records read back from the
// durable outcome store decode lists as []any, not []string.
func stringList(v any) []string {
	switch val := v.(type) {
	case []string:
		return val
	case []any:
		items := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok && s != "" {
				items = append(items, s)
			}
		}
		return items
	default:
		return nil
	}
}
