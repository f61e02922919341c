package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crestline-eng/intaked/internal/config"
	"github.com/crestline-eng/intaked/internal/logging"
	"github.com/crestline-eng/intaked/internal/pipeline"
)

// stubReviewer serves a fixed pending list and records resolutions.
type stubReviewer struct {
	pending []pipeline.Record
	err     error

	resolved []string
}

func (s *stubReviewer) Pending(ctx context.Context) ([]pipeline.Record, error) {
	return s.pending, s.err
}

func (s *stubReviewer) Resolve(ctx context.Context, messageID string, final pipeline.Outcome, reviewer string) (pipeline.Record, error) {
	if s.err != nil {
		return pipeline.Record{}, s.err
	}
	s.resolved = append(s.resolved, messageID)
	return pipeline.Record{MessageID: messageID, Outcome: final, Reviewer: reviewer}, nil
}

func newTestServer(reviewer Reviewer) *Server {
	return New(config.ServerConfig{Addr: ":0"}, reviewer, logging.NewNop())
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(&stubReviewer{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestServer_Metrics(t *testing.T) {
	srv := newTestServer(&stubReviewer{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_PendingList(t *testing.T) {
	reviewer := &stubReviewer{pending: []pipeline.Record{
		{MessageID: "m-1", Outcome: pipeline.OutcomeQuarantined},
		{MessageID: "m-2", Outcome: pipeline.OutcomeQuarantined},
	}}
	srv := newTestServer(reviewer)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/review/pending", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp PendingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
}

func TestServer_PendingEmptyIsNotNull(t *testing.T) {
	srv := newTestServer(&stubReviewer{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/review/pending", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"pending":[]`)
}

func TestServer_Decision(t *testing.T) {
	reviewer := &stubReviewer{}
	srv := newTestServer(reviewer)

	body := `{"message_id":"m-1","decision":"accepted","reviewer":"alex"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/review/decision", strings.NewReader(body))
	req.Header.Set(echoHeaderContentType, "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"m-1"}, reviewer.resolved)
}

func TestServer_DecisionValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
	}{
		{"missing message id", `{"decision":"accepted","reviewer":"alex"}`, http.StatusBadRequest},
		{"missing reviewer", `{"message_id":"m-1","decision":"accepted"}`, http.StatusBadRequest},
		{"invalid decision", `{"message_id":"m-1","decision":"maybe","reviewer":"alex"}`, http.StatusBadRequest},
		{"not json", `nope`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(&stubReviewer{})

			req := httptest.NewRequest(http.MethodPost, "/api/v1/review/decision", strings.NewReader(tt.body))
			req.Header.Set(echoHeaderContentType, "application/json")
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestServer_DecisionConflicts(t *testing.T) {
	srv := newTestServer(&stubReviewer{err: pipeline.ErrNotQuarantined})

	body := `{"message_id":"m-1","decision":"accepted","reviewer":"alex"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/review/decision", strings.NewReader(body))
	req.Header.Set(echoHeaderContentType, "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestServer_DecisionUnknownMessage(t *testing.T) {
	srv := newTestServer(&stubReviewer{err: pipeline.ErrNotFound})

	body := `{"message_id":"m-9","decision":"rejected","reviewer":"alex"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/review/decision", strings.NewReader(body))
	req.Header.Set(echoHeaderContentType, "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

const echoHeaderContentType = "Content-Type"
