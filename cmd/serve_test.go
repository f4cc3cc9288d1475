package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/humtech/outreach-cli/internal/config"
	"github.com/humtech/outreach-cli/internal/model"
	"github.com/humtech/outreach-cli/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestEnv(t *testing.T) (*pipelineEnv, store.Store) {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	cfg = &config.Config{}

	return &pipelineEnv{Store: st}, st
}

func seedSentAttempt(t *testing.T, st store.Store) string {
	t.Helper()
	ctx := context.Background()

	lead, err := st.UpsertLead(ctx, model.Lead{
		Email:     "jo@buildco.example",
		FirstName: "Jo",
		Company:   "BuildCo",
		Title:     "Owner",
		BatchDate: "2026-08-28",
	})
	require.NoError(t, err)

	attempt := &model.Attempt{
		LeadID:        lead.ID,
		BatchDate:     "2026-08-28",
		Outcome:       model.OutcomeAutoSend,
		Disposition:   model.DispositionAutoSend,
		RouteReason:   "passed all gates",
		PromptVersion: "v1.0",
		Model:         "claude-sonnet-4-20250514",
		Result: &model.PersonalisationResult{
			OpenerFirstLine: "Noticed BuildCo is hiring two SDRs.",
			AngleTag:        model.AngleSpeedToLead,
			ConfidenceScore: 0.85,
			Rung:            2,
		},
	}
	require.NoError(t, st.RecordAttempt(ctx, attempt))
	require.NoError(t, st.UpdateLeadStatus(ctx, lead.ID, model.LeadStatusPersonalised))
	require.NoError(t, st.MarkLeadSent(ctx, lead.ID))
	return attempt.ID
}

func doRequest(env *pipelineEnv, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	newRouter(env).ServeHTTP(rr, req)
	return rr
}

func TestServer_Health(t *testing.T) {
	env, _ := newTestEnv(t)

	rr := doRequest(env, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestServer_Review_EmptyBatch(t *testing.T) {
	env, _ := newTestEnv(t)

	rr := doRequest(env, http.MethodGet, "/outreach/review?date=2026-08-28", nil)

	assert.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		BatchDate string             `json:"batch_date"`
		Counts    model.BatchCounts  `json:"counts"`
		Items     []model.ReviewItem `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "2026-08-28", body.BatchDate)
	assert.Zero(t, body.Counts.AutoSend)
	assert.Empty(t, body.Items)
}

func TestServer_Suppress(t *testing.T) {
	env, st := newTestEnv(t)

	rr := doRequest(env, http.MethodPost, "/outreach/suppress", map[string]string{
		"email":  "jo@buildco.example",
		"reason": "unsubscribed",
	})

	assert.Equal(t, http.StatusOK, rr.Code)

	suppressed, err := st.IsSuppressed(context.Background(), "jo@buildco.example")
	require.NoError(t, err)
	assert.True(t, suppressed)
}

func TestServer_Suppress_MissingEmail(t *testing.T) {
	env, _ := newTestEnv(t)

	rr := doRequest(env, http.MethodPost, "/outreach/suppress", map[string]string{"reason": "x"})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestServer_Edit_UnknownAttempt(t *testing.T) {
	env, _ := newTestEnv(t)

	rr := doRequest(env, http.MethodPost, "/outreach/lead/nope/edit", map[string]string{
		"opener": "Hand-written opener.",
	})

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServer_Edit_AlreadySentConflict(t *testing.T) {
	env, st := newTestEnv(t)
	attemptID := seedSentAttempt(t, st)

	rr := doRequest(env, http.MethodPost, "/outreach/lead/"+attemptID+"/edit", map[string]string{
		"opener": "Hand-written opener.",
	})

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestServer_Remove_AlreadySentConflict(t *testing.T) {
	env, st := newTestEnv(t)
	attemptID := seedSentAttempt(t, st)

	rr := doRequest(env, http.MethodPost, "/outreach/lead/"+attemptID+"/remove", nil)

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestServer_Send_WebhookNotConfigured(t *testing.T) {
	env, _ := newTestEnv(t)

	rr := doRequest(env, http.MethodPost, "/outreach/send", map[string]string{"date": "2026-08-28"})

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestServer_PipelineRun_MissingEmail(t *testing.T) {
	env, _ := newTestEnv(t)

	rr := doRequest(env, http.MethodPost, "/outreach/pipeline/run", map[string]any{
		"lead": map[string]string{"first_name": "Jo"},
	})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
