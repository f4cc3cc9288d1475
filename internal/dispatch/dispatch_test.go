package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/humtech/outreach-cli/internal/model"
	"github.com/humtech/outreach-cli/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedSendableLead(t *testing.T, st store.Store, email string) *model.Lead {
	t.Helper()
	ctx := context.Background()

	lead, err := st.UpsertLead(ctx, model.Lead{
		Email:     email,
		FirstName: "Jo",
		Title:     "Owner",
		Company:   "BuildCo",
		BatchDate: "2026-08-28",
	})
	require.NoError(t, err)
	require.NoError(t, st.UpdateLeadStatus(ctx, lead.ID, model.LeadStatusPersonalised))

	require.NoError(t, st.RecordAttempt(ctx, &model.Attempt{
		LeadID:      lead.ID,
		BatchDate:   "2026-08-28",
		Disposition: model.DispositionAutoSend,
		Outcome:     model.OutcomeAutoSend,
		Result: &model.PersonalisationResult{
			OpenerFirstLine: "Noticed BuildCo is hiring.",
			AngleTag:        model.AngleSpeedToLead,
			ConfidenceScore: 0.85,
			EvidenceUsed:    []model.EvidenceRef{{SignalKey: model.SignalHiring, SourceURL: "https://jobs.example"}},
			Rung:            4,
		},
		PromptVersion: "v1.0",
	}))
	return lead
}

func TestRun_SendsAndMarks(t *testing.T) {
	st := newTestStore(t)
	lead := seedSendableLead(t, st, "jo@buildco.example")

	var received atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var rec model.DispatchRecord
		require.NoError(t, json.NewDecoder(r.Body).Decode(&rec))
		assert.Equal(t, "jo@buildco.example", rec.Email)
		assert.Equal(t, "Noticed BuildCo is hiring.", rec.Opener)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := New(st, NewWebhookSender(srv.URL, "secret"))
	stats, err := d.Run(context.Background(), "2026-08-28")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Sent)
	assert.Equal(t, 0, stats.Failed)
	assert.Equal(t, int64(1), received.Load())

	got, err := st.GetLead(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusSent, got.Status)
}

func TestRun_SecondRunDeliversNothing(t *testing.T) {
	st := newTestStore(t)
	seedSendableLead(t, st, "jo@buildco.example")

	var received atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := New(st, NewWebhookSender(srv.URL, ""))

	_, err := d.Run(context.Background(), "2026-08-28")
	require.NoError(t, err)

	stats, err := d.Run(context.Background(), "2026-08-28")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Sent)
	assert.Equal(t, int64(1), received.Load())
}

func TestRun_TransientStatusRetriedThenSent(t *testing.T) {
	st := newTestStore(t)
	seedSendableLead(t, st, "jo@buildco.example")

	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := New(st, NewWebhookSender(srv.URL, ""))
	stats, err := d.Run(context.Background(), "2026-08-28")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Sent)
	assert.Equal(t, int64(2), calls.Load())
}

func TestRun_RejectionMarksFailed(t *testing.T) {
	st := newTestStore(t)
	lead := seedSendableLead(t, st, "jo@buildco.example")

	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	d := New(st, NewWebhookSender(srv.URL, ""))
	stats, err := d.Run(context.Background(), "2026-08-28")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Sent)
	assert.Equal(t, 1, stats.Failed)
	// 422 is a rejection, not a blip; no retry.
	assert.Equal(t, int64(1), calls.Load())

	got, err := st.GetLead(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusFailed, got.Status)
}

func TestRun_OneFailureDoesNotStopOthers(t *testing.T) {
	st := newTestStore(t)
	seedSendableLead(t, st, "a@x.example")
	seedSendableLead(t, st, "b@x.example")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var rec model.DispatchRecord
		require.NoError(t, json.NewDecoder(r.Body).Decode(&rec))
		if rec.Email == "a@x.example" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := New(st, NewWebhookSender(srv.URL, ""))
	stats, err := d.Run(context.Background(), "2026-08-28")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Sent)
	assert.Equal(t, 1, stats.Failed)
}
