package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/humtech/outreach-cli/internal/evidence"
	"github.com/humtech/outreach-cli/internal/generate"
	"github.com/humtech/outreach-cli/internal/model"
	"github.com/humtech/outreach-cli/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type mockGenerator struct {
	mock.Mock
}

var _ generate.Generator = (*mockGenerator)(nil)

func (m *mockGenerator) Generate(ctx context.Context, lead model.Lead, ledger *evidence.Ledger, req generate.Request) (*model.PersonalisationResult, error) {
	args := m.Called(ctx, lead, ledger, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PersonalisationResult), args.Error(1)
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testConfig() Config {
	return Config{
		PromptVersion: "v1.0",
		Model:         "claude-sonnet-4-20250514",
		Concurrency:   2,
	}
}

func testInput(email string) LeadInput {
	return LeadInput{
		Lead: model.Lead{
			Email:     email,
			FirstName: "Jo",
			Title:     "Owner",
			Company:   "BuildCo",
			Industry:  "construction",
			BatchDate: "2026-08-28",
		},
		Signals: []model.Signal{
			{Key: model.SignalHiring, Payload: "2 SDR roles", SourceURL: "https://jobs.example"},
		},
	}
}

func goodResult() *model.PersonalisationResult {
	return &model.PersonalisationResult{
		OpenerFirstLine: "Noticed BuildCo is hiring two SDRs this quarter.",
		AngleTag:        model.AngleSpeedToLead,
		ConfidenceScore: 0.85,
		EvidenceUsed:    []model.EvidenceRef{{SignalKey: model.SignalHiring, SourceURL: "https://jobs.example"}},
		Rung:            5,
		PromptVersion:   "v1.0",
		Model:           "claude-sonnet-4-20250514",
	}
}

func TestProcess_AutoSend(t *testing.T) {
	st := newTestStore(t)
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(goodResult(), nil).Once()

	p := New(st, gen, nil, testConfig())
	result := p.Process(context.Background(), testInput("jo@buildco.example"))

	require.NoError(t, result.Err)
	assert.Equal(t, model.OutcomeAutoSend, result.Outcome)
	require.NotNil(t, result.Attempt)
	assert.Equal(t, model.DispositionAutoSend, result.Attempt.Disposition)
	assert.Equal(t, 5, result.Attempt.Result.Rung)
	assert.Equal(t, "v1.0", result.Attempt.PromptVersion)

	// Attempt is persisted and the lead moved to personalised.
	got, err := st.LatestAttempt(context.Background(), result.Lead.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Attempt.ID, got.ID)

	lead, err := st.GetLead(context.Background(), result.Lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusPersonalised, lead.Status)

	gen.AssertExpectations(t)
}

func TestProcess_SuppressedSkipsGeneration(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.AddSuppression(context.Background(), "jo@buildco.example", "unsubscribed"))

	gen := &mockGenerator{}
	p := New(st, gen, nil, testConfig())

	result := p.Process(context.Background(), testInput("jo@buildco.example"))

	assert.Equal(t, model.OutcomeSuppressed, result.Outcome)
	assert.Nil(t, result.Attempt)
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	lead, err := st.GetLead(context.Background(), result.Lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusSuppressed, lead.Status)
}

func TestProcess_MissingFieldsBlockWithoutCapabilityCall(t *testing.T) {
	st := newTestStore(t)
	gen := &mockGenerator{}
	p := New(st, gen, nil, testConfig())

	input := testInput("jo@buildco.example")
	input.Lead.Title = ""

	result := p.Process(context.Background(), input)

	assert.Equal(t, model.OutcomeBlocked, result.Outcome)
	require.NotNil(t, result.Attempt)
	assert.Equal(t, model.DispositionBlocked, result.Attempt.Disposition)
	assert.Contains(t, result.Attempt.RouteReason, "title")
	assert.Nil(t, result.Attempt.Result)
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcess_BlockedSnapshotsBuiltLedger(t *testing.T) {
	st := newTestStore(t)
	gen := &mockGenerator{}
	p := New(st, gen, nil, testConfig())

	input := testInput("jo@buildco.example")
	input.Lead.Title = ""
	input.Signals = append(input.Signals, model.Signal{Key: model.SignalGrowth, Payload: "raised seed"})

	result := p.Process(context.Background(), input)

	assert.Equal(t, model.OutcomeBlocked, result.Outcome)
	require.NotNil(t, result.Attempt)
	// The audit snapshot holds the built ledger, not the raw input, so
	// the sourceless growth signal never appears.
	require.Len(t, result.Attempt.Ledger, 1)
	assert.Equal(t, model.SignalHiring, result.Attempt.Ledger[0].Key)
}

func TestProcess_HallucinatedEvidenceBlocked(t *testing.T) {
	st := newTestStore(t)

	fabricated := goodResult()
	fabricated.EvidenceUsed = []model.EvidenceRef{{SignalKey: model.SignalGrowth, SourceURL: "https://invented.example"}}
	fabricated.Rung = 5

	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(fabricated, nil).Once()

	p := New(st, gen, nil, testConfig())
	result := p.Process(context.Background(), testInput("jo@buildco.example"))

	assert.Equal(t, model.OutcomeBlocked, result.Outcome)
	require.NotNil(t, result.Attempt)
	assert.Contains(t, result.Attempt.RouteReason, "hallucination_risk")
	assert.Empty(t, result.Attempt.Result.EvidenceUsed)
	// Rung clamped to the firmographic ceiling once evidence is gone.
	assert.Equal(t, 3, result.Attempt.Result.Rung)
}

func TestProcess_InvalidSignalDroppedLeadContinues(t *testing.T) {
	st := newTestStore(t)

	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything, mock.MatchedBy(func(l *evidence.Ledger) bool {
		return l.Len() == 1
	}), mock.Anything).Return(goodResult(), nil).Once()

	p := New(st, gen, nil, testConfig())

	input := testInput("jo@buildco.example")
	input.Signals = append(input.Signals, model.Signal{Key: "weather", SourceURL: "https://x"})

	result := p.Process(context.Background(), input)

	assert.Equal(t, model.OutcomeAutoSend, result.Outcome)
	gen.AssertExpectations(t)
}

func TestProcess_SchemaViolationRetriedOnce(t *testing.T) {
	st := newTestStore(t)

	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &generate.SchemaViolationError{Violations: []string{"opener_first_line missing"}}).Once()
	gen.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(goodResult(), nil).Once()

	p := New(st, gen, nil, testConfig())
	result := p.Process(context.Background(), testInput("jo@buildco.example"))

	assert.Equal(t, model.OutcomeAutoSend, result.Outcome)
	gen.AssertNumberOfCalls(t, "Generate", 2)
}

func TestProcess_GenerationFailsAfterRetry(t *testing.T) {
	st := newTestStore(t)

	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &generate.CapabilityError{Kind: generate.CapabilityUnavailable, Err: assert.AnError}).Twice()

	p := New(st, gen, nil, testConfig())
	result := p.Process(context.Background(), testInput("jo@buildco.example"))

	assert.Equal(t, model.OutcomeFailed, result.Outcome)
	require.Error(t, result.Err)
	gen.AssertNumberOfCalls(t, "Generate", 2)

	lead, err := st.GetLead(context.Background(), result.Lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusFailed, lead.Status)

	// The failed attempt is still on the audit trail.
	got, err := st.LatestAttempt(context.Background(), result.Lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeFailed, got.Outcome)
	assert.Nil(t, got.Result)
}

func TestProcessBatch_OneFailureDoesNotAbort(t *testing.T) {
	st := newTestStore(t)

	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(l model.Lead) bool {
		return l.Email == "bad@x.example"
	}), mock.Anything, mock.Anything).
		Return(nil, &generate.CapabilityError{Kind: generate.CapabilityTimeout, Err: context.DeadlineExceeded})
	gen.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(goodResult(), nil)

	p := New(st, gen, nil, testConfig())

	inputs := []LeadInput{
		testInput("a@x.example"),
		testInput("bad@x.example"),
		testInput("c@x.example"),
	}

	stats, err := p.ProcessBatch(context.Background(), inputs)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Processed)
	assert.Equal(t, int64(2), stats.AutoSend)
	assert.Equal(t, int64(1), stats.Failed)
}

func TestProcessBatch_MixedOutcomes(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.AddSuppression(context.Background(), "sup@x.example", "dnc"))

	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(goodResult(), nil)

	p := New(st, gen, nil, testConfig())

	noTitle := testInput("blocked@x.example")
	noTitle.Lead.Title = ""

	stats, err := p.ProcessBatch(context.Background(), []LeadInput{
		testInput("ok@x.example"),
		testInput("sup@x.example"),
		noTitle,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Processed)
	assert.Equal(t, int64(1), stats.AutoSend)
	assert.Equal(t, int64(1), stats.Suppressed)
	assert.Equal(t, int64(1), stats.Blocked)

	counts, err := st.BatchCounts(context.Background(), "2026-08-28")
	require.NoError(t, err)
	assert.Equal(t, 1, counts.AutoSend)
	assert.Equal(t, 1, counts.Blocked)
}
