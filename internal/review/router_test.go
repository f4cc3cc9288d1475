package review

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/humtech/outreach-cli/internal/model"
)

func completeLead() model.Lead {
	return model.Lead{
		Email:     "jo@buildco.example",
		FirstName: "Jo",
		Company:   "BuildCo",
		Title:     "Owner",
	}
}

func cleanResult(confidence float64) *model.PersonalisationResult {
	return &model.PersonalisationResult{
		OpenerFirstLine: "Noticed BuildCo is hiring two SDRs this quarter.",
		ConfidenceScore: confidence,
		EvidenceUsed:    []model.EvidenceRef{{SignalKey: model.SignalHiring, SourceURL: "https://hiring"}},
		Rung:            4,
	}
}

func TestRoute_CleanHighConfidence(t *testing.T) {
	d, reason := Route(completeLead(), cleanResult(0.85))
	assert.Equal(t, model.DispositionAutoSend, d)
	assert.Equal(t, "passed all gates", reason)
}

func TestRoute_ConfidenceBoundaries(t *testing.T) {
	tests := []struct {
		confidence float64
		want       model.Disposition
	}{
		{0.70, model.DispositionAutoSend},
		{0.69, model.DispositionNeedsReview},
		{0.40, model.DispositionNeedsReview},
		{0.39, model.DispositionBlocked},
	}
	for _, tt := range tests {
		d, _ := Route(completeLead(), cleanResult(tt.confidence))
		assert.Equal(t, tt.want, d, "confidence %.2f", tt.confidence)
	}
}

func TestRoute_MissingFieldsBlockRegardlessOfConfidence(t *testing.T) {
	lead := completeLead()
	lead.Email = ""

	d, reason := Route(lead, cleanResult(0.95))

	assert.Equal(t, model.DispositionBlocked, d)
	assert.Contains(t, reason, "email")
}

func TestRoute_BlockingFlag(t *testing.T) {
	result := cleanResult(0.9)
	result.RiskFlags = []model.RiskFlag{model.FlagHallucinationRisk}

	d, reason := Route(completeLead(), result)

	assert.Equal(t, model.DispositionBlocked, d)
	assert.Contains(t, reason, "hallucination_risk")
}

func TestRoute_PrivacyFlagBlocks(t *testing.T) {
	result := cleanResult(0.9)
	result.RiskFlags = []model.RiskFlag{model.FlagPrivacyRisk}

	d, _ := Route(completeLead(), result)
	assert.Equal(t, model.DispositionBlocked, d)
}

func TestRoute_SoftFlagNeedsReview(t *testing.T) {
	result := cleanResult(0.9)
	result.RiskFlags = []model.RiskFlag{model.FlagToneRisk}

	d, reason := Route(completeLead(), result)

	assert.Equal(t, model.DispositionNeedsReview, d)
	assert.Contains(t, reason, "tone_risk")
}

func TestRoute_MixedFlagsBlockWins(t *testing.T) {
	result := cleanResult(0.9)
	result.RiskFlags = []model.RiskFlag{model.FlagDuplicationRisk, model.FlagPrivacyRisk}

	d, _ := Route(completeLead(), result)
	assert.Equal(t, model.DispositionBlocked, d)
}

func TestRoute_EmptyEvidenceNeedsReview(t *testing.T) {
	result := cleanResult(0.9)
	result.EvidenceUsed = nil

	d, reason := Route(completeLead(), result)

	assert.Equal(t, model.DispositionNeedsReview, d)
	assert.Contains(t, reason, "evidence")
}

func TestRoute_FloorBeatsSoftFlag(t *testing.T) {
	result := cleanResult(0.2)
	result.RiskFlags = []model.RiskFlag{model.FlagToneRisk}

	d, reason := Route(completeLead(), result)

	assert.Equal(t, model.DispositionBlocked, d)
	assert.Contains(t, reason, "block floor")
}

// Raising confidence alone never produces a stricter disposition.
func TestRoute_MonotonicInConfidence(t *testing.T) {
	severity := map[model.Disposition]int{
		model.DispositionAutoSend:    0,
		model.DispositionNeedsReview: 1,
		model.DispositionBlocked:     2,
	}

	variants := []*model.PersonalisationResult{
		cleanResult(0),
		func() *model.PersonalisationResult {
			r := cleanResult(0)
			r.RiskFlags = []model.RiskFlag{model.FlagToneRisk}
			return r
		}(),
		func() *model.PersonalisationResult {
			r := cleanResult(0)
			r.EvidenceUsed = nil
			return r
		}(),
	}

	for _, base := range variants {
		prev := severity[model.DispositionBlocked]
		for c := 0.0; c <= 1.0; c += 0.05 {
			r := *base
			r.ConfidenceScore = c
			d, _ := Route(completeLead(), &r)
			assert.LessOrEqual(t, severity[d], prev, "confidence %.2f", c)
			prev = severity[d]
		}
	}
}
