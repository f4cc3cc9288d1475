// Package rung maps verified evidence to the highest personalisation
// depth a message is allowed to claim. The ladder runs 1 to 5: generic,
// title-aware, industry-aware, light-signal, strong-signal.
package rung

import (
	"go.uber.org/zap"

	"github.com/humtech/outreach-cli/internal/evidence"
	"github.com/humtech/outreach-cli/internal/model"
)

var strongSignals = map[model.SignalKey]bool{
	model.SignalHiring: true,
	model.SignalGrowth: true,
}

var lightSignals = map[model.SignalKey]bool{
	model.SignalAds:       true,
	model.SignalTechStack: true,
	model.SignalContent:   true,
}

// Ceiling computes the maximum rung supportable by the verified evidence
// and the lead's firmographic fields. Only evidence that survived
// validation counts; a strong signal must carry a payload to support
// rung 5.
func Ceiling(verified []model.EvidenceRef, ledger *evidence.Ledger, lead model.Lead) int {
	hasStrong := false
	hasLight := false
	for _, ref := range verified {
		if strongSignals[ref.SignalKey] {
			sig, ok := ledger.Lookup(ref.SignalKey)
			if ok && sig.Payload != "" {
				hasStrong = true
			} else {
				hasLight = true
			}
		}
		if lightSignals[ref.SignalKey] {
			hasLight = true
		}
	}

	switch {
	case hasStrong:
		return 5
	case hasLight:
		return 4
	case lead.Industry != "":
		return 3
	case lead.Title != "":
		return 2
	default:
		return 1
	}
}

// Apply clamps the generator's self-reported rung to the evidence
// ceiling. An over-claim is a soft hallucination: the rung is downgraded
// and the result picks up a hallucination flag so routing treats it as
// blocked. Returns a copy; the input is not mutated.
func Apply(result *model.PersonalisationResult, ledger *evidence.Ledger, lead model.Lead) *model.PersonalisationResult {
	out := *result
	ceiling := Ceiling(out.EvidenceUsed, ledger, lead)
	if out.Rung <= ceiling {
		return &out
	}

	zap.L().Warn("rung over-claim downgraded",
		zap.Int("claimed", out.Rung),
		zap.Int("ceiling", ceiling),
		zap.String("angle_tag", string(out.AngleTag)))

	out.Rung = ceiling
	out.RiskFlags = model.NormalizeFlags(append(append([]model.RiskFlag{}, out.RiskFlags...), model.FlagHallucinationRisk))
	return &out
}
