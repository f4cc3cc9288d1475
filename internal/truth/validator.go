// Package truth enforces that every claim in a generated message is
// evidence-backed. It cross-references generator-asserted citations
// against the evidence ledger and screens for disallowed personal
// information; content and tone judgment stays with the generation
// capability.
package truth

import (
	"go.uber.org/zap"

	"github.com/humtech/outreach-cli/internal/evidence"
	"github.com/humtech/outreach-cli/internal/model"
)

// angleImpliedSignal maps angle tags to the signal category their framing
// implies. Used for advisory logging only: the validator flags nothing it
// cannot verify by evidence cross-referencing.
var angleImpliedSignal = map[model.AngleTag]model.SignalKey{
	model.AngleSpeedToLead:    model.SignalHiring,
	model.AngleCACLeak:        model.SignalAds,
	model.AngleAttributionGap: model.SignalAds,
	model.AngleConversionRate: model.SignalTechStack,
}

// Validator checks personalisation results against an evidence ledger.
type Validator struct {
	denylist *Denylist
}

// New creates a Validator. A nil denylist falls back to the built-in one.
func New(denylist *Denylist) *Validator {
	if denylist == nil {
		denylist = DefaultDenylist()
	}
	return &Validator{denylist: denylist}
}

// Validate returns a copy of result whose evidence_used contains only
// entries verified against the ledger, with risk flags augmented
// accordingly. Generator-asserted evidence is never trusted as-is: any
// citation that does not match a ledger signal exactly is pruned and
// marked as hallucination risk. Idempotent: flags form a set, so running
// twice yields the same output.
func (v *Validator) Validate(result *model.PersonalisationResult, ledger *evidence.Ledger) *model.PersonalisationResult {
	out := *result
	flags := append([]model.RiskFlag(nil), result.RiskFlags...)

	var verified []model.EvidenceRef
	for _, ref := range result.EvidenceUsed {
		if ledger.Verify(ref) {
			verified = append(verified, ref)
			continue
		}
		zap.L().Warn("truth: pruning unverifiable evidence citation",
			zap.String("signal_key", string(ref.SignalKey)),
			zap.String("source_url", ref.SourceURL),
		)
		flags = append(flags, model.FlagHallucinationRisk)
	}
	out.EvidenceUsed = verified

	if hits := v.denylist.Match(result.OpenerFirstLine + " " + result.MicroInsight); len(hits) > 0 {
		zap.L().Warn("truth: disallowed personal-information category in message",
			zap.Strings("categories", hits),
		)
		flags = append(flags, model.FlagPrivacyRisk)
	}

	// Angle tags that imply a signal category the verified evidence does
	// not cover are logged for the reviewer but not flagged: without a
	// failed cross-reference there is nothing the validator can assert.
	if implied, ok := angleImpliedSignal[result.AngleTag]; ok && !hasSignal(verified, implied) {
		zap.L().Debug("truth: angle tag implies uncited signal category",
			zap.String("angle_tag", string(result.AngleTag)),
			zap.String("implied_signal", string(implied)),
		)
	}

	out.RiskFlags = model.NormalizeFlags(flags)
	return &out
}

func hasSignal(refs []model.EvidenceRef, key model.SignalKey) bool {
	for _, r := range refs {
		if r.SignalKey == key {
			return true
		}
	}
	return false
}
