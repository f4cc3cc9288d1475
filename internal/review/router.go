// Package review routes validated personalisation attempts to a
// disposition. Rules are evaluated in a fixed order; the first match
// wins, so blocking conditions always take precedence over soft ones.
package review

import (
	"fmt"
	"strings"

	"github.com/humtech/outreach-cli/internal/model"
)

// Confidence thresholds. At or above AutoSendConfidence a clean attempt
// ships without a human; below BlockConfidence nothing ships at all.
const (
	AutoSendConfidence = 0.7
	BlockConfidence    = 0.4
)

type rule struct {
	disposition model.Disposition
	match       func(lead model.Lead, result *model.PersonalisationResult) (bool, string)
}

var rules = []rule{
	{model.DispositionBlocked, missingFields},
	{model.DispositionBlocked, blockingFlags},
	{model.DispositionBlocked, confidenceFloor},
	{model.DispositionNeedsReview, softFlags},
	{model.DispositionNeedsReview, lowConfidence},
	{model.DispositionNeedsReview, emptyEvidence},
}

// Route returns the disposition for a validated attempt and a
// human-readable reason recorded alongside it.
func Route(lead model.Lead, result *model.PersonalisationResult) (model.Disposition, string) {
	for _, r := range rules {
		if ok, reason := r.match(lead, result); ok {
			return r.disposition, reason
		}
	}
	return model.DispositionAutoSend, "passed all gates"
}

func missingFields(lead model.Lead, _ *model.PersonalisationResult) (bool, string) {
	missing := lead.MissingRequiredFields()
	if len(missing) == 0 {
		return false, ""
	}
	return true, "missing required fields: " + strings.Join(missing, ", ")
}

func blockingFlags(_ model.Lead, result *model.PersonalisationResult) (bool, string) {
	for _, f := range result.RiskFlags {
		if f.Blocking() {
			return true, "blocking risk flag: " + string(f)
		}
	}
	return false, ""
}

func confidenceFloor(_ model.Lead, result *model.PersonalisationResult) (bool, string) {
	if result.ConfidenceScore < BlockConfidence {
		return true, fmt.Sprintf("confidence %.2f below block floor %.2f", result.ConfidenceScore, BlockConfidence)
	}
	return false, ""
}

func softFlags(_ model.Lead, result *model.PersonalisationResult) (bool, string) {
	for _, f := range result.RiskFlags {
		if !f.Blocking() {
			return true, "risk flag: " + string(f)
		}
	}
	return false, ""
}

func lowConfidence(_ model.Lead, result *model.PersonalisationResult) (bool, string) {
	if result.ConfidenceScore < AutoSendConfidence {
		return true, fmt.Sprintf("confidence %.2f below auto-send threshold %.2f", result.ConfidenceScore, AutoSendConfidence)
	}
	return false, ""
}

func emptyEvidence(_ model.Lead, result *model.PersonalisationResult) (bool, string) {
	if len(result.EvidenceUsed) == 0 {
		return true, "no verified evidence cited"
	}
	return false, ""
}
