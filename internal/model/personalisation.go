package model

import (
	"sort"
	"strings"
	"time"
)

// MaxOpenerWords bounds the opener_first_line length.
const MaxOpenerWords = 22

// MinRung and MaxRung bound the personalisation rung ladder.
const (
	MinRung = 1
	MaxRung = 5
)

// AngleTag is the outreach theme the opener leads with.
type AngleTag string

const (
	AngleSpeedToLead    AngleTag = "speed_to_lead"
	AngleCACLeak        AngleTag = "cac_leak"
	AngleAttributionGap AngleTag = "attribution_gap"
	AngleSalesOps       AngleTag = "sales_ops"
	AngleConversionRate AngleTag = "conversion_rate"
)

// ValidAngleTag reports whether t is one of the fixed themes.
func ValidAngleTag(t AngleTag) bool {
	switch t {
	case AngleSpeedToLead, AngleCACLeak, AngleAttributionGap, AngleSalesOps, AngleConversionRate:
		return true
	}
	return false
}

// RiskFlag marks a quality or safety concern on a generated message.
type RiskFlag string

const (
	// Blocking flags: the message must never be auto-sent.
	FlagHallucinationRisk RiskFlag = "hallucination_risk"
	FlagPrivacyRisk       RiskFlag = "privacy_risk"

	// Non-blocking flags: force human review but never block outright.
	FlagToneRisk        RiskFlag = "tone_risk"
	FlagDuplicationRisk RiskFlag = "duplication_risk"
)

// ValidRiskFlag reports whether f is part of the fixed flag enum.
func ValidRiskFlag(f RiskFlag) bool {
	switch f {
	case FlagHallucinationRisk, FlagPrivacyRisk, FlagToneRisk, FlagDuplicationRisk:
		return true
	}
	return false
}

// Blocking reports whether the flag is in the blocking set.
func (f RiskFlag) Blocking() bool {
	return f == FlagHallucinationRisk || f == FlagPrivacyRisk
}

// NormalizeFlags deduplicates and sorts a flag list so risk flags behave
// as a set. Validators that re-run must produce identical output.
func NormalizeFlags(flags []RiskFlag) []RiskFlag {
	seen := make(map[RiskFlag]bool, len(flags))
	out := make([]RiskFlag, 0, len(flags))
	for _, f := range flags {
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// HasFlag reports whether flags contains f.
func HasFlag(flags []RiskFlag, f RiskFlag) bool {
	for _, v := range flags {
		if v == f {
			return true
		}
	}
	return false
}

// Disposition is the routing outcome for a personalisation attempt.
type Disposition string

const (
	DispositionAutoSend    Disposition = "auto_send"
	DispositionNeedsReview Disposition = "needs_review"
	DispositionBlocked     Disposition = "blocked"
)

// Outcome is the per-lead result of a pipeline run within a batch.
// Dispositions are content judgments; suppressed and failed are
// infrastructure outcomes and carry no disposition.
type Outcome string

const (
	OutcomeAutoSend    Outcome = "auto_send"
	OutcomeNeedsReview Outcome = "needs_review"
	OutcomeBlocked     Outcome = "blocked"
	OutcomeSuppressed  Outcome = "suppressed"
	OutcomeFailed      Outcome = "failed"
)

// PersonalisationResult is the structured output of one generation call.
// Immutable once created; corrections happen by producing a new attempt.
type PersonalisationResult struct {
	OpenerFirstLine string        `json:"opener_first_line"`
	MicroInsight    string        `json:"micro_insight,omitempty"`
	AngleTag        AngleTag      `json:"angle_tag"`
	ConfidenceScore float64       `json:"confidence_score"`
	EvidenceUsed    []EvidenceRef `json:"evidence_used"`
	RiskFlags       []RiskFlag    `json:"risk_flags"`
	Rung            int           `json:"rung"`

	// Provenance envelope, stamped by the generator adapter. Mandatory.
	PromptVersion string    `json:"prompt_version"`
	Model         string    `json:"model"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// CountWords counts whitespace-separated words, used for the opener bound.
func CountWords(s string) int {
	return len(strings.Fields(s))
}
