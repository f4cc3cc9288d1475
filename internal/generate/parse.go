package generate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/humtech/outreach-cli/internal/model"
)

// rawResult mirrors the capability's JSON contract with pointer fields so
// missing keys are distinguishable from zero values.
type rawResult struct {
	OpenerFirstLine *string  `json:"opener_first_line"`
	MicroInsight    *string  `json:"micro_insight"`
	AngleTag        *string  `json:"angle_tag"`
	ConfidenceScore *float64 `json:"confidence_score"`
	EvidenceUsed    *[]struct {
		SignalKey string `json:"signal_key"`
		SourceURL string `json:"source_url"`
	} `json:"evidence_used"`
	RiskFlags *[]string `json:"risk_flags"`
	Rung      *int      `json:"rung"`
}

// parseResult strict-parses the capability's raw text into a
// PersonalisationResult. Any missing key, type mismatch or out-of-bounds
// value is a SchemaViolationError; malformed output must never propagate
// as a valid result.
func parseResult(text string) (*model.PersonalisationResult, error) {
	cleaned := cleanJSON(text)

	var raw rawResult
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, &SchemaViolationError{Violations: []string{fmt.Sprintf("not valid JSON: %v", err)}}
	}

	var violations []string

	if raw.OpenerFirstLine == nil || strings.TrimSpace(*raw.OpenerFirstLine) == "" {
		violations = append(violations, "opener_first_line missing or empty")
	} else if n := model.CountWords(*raw.OpenerFirstLine); n > model.MaxOpenerWords {
		violations = append(violations, fmt.Sprintf("opener_first_line is %d words (max %d)", n, model.MaxOpenerWords))
	}

	if raw.AngleTag == nil {
		violations = append(violations, "angle_tag missing")
	} else if !model.ValidAngleTag(model.AngleTag(*raw.AngleTag)) {
		violations = append(violations, fmt.Sprintf("unknown angle_tag %q", *raw.AngleTag))
	}

	if raw.ConfidenceScore == nil {
		violations = append(violations, "confidence_score missing")
	} else if *raw.ConfidenceScore < 0 || *raw.ConfidenceScore > 1 {
		violations = append(violations, fmt.Sprintf("confidence_score %v outside [0,1]", *raw.ConfidenceScore))
	}

	if raw.Rung == nil {
		violations = append(violations, "rung missing")
	} else if *raw.Rung < model.MinRung || *raw.Rung > model.MaxRung {
		violations = append(violations, fmt.Sprintf("rung %d outside %d-%d", *raw.Rung, model.MinRung, model.MaxRung))
	}

	var evidenceUsed []model.EvidenceRef
	if raw.EvidenceUsed == nil {
		violations = append(violations, "evidence_used missing")
	} else {
		for i, ref := range *raw.EvidenceUsed {
			if ref.SignalKey == "" || ref.SourceURL == "" {
				violations = append(violations, fmt.Sprintf("evidence_used[%d] missing signal_key or source_url", i))
				continue
			}
			evidenceUsed = append(evidenceUsed, model.EvidenceRef{
				SignalKey: model.SignalKey(ref.SignalKey),
				SourceURL: ref.SourceURL,
			})
		}
	}

	var flags []model.RiskFlag
	if raw.RiskFlags == nil {
		violations = append(violations, "risk_flags missing")
	} else {
		for _, f := range *raw.RiskFlags {
			flag := model.RiskFlag(f)
			if !model.ValidRiskFlag(flag) {
				violations = append(violations, fmt.Sprintf("unknown risk_flag %q", f))
				continue
			}
			flags = append(flags, flag)
		}
	}

	if len(violations) > 0 {
		return nil, &SchemaViolationError{Violations: violations}
	}

	result := &model.PersonalisationResult{
		OpenerFirstLine: strings.TrimSpace(*raw.OpenerFirstLine),
		AngleTag:        model.AngleTag(*raw.AngleTag),
		ConfidenceScore: *raw.ConfidenceScore,
		EvidenceUsed:    evidenceUsed,
		RiskFlags:       model.NormalizeFlags(flags),
		Rung:            *raw.Rung,
	}
	if raw.MicroInsight != nil {
		result.MicroInsight = strings.TrimSpace(*raw.MicroInsight)
	}

	return result, nil
}

// cleanJSON strips markdown fences and surrounding prose so only the JSON
// object remains.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
