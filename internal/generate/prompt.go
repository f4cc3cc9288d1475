package generate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/humtech/outreach-cli/internal/evidence"
	"github.com/humtech/outreach-cli/internal/model"
)

// promptBuilder renders the user prompt for one prompt version.
type promptBuilder func(lead model.Lead, ledger *evidence.Ledger, templateContext string) (string, error)

// promptVersions registers every known prompt version. Attempts persist
// the version they ran with, so old versions are kept for back-to-back
// comparison rather than edited in place.
var promptVersions = map[string]promptBuilder{
	"v1.0": buildPromptV1,
}

// KnownPromptVersion reports whether version is registered.
func KnownPromptVersion(version string) bool {
	_, ok := promptVersions[version]
	return ok
}

// BuildPrompt renders the versioned personalisation prompt. The version is
// an explicit input, never ambient state, so every attempt is reproducible
// from its audit record.
func BuildPrompt(version string, lead model.Lead, ledger *evidence.Ledger, templateContext string) (string, error) {
	builder, ok := promptVersions[version]
	if !ok {
		return "", eris.Errorf("generate: unknown prompt version %q", version)
	}
	return builder(lead, ledger, templateContext)
}

func buildPromptV1(lead model.Lead, ledger *evidence.Ledger, templateContext string) (string, error) {
	signalsJSON, err := json.MarshalIndent(ledger.Signals(), "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "generate: marshal signals")
	}

	var b strings.Builder
	b.WriteString("You are writing a personalised opening line for a cold email on behalf of HumTech.\n\n")
	fmt.Fprintf(&b, "HumTech context: %s\n\n", templateContext)

	b.WriteString("Prospect:\n")
	fmt.Fprintf(&b, "- Name: %s %s\n", lead.FirstName, lead.LastName)
	fmt.Fprintf(&b, "- Title: %s\n", orUnknown(lead.Title))
	fmt.Fprintf(&b, "- Company: %s\n", orUnknown(lead.Company))
	fmt.Fprintf(&b, "- Industry: %s\n", orUnknown(lead.Industry))
	fmt.Fprintf(&b, "- Domain: %s\n\n", lead.CompanyDomain)

	b.WriteString("Available signals (use ONLY what is here — never invent):\n")
	b.Write(signalsJSON)
	b.WriteString("\n\n")

	b.WriteString(`Rung system (choose highest achievable):
- Rung 5: Specific + evidence-backed (cite real signal with source_url)
- Rung 4: Specific but light (category observation with some basis)
- Rung 3: Industry-specific pattern (no personal claim about this company)
- Rung 2: Role-based empathy (title-based, non-assumptive)
- Rung 1: Human neutral (no signals available)

UK tone: calm, direct, not salesy. Max 22 words for opener_first_line.
Do not repeat the HumTech offer — the template body does that.

Return ONLY valid JSON:
{
  "opener_first_line": "string (max 22 words)",
  "micro_insight": "string or null",
  "angle_tag": "speed_to_lead|cac_leak|attribution_gap|sales_ops|conversion_rate",
  "confidence_score": 0.0,
  "evidence_used": [{"signal_key": "string", "source_url": "string"}],
  "risk_flags": [],
  "rung": 1
}

Truth rules — non-negotiable:
1. Only reference signals present in the signals JSON above.
2. Every specific claim needs a source_url in evidence_used.
3. If you reference something without evidence, add "hallucination_risk" to risk_flags.
4. Frame inferences as observations ("usually means", "suggests") not facts.`)

	return b.String(), nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
