package model

import "time"

// Attempt is the append-only audit unit binding one generation call to its
// inputs, validated result and disposition. Attempts are never updated in
// place; a manual override is layered on top and the original preserved.
type Attempt struct {
	ID            string                 `json:"id"`
	LeadID        string                 `json:"lead_id"`
	BatchDate     string                 `json:"batch_date"` // calendar date, YYYY-MM-DD
	Ledger        []Signal               `json:"ledger"`
	Result        *PersonalisationResult `json:"result,omitempty"`
	Disposition   Disposition            `json:"disposition,omitempty"`
	Outcome       Outcome                `json:"outcome"`
	RouteReason   string                 `json:"route_reason,omitempty"`
	PromptVersion string                 `json:"prompt_version"`
	Model         string                 `json:"model,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`

	Override *Override `json:"override,omitempty"`
}

// Override is a human edit or removal applied on top of an attempt.
// Last writer wins; the override timestamp records when.
type Override struct {
	EditedOpener string    `json:"edited_opener,omitempty"`
	Removed      bool      `json:"removed"`
	OverriddenAt time.Time `json:"overridden_at"`
}

// FinalOpener returns the opener text the dispatch surface should use:
// the human edit when present, else the generated line.
func (a Attempt) FinalOpener() string {
	if a.Override != nil && a.Override.EditedOpener != "" {
		return a.Override.EditedOpener
	}
	if a.Result != nil {
		return a.Result.OpenerFirstLine
	}
	return ""
}

// ReviewItem is one row on the review surface: the latest non-removed
// attempt for a lead in a batch, joined with the lead's core fields.
type ReviewItem struct {
	Lead    Lead    `json:"lead"`
	Attempt Attempt `json:"attempt"`
}

// BatchCounts summarises a batch for the review surface. Failed counts
// infrastructure faults so a reviewer never mistakes them for policy
// blocks.
type BatchCounts struct {
	AutoSend    int `json:"auto_send"`
	NeedsReview int `json:"needs_review"`
	Blocked     int `json:"blocked"`
	Failed      int `json:"failed"`
}

// DispatchRecord is the engine's output contract to the sender: lead
// identity, final opener, and the evidence/rung/confidence record for
// traceability. Delivered once per lead per batch.
type DispatchRecord struct {
	LeadID      string        `json:"lead_id"`
	AttemptID   string        `json:"attempt_id"`
	Email       string        `json:"email"`
	FirstName   string        `json:"first_name"`
	LastName    string        `json:"last_name,omitempty"`
	Company     string        `json:"company,omitempty"`
	Opener      string        `json:"opener"`
	Rung        int           `json:"rung"`
	Confidence  float64       `json:"confidence"`
	Evidence    []EvidenceRef `json:"evidence"`
	Disposition Disposition   `json:"disposition"`
}
