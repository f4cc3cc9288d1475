package model

// SignalKey identifies the category of an enrichment signal.
type SignalKey string

const (
	SignalHiring    SignalKey = "hiring"
	SignalAds       SignalKey = "ads"
	SignalTechStack SignalKey = "tech_stack"
	SignalContent   SignalKey = "content"
	SignalGrowth    SignalKey = "growth"
)

// AllSignalKeys returns the fixed signal taxonomy.
func AllSignalKeys() []SignalKey {
	return []SignalKey{SignalHiring, SignalAds, SignalTechStack, SignalContent, SignalGrowth}
}

// ValidSignalKey reports whether k is part of the taxonomy.
func ValidSignalKey(k SignalKey) bool {
	for _, v := range AllSignalKeys() {
		if v == k {
			return true
		}
	}
	return false
}

// Signal is a single unit of enrichment evidence about a lead. A signal
// without a source URL is not independently verifiable and must never be
// used as evidence.
type Signal struct {
	Key       SignalKey `json:"signal_key"`
	Payload   string    `json:"payload,omitempty"`
	SourceURL string    `json:"source_url"`
}

// EvidenceRef is a generator-asserted citation of a signal. It is only
// trusted after the truth validator has matched it against the ledger.
type EvidenceRef struct {
	SignalKey SignalKey `json:"signal_key"`
	SourceURL string    `json:"source_url"`
}
