// Package evidence builds the per-attempt evidence ledger from upstream
// enrichment output. The ledger is the only source of truth the validator
// accepts when cross-checking generator-asserted citations.
package evidence

import (
	"errors"
	"fmt"
	"sort"

	"github.com/humtech/outreach-cli/internal/model"
)

// InvalidSignalError marks a signal that cannot serve as evidence, either
// because it lacks a source URL or because its key is outside the taxonomy.
type InvalidSignalError struct {
	Key    model.SignalKey
	Reason string
}

func (e *InvalidSignalError) Error() string {
	return fmt.Sprintf("invalid signal %q: %s", e.Key, e.Reason)
}

// Ledger is the immutable set of verified signals available for one lead
// at generation time, uniquely keyed by signal key.
type Ledger struct {
	signals map[model.SignalKey]model.Signal
}

// Build constructs a ledger from enrichment output. Invalid signals are
// dropped and reported through the joined error; the ledger is still
// returned with the valid remainder so one malformed upstream entry never
// costs the whole attempt. Duplicate keys resolve last-wins: enrichment
// fetchers emit signals oldest-first, so the last occurrence is the most
// recent observation.
func Build(signals []model.Signal) (*Ledger, error) {
	l := &Ledger{signals: make(map[model.SignalKey]model.Signal, len(signals))}

	var errs []error
	for _, s := range signals {
		if !model.ValidSignalKey(s.Key) {
			errs = append(errs, &InvalidSignalError{Key: s.Key, Reason: "unknown signal key"})
			continue
		}
		if s.SourceURL == "" {
			errs = append(errs, &InvalidSignalError{Key: s.Key, Reason: "missing source_url"})
			continue
		}
		l.signals[s.Key] = s
	}

	return l, errors.Join(errs...)
}

// Lookup returns the signal stored under key.
func (l *Ledger) Lookup(key model.SignalKey) (model.Signal, bool) {
	s, ok := l.signals[key]
	return s, ok
}

// Verify reports whether a generator-asserted evidence reference matches a
// ledger signal exactly (key and source URL).
func (l *Ledger) Verify(ref model.EvidenceRef) bool {
	s, ok := l.signals[ref.SignalKey]
	return ok && s.SourceURL == ref.SourceURL
}

// Len returns the number of signals in the ledger.
func (l *Ledger) Len() int {
	return len(l.signals)
}

// Signals returns the ledger contents ordered by key, for deterministic
// audit snapshots.
func (l *Ledger) Signals() []model.Signal {
	out := make([]model.Signal, 0, len(l.signals))
	for _, s := range l.signals {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
