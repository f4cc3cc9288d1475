// Package store persists leads, personalisation attempts, suppressions
// and audit events. Two implementations exist: SQLite for local runs
// and Postgres for shared deployments.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/humtech/outreach-cli/internal/model"
)

// Sentinel errors surfaced by override and lookup operations.
var (
	ErrNotFound    = eris.New("store: not found")
	ErrAlreadySent = eris.New("store: lead already sent, attempt is immutable")
)

// PersistenceError wraps a storage failure for an audit-critical write.
// The pipeline retries these once before marking the lead failed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// emailDomain extracts the domain part of an email address for
// domain-level suppression matching. Returns "" when there is none.
func emailDomain(email string) string {
	if i := strings.LastIndex(email, "@"); i >= 0 && i < len(email)-1 {
		return email[i+1:]
	}
	return ""
}

// AttemptFilter selects attempts for audit queries.
type AttemptFilter struct {
	LeadID        string `json:"lead_id,omitempty"`
	PromptVersion string `json:"prompt_version,omitempty"`
	BatchDate     string `json:"batch_date,omitempty"`
	Limit         int    `json:"limit,omitempty"`
	Offset        int    `json:"offset,omitempty"`
}

// Store defines the persistence interface for the personalisation
// pipeline.
type Store interface {
	// Leads
	UpsertLead(ctx context.Context, lead model.Lead) (*model.Lead, error)
	GetLead(ctx context.Context, leadID string) (*model.Lead, error)
	LeadsForBatch(ctx context.Context, batchDate string) ([]model.Lead, error)
	MarkLeadSent(ctx context.Context, leadID string) error
	MarkLeadFailed(ctx context.Context, leadID string) error
	UpdateLeadStatus(ctx context.Context, leadID string, status model.LeadStatus) error

	// Suppressions. Entries are full emails or bare company domains;
	// IsSuppressed matches the email against both.
	IsSuppressed(ctx context.Context, email string) (bool, error)
	AddSuppression(ctx context.Context, value, reason string) error

	// Attempts. Every generation attempt is recorded, including blocked
	// and failed ones; the attempt log is the audit trail.
	RecordAttempt(ctx context.Context, attempt *model.Attempt) error
	GetAttempt(ctx context.Context, attemptID string) (*model.Attempt, error)
	LatestAttempt(ctx context.Context, leadID string) (*model.Attempt, error)
	ListAttempts(ctx context.Context, filter AttemptFilter) ([]model.Attempt, error)

	// Review queue and batch reporting
	BatchReview(ctx context.Context, batchDate string) ([]model.ReviewItem, error)
	BatchCounts(ctx context.Context, batchDate string) (*model.BatchCounts, error)

	// Overrides. Both fail with ErrAlreadySent once the lead has shipped.
	OverrideOpener(ctx context.Context, attemptID, editedOpener string) error
	RemoveAttempt(ctx context.Context, attemptID string) error

	// Dispatch
	SendableLeads(ctx context.Context, batchDate string) ([]model.DispatchRecord, error)

	// Events
	LogEvent(ctx context.Context, event model.Event) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
