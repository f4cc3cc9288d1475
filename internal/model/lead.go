package model

import "time"

// LeadStatus represents the lifecycle state of a lead within a batch.
type LeadStatus string

const (
	LeadStatusPending      LeadStatus = "pending"
	LeadStatusPersonalised LeadStatus = "personalised"
	LeadStatusSent         LeadStatus = "sent"
	LeadStatusFailed       LeadStatus = "failed"
	LeadStatusSuppressed   LeadStatus = "suppressed"
)

// Lead is a sourced prospect. Sourcing and enrichment happen upstream;
// the engine only consumes the core fields plus the enrichment signals.
type Lead struct {
	ID            string     `json:"id,omitempty"`
	Email         string     `json:"email"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name,omitempty"`
	Title         string     `json:"title,omitempty"`
	Company       string     `json:"company,omitempty"`
	CompanyDomain string     `json:"company_domain,omitempty"`
	Industry      string     `json:"industry,omitempty"`
	City          string     `json:"city,omitempty"`
	EmployeeCount int        `json:"employee_count,omitempty"`
	BatchDate     string     `json:"batch_date"` // calendar date, YYYY-MM-DD
	Status        LeadStatus `json:"status,omitempty"`
	CreatedAt     time.Time  `json:"created_at,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at,omitempty"`
}

// MissingRequiredFields returns the required fields this lead lacks.
// Email identifies the recipient; first name, company and title are the
// minimum inputs the generation capability needs to produce a usable
// opener. A non-empty return short-circuits the pipeline before any
// capability call is made.
func (l Lead) MissingRequiredFields() []string {
	var missing []string
	if l.Email == "" {
		missing = append(missing, "email")
	}
	if l.FirstName == "" {
		missing = append(missing, "first_name")
	}
	if l.Company == "" {
		missing = append(missing, "company")
	}
	if l.Title == "" {
		missing = append(missing, "title")
	}
	return missing
}
