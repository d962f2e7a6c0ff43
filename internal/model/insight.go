package model

import "time"

// Urgency grades a feature request.
type Urgency string

const (
	UrgencyLow    Urgency = "Low"
	UrgencyMedium Urgency = "Medium"
	UrgencyHigh   Urgency = "High"
)

// Valid reports whether u is one of Low, Medium or High.
func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh:
		return true
	}
	return false
}

// Default statuses for extracted items.
const (
	NextStepStatusPending   = "pending"
	FeatureRequestStatusNew = "new"
)

// NextStep is an action item extracted from a thread.
type NextStep struct {
	ID          string     `json:"step_id"`
	ThreadID    string     `json:"thread_id"`
	TenantID    string     `json:"tenant_id"`
	Description string     `json:"description"`
	Owner       *string    `json:"owner,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Status      string     `json:"status"`
}

// FeatureRequest is a product request extracted from a thread.
type FeatureRequest struct {
	ID                  string  `json:"feature_request_id"`
	ThreadID            string  `json:"thread_id"`
	TenantID            string  `json:"tenant_id"`
	Title               string  `json:"title"`
	CustomerDescription string  `json:"customer_description"`
	UseCase             string  `json:"use_case"`
	Urgency             Urgency `json:"urgency"`
	UrgencySignals      string  `json:"urgency_signals"`
	CustomerImpact      string  `json:"customer_impact"`
	Status              string  `json:"status"`
}

// NextStepAssignment ties a next step to a participating customer.
type NextStepAssignment struct {
	NextStepID string `json:"next_step_id"`
	CustomerID string `json:"customer_id"`
}
