package model

import "time"

// Thread is one email conversation owned by a tenant.
type Thread struct {
	ID               string     `json:"thread_id"`
	TenantID         string     `json:"tenant_id"`
	Subject          string     `json:"subject"`
	LastMessageAt    *time.Time `json:"last_message_at,omitempty"`
	LastAnalyzedAt   *time.Time `json:"last_analyzed_at,omitempty"`
	Summary          string     `json:"summary,omitempty"`
	ProblemStatement string     `json:"problem_statement,omitempty"`
	TimelineSummary  string     `json:"timeline_summary,omitempty"`
	Sentiment        string     `json:"sentiment,omitempty"`
	SentimentScore   *int       `json:"sentiment_score,omitempty"`
	ResolutionStatus string     `json:"resolution_status,omitempty"`
}

// ThreadAnalysis is the set of thread columns written after an analysis run.
type ThreadAnalysis struct {
	Summary          string
	ProblemStatement string
	TimelineSummary  string
	Sentiment        string
	SentimentScore   *int
	ResolutionStatus string
	AnalyzedAt       time.Time
}

// Message is a single immutable email within a thread. To and Cc hold the raw
// address field as ingested: a header string or a JSON-encoded array.
type Message struct {
	ID         string     `json:"message_id"`
	ThreadID   string     `json:"thread_id"`
	TenantID   string     `json:"tenant_id"`
	Subject    string     `json:"subject,omitempty"`
	From       string     `json:"from_address"`
	To         string     `json:"to_addresses,omitempty"`
	Cc         string     `json:"cc_addresses,omitempty"`
	BodyText   string     `json:"body_text,omitempty"`
	BodyHTML   string     `json:"body_html,omitempty"`
	SentAt     *time.Time `json:"sent_date,omitempty"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
	CustomerID *string    `json:"customer_id,omitempty"`
	Summary    *string    `json:"summary,omitempty"`
}

// Body returns the plain-text body, falling back to HTML.
func (m Message) Body() string {
	if m.BodyText != "" {
		return m.BodyText
	}
	return m.BodyHTML
}

// Timestamp returns the sent time, falling back to the creation time.
func (m Message) Timestamp() *time.Time {
	if m.SentAt != nil {
		return m.SentAt
	}
	return m.CreatedAt
}
