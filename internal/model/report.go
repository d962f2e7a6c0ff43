package model

import "time"

// AnalysisMode selects how much of a thread is sent to the model.
type AnalysisMode string

const (
	ModeFull        AnalysisMode = "full"
	ModeIncremental AnalysisMode = "incremental"
)

// TaskAnalyzeThread names the analysis job for trigger transports.
const TaskAnalyzeThread = "analyze-thread"

// AnalyzePayload is the job payload carried by every trigger transport.
type AnalyzePayload struct {
	TenantID string `json:"user_id"`
	ThreadID string `json:"thread_id"`
}

// ResolutionReport summarizes a batch resolution run.
type ResolutionReport struct {
	Success            bool              `json:"success"`
	ProcessedCount     int               `json:"processed_count"`
	SkippedThreads     map[string]string `json:"skipped_threads"`
	CustomersCreated   int               `json:"customers_created"`
	CustomersFound     int               `json:"customers_found"`
	CompaniesCreated   int               `json:"companies_created"`
	ParticipantsLinked int               `json:"participants_linked"`
	CompanyLinks       int               `json:"company_links"`
	JobsTriggered      int               `json:"jobs_triggered"`
	Errors             []string          `json:"errors"`
}

// NewResolutionReport returns a report with non-nil collections.
func NewResolutionReport() *ResolutionReport {
	return &ResolutionReport{
		SkippedThreads: make(map[string]string),
		Errors:         []string{},
	}
}

// AnalysisReport summarizes one thread analysis.
type AnalysisReport struct {
	Success              bool         `json:"success"`
	ThreadID             string       `json:"thread_id"`
	Mode                 AnalysisMode `json:"mode,omitempty"`
	Skipped              bool         `json:"skipped"`
	SkipReason           string       `json:"skip_reason,omitempty"`
	Sentiment            string       `json:"sentiment,omitempty"`
	SentimentScore       *int         `json:"sentiment_score,omitempty"`
	ResolutionStatus     string       `json:"resolution_status,omitempty"`
	NextStepsCount       int          `json:"next_steps_count"`
	FeatureRequestsCount int          `json:"feature_requests_count"`
	LastAnalyzedAt       *time.Time   `json:"last_analyzed_at,omitempty"`
	Errors               []string     `json:"errors"`
}
