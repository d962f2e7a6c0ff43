// Package store persists threads, entities and analysis results.
package store

import (
	"context"

	"github.com/sells-group/thread-intel/internal/model"
)

// StageStore reads and writes the per-thread processing stage.
type StageStore interface {
	SetStage(ctx context.Context, tenantID string, stage model.Stage, threadIDs ...string) error
	GetStages(ctx context.Context, tenantID string, threadIDs []string) (map[string]model.Stage, error)
	CountStages(ctx context.Context, tenantID string) (map[model.Stage]int, error)
}

// EntityStore backs entity resolution. Find methods return ErrNotFound when
// no row matches; Insert methods return ErrDuplicate on a unique violation.
type EntityStore interface {
	GetTenant(ctx context.Context, tenantID string) (*model.Tenant, error)
	ListMessages(ctx context.Context, tenantID string, threadIDs []string) ([]model.Message, error)
	SetMessageCustomer(ctx context.Context, tenantID, messageID, customerID string) error

	FindCompany(ctx context.Context, tenantID, domain string) (*model.Company, error)
	UpsertCompany(ctx context.Context, c model.Company) (*model.Company, error)
	InsertCompany(ctx context.Context, c model.Company) (*model.Company, error)

	FindCustomer(ctx context.Context, tenantID, email string) (*model.Customer, error)
	UpsertCustomer(ctx context.Context, c model.Customer) (*model.Customer, error)
	InsertCustomer(ctx context.Context, c model.Customer) (*model.Customer, error)
	SetCustomerCompany(ctx context.Context, tenantID, customerID, companyID string) error

	InsertParticipant(ctx context.Context, p model.ThreadParticipant) error
	InsertCompanyLink(ctx context.Context, l model.ThreadCompanyLink) error
}

// AnalysisStore backs thread analysis. An empty threadID on the List methods
// for steps and requests lists the whole tenant.
type AnalysisStore interface {
	GetThread(ctx context.Context, tenantID, threadID string) (*model.Thread, error)
	ListMessages(ctx context.Context, tenantID string, threadIDs []string) ([]model.Message, error)
	ListParticipants(ctx context.Context, tenantID, threadID string) ([]model.Participant, error)
	UpdateThreadAnalysis(ctx context.Context, tenantID, threadID string, a model.ThreadAnalysis) error

	ListNextSteps(ctx context.Context, tenantID, threadID string) ([]model.NextStep, error)
	InsertNextStep(ctx context.Context, s model.NextStep) error
	InsertAssignment(ctx context.Context, a model.NextStepAssignment) error
	ListFeatureRequests(ctx context.Context, tenantID, threadID string) ([]model.FeatureRequest, error)
	InsertFeatureRequest(ctx context.Context, fr model.FeatureRequest) error

	ListLinkedCompanies(ctx context.Context, tenantID, threadID string) ([]string, error)
	RecalculateHealthScore(ctx context.Context, tenantID, companyID string) error
}

// IngestStore loads raw mail and per-message summaries.
type IngestStore interface {
	SaveTenant(ctx context.Context, t model.Tenant) error
	SaveThread(ctx context.Context, t model.Thread) error
	SaveMessages(ctx context.Context, msgs []model.Message) (int64, error)
	ListUnsummarizedMessages(ctx context.Context, tenantID string, limit int) ([]model.Message, error)
	SetMessageSummary(ctx context.Context, tenantID, messageID, summary string) error
}

// Store is the full persistence surface.
type Store interface {
	StageStore
	EntityStore
	AnalysisStore
	IngestStore

	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}
