package model

// Company statuses.
const (
	CompanyStatusActive = "active"
)

// Customer lifecycle statuses.
const (
	CustomerStatusProspect = "prospect"
	CustomerStatusActive   = "active"
)

// Company is an organization identified by its email domain.
type Company struct {
	ID          string   `json:"company_id"`
	TenantID    string   `json:"tenant_id"`
	Domain      string   `json:"domain_name"`
	Name        string   `json:"company_name"`
	Status      string   `json:"status"`
	HealthScore *float64 `json:"health_score,omitempty"`
}

// Customer is a person identified by email address.
type Customer struct {
	ID          string  `json:"customer_id"`
	TenantID    string  `json:"tenant_id"`
	Email       string  `json:"email"`
	FullName    string  `json:"full_name"`
	CompanyID   *string `json:"company_id,omitempty"`
	DomainMatch string  `json:"domain_match"`
	Status      string  `json:"status"`
}

// ThreadParticipant records that a customer appears in a thread.
type ThreadParticipant struct {
	ThreadID   string `json:"thread_id"`
	CustomerID string `json:"customer_id"`
	TenantID   string `json:"tenant_id"`
}

// ThreadCompanyLink records that a company is involved in a thread.
type ThreadCompanyLink struct {
	ThreadID  string `json:"thread_id"`
	CompanyID string `json:"company_id"`
	TenantID  string `json:"tenant_id"`
}

// Participant is a thread participant joined with its customer and company.
type Participant struct {
	CustomerID  string
	Email       string
	FullName    string
	CompanyID   *string
	CompanyName string
}

// Tenant is the account that owns threads; Email is its own mailbox address.
type Tenant struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}
