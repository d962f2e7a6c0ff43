package store

import (
	"github.com/sells-group/thread-intel/internal/model"
)

// scannable is satisfied by pgx.Row, pgx.Rows, *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

const companyCols = `id, tenant_id, domain_name, company_name, status, health_score`

func scanCompany(row scannable) (*model.Company, error) {
	var c model.Company
	if err := row.Scan(&c.ID, &c.TenantID, &c.Domain, &c.Name, &c.Status, &c.HealthScore); err != nil {
		return nil, err
	}
	return &c, nil
}

const customerCols = `id, tenant_id, email, full_name, company_id, domain_match, status`

func scanCustomer(row scannable) (*model.Customer, error) {
	var c model.Customer
	if err := row.Scan(&c.ID, &c.TenantID, &c.Email, &c.FullName, &c.CompanyID, &c.DomainMatch, &c.Status); err != nil {
		return nil, err
	}
	return &c, nil
}

const messageCols = `id, thread_id, tenant_id, subject, from_address, to_addresses, cc_addresses,
	body_text, body_html, sent_at, created_at, customer_id, summary`

func scanMessage(row scannable) (model.Message, error) {
	var m model.Message
	err := row.Scan(&m.ID, &m.ThreadID, &m.TenantID, &m.Subject, &m.From, &m.To, &m.Cc,
		&m.BodyText, &m.BodyHTML, &m.SentAt, &m.CreatedAt, &m.CustomerID, &m.Summary)
	return m, err
}

const threadCols = `id, tenant_id, subject, last_message_at, last_analyzed_at, summary,
	problem_statement, timeline_summary, sentiment, sentiment_score, resolution_status`

func scanThread(row scannable) (*model.Thread, error) {
	var t model.Thread
	if err := row.Scan(&t.ID, &t.TenantID, &t.Subject, &t.LastMessageAt, &t.LastAnalyzedAt, &t.Summary,
		&t.ProblemStatement, &t.TimelineSummary, &t.Sentiment, &t.SentimentScore, &t.ResolutionStatus); err != nil {
		return nil, err
	}
	return &t, nil
}

const nextStepCols = `id, thread_id, tenant_id, description, owner, due_date, status`

func scanNextStep(row scannable) (model.NextStep, error) {
	var s model.NextStep
	err := row.Scan(&s.ID, &s.ThreadID, &s.TenantID, &s.Description, &s.Owner, &s.DueDate, &s.Status)
	return s, err
}

const featureRequestCols = `id, thread_id, tenant_id, title, customer_description, use_case,
	urgency, urgency_signals, customer_impact, status`

func scanFeatureRequest(row scannable) (model.FeatureRequest, error) {
	var fr model.FeatureRequest
	err := row.Scan(&fr.ID, &fr.ThreadID, &fr.TenantID, &fr.Title, &fr.CustomerDescription, &fr.UseCase,
		&fr.Urgency, &fr.UrgencySignals, &fr.CustomerImpact, &fr.Status)
	return fr, err
}

func scanParticipant(row scannable) (model.Participant, error) {
	var p model.Participant
	var companyName *string
	if err := row.Scan(&p.CustomerID, &p.Email, &p.FullName, &p.CompanyID, &companyName); err != nil {
		return p, err
	}
	if companyName != nil {
		p.CompanyName = *companyName
	}
	return p, nil
}
