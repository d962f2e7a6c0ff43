package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/thread-intel/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One writer keeps concurrent resolve and analyze runs from tripping
	// SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS tenants (
	id    TEXT PRIMARY KEY,
	email TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS threads (
	id                TEXT NOT NULL,
	tenant_id         TEXT NOT NULL,
	subject           TEXT NOT NULL DEFAULT '',
	last_message_at   DATETIME,
	last_analyzed_at  DATETIME,
	summary           TEXT NOT NULL DEFAULT '',
	problem_statement TEXT NOT NULL DEFAULT '',
	timeline_summary  TEXT NOT NULL DEFAULT '',
	sentiment         TEXT NOT NULL DEFAULT '',
	sentiment_score   INTEGER CHECK (sentiment_score BETWEEN -2 AND 2),
	resolution_status TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (tenant_id, id)
);

CREATE TABLE IF NOT EXISTS thread_messages (
	id           TEXT NOT NULL,
	thread_id    TEXT NOT NULL,
	tenant_id    TEXT NOT NULL,
	subject      TEXT NOT NULL DEFAULT '',
	from_address TEXT NOT NULL DEFAULT '',
	to_addresses TEXT NOT NULL DEFAULT '',
	cc_addresses TEXT NOT NULL DEFAULT '',
	body_text    TEXT NOT NULL DEFAULT '',
	body_html    TEXT NOT NULL DEFAULT '',
	sent_at      DATETIME,
	created_at   DATETIME,
	customer_id  TEXT,
	summary      TEXT,
	PRIMARY KEY (tenant_id, id)
);

CREATE TABLE IF NOT EXISTS thread_processing_stages (
	thread_id     TEXT NOT NULL,
	tenant_id     TEXT NOT NULL,
	current_stage TEXT NOT NULL,
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (thread_id, tenant_id)
);

CREATE TABLE IF NOT EXISTS companies (
	id           TEXT PRIMARY KEY,
	tenant_id    TEXT NOT NULL,
	domain_name  TEXT NOT NULL,
	company_name TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'active',
	health_score REAL,
	UNIQUE (tenant_id, domain_name)
);

CREATE TABLE IF NOT EXISTS customers (
	id           TEXT PRIMARY KEY,
	tenant_id    TEXT NOT NULL,
	email        TEXT NOT NULL,
	full_name    TEXT NOT NULL DEFAULT '',
	company_id   TEXT REFERENCES companies(id),
	domain_match TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'prospect',
	UNIQUE (tenant_id, email)
);

CREATE TABLE IF NOT EXISTS thread_participants (
	thread_id   TEXT NOT NULL,
	customer_id TEXT NOT NULL REFERENCES customers(id),
	tenant_id   TEXT NOT NULL,
	UNIQUE (thread_id, customer_id)
);

CREATE TABLE IF NOT EXISTS thread_company_link (
	thread_id  TEXT NOT NULL,
	company_id TEXT NOT NULL REFERENCES companies(id),
	tenant_id  TEXT NOT NULL,
	UNIQUE (thread_id, company_id, tenant_id)
);

CREATE TABLE IF NOT EXISTS next_steps (
	id          TEXT PRIMARY KEY,
	thread_id   TEXT NOT NULL,
	tenant_id   TEXT NOT NULL,
	description TEXT NOT NULL,
	owner       TEXT,
	due_date    DATETIME,
	status      TEXT NOT NULL DEFAULT 'pending',
	seq         INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS next_step_assignments (
	next_step_id TEXT NOT NULL REFERENCES next_steps(id),
	customer_id  TEXT NOT NULL REFERENCES customers(id),
	PRIMARY KEY (next_step_id, customer_id)
);

CREATE TABLE IF NOT EXISTS feature_requests (
	id                   TEXT PRIMARY KEY,
	thread_id            TEXT NOT NULL,
	tenant_id            TEXT NOT NULL,
	title                TEXT NOT NULL,
	customer_description TEXT NOT NULL DEFAULT '',
	use_case             TEXT NOT NULL DEFAULT '',
	urgency              TEXT NOT NULL DEFAULT 'Low',
	urgency_signals      TEXT NOT NULL DEFAULT '',
	customer_impact      TEXT NOT NULL DEFAULT '',
	status               TEXT NOT NULL DEFAULT 'new',
	seq                  INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_thread_messages_thread ON thread_messages(tenant_id, thread_id, sent_at);
CREATE INDEX IF NOT EXISTS idx_stages_tenant_stage ON thread_processing_stages(tenant_id, current_stage);
CREATE INDEX IF NOT EXISTS idx_next_steps_thread ON next_steps(tenant_id, thread_id);
CREATE INDEX IF NOT EXISTS idx_feature_requests_thread ON feature_requests(tenant_id, thread_id);
CREATE INDEX IF NOT EXISTS idx_company_link_thread ON thread_company_link(tenant_id, thread_id);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// inList renders "?, ?, ?" for n arguments.
func inList(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func stringArgs(prefix []any, ids []string) []any {
	args := make([]any, 0, len(prefix)+len(ids))
	args = append(args, prefix...)
	for _, id := range ids {
		args = append(args, id)
	}
	return args
}

func (s *SQLiteStore) SetStage(ctx context.Context, tenantID string, stage model.Stage, threadIDs ...string) error {
	if len(threadIDs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: set stage: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	for _, id := range threadIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO thread_processing_stages (thread_id, tenant_id, current_stage, updated_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT (thread_id, tenant_id) DO UPDATE SET current_stage = excluded.current_stage, updated_at = excluded.updated_at`,
			id, tenantID, string(stage), now,
		); err != nil {
			return eris.Wrapf(err, "sqlite: set stage %s", stage)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: set stage: commit")
}

func (s *SQLiteStore) GetStages(ctx context.Context, tenantID string, threadIDs []string) (map[string]model.Stage, error) {
	out := make(map[string]model.Stage, len(threadIDs))
	if len(threadIDs) == 0 {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT thread_id, current_stage FROM thread_processing_stages WHERE tenant_id = ? AND thread_id IN (`+inList(len(threadIDs))+`)`,
		stringArgs([]any{tenantID}, threadIDs)...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get stages")
	}
	defer rows.Close()
	for rows.Next() {
		var id, stage string
		if err := rows.Scan(&id, &stage); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan stage")
		}
		out[id] = model.Stage(stage)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate stages")
}

func (s *SQLiteStore) CountStages(ctx context.Context, tenantID string) (map[model.Stage]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT current_stage, COUNT(*) FROM thread_processing_stages WHERE tenant_id = ? GROUP BY current_stage`,
		tenantID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count stages")
	}
	defer rows.Close()
	out := make(map[model.Stage]int)
	for rows.Next() {
		var stage string
		var n int
		if err := rows.Scan(&stage, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan stage count")
		}
		out[model.Stage(stage)] = n
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate stage counts")
}

func (s *SQLiteStore) GetTenant(ctx context.Context, tenantID string) (*model.Tenant, error) {
	var t model.Tenant
	err := s.db.QueryRowContext(ctx, `SELECT id, email FROM tenants WHERE id = ?`, tenantID).Scan(&t.ID, &t.Email)
	if err != nil {
		return nil, classify(err, "sqlite: get tenant")
	}
	return &t, nil
}

func (s *SQLiteStore) ListMessages(ctx context.Context, tenantID string, threadIDs []string) ([]model.Message, error) {
	if len(threadIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+messageCols+` FROM thread_messages
		 WHERE tenant_id = ? AND thread_id IN (`+inList(len(threadIDs))+`)
		 ORDER BY sent_at IS NULL, sent_at ASC, created_at ASC, id ASC`,
		stringArgs([]any{tenantID}, threadIDs)...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list messages")
	}
	return collectMessages(rows)
}

func collectMessages(rows *sql.Rows) ([]model.Message, error) {
	defer rows.Close()
	var msgs []model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan message")
		}
		msgs = append(msgs, m)
	}
	return msgs, eris.Wrap(rows.Err(), "sqlite: iterate messages")
}

func (s *SQLiteStore) SetMessageCustomer(ctx context.Context, tenantID, messageID, customerID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE thread_messages SET customer_id = ? WHERE tenant_id = ? AND id = ?`,
		customerID, tenantID, messageID,
	)
	return eris.Wrap(err, "sqlite: set message customer")
}

func (s *SQLiteStore) FindCompany(ctx context.Context, tenantID, domain string) (*model.Company, error) {
	c, err := scanCompany(s.db.QueryRowContext(ctx,
		`SELECT `+companyCols+` FROM companies WHERE tenant_id = ? AND domain_name = ?`, tenantID, domain))
	if err != nil {
		return nil, classify(err, "sqlite: find company")
	}
	return c, nil
}

func (s *SQLiteStore) UpsertCompany(ctx context.Context, c model.Company) (*model.Company, error) {
	got, err := scanCompany(s.db.QueryRowContext(ctx,
		`INSERT INTO companies (id, tenant_id, domain_name, company_name, status) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (tenant_id, domain_name) DO UPDATE SET domain_name = excluded.domain_name
		 RETURNING `+companyCols,
		c.ID, c.TenantID, c.Domain, c.Name, c.Status))
	if err != nil {
		return nil, classify(err, "sqlite: upsert company")
	}
	return got, nil
}

func (s *SQLiteStore) InsertCompany(ctx context.Context, c model.Company) (*model.Company, error) {
	got, err := scanCompany(s.db.QueryRowContext(ctx,
		`INSERT INTO companies (id, tenant_id, domain_name, company_name, status) VALUES (?, ?, ?, ?, ?)
		 RETURNING `+companyCols,
		c.ID, c.TenantID, c.Domain, c.Name, c.Status))
	if err != nil {
		return nil, classify(err, "sqlite: insert company")
	}
	return got, nil
}

func (s *SQLiteStore) FindCustomer(ctx context.Context, tenantID, email string) (*model.Customer, error) {
	c, err := scanCustomer(s.db.QueryRowContext(ctx,
		`SELECT `+customerCols+` FROM customers WHERE tenant_id = ? AND email = ?`, tenantID, email))
	if err != nil {
		return nil, classify(err, "sqlite: find customer")
	}
	return c, nil
}

func (s *SQLiteStore) UpsertCustomer(ctx context.Context, c model.Customer) (*model.Customer, error) {
	got, err := scanCustomer(s.db.QueryRowContext(ctx,
		`INSERT INTO customers (id, tenant_id, email, full_name, company_id, domain_match, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (tenant_id, email) DO UPDATE SET company_id = COALESCE(excluded.company_id, customers.company_id)
		 RETURNING `+customerCols,
		c.ID, c.TenantID, c.Email, c.FullName, c.CompanyID, c.DomainMatch, c.Status))
	if err != nil {
		return nil, classify(err, "sqlite: upsert customer")
	}
	return got, nil
}

func (s *SQLiteStore) InsertCustomer(ctx context.Context, c model.Customer) (*model.Customer, error) {
	got, err := scanCustomer(s.db.QueryRowContext(ctx,
		`INSERT INTO customers (id, tenant_id, email, full_name, company_id, domain_match, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING `+customerCols,
		c.ID, c.TenantID, c.Email, c.FullName, c.CompanyID, c.DomainMatch, c.Status))
	if err != nil {
		return nil, classify(err, "sqlite: insert customer")
	}
	return got, nil
}

func (s *SQLiteStore) SetCustomerCompany(ctx context.Context, tenantID, customerID, companyID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE customers SET company_id = ? WHERE tenant_id = ? AND id = ?`,
		companyID, tenantID, customerID,
	)
	return eris.Wrap(err, "sqlite: set customer company")
}

func (s *SQLiteStore) InsertParticipant(ctx context.Context, p model.ThreadParticipant) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO thread_participants (thread_id, customer_id, tenant_id) VALUES (?, ?, ?)`,
		p.ThreadID, p.CustomerID, p.TenantID,
	)
	return classify(err, "sqlite: insert participant")
}

func (s *SQLiteStore) InsertCompanyLink(ctx context.Context, l model.ThreadCompanyLink) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO thread_company_link (thread_id, company_id, tenant_id) VALUES (?, ?, ?)`,
		l.ThreadID, l.CompanyID, l.TenantID,
	)
	return classify(err, "sqlite: insert company link")
}

func (s *SQLiteStore) GetThread(ctx context.Context, tenantID, threadID string) (*model.Thread, error) {
	t, err := scanThread(s.db.QueryRowContext(ctx,
		`SELECT `+threadCols+` FROM threads WHERE tenant_id = ? AND id = ?`, tenantID, threadID))
	if err != nil {
		return nil, classify(err, "sqlite: get thread")
	}
	return t, nil
}

func (s *SQLiteStore) ListParticipants(ctx context.Context, tenantID, threadID string) ([]model.Participant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.email, c.full_name, c.company_id, co.company_name
		 FROM thread_participants p
		 JOIN customers c ON c.id = p.customer_id
		 LEFT JOIN companies co ON co.id = c.company_id
		 WHERE p.tenant_id = ? AND p.thread_id = ?
		 ORDER BY c.email`,
		tenantID, threadID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list participants")
	}
	defer rows.Close()
	var out []model.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan participant")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate participants")
}

func (s *SQLiteStore) UpdateThreadAnalysis(ctx context.Context, tenantID, threadID string, a model.ThreadAnalysis) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE threads SET summary = ?, problem_statement = ?, timeline_summary = ?, sentiment = ?,
		 sentiment_score = ?, resolution_status = ?, last_analyzed_at = ?
		 WHERE tenant_id = ? AND id = ?`,
		a.Summary, a.ProblemStatement, a.TimelineSummary, a.Sentiment,
		a.SentimentScore, a.ResolutionStatus, a.AnalyzedAt.UTC(), tenantID, threadID,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: update thread analysis")
	}
	return checkRowsAffected(res, "thread", threadID)
}

func (s *SQLiteStore) ListNextSteps(ctx context.Context, tenantID, threadID string) ([]model.NextStep, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+nextStepCols+` FROM next_steps
		 WHERE tenant_id = ? AND (? = '' OR thread_id = ?) ORDER BY seq, id`,
		tenantID, threadID, threadID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list next steps")
	}
	defer rows.Close()
	var out []model.NextStep
	for rows.Next() {
		st, err := scanNextStep(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan next step")
		}
		out = append(out, st)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate next steps")
}

func (s *SQLiteStore) InsertNextStep(ctx context.Context, st model.NextStep) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO next_steps (id, thread_id, tenant_id, description, owner, due_date, status, seq)
		 VALUES (?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM next_steps))`,
		st.ID, st.ThreadID, st.TenantID, st.Description, st.Owner, st.DueDate, st.Status,
	)
	return classify(err, "sqlite: insert next step")
}

func (s *SQLiteStore) InsertAssignment(ctx context.Context, a model.NextStepAssignment) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO next_step_assignments (next_step_id, customer_id) VALUES (?, ?)`,
		a.NextStepID, a.CustomerID,
	)
	return classify(err, "sqlite: insert assignment")
}

func (s *SQLiteStore) ListFeatureRequests(ctx context.Context, tenantID, threadID string) ([]model.FeatureRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+featureRequestCols+` FROM feature_requests
		 WHERE tenant_id = ? AND (? = '' OR thread_id = ?) ORDER BY seq, id`,
		tenantID, threadID, threadID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list feature requests")
	}
	defer rows.Close()
	var out []model.FeatureRequest
	for rows.Next() {
		fr, err := scanFeatureRequest(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan feature request")
		}
		out = append(out, fr)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate feature requests")
}

func (s *SQLiteStore) InsertFeatureRequest(ctx context.Context, fr model.FeatureRequest) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feature_requests (id, thread_id, tenant_id, title, customer_description, use_case,
		 urgency, urgency_signals, customer_impact, status, seq)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM feature_requests))`,
		fr.ID, fr.ThreadID, fr.TenantID, fr.Title, fr.CustomerDescription, fr.UseCase,
		string(fr.Urgency), fr.UrgencySignals, fr.CustomerImpact, fr.Status,
	)
	return classify(err, "sqlite: insert feature request")
}

func (s *SQLiteStore) ListLinkedCompanies(ctx context.Context, tenantID, threadID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT company_id FROM thread_company_link WHERE tenant_id = ? AND thread_id = ? ORDER BY company_id`,
		tenantID, threadID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list linked companies")
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan linked company")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: iterate linked companies")
}

// RecalculateHealthScore maps the mean sentiment of the company's analyzed
// threads from -2..2 onto 0..100. Companies without scored threads keep
// their current value.
func (s *SQLiteStore) RecalculateHealthScore(ctx context.Context, tenantID, companyID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE companies SET health_score = COALESCE((
			SELECT (AVG(t.sentiment_score) + 2) * 25
			FROM thread_company_link l
			JOIN threads t ON t.id = l.thread_id AND t.tenant_id = l.tenant_id
			WHERE l.tenant_id = ? AND l.company_id = ? AND t.sentiment_score IS NOT NULL
		), health_score)
		WHERE tenant_id = ? AND id = ?`,
		tenantID, companyID, tenantID, companyID,
	)
	return eris.Wrapf(err, "sqlite: recalculate health score %s", companyID)
}

func (s *SQLiteStore) SaveTenant(ctx context.Context, t model.Tenant) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tenants (id, email) VALUES (?, ?) ON CONFLICT (id) DO UPDATE SET email = excluded.email`,
		t.ID, t.Email,
	)
	return eris.Wrap(err, "sqlite: save tenant")
}

func (s *SQLiteStore) SaveThread(ctx context.Context, t model.Thread) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO threads (id, tenant_id, subject, last_message_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (tenant_id, id) DO UPDATE SET subject = excluded.subject, last_message_at = excluded.last_message_at`,
		t.ID, t.TenantID, t.Subject, t.LastMessageAt,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: save thread")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO thread_processing_stages (thread_id, tenant_id, current_stage) VALUES (?, ?, ?)
		 ON CONFLICT (thread_id, tenant_id) DO NOTHING`,
		t.ID, t.TenantID, string(model.StageNew),
	)
	return eris.Wrap(err, "sqlite: init thread stage")
}

func (s *SQLiteStore) SaveMessages(ctx context.Context, msgs []model.Message) (int64, error) {
	if len(msgs) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: save messages: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	var n int64
	for _, m := range msgs {
		created := now
		if m.CreatedAt != nil {
			created = *m.CreatedAt
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO thread_messages (id, thread_id, tenant_id, subject, from_address, to_addresses,
			 cc_addresses, body_text, body_html, sent_at, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (tenant_id, id) DO UPDATE SET thread_id = excluded.thread_id, subject = excluded.subject,
			 from_address = excluded.from_address, to_addresses = excluded.to_addresses,
			 cc_addresses = excluded.cc_addresses, body_text = excluded.body_text, body_html = excluded.body_html,
			 sent_at = excluded.sent_at`,
			m.ID, m.ThreadID, m.TenantID, m.Subject, m.From, m.To, m.Cc,
			m.BodyText, m.BodyHTML, utcPtr(m.SentAt), created,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: save message %s", m.ID)
		}
		affected, _ := res.RowsAffected()
		n += affected
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: save messages: commit")
	}
	return n, nil
}

func (s *SQLiteStore) ListUnsummarizedMessages(ctx context.Context, tenantID string, limit int) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+messageCols+` FROM thread_messages
		 WHERE tenant_id = ? AND summary IS NULL
		 ORDER BY sent_at IS NULL, sent_at DESC, id LIMIT ?`,
		tenantID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list unsummarized messages")
	}
	return collectMessages(rows)
}

func (s *SQLiteStore) SetMessageSummary(ctx context.Context, tenantID, messageID, summary string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE thread_messages SET summary = ? WHERE tenant_id = ? AND id = ?`,
		summary, tenantID, messageID,
	)
	return eris.Wrap(err, "sqlite: set message summary")
}

func utcPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: %s %s", entity, id)
	}
	return nil
}
