package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/thread-intel/internal/db"
	"github.com/sells-group/thread-intel/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	pgSetStage = `INSERT INTO thread_processing_stages (thread_id, tenant_id, current_stage, updated_at)
		SELECT unnest($2::text[]), $1::text, $3::text, $4::timestamptz
		ON CONFLICT (thread_id, tenant_id) DO UPDATE SET current_stage = EXCLUDED.current_stage, updated_at = EXCLUDED.updated_at`

	pgFindCompany  = `SELECT ` + companyCols + ` FROM companies WHERE tenant_id = $1 AND domain_name = $2`
	pgFindCustomer = `SELECT ` + customerCols + ` FROM customers WHERE tenant_id = $1 AND email = $2`

	pgUpsertCustomer = `INSERT INTO customers (id, tenant_id, email, full_name, company_id, domain_match, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id, email) DO UPDATE SET company_id = COALESCE(EXCLUDED.company_id, customers.company_id)
		RETURNING ` + customerCols

	pgInsertCustomer = `INSERT INTO customers (id, tenant_id, email, full_name, company_id, domain_match, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING ` + customerCols

	pgInsertCompany = `INSERT INTO companies (id, tenant_id, domain_name, company_name, status)
		VALUES ($1, $2, $3, $4, $5) RETURNING ` + companyCols

	pgListMessages = `SELECT ` + messageCols + ` FROM thread_messages
		WHERE tenant_id = $1 AND thread_id = ANY($2)
		ORDER BY sent_at IS NULL, sent_at ASC, created_at ASC, id ASC`
)

// preparedStatements are prepared on every new connection.
var preparedStatements = map[string]string{
	"set_stage":     pgSetStage,
	"find_company":  pgFindCompany,
	"find_customer": pgFindCustomer,
	"list_messages": pgListMessages,
}

// companyUpsert touches domain_name on conflict so RETURNING yields the
// existing row.
var companyUpsert = db.UpsertConfig{
	Table:        "companies",
	Columns:      []string{"id", "tenant_id", "domain_name", "company_name", "status"},
	ConflictKeys: []string{"tenant_id", "domain_name"},
	UpdateCols:   []string{"domain_name"},
	Returning:    []string{"id", "tenant_id", "domain_name", "company_name", "status", "health_score"},
}

var messageUpsert = db.UpsertConfig{
	Table: "thread_messages",
	Columns: []string{"id", "thread_id", "tenant_id", "subject", "from_address", "to_addresses",
		"cc_addresses", "body_text", "body_html", "sent_at", "created_at"},
	ConflictKeys: []string{"tenant_id", "id"},
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns, minConns := int32(10), int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS tenants (
	id    TEXT PRIMARY KEY,
	email TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS threads (
	id                TEXT NOT NULL,
	tenant_id         TEXT NOT NULL,
	subject           TEXT NOT NULL DEFAULT '',
	last_message_at   TIMESTAMPTZ,
	last_analyzed_at  TIMESTAMPTZ,
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
	sent_at      TIMESTAMPTZ,
	created_at   TIMESTAMPTZ DEFAULT now(),
	customer_id  TEXT,
	summary      TEXT,
	PRIMARY KEY (tenant_id, id)
);

CREATE TABLE IF NOT EXISTS thread_processing_stages (
	thread_id     TEXT NOT NULL,
	tenant_id     TEXT NOT NULL,
	current_stage TEXT NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (thread_id, tenant_id)
);

CREATE TABLE IF NOT EXISTS companies (
	id           TEXT PRIMARY KEY,
	tenant_id    TEXT NOT NULL,
	domain_name  TEXT NOT NULL,
	company_name TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'active',
	health_score DOUBLE PRECISION,
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
	due_date    TIMESTAMPTZ,
	status      TEXT NOT NULL DEFAULT 'pending',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
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
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_thread_messages_thread ON thread_messages(tenant_id, thread_id, sent_at);
CREATE INDEX IF NOT EXISTS idx_stages_tenant_stage ON thread_processing_stages(tenant_id, current_stage);
CREATE INDEX IF NOT EXISTS idx_next_steps_thread ON next_steps(tenant_id, thread_id);
CREATE INDEX IF NOT EXISTS idx_feature_requests_thread ON feature_requests(tenant_id, thread_id);
CREATE INDEX IF NOT EXISTS idx_company_link_thread ON thread_company_link(tenant_id, thread_id);

CREATE OR REPLACE FUNCTION recalculate_company_health_score(target_tenant TEXT, target_company_id TEXT)
RETURNS VOID AS $$
	UPDATE companies c
	SET health_score = s.score
	FROM (
		SELECT (AVG(t.sentiment_score) + 2) * 25 AS score
		FROM thread_company_link l
		JOIN threads t ON t.id = l.thread_id AND t.tenant_id = l.tenant_id
		WHERE l.tenant_id = target_tenant AND l.company_id = target_company_id
		  AND t.sentiment_score IS NOT NULL
	) s
	WHERE c.id = target_company_id AND c.tenant_id = target_tenant AND s.score IS NOT NULL;
$$ LANGUAGE sql;
`

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

// Migrate applies the schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// SetStage writes stage for every thread, creating missing stage rows.
func (s *PostgresStore) SetStage(ctx context.Context, tenantID string, stage model.Stage, threadIDs ...string) error {
	if len(threadIDs) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, pgSetStage, tenantID, threadIDs, string(stage), time.Now().UTC())
	return eris.Wrapf(err, "postgres: set stage %s", stage)
}

func (s *PostgresStore) GetStages(ctx context.Context, tenantID string, threadIDs []string) (map[string]model.Stage, error) {
	out := make(map[string]model.Stage, len(threadIDs))
	if len(threadIDs) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT thread_id, current_stage FROM thread_processing_stages WHERE tenant_id = $1 AND thread_id = ANY($2)`,
		tenantID, threadIDs,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get stages")
	}
	defer rows.Close()
	for rows.Next() {
		var id, stage string
		if err := rows.Scan(&id, &stage); err != nil {
			return nil, eris.Wrap(err, "postgres: scan stage")
		}
		out[id] = model.Stage(stage)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate stages")
}

func (s *PostgresStore) CountStages(ctx context.Context, tenantID string) (map[model.Stage]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT current_stage, COUNT(*) FROM thread_processing_stages WHERE tenant_id = $1 GROUP BY current_stage`,
		tenantID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count stages")
	}
	defer rows.Close()
	out := make(map[model.Stage]int)
	for rows.Next() {
		var stage string
		var n int
		if err := rows.Scan(&stage, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan stage count")
		}
		out[model.Stage(stage)] = n
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate stage counts")
}

func (s *PostgresStore) GetTenant(ctx context.Context, tenantID string) (*model.Tenant, error) {
	var t model.Tenant
	err := s.pool.QueryRow(ctx, `SELECT id, email FROM tenants WHERE id = $1`, tenantID).Scan(&t.ID, &t.Email)
	if err != nil {
		return nil, classify(err, "postgres: get tenant")
	}
	return &t, nil
}

// ListMessages returns the messages of the given threads ordered by sent time.
func (s *PostgresStore) ListMessages(ctx context.Context, tenantID string, threadIDs []string) ([]model.Message, error) {
	if len(threadIDs) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, pgListMessages, tenantID, threadIDs)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list messages")
	}
	defer rows.Close()
	var msgs []model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan message")
		}
		msgs = append(msgs, m)
	}
	return msgs, eris.Wrap(rows.Err(), "postgres: iterate messages")
}

func (s *PostgresStore) SetMessageCustomer(ctx context.Context, tenantID, messageID, customerID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE thread_messages SET customer_id = $3 WHERE tenant_id = $1 AND id = $2`,
		tenantID, messageID, customerID,
	)
	return eris.Wrap(err, "postgres: set message customer")
}

func (s *PostgresStore) FindCompany(ctx context.Context, tenantID, domain string) (*model.Company, error) {
	c, err := scanCompany(s.pool.QueryRow(ctx, pgFindCompany, tenantID, domain))
	if err != nil {
		return nil, classify(err, "postgres: find company")
	}
	return c, nil
}

// UpsertCompany inserts c or returns the row already holding its domain.
func (s *PostgresStore) UpsertCompany(ctx context.Context, c model.Company) (*model.Company, error) {
	sql, err := db.BuildUpsert(companyUpsert)
	if err != nil {
		return nil, err
	}
	got, err := scanCompany(s.pool.QueryRow(ctx, sql, c.ID, c.TenantID, c.Domain, c.Name, c.Status))
	if err != nil {
		return nil, classify(err, "postgres: upsert company")
	}
	return got, nil
}

func (s *PostgresStore) InsertCompany(ctx context.Context, c model.Company) (*model.Company, error) {
	got, err := scanCompany(s.pool.QueryRow(ctx, pgInsertCompany, c.ID, c.TenantID, c.Domain, c.Name, c.Status))
	if err != nil {
		return nil, classify(err, "postgres: insert company")
	}
	return got, nil
}

func (s *PostgresStore) FindCustomer(ctx context.Context, tenantID, email string) (*model.Customer, error) {
	c, err := scanCustomer(s.pool.QueryRow(ctx, pgFindCustomer, tenantID, email))
	if err != nil {
		return nil, classify(err, "postgres: find customer")
	}
	return c, nil
}

// UpsertCustomer inserts c; on conflict it fills a missing company id but
// never clears one.
func (s *PostgresStore) UpsertCustomer(ctx context.Context, c model.Customer) (*model.Customer, error) {
	got, err := scanCustomer(s.pool.QueryRow(ctx, pgUpsertCustomer,
		c.ID, c.TenantID, c.Email, c.FullName, c.CompanyID, c.DomainMatch, c.Status))
	if err != nil {
		return nil, classify(err, "postgres: upsert customer")
	}
	return got, nil
}

func (s *PostgresStore) InsertCustomer(ctx context.Context, c model.Customer) (*model.Customer, error) {
	got, err := scanCustomer(s.pool.QueryRow(ctx, pgInsertCustomer,
		c.ID, c.TenantID, c.Email, c.FullName, c.CompanyID, c.DomainMatch, c.Status))
	if err != nil {
		return nil, classify(err, "postgres: insert customer")
	}
	return got, nil
}

func (s *PostgresStore) SetCustomerCompany(ctx context.Context, tenantID, customerID, companyID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE customers SET company_id = $3 WHERE tenant_id = $1 AND id = $2`,
		tenantID, customerID, companyID,
	)
	return eris.Wrap(err, "postgres: set customer company")
}

func (s *PostgresStore) InsertParticipant(ctx context.Context, p model.ThreadParticipant) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO thread_participants (thread_id, customer_id, tenant_id) VALUES ($1, $2, $3)`,
		p.ThreadID, p.CustomerID, p.TenantID,
	)
	return classify(err, "postgres: insert participant")
}

func (s *PostgresStore) InsertCompanyLink(ctx context.Context, l model.ThreadCompanyLink) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO thread_company_link (thread_id, company_id, tenant_id) VALUES ($1, $2, $3)`,
		l.ThreadID, l.CompanyID, l.TenantID,
	)
	return classify(err, "postgres: insert company link")
}

func (s *PostgresStore) GetThread(ctx context.Context, tenantID, threadID string) (*model.Thread, error) {
	t, err := scanThread(s.pool.QueryRow(ctx,
		`SELECT `+threadCols+` FROM threads WHERE tenant_id = $1 AND id = $2`, tenantID, threadID))
	if err != nil {
		return nil, classify(err, "postgres: get thread")
	}
	return t, nil
}

func (s *PostgresStore) ListParticipants(ctx context.Context, tenantID, threadID string) ([]model.Participant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT c.id, c.email, c.full_name, c.company_id, co.company_name
		 FROM thread_participants p
		 JOIN customers c ON c.id = p.customer_id
		 LEFT JOIN companies co ON co.id = c.company_id
		 WHERE p.tenant_id = $1 AND p.thread_id = $2
		 ORDER BY c.email`,
		tenantID, threadID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list participants")
	}
	defer rows.Close()
	var out []model.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan participant")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate participants")
}

func (s *PostgresStore) UpdateThreadAnalysis(ctx context.Context, tenantID, threadID string, a model.ThreadAnalysis) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE threads SET summary = $3, problem_statement = $4, timeline_summary = $5, sentiment = $6,
		 sentiment_score = $7, resolution_status = $8, last_analyzed_at = $9
		 WHERE tenant_id = $1 AND id = $2`,
		tenantID, threadID, a.Summary, a.ProblemStatement, a.TimelineSummary, a.Sentiment,
		a.SentimentScore, a.ResolutionStatus, a.AnalyzedAt,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: update thread analysis")
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: update thread analysis %s", threadID)
	}
	return nil
}

func (s *PostgresStore) ListNextSteps(ctx context.Context, tenantID, threadID string) ([]model.NextStep, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+nextStepCols+` FROM next_steps
		 WHERE tenant_id = $1 AND ($2 = '' OR thread_id = $2) ORDER BY created_at, id`,
		tenantID, threadID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list next steps")
	}
	defer rows.Close()
	var out []model.NextStep
	for rows.Next() {
		st, err := scanNextStep(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan next step")
		}
		out = append(out, st)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate next steps")
}

func (s *PostgresStore) InsertNextStep(ctx context.Context, st model.NextStep) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO next_steps (id, thread_id, tenant_id, description, owner, due_date, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		st.ID, st.ThreadID, st.TenantID, st.Description, st.Owner, st.DueDate, st.Status,
	)
	return classify(err, "postgres: insert next step")
}

func (s *PostgresStore) InsertAssignment(ctx context.Context, a model.NextStepAssignment) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO next_step_assignments (next_step_id, customer_id) VALUES ($1, $2)`,
		a.NextStepID, a.CustomerID,
	)
	return classify(err, "postgres: insert assignment")
}

func (s *PostgresStore) ListFeatureRequests(ctx context.Context, tenantID, threadID string) ([]model.FeatureRequest, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+featureRequestCols+` FROM feature_requests
		 WHERE tenant_id = $1 AND ($2 = '' OR thread_id = $2) ORDER BY created_at, id`,
		tenantID, threadID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list feature requests")
	}
	defer rows.Close()
	var out []model.FeatureRequest
	for rows.Next() {
		fr, err := scanFeatureRequest(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan feature request")
		}
		out = append(out, fr)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate feature requests")
}

func (s *PostgresStore) InsertFeatureRequest(ctx context.Context, fr model.FeatureRequest) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO feature_requests (id, thread_id, tenant_id, title, customer_description, use_case,
		 urgency, urgency_signals, customer_impact, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		fr.ID, fr.ThreadID, fr.TenantID, fr.Title, fr.CustomerDescription, fr.UseCase,
		string(fr.Urgency), fr.UrgencySignals, fr.CustomerImpact, fr.Status,
	)
	return classify(err, "postgres: insert feature request")
}

func (s *PostgresStore) ListLinkedCompanies(ctx context.Context, tenantID, threadID string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT company_id FROM thread_company_link WHERE tenant_id = $1 AND thread_id = $2 ORDER BY company_id`,
		tenantID, threadID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list linked companies")
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan linked company")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "postgres: iterate linked companies")
}

// RecalculateHealthScore calls the recalculate_company_health_score function.
func (s *PostgresStore) RecalculateHealthScore(ctx context.Context, tenantID, companyID string) error {
	_, err := s.pool.Exec(ctx, `SELECT recalculate_company_health_score($1, $2)`, tenantID, companyID)
	return eris.Wrapf(err, "postgres: recalculate health score %s", companyID)
}

func (s *PostgresStore) SaveTenant(ctx context.Context, t model.Tenant) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tenants (id, email) VALUES ($1, $2) ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email`,
		t.ID, t.Email,
	)
	return eris.Wrap(err, "postgres: save tenant")
}

// SaveThread inserts or refreshes the thread header without touching
// analysis columns, and creates a "new" stage row for unseen threads.
func (s *PostgresStore) SaveThread(ctx context.Context, t model.Thread) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO threads (id, tenant_id, subject, last_message_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (tenant_id, id) DO UPDATE SET subject = EXCLUDED.subject, last_message_at = EXCLUDED.last_message_at`,
		t.ID, t.TenantID, t.Subject, t.LastMessageAt,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: save thread")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO thread_processing_stages (thread_id, tenant_id, current_stage) VALUES ($1, $2, $3)
		 ON CONFLICT (thread_id, tenant_id) DO NOTHING`,
		t.ID, t.TenantID, string(model.StageNew),
	)
	return eris.Wrap(err, "postgres: init thread stage")
}

// SaveMessages bulk-upserts messages through a COPY into a temp table.
func (s *PostgresStore) SaveMessages(ctx context.Context, msgs []model.Message) (int64, error) {
	rows := make([][]any, len(msgs))
	now := time.Now().UTC()
	for i, m := range msgs {
		created := now
		if m.CreatedAt != nil {
			created = *m.CreatedAt
		}
		rows[i] = []any{m.ID, m.ThreadID, m.TenantID, m.Subject, m.From, m.To, m.Cc,
			m.BodyText, m.BodyHTML, m.SentAt, created}
	}
	n, err := db.BulkUpsert(ctx, s.pool, messageUpsert, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: save messages")
	}
	return n, nil
}

func (s *PostgresStore) ListUnsummarizedMessages(ctx context.Context, tenantID string, limit int) ([]model.Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+messageCols+` FROM thread_messages
		 WHERE tenant_id = $1 AND summary IS NULL
		 ORDER BY sent_at DESC NULLS LAST, id LIMIT $2`,
		tenantID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list unsummarized messages")
	}
	defer rows.Close()
	var msgs []model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan message")
		}
		msgs = append(msgs, m)
	}
	return msgs, eris.Wrap(rows.Err(), "postgres: iterate messages")
}

func (s *PostgresStore) SetMessageSummary(ctx context.Context, tenantID, messageID, summary string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE thread_messages SET summary = $3 WHERE tenant_id = $1 AND id = $2`,
		tenantID, messageID, summary,
	)
	return eris.Wrap(err, "postgres: set message summary")
}
