package ingest

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/thread-intel/internal/model"
)

// Store is the write side used by the loader.
type Store interface {
	SaveTenant(ctx context.Context, t model.Tenant) error
	SaveThread(ctx context.Context, t model.Thread) error
	SaveMessages(ctx context.Context, msgs []model.Message) (int64, error)
}

// Result counts what a fixture wrote.
type Result struct {
	TenantID  string   `json:"tenant_id"`
	Threads   int      `json:"threads"`
	Messages  int64    `json:"messages"`
	ThreadIDs []string `json:"thread_ids"`
}

// Loader writes fixtures into a store. Rewriting a fixture updates rows in
// place.
type Loader struct {
	store Store
}

// NewLoader creates a Loader.
func NewLoader(st Store) *Loader {
	return &Loader{store: st}
}

// Ingest saves the tenant, then each thread followed by its messages.
func (l *Loader) Ingest(ctx context.Context, fx *Fixture) (*Result, error) {
	tenantID := fx.Tenant.ID
	if err := l.store.SaveTenant(ctx, model.Tenant{ID: tenantID, Email: fx.Tenant.Email}); err != nil {
		return nil, eris.Wrap(err, "ingest: save tenant")
	}

	res := &Result{TenantID: tenantID, ThreadIDs: []string{}}
	for _, th := range fx.Threads {
		msgs, last, err := toMessages(tenantID, th)
		if err != nil {
			return res, err
		}
		thread := model.Thread{ID: th.ID, TenantID: tenantID, Subject: th.Subject, LastMessageAt: last}
		if thread.Subject == "" && len(msgs) > 0 {
			thread.Subject = msgs[0].Subject
		}
		if err := l.store.SaveThread(ctx, thread); err != nil {
			return res, eris.Wrapf(err, "ingest: save thread %s", th.ID)
		}
		n, err := l.store.SaveMessages(ctx, msgs)
		if err != nil {
			return res, eris.Wrapf(err, "ingest: save messages for thread %s", th.ID)
		}
		res.Threads++
		res.Messages += n
		res.ThreadIDs = append(res.ThreadIDs, th.ID)
	}

	zap.L().Info("ingest: fixture loaded",
		zap.String("tenant", tenantID),
		zap.Int("threads", res.Threads),
		zap.Int64("messages", res.Messages),
	)
	return res, nil
}

func toMessages(tenantID string, th ThreadDoc) ([]model.Message, *time.Time, error) {
	msgs := make([]model.Message, 0, len(th.Messages))
	var last *time.Time
	for _, m := range th.Messages {
		sent, err := parseTime(m.SentAt)
		if err != nil {
			return nil, nil, eris.Wrapf(err, "ingest: message %s", m.ID)
		}
		if sent != nil && (last == nil || sent.After(*last)) {
			last = sent
		}
		subject := m.Subject
		if subject == "" {
			subject = th.Subject
		}
		msgs = append(msgs, model.Message{
			ID:       m.ID,
			ThreadID: th.ID,
			TenantID: tenantID,
			Subject:  subject,
			From:     m.From,
			To:       string(m.To),
			Cc:       string(m.Cc),
			BodyText: m.BodyText,
			BodyHTML: m.BodyHTML,
			SentAt:   sent,
		})
	}
	return msgs, last, nil
}
