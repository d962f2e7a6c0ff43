package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/thread-intel/internal/identity"
	"github.com/sells-group/thread-intel/internal/model"
	"github.com/sells-group/thread-intel/internal/store"
)

const fixtureYAML = `
tenant:
  id: tenant-1
  email: csm@vendor.com
threads:
  - id: thread-1
    subject: Onboarding
    messages:
      - id: m1
        from: Alice <alice@acme.io>
        to: csm@vendor.com
        body_text: SSO keeps failing.
        sent_at: "2025-05-01T09:00:00Z"
      - id: m2
        from: csm@vendor.com
        to: [alice@acme.io, bob@acme.io]
        cc: []
        subject: "Re: Onboarding"
        body_html: <p>Looking into it.</p>
        sent_at: "2025-05-01 11:30:00"
  - id: thread-2
    messages:
      - id: m3
        from: carol@globex.com
        subject: Renewal
        sent_at: "2025-04-20"
`

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "ingest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestLoad(t *testing.T) {
	fx, err := Load(strings.NewReader(fixtureYAML))
	require.NoError(t, err)

	assert.Equal(t, "tenant-1", fx.Tenant.ID)
	require.Len(t, fx.Threads, 2)
	msgs := fx.Threads[0].Messages
	assert.Equal(t, AddressList("csm@vendor.com"), msgs[0].To)
	assert.Equal(t, AddressList(`["alice@acme.io","bob@acme.io"]`), msgs[1].To)
	assert.Equal(t, AddressList(""), msgs[1].Cc)

	assert.Equal(t, []string{"alice@acme.io", "bob@acme.io"}, identity.ExtractAddresses(string(msgs[1].To)))
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"missing tenant", "threads: []\n", "tenant.id is required"},
		{"missing thread id", "tenant: {id: t}\nthreads:\n  - subject: x\n", "threads[0]: id is required"},
		{"missing message id", "tenant: {id: t}\nthreads:\n  - id: th\n    messages:\n      - from: a@b.com\n", "messages[0]: id is required"},
		{"duplicate message", "tenant: {id: t}\nthreads:\n  - id: a\n    messages: [{id: m}]\n  - id: b\n    messages: [{id: m}]\n", "duplicate message id m"},
		{"bad time", "tenant: {id: t}\nthreads:\n  - id: a\n    messages: [{id: m, sent_at: yesterday}]\n", "unrecognised time"},
		{"bad addresses", "tenant: {id: t}\nthreads:\n  - id: a\n    messages: [{id: m, to: {x: y}}]\n", "must be a string or a list"},
		{"not yaml", "tenant: [", "decode fixture"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mailbox.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixtureYAML), 0o644))

	fx, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, fx.Threads, 2)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseTime(t *testing.T) {
	got, err := parseTime("2025-05-01T09:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 5, 1, 7, 0, 0, 0, time.UTC), *got)

	got, err = parseTime("2025-05-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), *got)

	got, err = parseTime("  ")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLoader_Ingest(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	fx, err := Load(strings.NewReader(fixtureYAML))
	require.NoError(t, err)

	res, err := NewLoader(st).Ingest(ctx, fx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Threads)
	assert.Equal(t, int64(3), res.Messages)
	assert.Equal(t, []string{"thread-1", "thread-2"}, res.ThreadIDs)

	tenant, err := st.GetTenant(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, "csm@vendor.com", tenant.Email)

	th, err := st.GetThread(ctx, "tenant-1", "thread-1")
	require.NoError(t, err)
	require.NotNil(t, th.LastMessageAt)
	assert.True(t, th.LastMessageAt.Equal(time.Date(2025, 5, 1, 11, 30, 0, 0, time.UTC)))

	// Thread subject falls back to the first message.
	th2, err := st.GetThread(ctx, "tenant-1", "thread-2")
	require.NoError(t, err)
	assert.Equal(t, "Renewal", th2.Subject)

	msgs, err := st.ListMessages(ctx, "tenant-1", []string{"thread-1"})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "Onboarding", msgs[0].Subject)
	assert.Equal(t, "Re: Onboarding", msgs[1].Subject)

	stages, err := st.GetStages(ctx, "tenant-1", []string{"thread-1", "thread-2"})
	require.NoError(t, err)
	assert.Equal(t, model.StageNew, stages["thread-1"])
	assert.Equal(t, model.StageNew, stages["thread-2"])

	// Loading again updates in place.
	_, err = NewLoader(st).Ingest(ctx, fx)
	require.NoError(t, err)
	msgs, err = st.ListMessages(ctx, "tenant-1", []string{"thread-1", "thread-2"})
	require.NoError(t, err)
	assert.Len(t, msgs, 3)
}

type failingStore struct {
	*store.SQLiteStore
}

func (failingStore) SaveThread(context.Context, model.Thread) error {
	return assert.AnError
}

func TestLoader_IngestSaveThreadFails(t *testing.T) {
	fx, err := Load(strings.NewReader(fixtureYAML))
	require.NoError(t, err)

	res, err := NewLoader(failingStore{newTestStore(t)}).Ingest(context.Background(), fx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save thread thread-1")
	assert.Equal(t, 0, res.Threads)
}
