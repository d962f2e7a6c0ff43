package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/thread-intel/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func strPtr(s string) *string { return &s }

// --- Stages ---

func TestSQLite_Stages_SetGetCount(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetStage(ctx, "t1", model.StageResolving, "a", "b", "c"))
	require.NoError(t, st.SetStage(ctx, "t1", model.StageCompleted, "c"))
	require.NoError(t, st.SetStage(ctx, "t2", model.StageFailed, "a"))

	got, err := st.GetStages(ctx, "t1", []string{"a", "c", "missing"})
	require.NoError(t, err)
	assert.Equal(t, map[string]model.Stage{"a": model.StageResolving, "c": model.StageCompleted}, got)

	counts, err := st.CountStages(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, counts[model.StageResolving])
	assert.Equal(t, 1, counts[model.StageCompleted])
	assert.Zero(t, counts[model.StageFailed])
}

func TestSQLite_GetStages_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.GetStages(context.Background(), "t1", nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

// --- Companies and customers ---

func TestSQLite_UpsertCompany_ReturnsExistingRow(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	first, err := st.UpsertCompany(ctx, model.Company{ID: "co-1", TenantID: "t1", Domain: "acme.io", Name: "Acme", Status: model.CompanyStatusActive})
	require.NoError(t, err)
	assert.Equal(t, "co-1", first.ID)

	second, err := st.UpsertCompany(ctx, model.Company{ID: "co-2", TenantID: "t1", Domain: "acme.io", Name: "Acme", Status: model.CompanyStatusActive})
	require.NoError(t, err)
	assert.Equal(t, "co-1", second.ID)

	found, err := st.FindCompany(ctx, "t1", "acme.io")
	require.NoError(t, err)
	assert.Equal(t, "co-1", found.ID)

	_, err = st.FindCompany(ctx, "t2", "acme.io")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_InsertCompany_Duplicate(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.InsertCompany(ctx, model.Company{ID: "co-1", TenantID: "t1", Domain: "acme.io", Name: "Acme", Status: "active"})
	require.NoError(t, err)

	_, err = st.InsertCompany(ctx, model.Company{ID: "co-2", TenantID: "t1", Domain: "acme.io", Name: "Acme", Status: "active"})
	require.Error(t, err)
	assert.True(t, IsDuplicate(err))
}

func TestSQLite_UpsertCustomer_KeepsCompany(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.InsertCompany(ctx, model.Company{ID: "co-1", TenantID: "t1", Domain: "acme.io", Name: "Acme", Status: "active"})
	require.NoError(t, err)

	c, err := st.UpsertCustomer(ctx, model.Customer{
		ID: "cu-1", TenantID: "t1", Email: "alice@acme.io", FullName: "alice",
		CompanyID: strPtr("co-1"), DomainMatch: "acme.io", Status: model.CustomerStatusProspect,
	})
	require.NoError(t, err)
	assert.Equal(t, "cu-1", c.ID)

	// A second upsert without a company must not clear it.
	again, err := st.UpsertCustomer(ctx, model.Customer{
		ID: "cu-2", TenantID: "t1", Email: "alice@acme.io", FullName: "alice", Status: model.CustomerStatusProspect,
	})
	require.NoError(t, err)
	assert.Equal(t, "cu-1", again.ID)
	require.NotNil(t, again.CompanyID)
	assert.Equal(t, "co-1", *again.CompanyID)
}

func TestSQLite_SetCustomerCompany(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.InsertCompany(ctx, model.Company{ID: "co-1", TenantID: "t1", Domain: "acme.io", Name: "Acme", Status: "active"})
	require.NoError(t, err)
	_, err = st.InsertCustomer(ctx, model.Customer{ID: "cu-1", TenantID: "t1", Email: "a@acme.io", Status: "prospect"})
	require.NoError(t, err)

	require.NoError(t, st.SetCustomerCompany(ctx, "t1", "cu-1", "co-1"))

	c, err := st.FindCustomer(ctx, "t1", "a@acme.io")
	require.NoError(t, err)
	require.NotNil(t, c.CompanyID)
	assert.Equal(t, "co-1", *c.CompanyID)
}

func TestSQLite_FindCustomer_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.FindCustomer(context.Background(), "t1", "ghost@acme.io")
	assert.ErrorIs(t, err, ErrNotFound)
}

// --- Links ---

func TestSQLite_Participants_DuplicateAndList(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.InsertCompany(ctx, model.Company{ID: "co-1", TenantID: "t1", Domain: "acme.io", Name: "Acme", Status: "active"})
	require.NoError(t, err)
	_, err = st.InsertCustomer(ctx, model.Customer{ID: "cu-1", TenantID: "t1", Email: "bob@acme.io", FullName: "bob", CompanyID: strPtr("co-1"), Status: "prospect"})
	require.NoError(t, err)
	_, err = st.InsertCustomer(ctx, model.Customer{ID: "cu-2", TenantID: "t1", Email: "carol@gmail.com", FullName: "carol", Status: "prospect"})
	require.NoError(t, err)

	p := model.ThreadParticipant{ThreadID: "th-1", CustomerID: "cu-1", TenantID: "t1"}
	require.NoError(t, st.InsertParticipant(ctx, p))
	err = st.InsertParticipant(ctx, p)
	require.Error(t, err)
	assert.True(t, IsDuplicate(err))
	require.NoError(t, st.InsertParticipant(ctx, model.ThreadParticipant{ThreadID: "th-1", CustomerID: "cu-2", TenantID: "t1"}))

	got, err := st.ListParticipants(ctx, "t1", "th-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "bob@acme.io", got[0].Email)
	assert.Equal(t, "Acme", got[0].CompanyName)
	assert.Equal(t, "carol@gmail.com", got[1].Email)
	assert.Empty(t, got[1].CompanyName)
	assert.Nil(t, got[1].CompanyID)
}

func TestSQLite_CompanyLink_Duplicate(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.InsertCompany(ctx, model.Company{ID: "co-1", TenantID: "t1", Domain: "acme.io", Name: "Acme", Status: "active"})
	require.NoError(t, err)

	l := model.ThreadCompanyLink{ThreadID: "th-1", CompanyID: "co-1", TenantID: "t1"}
	require.NoError(t, st.InsertCompanyLink(ctx, l))
	assert.True(t, IsDuplicate(st.InsertCompanyLink(ctx, l)))

	ids, err := st.ListLinkedCompanies(ctx, "t1", "th-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"co-1"}, ids)
}

// --- Threads and messages ---

func TestSQLite_SaveThread_CreatesNewStage(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveThread(ctx, model.Thread{ID: "th-1", TenantID: "t1", Subject: "Hello"}))
	require.NoError(t, st.SetStage(ctx, "t1", model.StageCompleted, "th-1"))
	// Re-saving keeps the existing stage.
	require.NoError(t, st.SaveThread(ctx, model.Thread{ID: "th-1", TenantID: "t1", Subject: "Hello again"}))

	stages, err := st.GetStages(ctx, "t1", []string{"th-1"})
	require.NoError(t, err)
	assert.Equal(t, model.StageCompleted, stages["th-1"])

	th, err := st.GetThread(ctx, "t1", "th-1")
	require.NoError(t, err)
	assert.Equal(t, "Hello again", th.Subject)
	assert.Nil(t, th.LastAnalyzedAt)
	assert.Nil(t, th.SentimentScore)
}

func TestSQLite_Messages_OrderAndCustomer(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	t1 := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	n, err := st.SaveMessages(ctx, []model.Message{
		{ID: "m2", ThreadID: "th-1", TenantID: "t1", From: "b@acme.io", BodyText: "second", SentAt: &t2},
		{ID: "m1", ThreadID: "th-1", TenantID: "t1", From: "a@acme.io", BodyText: "first", SentAt: &t1},
		{ID: "m3", ThreadID: "th-2", TenantID: "t1", From: "c@acme.io", BodyText: "other"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	msgs, err := st.ListMessages(ctx, "t1", []string{"th-1"})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "m2", msgs[1].ID)
	require.NotNil(t, msgs[0].SentAt)
	assert.True(t, t1.Equal(*msgs[0].SentAt))

	require.NoError(t, st.SetMessageCustomer(ctx, "t1", "m1", "cu-1"))
	msgs, err = st.ListMessages(ctx, "t1", []string{"th-1", "th-2"})
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	require.NotNil(t, msgs[0].CustomerID)
	assert.Equal(t, "cu-1", *msgs[0].CustomerID)
	// Unsent messages sort last.
	assert.Equal(t, "m3", msgs[2].ID)
}

func TestSQLite_MessageSummaries(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.SaveMessages(ctx, []model.Message{
		{ID: "m1", ThreadID: "th-1", TenantID: "t1", BodyText: "a"},
		{ID: "m2", ThreadID: "th-1", TenantID: "t1", BodyText: "b"},
	})
	require.NoError(t, err)
	require.NoError(t, st.SetMessageSummary(ctx, "t1", "m1", "short"))

	msgs, err := st.ListUnsummarizedMessages(ctx, "t1", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "m2", msgs[0].ID)
}

// --- Analysis ---

func TestSQLite_UpdateThreadAnalysis(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveThread(ctx, model.Thread{ID: "th-1", TenantID: "t1"}))

	score := -1
	at := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	require.NoError(t, st.UpdateThreadAnalysis(ctx, "t1", "th-1", model.ThreadAnalysis{
		Summary: "sum", ProblemStatement: "prob", Sentiment: "negative", SentimentScore: &score,
		ResolutionStatus: "open", AnalyzedAt: at,
	}))

	th, err := st.GetThread(ctx, "t1", "th-1")
	require.NoError(t, err)
	assert.Equal(t, "sum", th.Summary)
	require.NotNil(t, th.SentimentScore)
	assert.Equal(t, -1, *th.SentimentScore)
	require.NotNil(t, th.LastAnalyzedAt)
	assert.True(t, at.Equal(*th.LastAnalyzedAt))

	err = st.UpdateThreadAnalysis(ctx, "t1", "missing", model.ThreadAnalysis{AnalyzedAt: at})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_NextStepsAndAssignments(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	due := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, st.InsertNextStep(ctx, model.NextStep{ID: "s1", ThreadID: "th-1", TenantID: "t1", Description: "Send quote", Owner: strPtr("alice"), DueDate: &due, Status: model.NextStepStatusPending}))
	require.NoError(t, st.InsertNextStep(ctx, model.NextStep{ID: "s2", ThreadID: "th-2", TenantID: "t1", Description: "Call back", Status: model.NextStepStatusPending}))

	steps, err := st.ListNextSteps(ctx, "t1", "th-1")
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "Send quote", steps[0].Description)
	require.NotNil(t, steps[0].DueDate)
	assert.True(t, due.Equal(*steps[0].DueDate))

	all, err := st.ListNextSteps(ctx, "t1", "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "s1", all[0].ID)
	assert.Nil(t, all[1].Owner)

	_, err = st.InsertCustomer(ctx, model.Customer{ID: "cu-1", TenantID: "t1", Email: "a@acme.io", Status: "prospect"})
	require.NoError(t, err)
	a := model.NextStepAssignment{NextStepID: "s1", CustomerID: "cu-1"}
	require.NoError(t, st.InsertAssignment(ctx, a))
	assert.True(t, IsDuplicate(st.InsertAssignment(ctx, a)))
}

func TestSQLite_FeatureRequests(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.InsertFeatureRequest(ctx, model.FeatureRequest{
		ID: "f1", ThreadID: "th-1", TenantID: "t1", Title: "SSO", Urgency: model.UrgencyHigh, Status: model.FeatureRequestStatusNew,
	}))

	got, err := st.ListFeatureRequests(ctx, "t1", "th-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.UrgencyHigh, got[0].Urgency)
	assert.Equal(t, "new", got[0].Status)

	none, err := st.ListFeatureRequests(ctx, "t1", "th-9")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLite_RecalculateHealthScore(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.InsertCompany(ctx, model.Company{ID: "co-1", TenantID: "t1", Domain: "acme.io", Name: "Acme", Status: "active"})
	require.NoError(t, err)

	// No scored threads leaves the score unset.
	require.NoError(t, st.RecalculateHealthScore(ctx, "t1", "co-1"))
	c, err := st.FindCompany(ctx, "t1", "acme.io")
	require.NoError(t, err)
	assert.Nil(t, c.HealthScore)

	now := time.Now().UTC()
	for id, score := range map[string]int{"th-1": 2, "th-2": 0} {
		s := score
		require.NoError(t, st.SaveThread(ctx, model.Thread{ID: id, TenantID: "t1"}))
		require.NoError(t, st.UpdateThreadAnalysis(ctx, "t1", id, model.ThreadAnalysis{SentimentScore: &s, AnalyzedAt: now}))
		require.NoError(t, st.InsertCompanyLink(ctx, model.ThreadCompanyLink{ThreadID: id, CompanyID: "co-1", TenantID: "t1"}))
	}

	require.NoError(t, st.RecalculateHealthScore(ctx, "t1", "co-1"))
	c, err = st.FindCompany(ctx, "t1", "acme.io")
	require.NoError(t, err)
	require.NotNil(t, c.HealthScore)
	assert.InDelta(t, 75.0, *c.HealthScore, 0.001)
}

func TestSQLite_Tenant(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.GetTenant(ctx, "t1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, st.SaveTenant(ctx, model.Tenant{ID: "t1", Email: "owner@vendor.com"}))
	tn, err := st.GetTenant(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "owner@vendor.com", tn.Email)
	require.NoError(t, st.Ping(ctx))
}
