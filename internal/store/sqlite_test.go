package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ptigroup/deepfin-sub000/internal/config"
	"github.com/ptigroup/deepfin-sub000/internal/model"
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

func TestSQLite_MigrateIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))
}

func TestSQLite_RunLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "Acme Corp", 2)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", got.Company)
	assert.Equal(t, 2, got.Documents)
	assert.Equal(t, model.RunStatusRunning, got.Status)
	assert.Nil(t, got.Report)

	report := &model.RunReport{
		ID:        run.ID,
		Company:   "Acme Corp",
		Status:    model.RunStatusPartial,
		Documents: 2,
		Outcomes: []model.Outcome{
			{DocumentID: "a", StatementType: model.StatementIncome, Status: model.OutcomeConsolidated, LineItems: 12},
			{DocumentID: "b", StatementType: model.StatementIncome, Status: model.OutcomeNotDetected, Reason: "no candidate pages"},
		},
	}
	require.NoError(t, st.CompleteRun(ctx, run.ID, report))

	got, err = st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusPartial, got.Status)
	require.NotNil(t, got.Report)
	assert.Len(t, got.Report.Outcomes, 2)
	assert.Equal(t, 1, got.Report.Count(model.OutcomeNotDetected))
}

func TestSQLite_GetRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	_, err := st.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}

func TestSQLite_CompleteRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	err := st.CompleteRun(context.Background(), "missing", &model.RunReport{Status: model.RunStatusFailed})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found: missing")
}

func TestSQLite_ListRuns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := st.CreateRun(ctx, "Acme Corp", 1)
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, "Globex", 1)
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, "Acme Corp", 3)
	require.NoError(t, err)
	require.NoError(t, st.CompleteRun(ctx, a.ID, &model.RunReport{ID: a.ID, Status: model.RunStatusSuccess}))

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	acme, err := st.ListRuns(ctx, RunFilter{Company: "Acme Corp"})
	require.NoError(t, err)
	assert.Len(t, acme, 2)

	done, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusSuccess})
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, a.ID, done[0].ID)

	page, err := st.ListRuns(ctx, RunFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestSQLite_Outcomes(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "Acme Corp", 1)
	require.NoError(t, err)

	rng := &model.DetectedRange{StatementType: model.StatementCashFlow, StartPage: 3, EndPage: 5, Confidence: 95}
	require.NoError(t, st.RecordOutcome(ctx, run.ID, model.Outcome{
		DocumentID:    "10k-2023",
		StatementType: model.StatementCashFlow,
		Status:        model.OutcomeParseFailed,
		Reason:        "no period header row",
		Range:         rng,
	}))
	require.NoError(t, st.RecordOutcome(ctx, run.ID, model.Outcome{
		DocumentID:    "10k-2023",
		StatementType: model.StatementBalanceSheet,
		Status:        model.OutcomeNotDetected,
	}))
	// Re-recording the same pair replaces it.
	require.NoError(t, st.RecordOutcome(ctx, run.ID, model.Outcome{
		DocumentID:    "10k-2023",
		StatementType: model.StatementCashFlow,
		Status:        model.OutcomeConsolidated,
		Range:         rng,
		LineItems:     31,
	}))

	out, err := st.ListOutcomes(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, model.StatementBalanceSheet, out[0].StatementType)
	assert.Nil(t, out[0].Range)

	assert.Equal(t, model.StatementCashFlow, out[1].StatementType)
	assert.Equal(t, model.OutcomeConsolidated, out[1].Status)
	assert.Equal(t, 31, out[1].LineItems)
	assert.Equal(t, *rng, *out[1].Range)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	st, err := Open(ctx, config.StoreConfig{Driver: "none"})
	require.NoError(t, err)
	assert.Nil(t, st)

	st, err = Open(ctx, config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "runs.db")})
	require.NoError(t, err)
	require.NotNil(t, st)
	defer st.Close() //nolint:errcheck
	assert.IsType(t, &SQLiteStore{}, st)

	_, err = Open(ctx, config.StoreConfig{Driver: "mysql"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown driver "mysql"`)
}
