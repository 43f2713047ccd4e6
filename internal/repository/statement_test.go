package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nokoro/statement-tracker/constants"
	"github.com/nokoro/statement-tracker/internal/common"
	"github.com/nokoro/statement-tracker/internal/extract"
)

func newTestRepo(t *testing.T) StatementRepository {
	t.Helper()
	db, err := Open(context.Background(), common.DatabaseConfig{
		DSN:          filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 2,
		MaxIdleConns: 1,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStatementRepository(db, nil)
}

func sampleStatement() *Statement {
	name := "RAHUL SHARMA"
	last4 := "1234"
	due := time.Date(2023, 12, 15, 0, 0, 0, 0, time.UTC)
	amount := decimal.RequireFromString("15430.50")
	return &Statement{
		Filename:          "statement.pdf",
		FilePath:          "/uploads/abc_statement.pdf",
		Issuer:            constants.IssuerHDFC,
		CardholderName:    &name,
		CardLastFour:      &last4,
		PaymentDueDate:    &due,
		TotalAmountDue:    &amount,
		ExtractionMethod:  "layout_based_ai_validated",
		OverallConfidence: 0.87,
		IsProcessed:       true,
	}
}

func TestStatementRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	st := sampleStatement()
	require.NoError(t, repo.Create(context.Background(), st))
	require.NotEqual(t, uuid.Nil, st.ID)

	got, err := repo.Get(context.Background(), st.ID)
	require.NoError(t, err)
	assert.Equal(t, "statement.pdf", got.Filename)
	assert.Equal(t, constants.IssuerHDFC, got.Issuer)
	require.NotNil(t, got.CardholderName)
	assert.Equal(t, "RAHUL SHARMA", *got.CardholderName)
	require.NotNil(t, got.PaymentDueDate)
	assert.Equal(t, "2023-12-15", got.PaymentDueDate.Format("2006-01-02"))
	require.NotNil(t, got.TotalAmountDue)
	assert.True(t, got.TotalAmountDue.Equal(decimal.RequireFromString("15430.50")))
	assert.True(t, got.IsProcessed)
	assert.False(t, got.HasErrors)
}

func TestStatementNullFields(t *testing.T) {
	repo := newTestRepo(t)
	st := &Statement{Filename: "empty.pdf", FilePath: "/uploads/empty.pdf"}
	require.NoError(t, repo.Create(context.Background(), st))

	got, err := repo.Get(context.Background(), st.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CardholderName)
	assert.Nil(t, got.BillingPeriodStart)
	assert.Nil(t, got.TotalAmountDue)
	assert.Equal(t, "[]", got.ExtractionSteps)
	assert.Equal(t, "{}", got.FieldRationale)
}

func TestStatementGetMissing(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestStatementUpdate(t *testing.T) {
	repo := newTestRepo(t)
	st := sampleStatement()
	require.NoError(t, repo.Create(context.Background(), st))

	corrected := "R. SHARMA"
	st.CardholderName = &corrected
	st.Issuer = constants.IssuerICICI
	require.NoError(t, repo.Update(context.Background(), st))

	got, err := repo.Get(context.Background(), st.ID)
	require.NoError(t, err)
	assert.Equal(t, "R. SHARMA", *got.CardholderName)
	assert.Equal(t, constants.IssuerICICI, got.Issuer)
}

func TestStatementUpdateMissing(t *testing.T) {
	repo := newTestRepo(t)
	st := sampleStatement()
	st.ID = uuid.New()
	assert.ErrorIs(t, repo.Update(context.Background(), st), common.ErrNotFound)
}

func TestStatementDelete(t *testing.T) {
	repo := newTestRepo(t)
	st := sampleStatement()
	require.NoError(t, repo.Create(context.Background(), st))
	require.NoError(t, repo.Delete(context.Background(), st.ID))
	_, err := repo.Get(context.Background(), st.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(context.Background(), st.ID), common.ErrNotFound)
}

func TestStatementList(t *testing.T) {
	repo := newTestRepo(t)
	for i := 0; i < 3; i++ {
		st := sampleStatement()
		st.Filename = "statement.pdf"
		require.NoError(t, repo.Create(context.Background(), st))
	}

	all, err := repo.List(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	page, err := repo.List(context.Background(), 2, 2)
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestApplyRecordOverwritesExtractionColumns(t *testing.T) {
	st := sampleStatement()

	fields := extract.NewFieldSet()
	fields[constants.FieldCardLastFour] = extract.TextValue("9876")
	conf := extract.NewConfidenceMap()
	conf[constants.FieldCardLastFour] = 0.95
	rec := extract.Record{
		Fields:            fields,
		Confidence:        conf,
		OverallConfidence: 0.95,
		Method:            "regex_based_ai_validated",
		Steps:             extract.StepLog{{Stage: "regex", Key: "card_last_four", Detail: "matched"}},
		LLMRationale:      "validated",
	}
	st.ApplyRecord(rec)

	assert.Nil(t, st.CardholderName) // overwritten wholesale
	require.NotNil(t, st.CardLastFour)
	assert.Equal(t, "9876", *st.CardLastFour)
	assert.Equal(t, "regex_based_ai_validated", st.ExtractionMethod)
	assert.Equal(t, 0.95, st.OverallConfidence)
	assert.True(t, st.IsProcessed)
	assert.False(t, st.HasErrors)
	assert.Contains(t, st.ExtractionSteps, "card_last_four")
}

func TestApplyRecordFailedSetsError(t *testing.T) {
	st := sampleStatement()
	st.ApplyRecord(extract.FailedRecord("no text could be extracted from document"))

	assert.True(t, st.HasErrors)
	assert.Contains(t, st.ErrorMessage, "no text could be extracted")
	assert.Equal(t, constants.MethodFailed, st.ExtractionMethod)
	assert.Nil(t, st.TotalAmountDue)
}

func TestStatementStats(t *testing.T) {
	repo := newTestRepo(t)

	first := sampleStatement()
	first.OverallConfidence = 0.90
	require.NoError(t, repo.Create(context.Background(), first))

	second := sampleStatement()
	second.Issuer = constants.IssuerICICI
	second.OverallConfidence = 0.70
	require.NoError(t, repo.Create(context.Background(), second))

	failed := sampleStatement()
	failed.ApplyRecord(extract.FailedRecord("render failed"))
	require.NoError(t, repo.Create(context.Background(), failed))

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 3, stats.Processed)
	assert.Equal(t, 1, stats.WithErrors)
	// 0.90, 0.70 and the failed record's 0.0 average over processed rows.
	assert.InDelta(t, (0.90+0.70+0.0)/3, stats.AverageConfidence, 1e-9)
	assert.Equal(t, map[string]int{
		constants.IssuerHDFC:  2,
		constants.IssuerICICI: 1,
	}, stats.ByIssuer)
}

func TestStatementStatsEmpty(t *testing.T) {
	repo := newTestRepo(t)

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
	assert.Zero(t, stats.AverageConfidence)
	assert.Empty(t, stats.ByIssuer)
}
