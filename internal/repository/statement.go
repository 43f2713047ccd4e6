package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nokoro/statement-tracker/constants"
	"github.com/nokoro/statement-tracker/internal/common"
	"github.com/nokoro/statement-tracker/internal/extract"
)

const dateLayout = "2006-01-02"

// Statement is one stored statement with its extraction outcome.
type Statement struct {
	ID                 uuid.UUID
	Filename           string
	FilePath           string
	Issuer             string
	CardholderName     *string
	CardLastFour       *string
	BillingPeriodStart *time.Time
	BillingPeriodEnd   *time.Time
	PaymentDueDate     *time.Time
	TotalAmountDue     *decimal.Decimal
	ExtractionMethod   string
	OverallConfidence  float64
	ExtractionSteps    string // JSON array
	LLMRationale       string
	FieldRationale     string // JSON object
	IsProcessed        bool
	HasErrors          bool
	ErrorMessage       string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ApplyRecord overwrites the extraction columns from a pipeline record.
func (s *Statement) ApplyRecord(rec extract.Record) {
	s.CardholderName = rec.Fields[constants.FieldCardholderName].Text
	s.CardLastFour = rec.Fields[constants.FieldCardLastFour].Text
	s.BillingPeriodStart = rec.Fields[constants.FieldBillingPeriodStart].Date
	s.BillingPeriodEnd = rec.Fields[constants.FieldBillingPeriodEnd].Date
	s.PaymentDueDate = rec.Fields[constants.FieldPaymentDueDate].Date
	s.TotalAmountDue = rec.Fields[constants.FieldTotalAmountDue].Amount

	s.ExtractionMethod = rec.Method
	s.OverallConfidence = rec.OverallConfidence
	s.LLMRationale = rec.LLMRationale
	s.IsProcessed = true
	s.HasErrors = rec.Method == constants.MethodFailed
	if s.HasErrors {
		s.ErrorMessage = rec.LLMRationale
	} else {
		s.ErrorMessage = ""
	}

	if steps, err := extract.MarshalSteps(rec.Steps); err == nil {
		s.ExtractionSteps = steps
	}
	if rat, err := json.Marshal(rec.FieldRationale); err == nil {
		s.FieldRationale = string(rat)
	}
}

type StatementRepository interface {
	Create(ctx context.Context, st *Statement) error
	Get(ctx context.Context, id uuid.UUID) (*Statement, error)
	List(ctx context.Context, limit, offset int) ([]*Statement, error)
	Update(ctx context.Context, st *Statement) error
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context) (*Stats, error)
}

// Stats is the aggregate view over all stored statements. AverageConfidence
// covers processed rows only; an empty table yields zeroes.
type Stats struct {
	Total             int
	Processed         int
	WithErrors        int
	AverageConfidence float64
	ByIssuer          map[string]int
}

type statementRepository struct {
	db     *Database
	logger *slog.Logger
}

func NewStatementRepository(db *Database, logger *slog.Logger) StatementRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &statementRepository{db: db, logger: logger}
}

const statementColumns = `id, filename, file_path, issuer,
	cardholder_name, card_last_four, billing_period_start, billing_period_end,
	payment_due_date, total_amount_due,
	extraction_method, overall_confidence, extraction_steps,
	llm_rationale, field_rationale,
	is_processed, has_errors, error_message, created_at, updated_at`

func (r *statementRepository) Create(ctx context.Context, st *Statement) error {
	if st.ID == uuid.Nil {
		st.ID = uuid.New()
	}
	now := time.Now().UTC()
	st.CreatedAt = now
	st.UpdatedAt = now
	if st.ExtractionSteps == "" {
		st.ExtractionSteps = "[]"
	}
	if st.FieldRationale == "" {
		st.FieldRationale = "{}"
	}

	query := r.db.rebind(`INSERT INTO statements (` + statementColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query,
		st.ID.String(), st.Filename, st.FilePath, st.Issuer,
		st.CardholderName, st.CardLastFour,
		fmtDate(st.BillingPeriodStart), fmtDate(st.BillingPeriodEnd),
		fmtDate(st.PaymentDueDate), fmtAmount(st.TotalAmountDue),
		st.ExtractionMethod, st.OverallConfidence, st.ExtractionSteps,
		st.LLMRationale, st.FieldRationale,
		st.IsProcessed, st.HasErrors, st.ErrorMessage,
		st.CreatedAt.Format(time.RFC3339Nano), st.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return common.NewAppError("DB_ERROR", "create statement", err)
	}
	r.logger.Debug("repository.statement.created", "id", st.ID)
	return nil
}

func (r *statementRepository) Get(ctx context.Context, id uuid.UUID) (*Statement, error) {
	query := r.db.rebind(`SELECT ` + statementColumns + ` FROM statements WHERE id = ?`)
	row := r.db.QueryRowContext(ctx, query, id.String())
	st, err := scanStatement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewAppError("NOT_FOUND", "statement "+id.String(), common.ErrNotFound)
	}
	if err != nil {
		return nil, common.NewAppError("DB_ERROR", "get statement", err)
	}
	return st, nil
}

func (r *statementRepository) List(ctx context.Context, limit, offset int) ([]*Statement, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	query := r.db.rebind(`SELECT ` + statementColumns + ` FROM statements
		ORDER BY created_at DESC LIMIT ? OFFSET ?`)
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, common.NewAppError("DB_ERROR", "list statements", err)
	}
	defer rows.Close()

	var out []*Statement
	for rows.Next() {
		st, err := scanStatement(rows)
		if err != nil {
			return nil, common.NewAppError("DB_ERROR", "scan statement", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (r *statementRepository) Update(ctx context.Context, st *Statement) error {
	st.UpdatedAt = time.Now().UTC()
	query := r.db.rebind(`UPDATE statements SET
		filename = ?, file_path = ?, issuer = ?,
		cardholder_name = ?, card_last_four = ?,
		billing_period_start = ?, billing_period_end = ?,
		payment_due_date = ?, total_amount_due = ?,
		extraction_method = ?, overall_confidence = ?, extraction_steps = ?,
		llm_rationale = ?, field_rationale = ?,
		is_processed = ?, has_errors = ?, error_message = ?, updated_at = ?
		WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query,
		st.Filename, st.FilePath, st.Issuer,
		st.CardholderName, st.CardLastFour,
		fmtDate(st.BillingPeriodStart), fmtDate(st.BillingPeriodEnd),
		fmtDate(st.PaymentDueDate), fmtAmount(st.TotalAmountDue),
		st.ExtractionMethod, st.OverallConfidence, st.ExtractionSteps,
		st.LLMRationale, st.FieldRationale,
		st.IsProcessed, st.HasErrors, st.ErrorMessage,
		st.UpdatedAt.Format(time.RFC3339Nano),
		st.ID.String(),
	)
	if err != nil {
		return common.NewAppError("DB_ERROR", "update statement", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.NewAppError("NOT_FOUND", "statement "+st.ID.String(), common.ErrNotFound)
	}
	return nil
}

func (r *statementRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := r.db.rebind(`DELETE FROM statements WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query, id.String())
	if err != nil {
		return common.NewAppError("DB_ERROR", "delete statement", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.NewAppError("NOT_FOUND", "statement "+id.String(), common.ErrNotFound)
	}
	r.logger.Debug("repository.statement.deleted", "id", id)
	return nil
}

func (r *statementRepository) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByIssuer: map[string]int{}}

	row := r.db.QueryRowContext(ctx, `SELECT COUNT(*),
		COALESCE(SUM(CASE WHEN is_processed THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN has_errors THEN 1 ELSE 0 END), 0),
		COALESCE(AVG(CASE WHEN is_processed THEN overall_confidence END), 0)
		FROM statements`)
	if err := row.Scan(&stats.Total, &stats.Processed, &stats.WithErrors, &stats.AverageConfidence); err != nil {
		return nil, common.NewAppError("DB_ERROR", "statement stats", err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT issuer, COUNT(*) FROM statements GROUP BY issuer`)
	if err != nil {
		return nil, common.NewAppError("DB_ERROR", "statement stats by issuer", err)
	}
	defer rows.Close()
	for rows.Next() {
		var issuer string
		var n int
		if err := rows.Scan(&issuer, &n); err != nil {
			return nil, common.NewAppError("DB_ERROR", "statement stats by issuer", err)
		}
		stats.ByIssuer[issuer] = n
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewAppError("DB_ERROR", "statement stats by issuer", err)
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStatement(row rowScanner) (*Statement, error) {
	var st Statement
	var (
		id, createdAt, updatedAt            string
		name, last4                         sql.NullString
		periodStart, periodEnd, due, amount sql.NullString
	)
	err := row.Scan(
		&id, &st.Filename, &st.FilePath, &st.Issuer,
		&name, &last4, &periodStart, &periodEnd, &due, &amount,
		&st.ExtractionMethod, &st.OverallConfidence, &st.ExtractionSteps,
		&st.LLMRationale, &st.FieldRationale,
		&st.IsProcessed, &st.HasErrors, &st.ErrorMessage,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if st.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if name.Valid {
		st.CardholderName = &name.String
	}
	if last4.Valid {
		st.CardLastFour = &last4.String
	}
	st.BillingPeriodStart = parseDate(periodStart)
	st.BillingPeriodEnd = parseDate(periodEnd)
	st.PaymentDueDate = parseDate(due)
	st.TotalAmountDue = parseAmount(amount)
	st.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	st.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &st, nil
}

func fmtDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}

func fmtAmount(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func parseDate(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func parseAmount(s sql.NullString) *decimal.Decimal {
	if !s.Valid || s.String == "" {
		return nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return nil
	}
	return &d
}
