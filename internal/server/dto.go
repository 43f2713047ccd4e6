package server

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nokoro/statement-tracker/internal/repository"
)

const dateLayout = "2006-01-02"

type statementResponse struct {
	ID                 string          `json:"id"`
	Filename           string          `json:"filename"`
	Issuer             string          `json:"issuer"`
	CardholderName     *string         `json:"cardholder_name"`
	CardLastFour       *string         `json:"card_last_four"`
	BillingPeriodStart *string         `json:"billing_period_start"`
	BillingPeriodEnd   *string         `json:"billing_period_end"`
	PaymentDueDate     *string         `json:"payment_due_date"`
	TotalAmountDue     *string         `json:"total_amount_due"`
	ExtractionMethod   string          `json:"extraction_method"`
	OverallConfidence  float64         `json:"overall_confidence"`
	ExtractionSteps    json.RawMessage `json:"extraction_steps"`
	LLMRationale       string          `json:"llm_rationale"`
	FieldRationale     json.RawMessage `json:"field_rationale"`
	IsProcessed        bool            `json:"is_processed"`
	HasErrors          bool            `json:"has_errors"`
	ErrorMessage       string          `json:"error_message,omitempty"`
	FileURL            string          `json:"file_url"`
	CreatedAt          string          `json:"created_at"`
	UpdatedAt          string          `json:"updated_at"`
}

// statsResponse is the aggregate summary served at /statements/stats/summary.
type statsResponse struct {
	Total             int            `json:"total_statements"`
	Processed         int            `json:"processed"`
	WithErrors        int            `json:"with_errors"`
	AverageConfidence float64        `json:"average_confidence"`
	ByIssuer          map[string]int `json:"by_issuer"`
}

func toResponse(st *repository.Statement) statementResponse {
	res := statementResponse{
		ID:                 st.ID.String(),
		Filename:           st.Filename,
		Issuer:             st.Issuer,
		CardholderName:     st.CardholderName,
		CardLastFour:       st.CardLastFour,
		BillingPeriodStart: fmtDatePtr(st.BillingPeriodStart),
		BillingPeriodEnd:   fmtDatePtr(st.BillingPeriodEnd),
		PaymentDueDate:     fmtDatePtr(st.PaymentDueDate),
		ExtractionMethod:   st.ExtractionMethod,
		OverallConfidence:  st.OverallConfidence,
		ExtractionSteps:    rawOr(st.ExtractionSteps, "[]"),
		LLMRationale:       st.LLMRationale,
		FieldRationale:     rawOr(st.FieldRationale, "{}"),
		IsProcessed:        st.IsProcessed,
		HasErrors:          st.HasErrors,
		ErrorMessage:       st.ErrorMessage,
		FileURL:            "/v1/statements/" + st.ID.String() + "/file",
		CreatedAt:          st.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:          st.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if st.TotalAmountDue != nil {
		s := st.TotalAmountDue.String()
		res.TotalAmountDue = &s
	}
	return res
}

// updateRequest carries manual corrections; only non-nil fields are applied.
type updateRequest struct {
	Issuer             *string `json:"issuer"`
	CardholderName     *string `json:"cardholder_name"`
	CardLastFour       *string `json:"card_last_four"`
	BillingPeriodStart *string `json:"billing_period_start"`
	BillingPeriodEnd   *string `json:"billing_period_end"`
	PaymentDueDate     *string `json:"payment_due_date"`
	TotalAmountDue     *string `json:"total_amount_due"`
}

// apply mutates the statement with the request's fields. Dates must be
// YYYY-MM-DD and amounts decimal strings.
func (u updateRequest) apply(st *repository.Statement) error {
	if u.Issuer != nil {
		st.Issuer = *u.Issuer
	}
	if u.CardholderName != nil {
		st.CardholderName = u.CardholderName
	}
	if u.CardLastFour != nil {
		st.CardLastFour = u.CardLastFour
	}
	for _, d := range []struct {
		in  *string
		out **time.Time
	}{
		{u.BillingPeriodStart, &st.BillingPeriodStart},
		{u.BillingPeriodEnd, &st.BillingPeriodEnd},
		{u.PaymentDueDate, &st.PaymentDueDate},
	} {
		if d.in == nil {
			continue
		}
		t, err := time.Parse(dateLayout, *d.in)
		if err != nil {
			return err
		}
		*d.out = &t
	}
	if u.TotalAmountDue != nil {
		a, err := decimal.NewFromString(*u.TotalAmountDue)
		if err != nil {
			return err
		}
		st.TotalAmountDue = &a
	}
	return nil
}

func fmtDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

func rawOr(s, fallback string) json.RawMessage {
	if s == "" {
		s = fallback
	}
	return json.RawMessage(s)
}
