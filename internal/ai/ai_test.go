package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nokoro/statement-tracker/constants"
	"github.com/nokoro/statement-tracker/internal/extract"
)

func sampleCandidates() extract.FieldSet {
	fields := extract.NewFieldSet()
	fields[constants.FieldCardholderName] = extract.TextValue("RAHUL SHARMA")
	fields[constants.FieldCardLastFour] = extract.TextValue("1234")
	fields[constants.FieldPaymentDueDate] = extract.DateValue(time.Date(2023, 12, 15, 0, 0, 0, 0, time.UTC))
	fields[constants.FieldTotalAmountDue] = extract.AmountValue(decimal.NewFromFloat(15430.50))
	return fields
}

func TestMockProviderEchoesCandidates(t *testing.T) {
	p := NewMockProvider(nil)
	res := p.Validate(context.Background(), "some text", sampleCandidates(), constants.IssuerHDFC)

	assert.Equal(t, constants.MethodMockAI, res.Method)
	assert.Equal(t, "RAHUL SHARMA", *res.ValidatedFields[constants.FieldCardholderName].Text)
	assert.Equal(t, 0.95, res.ConfidenceScores[constants.FieldCardLastFour])
	assert.Zero(t, res.ConfidenceScores[constants.FieldBillingPeriodStart])
	assert.Greater(t, res.OverallConfidence, 0.0)
	assert.Equal(t, "not found in document", res.Rationale[constants.FieldBillingPeriodStart])
}

func TestMockProviderDeterministic(t *testing.T) {
	p := NewMockProvider(nil)
	a := p.Validate(context.Background(), "text", sampleCandidates(), "")
	b := p.Validate(context.Background(), "text", sampleCandidates(), "")
	assert.Equal(t, a.OverallConfidence, b.OverallConfidence)
	assert.Equal(t, a.ConfidenceScores, b.ConfidenceScores)
}

func TestNewProviderFallsBackToMockWithoutKey(t *testing.T) {
	p := NewProvider(Config{Provider: "openai"}, nil)
	_, ok := p.(*MockProvider)
	assert.True(t, ok)
}

func TestNewProviderDefaultsToMock(t *testing.T) {
	_, ok := NewProvider(Config{}, nil).(*MockProvider)
	assert.True(t, ok)
}

func chatResponse(content string) string {
	body := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	b, _ := json.Marshal(body)
	return string(b)
}

func TestOpenAIProviderValidResponse(t *testing.T) {
	reply := `Here is the validation. {
	  "validated_fields": {
	    "cardholder_name": "RAHUL SHARMA",
	    "card_last_four": "1234",
	    "billing_period_start": "2023-11-01",
	    "billing_period_end": "2023-11-30",
	    "payment_due_date": "2023-12-15",
	    "total_amount_due": "15430.50"
	  },
	  "confidence_scores": {
	    "cardholder_name": 0.92,
	    "card_last_four": 0.99,
	    "billing_period_start": 0.9,
	    "billing_period_end": 0.9,
	    "payment_due_date": 0.95,
	    "total_amount_due": 0.97
	  },
	  "rationale": {"cardholder_name": "matches header"},
	  "summary": "all fields supported by the text"
	} Done.`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(chatResponse(reply)))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(Config{APIKey: "test", BaseURL: srv.URL}, nil)
	res := p.Validate(context.Background(), "statement text", sampleCandidates(), constants.IssuerHDFC)

	assert.Equal(t, constants.MethodOpenAI, res.Method)
	assert.Equal(t, 0.92, res.ConfidenceScores[constants.FieldCardholderName])
	require.NotNil(t, res.ValidatedFields[constants.FieldBillingPeriodStart].Date)
	assert.Equal(t, "2023-11-01", res.ValidatedFields[constants.FieldBillingPeriodStart].Date.Format("2006-01-02"))
	require.NotNil(t, res.ValidatedFields[constants.FieldTotalAmountDue].Amount)
	assert.InDelta(t, 15430.50, res.ValidatedFields[constants.FieldTotalAmountDue].Amount.InexactFloat64(), 0.01)
	assert.Equal(t, "all fields supported by the text", res.Summary)
}

func TestOpenAIProviderMalformedResponseFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(chatResponse("I could not process this statement, sorry.")))
	}))
	defer srv.Close()

	candidates := sampleCandidates()
	p := NewOpenAIProvider(Config{APIKey: "test", BaseURL: srv.URL}, nil)
	res := p.Validate(context.Background(), "statement text", candidates, "")

	assert.Equal(t, constants.MethodOpenAIFallback, res.Method)
	assert.Equal(t, 0.3, res.OverallConfidence)
	for _, f := range constants.AllFields() {
		assert.Equal(t, 0.3, res.ConfidenceScores[f])
	}
	// Candidates pass through untouched.
	assert.Equal(t, candidates, res.ValidatedFields)
	assert.Contains(t, res.Summary, "validation failed")
}

func TestOpenAIProviderHTTPErrorDelegatesToMock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(Config{APIKey: "test", BaseURL: srv.URL}, nil)
	res := p.Validate(context.Background(), "statement text", sampleCandidates(), "")
	assert.Equal(t, constants.MethodMockAI, res.Method)
}

func TestParseValidationRejectsMissingKeys(t *testing.T) {
	_, err := parseValidation(`{"validated_fields": {}}`, extract.NewFieldSet())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema")
}

func TestConvertValueUnparseableDateKeepsCandidate(t *testing.T) {
	candidates := sampleCandidates()
	content := `{
	  "validated_fields": {"payment_due_date": "mid December"},
	  "confidence_scores": {"payment_due_date": 0.9},
	  "rationale": {}
	}`
	res, err := parseValidation(content, candidates)
	require.NoError(t, err)
	require.NotNil(t, res.ValidatedFields[constants.FieldPaymentDueDate].Date)
	assert.Equal(t, "2023-12-15", res.ValidatedFields[constants.FieldPaymentDueDate].Date.Format("2006-01-02"))
	assert.Equal(t, 0.3, res.ConfidenceScores[constants.FieldPaymentDueDate])
}
