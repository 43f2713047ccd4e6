package pattern

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nokoro/statement-tracker/constants"
	"github.com/nokoro/statement-tracker/internal/extract"
)

const hdfcSample = `HDFC Bank Credit Card Statement
Name: JOHN DOE
Card No: **** **** **** 1234
Statement Period: 01/11/2023 to 30/11/2023
Payment Due Date: 15/12/2023
Total Amount Due: ₹7,549.00
`

func assertSampleFields(t *testing.T, res Result) {
	t.Helper()

	require.NotNil(t, res.Fields[constants.FieldCardholderName].Text)
	assert.Equal(t, "JOHN DOE", *res.Fields[constants.FieldCardholderName].Text)

	require.NotNil(t, res.Fields[constants.FieldCardLastFour].Text)
	assert.Equal(t, "1234", *res.Fields[constants.FieldCardLastFour].Text)

	require.NotNil(t, res.Fields[constants.FieldBillingPeriodStart].Date)
	assert.Equal(t, time.Date(2023, 11, 1, 0, 0, 0, 0, time.UTC),
		*res.Fields[constants.FieldBillingPeriodStart].Date)

	require.NotNil(t, res.Fields[constants.FieldBillingPeriodEnd].Date)
	assert.Equal(t, time.Date(2023, 11, 30, 0, 0, 0, 0, time.UTC),
		*res.Fields[constants.FieldBillingPeriodEnd].Date)

	require.NotNil(t, res.Fields[constants.FieldPaymentDueDate].Date)
	assert.Equal(t, time.Date(2023, 12, 15, 0, 0, 0, 0, time.UTC),
		*res.Fields[constants.FieldPaymentDueDate].Date)

	require.NotNil(t, res.Fields[constants.FieldTotalAmountDue].Amount)
	assert.InDelta(t, 7549.0, res.Fields[constants.FieldTotalAmountDue].Amount.InexactFloat64(), 0.01)
}

func TestExtractorHDFC(t *testing.T) {
	res := NewExtractor("hdfc", nil).Extract(hdfcSample)

	assert.Equal(t, "regex_hdfc", res.Method)
	assertSampleFields(t, res)

	assert.Equal(t, 0.8, res.Confidence[constants.FieldCardholderName])
	assert.Equal(t, 0.8, res.Confidence[constants.FieldCardLastFour])
	assert.Equal(t, 0.7, res.Confidence[constants.FieldBillingPeriodStart])
	assert.Equal(t, 0.7, res.Confidence[constants.FieldBillingPeriodEnd])
	assert.Equal(t, 0.7, res.Confidence[constants.FieldPaymentDueDate])
	assert.Equal(t, 0.9, res.Confidence[constants.FieldTotalAmountDue])
}

func TestUniversalExtractorMatchesSameFields(t *testing.T) {
	res := NewUniversalExtractor(nil).Extract(hdfcSample)

	assert.Equal(t, "universal_regex", res.Method)
	assertSampleFields(t, res)
}

func TestExtractorFieldSetComplete(t *testing.T) {
	for _, text := range []string{"", hdfcSample, "completely unrelated text"} {
		res := NewExtractor("sbi", nil).Extract(text)
		for _, f := range constants.AllFields() {
			_, ok := res.Fields[f]
			assert.True(t, ok, "missing field key %s", f)
			_, ok = res.Confidence[f]
			assert.True(t, ok, "missing confidence key %s", f)
		}
		assert.Len(t, res.Fields, 6)
		assert.Len(t, res.Confidence, 6)
	}
}

func TestExtractorEmptyText(t *testing.T) {
	res := NewExtractor("icici", nil).Extract("")

	assert.False(t, res.Fields.HasAny())
	for _, f := range constants.AllFields() {
		assert.True(t, res.Fields[f].IsNull())
		assert.Equal(t, 0.0, res.Confidence[f])
	}
	// Every field still reports a step entry.
	assert.Len(t, res.Steps, len(tableKeys))
}

func TestExtractorUnknownIssuerDefaultsToHDFC(t *testing.T) {
	res := NewExtractor("notabank", nil).Extract(hdfcSample)
	// Default table still matches the HDFC-labeled sample.
	assert.Equal(t, "regex_notabank", res.Method)
	assertSampleFields(t, res)
}

func TestExtractorUnparseableAmountIsPerFieldFailure(t *testing.T) {
	res := NewExtractor("hdfc", nil).Extract("Name: JANE ROE\nTotal Amount Due: ₹..\n")

	require.NotNil(t, res.Fields[constants.FieldCardholderName].Text)
	assert.True(t, res.Fields[constants.FieldTotalAmountDue].IsNull())
	assert.Equal(t, 0.0, res.Confidence[constants.FieldTotalAmountDue])
}

func TestForIssuer(t *testing.T) {
	m := ForIssuer("hdfc", nil)
	_, ok := m.(*Extractor)
	assert.True(t, ok)

	m = ForIssuer("", nil)
	_, ok = m.(*UniversalExtractor)
	assert.True(t, ok)
}

func TestCleanTextStripsUnsafeRunes(t *testing.T) {
	got := cleanText("Name:\tJOHN  DOE©\nTotal??? 42")
	assert.Equal(t, "Name: JOHN DOE\nTotal 42", got)
}

func TestStepLogRecordsMatches(t *testing.T) {
	res := NewExtractor("hdfc", nil).Extract(hdfcSample)

	byKey := map[string]extract.Step{}
	for _, s := range res.Steps {
		byKey[s.Key] = s
	}
	assert.Contains(t, byKey["cardholder_name"].Detail, "matched pattern")
	assert.Contains(t, byKey["billing_period"].Detail, "matched pattern")
}
