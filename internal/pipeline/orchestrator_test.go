package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nokoro/statement-tracker/constants"
	"github.com/nokoro/statement-tracker/internal/ai"
	"github.com/nokoro/statement-tracker/internal/extract"
	"github.com/nokoro/statement-tracker/internal/layout"
)

type stubLayout struct {
	result layout.FieldResult
}

func (s stubLayout) ExtractFields(_ context.Context, _ string) layout.FieldResult {
	return s.result
}

type panickyValidator struct{}

func (panickyValidator) Validate(_ context.Context, _ string, _ extract.FieldSet, _ string) extract.ValidationResult {
	panic("validator exploded")
}

const statementText = `HDFC Bank Credit Card Statement
Name: RAHUL SHARMA
Card Number: **** **** **** 1234
Statement Period: 01/11/2023 to 30/11/2023
Payment Due Date: 15/12/2023
Total Amount Due: 15,430.50`

func layoutHit() layout.FieldResult {
	fields := extract.NewFieldSet()
	fields[constants.FieldCardholderName] = extract.TextValue("RAHUL SHARMA")
	fields[constants.FieldPaymentDueDate] = extract.DateValue(time.Date(2023, 12, 15, 0, 0, 0, 0, time.UTC))
	conf := extract.NewConfidenceMap()
	conf[constants.FieldCardholderName] = 0.85
	conf[constants.FieldPaymentDueDate] = 0.80
	return layout.FieldResult{
		Text:       statementText,
		Fields:     fields,
		Confidence: conf,
		Method:     constants.MethodSmartLayout,
	}
}

func layoutMiss() layout.FieldResult {
	return layout.FieldResult{
		Text:       statementText,
		Fields:     extract.NewFieldSet(),
		Confidence: extract.NewConfidenceMap(),
		Method:     constants.MethodSmartLayout,
	}
}

func layoutEmpty() layout.FieldResult {
	return layout.FieldResult{
		Fields:     extract.NewFieldSet(),
		Confidence: extract.NewConfidenceMap(),
		Method:     "smart_layout_failed",
	}
}

func newTestOrchestrator(lr layout.FieldResult, validator ai.Provider) *Orchestrator {
	return NewOrchestrator(stubLayout{result: lr}, nil, validator, nil)
}

func TestExtractLayoutPath(t *testing.T) {
	o := newTestOrchestrator(layoutHit(), ai.NewMockProvider(nil))
	rec := o.Extract(context.Background(), "statement.pdf", constants.IssuerHDFC)

	assert.Equal(t, "layout_based_ai_validated", rec.Method)
	assert.Equal(t, "RAHUL SHARMA", *rec.Fields[constants.FieldCardholderName].Text)
	assert.Greater(t, rec.OverallConfidence, 0.0)
}

func TestExtractRegexFallbackWhenLayoutFindsNothing(t *testing.T) {
	o := newTestOrchestrator(layoutMiss(), ai.NewMockProvider(nil))
	rec := o.Extract(context.Background(), "statement.pdf", constants.IssuerHDFC)

	assert.Equal(t, "regex_based_ai_validated", rec.Method)
	require.NotNil(t, rec.Fields[constants.FieldCardLastFour].Text)
	assert.Equal(t, "1234", *rec.Fields[constants.FieldCardLastFour].Text)
}

func TestExtractKeySetInvariant(t *testing.T) {
	for _, lr := range []layout.FieldResult{layoutHit(), layoutMiss(), layoutEmpty()} {
		o := newTestOrchestrator(lr, ai.NewMockProvider(nil))
		rec := o.Extract(context.Background(), "statement.pdf", "")
		require.Len(t, rec.Fields, len(constants.AllFields()))
		for _, f := range constants.AllFields() {
			_, ok := rec.Fields[f]
			assert.True(t, ok, "missing field key %s", f)
			_, ok = rec.Confidence[f]
			assert.True(t, ok, "missing confidence key %s", f)
		}
	}
}

func TestExtractNoTextFails(t *testing.T) {
	o := newTestOrchestrator(layoutEmpty(), ai.NewMockProvider(nil))
	rec := o.Extract(context.Background(), "empty.pdf", "")

	assert.Equal(t, constants.MethodFailed, rec.Method)
	assert.Zero(t, rec.OverallConfidence)
	assert.Contains(t, rec.LLMRationale, "Extraction failed")
	for _, f := range constants.AllFields() {
		assert.True(t, rec.Fields[f].IsNull())
	}
}

func TestExtractIdempotentWithMock(t *testing.T) {
	o := newTestOrchestrator(layoutHit(), ai.NewMockProvider(nil))
	a := o.Extract(context.Background(), "statement.pdf", constants.IssuerHDFC)
	b := o.Extract(context.Background(), "statement.pdf", constants.IssuerHDFC)

	assert.Equal(t, a.Fields, b.Fields)
	assert.Equal(t, a.OverallConfidence, b.OverallConfidence)
	assert.Equal(t, a.Method, b.Method)
}

func TestExtractPanicDegradesToFailedRecord(t *testing.T) {
	o := newTestOrchestrator(layoutHit(), panickyValidator{})
	rec := o.Extract(context.Background(), "statement.pdf", "")

	assert.Equal(t, constants.MethodFailed, rec.Method)
	assert.Contains(t, rec.LLMRationale, "panic")
}

func TestExtractNoAIMethods(t *testing.T) {
	o := newTestOrchestrator(layoutHit(), nil)
	rec := o.ExtractNoAI(context.Background(), "statement.pdf", constants.IssuerHDFC)
	assert.Equal(t, constants.MethodSmartLayout, rec.Method)

	o = newTestOrchestrator(layoutMiss(), nil)
	rec = o.ExtractNoAI(context.Background(), "statement.pdf", constants.IssuerHDFC)
	assert.Equal(t, constants.MethodRegexFallback, rec.Method)
	assert.Equal(t, "1234", *rec.Fields[constants.FieldCardLastFour].Text)
}

func TestExtractNoAIEmptyDocumentFails(t *testing.T) {
	o := newTestOrchestrator(layoutEmpty(), nil)
	rec := o.ExtractNoAI(context.Background(), "empty.pdf", "")
	assert.Equal(t, constants.MethodFailed, rec.Method)
}
