package extract

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/nokoro/statement-tracker/constants"
)

// Value is an optional typed field value. At most one of the members is set;
// a zero Value means the field is absent.
type Value struct {
	Text   *string
	Date   *time.Time
	Amount *decimal.Decimal
}

// TextValue wraps a string field value.
func TextValue(s string) Value { return Value{Text: &s} }

// DateValue wraps a calendar-date field value.
func DateValue(t time.Time) Value { return Value{Date: &t} }

// AmountValue wraps a monetary field value.
func AmountValue(d decimal.Decimal) Value { return Value{Amount: &d} }

// IsNull reports whether the value is absent.
func (v Value) IsNull() bool {
	return v.Text == nil && v.Date == nil && v.Amount == nil
}

// FieldSet maps every canonical field name to an optional value. Unmatched
// fields are present with a null value, never omitted, so confidence lookups
// are well-defined for every recognized field.
type FieldSet map[constants.Field]Value

// NewFieldSet returns a FieldSet with all canonical fields set to null.
func NewFieldSet() FieldSet {
	fs := make(FieldSet, 6)
	for _, f := range constants.AllFields() {
		fs[f] = Value{}
	}
	return fs
}

// HasAny reports whether at least one field holds a non-null value.
func (fs FieldSet) HasAny() bool {
	for _, v := range fs {
		if !v.IsNull() {
			return true
		}
	}
	return false
}

// Clone returns a shallow copy with the same values.
func (fs FieldSet) Clone() FieldSet {
	out := make(FieldSet, len(fs))
	for k, v := range fs {
		out[k] = v
	}
	return out
}

// ConfidenceMap maps every canonical field name to a score in [0.0, 1.0].
// 0.0 means "value absent or extraction failed", not "value wrong with certainty".
type ConfidenceMap map[constants.Field]float64

// NewConfidenceMap returns a ConfidenceMap with all canonical fields at 0.0.
func NewConfidenceMap() ConfidenceMap {
	cm := make(ConfidenceMap, 6)
	for _, f := range constants.AllFields() {
		cm[f] = 0.0
	}
	return cm
}

// MeanNonZero returns the arithmetic mean of confidences strictly greater
// than zero, or 0.0 when none are.
func (cm ConfidenceMap) MeanNonZero() float64 {
	var sum float64
	var n int
	for _, c := range cm {
		if c > 0 {
			sum += c
			n++
		}
	}
	if n == 0 {
		return 0.0
	}
	return sum / float64(n)
}

// Step is one provenance entry: which method handled which portion of the run.
type Step struct {
	Stage  string `json:"stage"`
	Key    string `json:"key"`
	Detail string `json:"detail"`
}

// StepLog is the append-only provenance record of one extraction run.
type StepLog []Step

// Add appends a step entry.
func (l *StepLog) Add(stage, key, detail string) {
	*l = append(*l, Step{Stage: stage, Key: key, Detail: detail})
}

// Merge appends all entries of another log under this log.
func (l *StepLog) Merge(other StepLog) {
	*l = append(*l, other...)
}

// ValidationResult is what a validation provider returns: the validated field
// set plus per-field confidence and rationale.
type ValidationResult struct {
	ValidatedFields   FieldSet
	ConfidenceScores  ConfidenceMap
	OverallConfidence float64
	Method            string
	Rationale         map[constants.Field]string
	Summary           string
}

// Record is the final extraction result for one document. It is created once
// per upload or reprocess call and never mutated afterwards.
type Record struct {
	Fields            FieldSet
	Confidence        ConfidenceMap
	OverallConfidence float64
	Method            string
	Steps             StepLog
	FieldRationale    map[constants.Field]string
	LLMRationale      string
}

// FailedRecord builds the terminal record used when a whole run degrades:
// empty fields, method "failed", zero confidence, the error preserved.
func FailedRecord(errMsg string) Record {
	return Record{
		Fields:            NewFieldSet(),
		Confidence:        NewConfidenceMap(),
		OverallConfidence: 0.0,
		Method:            constants.MethodFailed,
		Steps:             StepLog{{Stage: "pipeline", Key: "error", Detail: errMsg}},
		FieldRationale:    map[constants.Field]string{},
		LLMRationale:      "Extraction failed: " + errMsg,
	}
}
