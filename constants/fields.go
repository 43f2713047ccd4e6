package constants

// Field is the canonical name of an extractable statement field.
type Field string

// Stable values (these exact strings are used as JSON keys and DB columns).
const (
	FieldCardholderName     Field = "cardholder_name"
	FieldCardLastFour       Field = "card_last_four"
	FieldBillingPeriodStart Field = "billing_period_start"
	FieldBillingPeriodEnd   Field = "billing_period_end"
	FieldPaymentDueDate     Field = "payment_due_date"
	FieldTotalAmountDue     Field = "total_amount_due"
)

var allFields = []Field{
	FieldCardholderName,
	FieldCardLastFour,
	FieldBillingPeriodStart,
	FieldBillingPeriodEnd,
	FieldPaymentDueDate,
	FieldTotalAmountDue,
}

// AllFields returns the canonical field set in stable order. Every FieldSet
// and ConfidenceMap produced by the pipeline carries exactly these keys.
func AllFields() []Field {
	out := make([]Field, len(allFields))
	copy(out, allFields)
	return out
}

// IsDateField reports whether the field holds a calendar date.
func IsDateField(f Field) bool {
	switch f {
	case FieldBillingPeriodStart, FieldBillingPeriodEnd, FieldPaymentDueDate:
		return true
	}
	return false
}

// IsAmountField reports whether the field holds a monetary amount.
func IsAmountField(f Field) bool {
	return f == FieldTotalAmountDue
}
