package pattern

import (
	"regexp"

	"github.com/nokoro/statement-tracker/constants"
)

// Pattern-table keys. billingPeriod is bivariate: two capture groups map to
// billing_period_start and billing_period_end.
const (
	keyCardholderName = "cardholder_name"
	keyCardLastFour   = "card_last_four"
	keyBillingPeriod  = "billing_period"
	keyPaymentDueDate = "payment_due_date"
	keyTotalAmountDue = "total_amount_due"
)

var tableKeys = []string{
	keyCardholderName,
	keyCardLastFour,
	keyBillingPeriod,
	keyPaymentDueDate,
	keyTotalAmountDue,
}

// Shared token fragments. Dates tolerate /, - and . separators with two- or
// four-digit years; amounts tolerate currency symbols and thousands commas.
const (
	dateToken   = `\d{1,2}[\/\-\.]\d{1,2}[\/\-\.]\d{2,4}`
	amountToken = `[\d,]+\.?\d*`
	nameToken   = `[A-Za-z][A-Za-z .]+`
)

func mustCompile(expr string) *regexp.Regexp {
	return regexp.MustCompile(`(?im)` + expr)
}

// issuerTables maps issuer key to its field pattern table. Issuer statement
// layouts are semi-structured: anchoring on label keywords with tolerant
// separators handles both locale date formats and OCR noise.
var issuerTables = map[string]map[string]*regexp.Regexp{
	constants.IssuerHDFC: {
		keyCardholderName: mustCompile(`(?:Name|Cardholder|Account Holder)[\s:]*(` + nameToken + `)`),
		keyCardLastFour:   mustCompile(`(?:Card No|Card Number)[\s:]*\*{4,}[\s*]*(\d{4})`),
		keyBillingPeriod:  mustCompile(`(?:Statement Period|Billing Period)[\s:]*(` + dateToken + `)\s*to\s*(` + dateToken + `)`),
		keyPaymentDueDate: mustCompile(`(?:Payment Due Date|Due Date)[\s:]*(` + dateToken + `)`),
		keyTotalAmountDue: mustCompile(`(?:Total Amount Due|Amount Due|Outstanding)[\s:]*[₹$]?\s*(` + amountToken + `)`),
	},
	constants.IssuerSBI: {
		keyCardholderName: mustCompile(`(?:Cardholder Name|Name)[\s:]*(` + nameToken + `)`),
		keyCardLastFour:   mustCompile(`(?:Card No|Card Number)[\s:]*\*{4,}[\s*]*(\d{4})`),
		keyBillingPeriod:  mustCompile(`(?:Statement Period|Billing Period)[\s:]*(` + dateToken + `)\s*to\s*(` + dateToken + `)`),
		keyPaymentDueDate: mustCompile(`(?:Payment Due Date|Due Date)[\s:]*(` + dateToken + `)`),
		keyTotalAmountDue: mustCompile(`(?:Total Amount Due|Amount Due)[\s:]*[₹$]?\s*(` + amountToken + `)`),
	},
	constants.IssuerICICI: {
		keyCardholderName: mustCompile(`(?:Cardholder Name|Name)[\s:]*(` + nameToken + `)`),
		keyCardLastFour:   mustCompile(`(?:Card No|Card Number)[\s:]*\*{4,}[\s*]*(\d{4})`),
		keyBillingPeriod:  mustCompile(`(?:Statement Period|Billing Period)[\s:]*(` + dateToken + `)\s*to\s*(` + dateToken + `)`),
		keyPaymentDueDate: mustCompile(`(?:Payment Due Date|Due Date)[\s:]*(` + dateToken + `)`),
		keyTotalAmountDue: mustCompile(`(?:Total Amount Due|Amount Due)[\s:]*[₹$]?\s*(` + amountToken + `)`),
	},
	constants.IssuerAxis: {
		keyCardholderName: mustCompile(`(?:Cardholder Name|Name)[\s:]*(` + nameToken + `)`),
		keyCardLastFour:   mustCompile(`(?:Card No|Card Number)[\s:]*\*{4,}[\s*]*(\d{4})`),
		keyBillingPeriod:  mustCompile(`(?:Statement Period|Billing Period)[\s:]*(` + dateToken + `)\s*to\s*(` + dateToken + `)`),
		keyPaymentDueDate: mustCompile(`(?:Payment Due Date|Due Date)[\s:]*(` + dateToken + `)`),
		keyTotalAmountDue: mustCompile(`(?:Total Amount Due|Amount Due)[\s:]*[₹$]?\s*(` + amountToken + `)`),
	},
	constants.IssuerCitibank: {
		keyCardholderName: mustCompile(`(?:Cardholder Name|Name)[\s:]*(` + nameToken + `)`),
		keyCardLastFour:   mustCompile(`(?:Card No|Card Number)[\s:]*\*{4,}[\s*]*(\d{4})`),
		keyBillingPeriod:  mustCompile(`(?:Statement Period|Billing Period)[\s:]*(` + dateToken + `)\s*to\s*(` + dateToken + `)`),
		keyPaymentDueDate: mustCompile(`(?:Payment Due Date|Due Date)[\s:]*(` + dateToken + `)`),
		keyTotalAmountDue: mustCompile(`(?:Total Amount Due|Amount Due)[\s:]*[₹$]?\s*(` + amountToken + `)`),
	},
}

// universalTables holds an ordered candidate list per field; the first
// pattern that matches wins (first-match, not best-match).
var universalTables = map[string][]*regexp.Regexp{
	keyCardholderName: {
		mustCompile(`(?:Name|Cardholder|Account Holder)[\s:]*(` + nameToken + `)`),
		mustCompile(`\b([A-Z][a-z]+ [A-Z][a-z]+)\b`),
	},
	keyCardLastFour: {
		mustCompile(`(?:Card No|Card Number)[\s:]*\*{4,}[\s*]*(\d{4})`),
		mustCompile(`\*{4,}[\s*]*(\d{4})`),
	},
	keyBillingPeriod: {
		mustCompile(`(?:Statement Period|Billing Period)[\s:]*(` + dateToken + `)\s*to\s*(` + dateToken + `)`),
		mustCompile(`(` + dateToken + `)\s*to\s*(` + dateToken + `)`),
	},
	keyPaymentDueDate: {
		mustCompile(`(?:Payment Due Date|Due Date)[\s:]*(` + dateToken + `)`),
		mustCompile(`(?:Due|Payment Due)[\s:]*(` + dateToken + `)`),
	},
	keyTotalAmountDue: {
		mustCompile(`(?:Total Amount Due|Amount Due|Outstanding)[\s:]*[₹$]?\s*(` + amountToken + `)`),
		mustCompile(`(?:Total|Amount)[\s:]*[₹$]?\s*(` + amountToken + `)`),
	},
}

// tableFor returns the pattern table for an issuer. Unrecognized issuers get
// the HDFC table: that default is deliberate and documented, not silent.
func tableFor(issuer string) map[string]*regexp.Regexp {
	if t, ok := issuerTables[issuer]; ok {
		return t
	}
	return issuerTables[constants.IssuerHDFC]
}
