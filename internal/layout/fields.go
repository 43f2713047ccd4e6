package layout

import (
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/nokoro/statement-tracker/constants"
	"github.com/nokoro/statement-tracker/internal/extract"
	"github.com/nokoro/statement-tracker/internal/normalize"
)

// Per-field-class confidences for layout-based extraction.
const (
	confLayoutText   = 0.85
	confLayoutDate   = 0.80
	confLayoutAmount = 0.90
)

// The cardholder name appears in the header area of every supported issuer's
// statement; scanning past this many lines only invites false positives.
const nameHeaderLines = 15

var nameKeywords = []string{"name", "cardholder", "account holder"}

var (
	reCardMasked  = regexp.MustCompile(`\*{4,}[\s*]*(\d{4})`)
	reCardLabeled = regexp.MustCompile(`(?i)(?:Card No|Card Number)[\s:]*\*{4,}[\s*]*(\d{4})`)

	rePeriodLabeled = regexp.MustCompile(`(?i)(?:Statement Period|Billing Period)[\s:]*(\d{1,2}[\/\-\.]\d{1,2}[\/\-\.]\d{2,4})\s*to\s*(\d{1,2}[\/\-\.]\d{1,2}[\/\-\.]\d{2,4})`)
	rePeriodBare    = regexp.MustCompile(`(\d{1,2}[\/\-\.]\d{1,2}[\/\-\.]\d{2,4})\s*to\s*(\d{1,2}[\/\-\.]\d{1,2}[\/\-\.]\d{2,4})`)

	reDueDate = regexp.MustCompile(`(?i)(?:Payment Due Date|Due Date|Payment Due|Due)[\s:]*(\d{1,2}[\/\-\.]\d{1,2}[\/\-\.]\d{2,4})`)

	reAmountLabeled = regexp.MustCompile(`(?i)(?:Total Amount Due|Amount Due|Outstanding)[\s:]*[₹$]?\s*([\d,]+\.?\d*)`)
	reAmountBare    = regexp.MustCompile(`(?i)(?:Total|Amount)[\s:]*[₹$]?\s*([\d,]+\.?\d*)`)
)

// scanFields runs the keyword+regex heuristics over reconstructed text and
// returns candidate fields with their fixed per-class confidences.
func scanFields(text string, log *slog.Logger) (extract.FieldSet, extract.ConfidenceMap) {
	fields := extract.NewFieldSet()

	if name, ok := findName(text); ok {
		fields[constants.FieldCardholderName] = extract.TextValue(name)
	}
	if last4, ok := findCardLastFour(text); ok {
		fields[constants.FieldCardLastFour] = extract.TextValue(last4)
	}
	start, end := findBillingPeriod(text, log)
	if start != nil {
		fields[constants.FieldBillingPeriodStart] = extract.DateValue(*start)
	}
	if end != nil {
		fields[constants.FieldBillingPeriodEnd] = extract.DateValue(*end)
	}
	if m := reDueDate.FindStringSubmatch(text); m != nil {
		if t, ok := normalize.Date(m[1]); ok {
			fields[constants.FieldPaymentDueDate] = extract.DateValue(t)
		} else {
			log.Warn("layout.date.unparseable", "token", m[1])
		}
	}
	if amt, ok := findAmount(text); ok {
		fields[constants.FieldTotalAmountDue] = amt
	}

	conf := extract.NewConfidenceMap()
	for f, v := range fields {
		if v.IsNull() {
			continue
		}
		switch {
		case constants.IsAmountField(f):
			conf[f] = confLayoutAmount
		case constants.IsDateField(f):
			conf[f] = confLayoutDate
		default:
			conf[f] = confLayoutText
		}
	}
	return fields, conf
}

// findName looks for a keyword-labeled line in the document header and takes
// the text after the colon.
func findName(text string) (string, bool) {
	lines := strings.Split(text, "\n")
	if len(lines) > nameHeaderLines {
		lines = lines[:nameHeaderLines]
	}
	for _, line := range lines {
		lower := strings.ToLower(line)
		for _, kw := range nameKeywords {
			if !strings.Contains(lower, kw) {
				continue
			}
			parts := strings.SplitN(line, ":", 2)
			if len(parts) != 2 {
				continue
			}
			name := strings.TrimSpace(parts[1])
			if len(name) > 2 {
				return name, true
			}
		}
	}
	return "", false
}

func findCardLastFour(text string) (string, bool) {
	for _, re := range []*regexp.Regexp{reCardMasked, reCardLabeled} {
		if m := re.FindStringSubmatch(text); m != nil {
			return m[1], true
		}
	}
	return "", false
}

func findBillingPeriod(text string, log *slog.Logger) (start, end *time.Time) {
	for _, re := range []*regexp.Regexp{rePeriodLabeled, rePeriodBare} {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if t, ok := normalize.Date(m[1]); ok {
			start = &t
		} else {
			log.Warn("layout.date.unparseable", "token", m[1])
		}
		if t, ok := normalize.Date(m[2]); ok {
			end = &t
		} else {
			log.Warn("layout.date.unparseable", "token", m[2])
		}
		return start, end
	}
	return nil, nil
}

func findAmount(text string) (extract.Value, bool) {
	for _, re := range []*regexp.Regexp{reAmountLabeled, reAmountBare} {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if d, ok := normalize.Amount(m[1]); ok {
			return extract.AmountValue(d), true
		}
	}
	return extract.Value{}, false
}
