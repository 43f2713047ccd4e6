// Package pattern extracts statement fields from raw text using per-issuer
// regex tables, with a universal ordered-pattern variant for documents whose
// issuer is unknown.
package pattern

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/nokoro/statement-tracker/constants"
	"github.com/nokoro/statement-tracker/internal/extract"
	"github.com/nokoro/statement-tracker/internal/normalize"
)

// Confidence tiers for a successful match. These are fixed, stage-specific
// constants, not learned probabilities.
const (
	confText   = 0.8
	confDate   = 0.7
	confAmount = 0.9
)

// Result is the outcome of one pattern extraction pass.
type Result struct {
	Fields     extract.FieldSet
	Confidence extract.ConfidenceMap
	Method     string
	Steps      extract.StepLog
}

// Matcher is the interface the orchestrator depends on for the regex stage.
type Matcher interface {
	Extract(text string) Result
}

// Extractor applies a fixed issuer pattern table to raw text.
type Extractor struct {
	issuer string
	table  map[string]*regexp.Regexp
	log    *slog.Logger
}

// NewExtractor builds an extractor for the given issuer key (lower-cased).
// Unrecognized issuers use the HDFC table.
func NewExtractor(issuer string, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	key, _ := constants.NormalizeIssuer(issuer)
	if key == "" {
		key = constants.IssuerHDFC
	}
	return &Extractor{issuer: key, table: tableFor(key), log: logger}
}

// ForIssuer returns the issuer-specific extractor when a hint is present,
// else the universal variant.
func ForIssuer(issuer string, logger *slog.Logger) Matcher {
	if strings.TrimSpace(issuer) != "" {
		return NewExtractor(issuer, logger)
	}
	return NewUniversalExtractor(logger)
}

// Extract runs every field pattern against the cleaned text. Each field
// independently reports matched or unmatched in the step log; a field-level
// parse failure never fails the whole extraction.
func (e *Extractor) Extract(text string) Result {
	res := Result{
		Fields:     extract.NewFieldSet(),
		Confidence: extract.NewConfidenceMap(),
		Method:     "regex_" + e.issuer,
	}

	text = cleanText(text)

	for _, key := range tableKeys {
		re := e.table[key]
		m := re.FindStringSubmatch(text)
		if m == nil {
			res.Steps.Add("regex", key, "no match for pattern: "+re.String())
			continue
		}
		applyMatch(&res, key, m, e.log)
		res.Steps.Add("regex", key, "matched pattern: "+re.String())
	}

	scoreFields(&res)
	return res
}

// applyMatch converts a regex match into typed field values.
func applyMatch(res *Result, key string, m []string, log *slog.Logger) {
	switch key {
	case keyBillingPeriod:
		if t, ok := normalize.Date(m[1]); ok {
			res.Fields[constants.FieldBillingPeriodStart] = extract.DateValue(t)
		} else {
			log.Warn("pattern.date.unparseable", "field", constants.FieldBillingPeriodStart, "token", m[1])
		}
		if t, ok := normalize.Date(m[2]); ok {
			res.Fields[constants.FieldBillingPeriodEnd] = extract.DateValue(t)
		} else {
			log.Warn("pattern.date.unparseable", "field", constants.FieldBillingPeriodEnd, "token", m[2])
		}
	case keyPaymentDueDate:
		if t, ok := normalize.Date(m[1]); ok {
			res.Fields[constants.FieldPaymentDueDate] = extract.DateValue(t)
		} else {
			log.Warn("pattern.date.unparseable", "field", constants.FieldPaymentDueDate, "token", m[1])
		}
	case keyTotalAmountDue:
		if d, ok := normalize.Amount(m[1]); ok {
			res.Fields[constants.FieldTotalAmountDue] = extract.AmountValue(d)
		} else {
			log.Warn("pattern.amount.unparseable", "token", m[1])
		}
	case keyCardholderName:
		res.Fields[constants.FieldCardholderName] = extract.TextValue(strings.TrimSpace(m[1]))
	case keyCardLastFour:
		res.Fields[constants.FieldCardLastFour] = extract.TextValue(strings.TrimSpace(m[1]))
	}
}

// scoreFields assigns the per-field confidence tier for every non-null value.
func scoreFields(res *Result) {
	for f, v := range res.Fields {
		if v.IsNull() {
			res.Confidence[f] = 0.0
			continue
		}
		switch {
		case constants.IsAmountField(f):
			res.Confidence[f] = confAmount
		case constants.IsDateField(f):
			res.Confidence[f] = confDate
		default:
			res.Confidence[f] = confText
		}
	}
}

var (
	reSpaces = regexp.MustCompile(`[ \t]+`)
	// Safe charset for matching: word chars, whitespace, and the separators
	// and markers statement labels use. Colons and mask asterisks are kept,
	// the patterns anchor on them.
	reUnsafe = regexp.MustCompile(`[^\w\s.,:\-/*₹$&]`)
)

// cleanText collapses horizontal whitespace and strips characters outside the
// safe charset. Newlines are preserved so label captures stop at line ends.
func cleanText(text string) string {
	text = reUnsafe.ReplaceAllString(text, "")
	text = reSpaces.ReplaceAllString(text, " ")
	lines := strings.Split(text, "\n")
	for i, ln := range lines {
		lines[i] = strings.TrimSpace(ln)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
