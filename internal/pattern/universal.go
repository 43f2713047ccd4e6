package pattern

import (
	"log/slog"

	"github.com/nokoro/statement-tracker/internal/extract"
)

// UniversalExtractor tries an ordered list of candidate patterns per field
// and takes the first that matches. It covers documents without an issuer
// hint, trading precision for recall.
type UniversalExtractor struct {
	log *slog.Logger
}

func NewUniversalExtractor(logger *slog.Logger) *UniversalExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &UniversalExtractor{log: logger}
}

// Extract applies the universal pattern lists. First match wins per field;
// unmatched fields stay null with zero confidence.
func (u *UniversalExtractor) Extract(text string) Result {
	res := Result{
		Fields:     extract.NewFieldSet(),
		Confidence: extract.NewConfidenceMap(),
		Method:     "universal_regex",
	}

	text = cleanText(text)

	for _, key := range tableKeys {
		matched := false
		for _, re := range universalTables[key] {
			m := re.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			applyMatch(&res, key, m, u.log)
			res.Steps.Add("regex", key, "matched pattern: "+re.String())
			matched = true
			break
		}
		if !matched {
			res.Steps.Add("regex", key, "no pattern matched")
		}
	}

	scoreFields(&res)
	return res
}
