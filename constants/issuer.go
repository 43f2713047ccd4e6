package constants

import "strings"

// Issuer keys select a pattern table in the regex extractor.
const (
	IssuerHDFC     = "hdfc"
	IssuerSBI      = "sbi"
	IssuerICICI    = "icici"
	IssuerAxis     = "axis"
	IssuerCitibank = "citibank"
)

var knownIssuers = map[string]struct{}{
	IssuerHDFC:     {},
	IssuerSBI:      {},
	IssuerICICI:    {},
	IssuerAxis:     {},
	IssuerCitibank: {},
}

// NormalizeIssuer lowercases and trims an issuer hint. The second return
// reports whether the issuer is one of the known keys; unknown issuers fall
// through to the universal extractor or the HDFC default table.
func NormalizeIssuer(input string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(input))
	if key == "" {
		return "", false
	}
	_, ok := knownIssuers[key]
	return key, ok
}
