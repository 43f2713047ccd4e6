package constants

// Extraction method labels. Stable values (stored in DB and returned by the API).
const (
	MethodLayoutBased   = "layout_based"
	MethodRegexBased    = "regex_based"
	MethodRegexFallback = "regex_fallback"
	MethodSmartLayout   = "smart_layout"
	MethodFailed        = "failed"

	// Suffix appended by the orchestrator after AI validation.
	MethodAIValidatedSuffix = "_ai_validated"

	// Validation provider method tags.
	MethodMockAI         = "mock_ai"
	MethodOpenAI         = "openai_validation"
	MethodOpenAIFallback = "openai_fallback"
)
