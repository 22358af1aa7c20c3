package domain

// Placeholders and markers shared by the parser and the orchestrators.
const (
	CategoryUnknown     = "Unknown"
	CategoryError       = "Error"
	ConfidenceUnknown   = "Unknown"
	ConfidenceFailed    = "0%"
	ConfidenceTruncated = "Low (Truncated)"
	ConfidenceFallback  = "Low (Fallback)"
	ReasoningMissing    = "No reasoning provided"
	PartialSuffix       = " (Partial)"

	NoContextPlaceholder = "No specific context retrieved from knowledge base."
	NoHazardPlaceholder  = "No hazard description provided."

	// FinishReasonMaxTokens is the finish reason reported when output hit the token ceiling.
	FinishReasonMaxTokens = "MAX_TOKENS"

	PlaceholderContext = "{RETRIEVED_CONTEXT}"
	PlaceholderInput   = "{USER_INPUT}"
)
