package parse

import "fmt"

// PlaceholderReply is the structured stand-in used when the model returned no
// candidate content. It parses like any other reply.
func (p *Parser) PlaceholderReply(finishReason string) string {
	if finishReason == "" {
		finishReason = "none"
	}
	return fmt.Sprintf("%s: Unknown\n%s: 0%%\n%s: The model returned no content (finish reason: %s).",
		p.labels.Category, p.labels.Confidence, p.labels.Reasoning, finishReason)
}

// PlaceholderReply builds a placeholder reply using Default.
func PlaceholderReply(finishReason string) string { return Default.PlaceholderReply(finishReason) }
