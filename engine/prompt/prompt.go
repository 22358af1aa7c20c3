// Package prompt fills analysis prompt templates.
//
// Templates carry at most one {RETRIEVED_CONTEXT} and one {USER_INPUT}
// placeholder. Only the first occurrence of each is substituted; repeats are
// left verbatim.
package prompt

import (
	"fmt"
	"strings"

	"github.com/WessleyAI/minesafe/engine/domain"
)

// Compose substitutes context and userInput into template.
func Compose(template, context, userInput string) string {
	out := strings.Replace(template, domain.PlaceholderContext, context, 1)
	return strings.Replace(out, domain.PlaceholderInput, userInput, 1)
}

// FormatContext numbers chunks as "Context 1: ...", "Context 2: ..." separated
// by blank lines.
func FormatContext(chunks []domain.DocumentChunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = fmt.Sprintf("Context %d: %s", i+1, c.Text)
	}
	return strings.Join(parts, "\n\n")
}

// Placeholders reports how many times each placeholder occurs in template.
func Placeholders(template string) (context, input int) {
	return strings.Count(template, domain.PlaceholderContext), strings.Count(template, domain.PlaceholderInput)
}

// ValidateTemplate rejects templates that repeat a placeholder.
func ValidateTemplate(template string) error {
	c, in := Placeholders(template)
	if c > 1 {
		return domain.NewValidationError("promptTemplate", domain.PlaceholderContext, ErrRepeatedPlaceholder)
	}
	if in > 1 {
		return domain.NewValidationError("promptTemplate", domain.PlaceholderInput, ErrRepeatedPlaceholder)
	}
	return nil
}

// DefaultTemplate is used when a knowledge base has no stored template.
const DefaultTemplate = `You are a mining safety analyst. Classify the hazard below using only the reference context.

Reference context:
{RETRIEVED_CONTEXT}

Hazard description:
{USER_INPUT}

Answer in exactly this format:
KATEGORI: <category name from the reference>
CONFIDENCE: <0-100%>
ALASAN: <short reasoning citing the context>`
