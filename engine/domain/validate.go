package domain

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxHazardLength bounds the hazard description sent to the model (in runes).
const MaxHazardLength = 8000

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// ValidateHazard checks a hazard description at the single-analysis entry point.
func ValidateHazard(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return NewValidationError("hazardDescription", text, ErrEmptyHazard)
	}
	if utf8.RuneCountInString(text) > MaxHazardLength {
		return NewValidationError("hazardDescription", truncateForError(text), ErrHazardTooLong)
	}
	return nil
}

// ValidateBatchRequest checks the shape of a batch request. An empty hazard is
// allowed here; the batch orchestrator substitutes a placeholder for it.
func ValidateBatchRequest(req BatchRequest) error {
	if len(req.Analyses) == 0 {
		return NewValidationError("analyses", "", ErrNoAnalyses)
	}
	if utf8.RuneCountInString(req.HazardDescription) > MaxHazardLength {
		return NewValidationError("hazardDescription", truncateForError(req.HazardDescription), ErrHazardTooLong)
	}
	return nil
}

// ValidateKnowledgeBase checks a knowledge base record before it is served.
func ValidateKnowledgeBase(kb KnowledgeBase) error {
	if strings.TrimSpace(kb.ID) == "" {
		return NewValidationError("id", kb.ID, ErrInvalidKB)
	}
	if strings.TrimSpace(kb.Name) == "" {
		return NewValidationError("name", kb.Name, ErrInvalidKB)
	}
	if kb.Color != "" && !hexColor.MatchString(kb.Color) {
		return NewValidationError("color", kb.Color, ErrInvalidKB)
	}
	return nil
}

func truncateForError(s string) string {
	const keep = 40
	if utf8.RuneCountInString(s) <= keep {
		return s
	}
	return string([]rune(s)[:keep]) + "..."
}
