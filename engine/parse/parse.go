// Package parse extracts labelled fields from free-form model replies.
//
// Extraction is best effort: a missing label degrades to a placeholder value
// and never fails. Label literals are versioned so a reply format change
// ships as a new Labels value rather than an edited one.
package parse

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/WessleyAI/minesafe/engine/domain"
)

// Labels is one versioned set of field labels the model is prompted to emit.
type Labels struct {
	Version    string
	Category   string
	Confidence string
	Reasoning  string
}

// LabelsV1 is the label set used by the mining knowledge-base templates.
var LabelsV1 = Labels{
	Version:    "v1",
	Category:   "KATEGORI",
	Confidence: "CONFIDENCE",
	Reasoning:  "ALASAN",
}

// Fields is the structured part of a reply.
type Fields struct {
	Category   string
	Confidence string
	Reasoning  string
	Truncated  bool
	// Degraded is set when at least one label was missing.
	Degraded bool
}

// Parser extracts Fields using one Labels set.
type Parser struct {
	labels     Labels
	category   *regexp.Regexp
	confidence *regexp.Regexp
	reasoning  *regexp.Regexp
}

// New compiles a Parser for labels.
func New(labels Labels) *Parser {
	c := regexp.QuoteMeta(labels.Category)
	f := regexp.QuoteMeta(labels.Confidence)
	r := regexp.QuoteMeta(labels.Reasoning)
	return &Parser{
		labels: labels,
		// Line starting with the label, optionally followed by one more word.
		category:   regexp.MustCompile(fmt.Sprintf(`(?im)^[\s*#]*%s(?:[ \t]+[^\s:]+)?[ \t]*\**[ \t]*:[ \t]*(.+)$`, c)),
		confidence: regexp.MustCompile(fmt.Sprintf(`(?im)%s[ \t]*\**[ \t]*:[ \t]*(.+)$`, f)),
		reasoning:  regexp.MustCompile(fmt.Sprintf(`(?is)%s[ \t]*\**[ \t]*:\s*(.+)`, r)),
	}
}

// Labels returns the label set the parser was built with.
func (p *Parser) Labels() Labels { return p.labels }

// Default parses LabelsV1.
var Default = New(LabelsV1)

// Parse extracts fields from text using Default.
func Parse(text string, truncated bool) Fields { return Default.Parse(text, truncated) }

// Parse extracts fields from text. When truncated is set the category is
// marked partial and a missing confidence becomes the truncated marker.
func (p *Parser) Parse(text string, truncated bool) Fields {
	category, okCat := match(p.category, text)
	confidence, okConf := match(p.confidence, text)
	reasoning, okReason := match(p.reasoning, text)

	f := Fields{
		Category:   category,
		Confidence: confidence,
		Reasoning:  reasoning,
		Truncated:  truncated,
		Degraded:   !okCat || !okConf || !okReason,
	}
	if !okCat {
		f.Category = domain.CategoryUnknown
	}
	if !okConf {
		f.Confidence = domain.ConfidenceUnknown
		if truncated {
			f.Confidence = domain.ConfidenceTruncated
		}
	}
	if !okReason {
		f.Reasoning = domain.ReasoningMissing
	}
	if truncated {
		f.Category += domain.PartialSuffix
	}
	return f
}

func match(re *regexp.Regexp, text string) (string, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	v := strings.Trim(m[1], " \t\r\n*")
	return v, v != ""
}
