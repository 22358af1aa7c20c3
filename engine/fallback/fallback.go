// Package fallback classifies a hazard locally by keyword when the model
// path is unavailable, so the caller always gets an answer.
package fallback

import (
	"fmt"
	"strings"

	"github.com/WessleyAI/minesafe/engine/domain"
)

// Rule maps a category to the keywords that vote for it.
type Rule struct {
	Category string
	Keywords []string
}

// DefaultRules cover the unsafe act / unsafe condition split, in English and
// Indonesian.
var DefaultRules = []Rule{
	{
		Category: "Unsafe Act",
		Keywords: []string{
			"not wearing", "without ppe", "no ppe", "bypass", "speeding", "overspeed",
			"phone", "unauthorized", "shortcut", "horseplay", "sleeping", "fatigue",
			"tidak memakai", "tanpa apd", "melanggar", "ngebut", "tidur", "tanpa izin",
		},
	},
	{
		Category: "Unsafe Condition",
		Keywords: []string{
			"damaged", "broken", "loose", "leak", "slippery", "missing guard", "no guard",
			"poor lighting", "crack", "collapsed", "unstable", "flooded", "worn",
			"rusak", "bocor", "licin", "retak", "longsor", "gelap", "tidak stabil",
		},
	},
}

// Classifier scores hazards against a rule set.
type Classifier struct {
	rules []Rule
}

// New creates a Classifier. With no rules it uses DefaultRules.
func New(rules ...Rule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &Classifier{rules: rules}
}

var defaultClassifier = New()

// Classify uses the default rules.
func Classify(hazard string) domain.AnalysisResult {
	return defaultClassifier.Classify(hazard)
}

// Classify picks the category with the most keyword hits. Ties go to the
// earlier rule; no hits yields "Unknown".
func (c *Classifier) Classify(hazard string) domain.AnalysisResult {
	text := strings.ToLower(hazard)
	best, bestHits := -1, []string(nil)
	for i, r := range c.rules {
		var hits []string
		for _, kw := range r.Keywords {
			if strings.Contains(text, kw) {
				hits = append(hits, kw)
			}
		}
		if len(hits) > len(bestHits) {
			best, bestHits = i, hits
		}
	}

	res := domain.AnalysisResult{
		Category:         domain.CategoryUnknown,
		Confidence:       domain.ConfidenceFallback,
		Reasoning:        "Keyword classification: no known keywords matched.",
		RetrievedContext: []domain.DocumentChunk{},
		Fallback:         true,
	}
	if best >= 0 {
		res.Category = c.rules[best].Category
		res.Reasoning = fmt.Sprintf("Keyword classification: matched %s.", strings.Join(quote(bestHits), ", "))
	}
	res.FullResponse = fmt.Sprintf("KATEGORI: %s\nCONFIDENCE: %s\nALASAN: %s", res.Category, res.Confidence, res.Reasoning)
	return res
}

func quote(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = fmt.Sprintf("%q", s)
	}
	return out
}
