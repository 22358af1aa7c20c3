package parse

import (
	"testing"

	"github.com/WessleyAI/minesafe/engine/domain"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		truncated bool
		want      Fields
	}{
		{
			name: "all labels",
			text: "KATEGORI: Foo\nCONFIDENCE: 80%\nALASAN: because X",
			want: Fields{Category: "Foo", Confidence: "80%", Reasoning: "because X"},
		},
		{
			name: "no labels",
			text: "I cannot classify this.",
			want: Fields{Category: "Unknown", Confidence: "Unknown", Reasoning: "No reasoning provided", Degraded: true},
		},
		{
			name:      "truncated with category only",
			text:      "KATEGORI: Foo",
			truncated: true,
			want:      Fields{Category: "Foo (Partial)", Confidence: "Low (Truncated)", Reasoning: "No reasoning provided", Truncated: true, Degraded: true},
		},
		{
			name:      "truncated keeps found confidence",
			text:      "KATEGORI: Foo\nCONFIDENCE: 70%\nALASAN: partial reas",
			truncated: true,
			want:      Fields{Category: "Foo (Partial)", Confidence: "70%", Reasoning: "partial reas", Truncated: true},
		},
		{
			name:      "truncated with nothing",
			text:      "",
			truncated: true,
			want:      Fields{Category: "Unknown (Partial)", Confidence: "Low (Truncated)", Reasoning: "No reasoning provided", Truncated: true, Degraded: true},
		},
		{
			name: "case insensitive and extra word",
			text: "Some preamble\nkategori bahaya: Unsafe Condition\nconfidence: High\nalasan: line one\nline two",
			want: Fields{Category: "Unsafe Condition", Confidence: "High", Reasoning: "line one\nline two"},
		},
		{
			name: "markdown bold labels",
			text: "**KATEGORI:** Unsafe Act\n**CONFIDENCE:** 90%\n**ALASAN:** operator bypassed guard",
			want: Fields{Category: "Unsafe Act", Confidence: "90%", Reasoning: "operator bypassed guard"},
		},
		{
			name: "category label must start a line",
			text: "the KATEGORI: Foo\nCONFIDENCE: 1%\nALASAN: r",
			want: Fields{Category: "Unknown", Confidence: "1%", Reasoning: "r", Degraded: true},
		},
		{
			name: "crlf line endings",
			text: "KATEGORI: Foo\r\nCONFIDENCE: 80%\r\nALASAN: x\r\n",
			want: Fields{Category: "Foo", Confidence: "80%", Reasoning: "x"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Parse(tc.text, tc.truncated); got != tc.want {
				t.Fatalf("\nwant %+v\ngot  %+v", tc.want, got)
			}
		})
	}
}

func TestPlaceholderReplyParses(t *testing.T) {
	f := Parse(PlaceholderReply("SAFETY"), false)
	if f.Category != domain.CategoryUnknown || f.Confidence != "0%" || f.Degraded {
		t.Fatalf("unexpected %+v", f)
	}
	if f.Reasoning == domain.ReasoningMissing {
		t.Fatal("placeholder should carry a reason")
	}
}

func TestCustomLabels(t *testing.T) {
	p := New(Labels{Version: "en", Category: "CATEGORY", Confidence: "CONFIDENCE", Reasoning: "REASON"})
	f := p.Parse("CATEGORY: Near Miss\nCONFIDENCE: 60%\nREASON: r", false)
	if f.Category != "Near Miss" || f.Reasoning != "r" {
		t.Fatalf("unexpected %+v", f)
	}
	if p.Labels().Version != "en" {
		t.Fatal("labels not kept")
	}
}
