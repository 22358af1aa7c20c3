package fallback

import (
	"strings"
	"testing"

	"github.com/WessleyAI/minesafe/engine/domain"
	"github.com/WessleyAI/minesafe/engine/parse"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"act", "Operator seen NOT WEARING a helmet near the crusher", "Unsafe Act"},
		{"condition", "Berm on the haul road is damaged and loose rock on the ramp", "Unsafe Condition"},
		{"indonesian", "Jalan tambang licin dan retak setelah hujan", "Unsafe Condition"},
		{"nothing", "Weekly toolbox meeting held", domain.CategoryUnknown},
		{"empty", "", domain.CategoryUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.in)
			if got.Category != tc.want {
				t.Fatalf("category = %q, want %q", got.Category, tc.want)
			}
			if !got.Fallback || got.Confidence != domain.ConfidenceFallback {
				t.Fatalf("fallback result not marked: %+v", got)
			}
			if got.RetrievedContext == nil {
				t.Fatal("retrieved context should be an empty slice")
			}
		})
	}
}

func TestClassifyTieGoesToEarlierRule(t *testing.T) {
	c := New(Rule{Category: "A", Keywords: []string{"x"}}, Rule{Category: "B", Keywords: []string{"y"}})
	if got := c.Classify("x and y"); got.Category != "A" {
		t.Fatalf("expected tie to go to A, got %q", got.Category)
	}
}

func TestFullResponseParsesBack(t *testing.T) {
	res := Classify("worker bypass the interlock")
	f := parse.Parse(res.FullResponse, false)
	if f.Category != res.Category || f.Confidence != res.Confidence {
		t.Fatalf("full response does not round trip: %+v", f)
	}
	if !strings.Contains(res.Reasoning, `"bypass"`) {
		t.Fatalf("expected matched keyword in reasoning, got %q", res.Reasoning)
	}
}
