package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidateHazard(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want error
	}{
		{"valid", "Dump truck parked on a slope without wheel chocks", nil},
		{"empty", "", ErrEmptyHazard},
		{"whitespace", "   \n\t", ErrEmptyHazard},
		{"too long", strings.Repeat("a", MaxHazardLength+1), ErrHazardTooLong},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateHazard(tc.in)
			if tc.want == nil {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Field != "hazardDescription" {
				t.Fatalf("expected ValidationError on hazardDescription, got %v", err)
			}
		})
	}
}

func TestValidateBatchRequest(t *testing.T) {
	if err := ValidateBatchRequest(BatchRequest{}); !errors.Is(err, ErrNoAnalyses) {
		t.Fatalf("expected ErrNoAnalyses, got %v", err)
	}
	req := BatchRequest{Analyses: []AnalysisSpec{{KnowledgeBaseID: "kb"}}}
	if err := ValidateBatchRequest(req); err != nil {
		t.Fatalf("empty hazard should be allowed in batch, got %v", err)
	}
}

func TestValidateKnowledgeBase(t *testing.T) {
	if err := ValidateKnowledgeBase(KnowledgeBase{ID: "a", Name: "A", Color: "#ff8800"}); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if err := ValidateKnowledgeBase(KnowledgeBase{ID: "a", Name: "A", Color: "orange"}); !errors.Is(err, ErrInvalidKB) {
		t.Fatalf("expected ErrInvalidKB for bad color, got %v", err)
	}
	if err := ValidateKnowledgeBase(KnowledgeBase{Name: "A"}); !errors.Is(err, ErrInvalidKB) {
		t.Fatalf("expected ErrInvalidKB for missing id, got %v", err)
	}
}

func TestErrorTypes(t *testing.T) {
	cause := errors.New("connection reset")

	ee := &EmbeddingError{Message: "request", Wrapped: cause}
	if !errors.Is(ee, cause) || !ee.Temporary() {
		t.Fatalf("embedding error should unwrap and be temporary: %v", ee)
	}
	if (&EmbeddingError{Status: 400, Message: "bad"}).Temporary() {
		t.Fatal("400 should not be temporary")
	}
	if !(&EmbeddingError{Status: 503}).Temporary() {
		t.Fatal("503 should be temporary")
	}

	ge := &GenerationError{Status: 500, Message: "boom"}
	if ge.Error() != "generation: status 500: boom" {
		t.Fatalf("unexpected message %q", ge.Error())
	}

	ae := &AnalysisError{Elapsed: 1500 * time.Millisecond, Wrapped: ge}
	var target *GenerationError
	if !errors.As(ae, &target) {
		t.Fatal("AnalysisError should unwrap to GenerationError")
	}
	if !strings.Contains(ae.Error(), "1500ms") {
		t.Fatalf("expected elapsed in message, got %q", ae.Error())
	}
}

func TestBatchResponseSucceeded(t *testing.T) {
	r := BatchResponse{Results: []BatchItem{
		{Category: "Unsafe Condition"},
		{Category: CategoryError},
		{Category: "Unsafe Act"},
	}}
	if r.Succeeded() != 2 {
		t.Fatalf("expected 2 succeeded, got %d", r.Succeeded())
	}
}

func TestGenerationTruncated(t *testing.T) {
	if !(Generation{FinishReason: "MAX_TOKENS"}).Truncated() {
		t.Fatal("MAX_TOKENS should be truncated")
	}
	if (Generation{FinishReason: "STOP"}).Truncated() {
		t.Fatal("STOP should not be truncated")
	}
	if err := (Generation{FinishReason: "MAX_TOKENS"}).Err(); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
	if err := (Generation{FinishReason: "STOP"}).Err(); err != nil {
		t.Fatalf("complete reply should have no error, got %v", err)
	}
}
