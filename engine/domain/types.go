// Package domain defines core domain types, constants, and validation for the
// hazard analysis pipeline. It acts as the validation gate at pipeline entry points.
package domain

import "time"

// DocumentChunk is a retrievable unit of knowledge-base text.
// Similarity is only set on copies handed out by a retrieval query.
type DocumentChunk struct {
	Text       string    `json:"text"`
	Embedding  []float32 `json:"-"`
	Similarity float64   `json:"similarity,omitempty"`
}

// HasEmbedding reports whether the chunk was embedded successfully.
func (c DocumentChunk) HasEmbedding() bool { return len(c.Embedding) > 0 }

// AnalysisResult is the parsed outcome of one hazard-vs-knowledge-base analysis.
type AnalysisResult struct {
	Category         string          `json:"category"`
	Confidence       string          `json:"confidence"`
	Reasoning        string          `json:"reasoning"`
	RetrievedContext []DocumentChunk `json:"retrievedContext"`
	FullResponse     string          `json:"fullResponse"`
	ProcessingTime   int64           `json:"processingTime"` // ms
	Truncated        bool            `json:"truncated,omitempty"`
	Fallback         bool            `json:"fallback,omitempty"`
}

// KnowledgeBase is a named corpus of reference text plus its prompt template.
type KnowledgeBase struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Color          string    `json:"color"`
	Description    string    `json:"description"`
	Content        string    `json:"content"`
	PromptTemplate string    `json:"promptTemplate"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// AnalysisSpec is one knowledge base's slot in a batch request. Retrieval has
// already happened upstream; RetrievedContext is the formatted context block.
type AnalysisSpec struct {
	KnowledgeBaseID   string `json:"knowledgeBaseId"`
	KnowledgeBaseName string `json:"knowledgeBaseName"`
	Color             string `json:"color"`
	RetrievedContext  string `json:"retrievedContext"`
	PromptTemplate    string `json:"promptTemplate"`
}

// BatchRequest is the body of a batch analysis call.
type BatchRequest struct {
	HazardDescription string         `json:"hazardDescription"`
	Analyses          []AnalysisSpec `json:"analyses"`
}

// BatchItem is one knowledge base's result. Failures are encoded in-band
// with Category "Error".
type BatchItem struct {
	KnowledgeBaseID   string `json:"knowledgeBaseId"`
	KnowledgeBaseName string `json:"knowledgeBaseName"`
	Category          string `json:"category"`
	Confidence        string `json:"confidence"`
	Reasoning         string `json:"reasoning"`
	Color             string `json:"color"`
	ProcessingTime    int64  `json:"processingTime"`
	Truncated         bool   `json:"truncated,omitempty"`
}

// Failed reports whether the item carries an in-band error.
func (b BatchItem) Failed() bool { return b.Category == CategoryError }

// BatchResponse always has one result per requested analysis. Error is only
// set on top-level failure, in which case Results is empty.
type BatchResponse struct {
	Results             []BatchItem `json:"results"`
	TotalProcessingTime int64       `json:"totalProcessingTime"`
	Error               string      `json:"error,omitempty"`
}

// Succeeded counts results that are not in-band errors.
func (r BatchResponse) Succeeded() int {
	n := 0
	for _, it := range r.Results {
		if !it.Failed() {
			n++
		}
	}
	return n
}

// Generation is the raw reply of the text-generation endpoint.
type Generation struct {
	Text         string `json:"text"`
	FinishReason string `json:"finishReason,omitempty"`
}

// Truncated reports whether generation stopped at the output-token ceiling.
func (g Generation) Truncated() bool { return g.FinishReason == FinishReasonMaxTokens }

// Err returns ErrTruncated for a truncated reply and nil otherwise. A
// truncated reply is still parsed; the error only marks it as partial.
func (g Generation) Err() error {
	if g.Truncated() {
		return ErrTruncated
	}
	return nil
}

// BatchCompleted is published after a batch finishes.
type BatchCompleted struct {
	HazardID            string      `json:"hazardId"`
	HazardDescription   string      `json:"hazardDescription"`
	Results             []BatchItem `json:"results"`
	Succeeded           int         `json:"succeeded"`
	TotalProcessingTime int64       `json:"totalProcessingTime"`
	CompletedAt         time.Time   `json:"completedAt"`
}
