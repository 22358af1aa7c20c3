package graph

import "time"

// Hazard is one analysed hazard description.
type Hazard struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	Succeeded   int64     `json:"succeeded"`
	Total       int64     `json:"total"`
	TotalMs     int64     `json:"totalProcessingTime"`
}

// Assessment is the ASSESSED_BY edge between a hazard and a knowledge base.
type Assessment struct {
	KnowledgeBaseID   string `json:"knowledgeBaseId"`
	KnowledgeBaseName string `json:"knowledgeBaseName"`
	Category          string `json:"category"`
	Confidence        string `json:"confidence"`
	ProcessingMs      int64  `json:"processingTime"`
	Truncated         bool   `json:"truncated,omitempty"`
}

// HazardRecord is a hazard with all of its assessments.
type HazardRecord struct {
	Hazard
	Assessments []Assessment `json:"assessments"`
}

// CategoryCount is how often a knowledge base assigned a category.
type CategoryCount struct {
	KnowledgeBaseID string `json:"knowledgeBaseId"`
	Category        string `json:"category"`
	Count           int64  `json:"count"`
}
