package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/WessleyAI/minesafe/engine/domain"
	"github.com/WessleyAI/minesafe/engine/fallback"
	"github.com/WessleyAI/minesafe/engine/graph"
	"github.com/WessleyAI/minesafe/engine/index"
	"github.com/WessleyAI/minesafe/engine/kbstore"
	"github.com/WessleyAI/minesafe/engine/prompt"
	"github.com/WessleyAI/minesafe/engine/rag"
	"github.com/WessleyAI/minesafe/pkg/metrics"
)

// kbStore is the knowledge-base store as the handlers see it.
type kbStore interface {
	kbstore.Store
	Invalidate(id string)
}

type analyzer interface {
	Analyze(ctx context.Context, ix *index.Index, hazard, kbText, template string) (*domain.AnalysisResult, error)
}

type batchRunner interface {
	Run(ctx context.Context, req domain.BatchRequest) domain.BatchResponse
}

type history interface {
	RecentHazards(ctx context.Context, limit int) ([]graph.HazardRecord, error)
	CategoryCounts(ctx context.Context, kbID string) ([]graph.CategoryCount, error)
}

// server holds the handler dependencies. history may be nil when Neo4j is
// not configured.
type server struct {
	kbs       kbStore
	indexes   *index.Registry
	svc       analyzer
	batch     batchRunner
	retriever rag.Retriever
	history   history
	metrics   *metrics.Analysis
	topK      int
	logger    *slog.Logger
}

func (s *server) routes(reg *metrics.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("GET /api/knowledge-bases", s.handleListKBs)
	mux.HandleFunc("PUT /api/knowledge-bases/{id}/prompt", s.handleSavePrompt)
	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /api/batch-analysis", s.handleBatch)
	mux.HandleFunc("POST /api/assess", s.handleAssess)
	mux.HandleFunc("GET /api/hazards/recent", s.handleRecent)
	mux.HandleFunc("GET /api/stats/categories", s.handleCategoryCounts)
	if reg != nil {
		mux.Handle("GET /metrics", reg.Handler())
	}
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps domain errors to HTTP codes.
func statusFor(err error) int {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, prompt.ErrRepeatedPlaceholder):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleListKBs(w http.ResponseWriter, r *http.Request) {
	kbs, err := s.kbs.List(r.Context())
	if err != nil {
		s.logger.Error("list knowledge bases failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, kbs)
}

// SavePromptRequest is the JSON body for PUT /api/knowledge-bases/{id}/prompt.
type SavePromptRequest struct {
	PromptTemplate string `json:"promptTemplate"`
}

func (s *server) handleSavePrompt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req SavePromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := prompt.ValidateTemplate(req.PromptTemplate); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	kb, err := s.kbs.SavePromptTemplate(r.Context(), id, req.PromptTemplate)
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			s.logger.Error("save prompt failed", "kb", id, "err", err)
		}
		writeError(w, statusFor(err), err.Error())
		return
	}
	s.kbs.Invalidate(id)
	s.indexes.Invalidate(id)
	writeJSON(w, http.StatusOK, kb)
}

// AnalyzeRequest is the JSON body for POST /api/analyze.
type AnalyzeRequest struct {
	HazardDescription string `json:"hazardDescription"`
	KnowledgeBaseID   string `json:"knowledgeBaseId"`
}

func (s *server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := domain.ValidateHazard(req.HazardDescription); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	kb, err := s.kbs.Get(r.Context(), req.KnowledgeBaseID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	res, err := s.svc.Analyze(r.Context(), s.indexes.Get(kb.ID), req.HazardDescription, kb.Content, kb.PromptTemplate)
	if err != nil {
		s.logger.Warn("analysis failed, using keyword fallback", "kb", kb.ID, "err", err)
		fb := fallback.Classify(req.HazardDescription)
		var ae *domain.AnalysisError
		if errors.As(err, &ae) {
			fb.ProcessingTime = ae.Elapsed.Milliseconds()
		}
		if s.metrics != nil {
			s.metrics.Fallbacks.Inc()
		}
		res = &fb
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req domain.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, domain.BatchResponse{Results: []domain.BatchItem{}, Error: "invalid request body"})
		return
	}
	resp := s.batch.Run(r.Context(), req)
	if resp.Error != "" {
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// AssessRequest is the JSON body for POST /api/assess. An empty
// KnowledgeBaseIDs assesses against every knowledge base.
type AssessRequest struct {
	HazardDescription string   `json:"hazardDescription"`
	KnowledgeBaseIDs  []string `json:"knowledgeBaseIds"`
}

// handleAssess retrieves context for each knowledge base, then runs the batch.
func (s *server) handleAssess(w http.ResponseWriter, r *http.Request) {
	var req AssessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, domain.BatchResponse{Results: []domain.BatchItem{}, Error: "invalid request body"})
		return
	}
	if err := domain.ValidateHazard(req.HazardDescription); err != nil {
		writeJSON(w, http.StatusBadRequest, domain.BatchResponse{Results: []domain.BatchItem{}, Error: err.Error()})
		return
	}
	kbs, err := kbstore.GetMany(r.Context(), s.kbs, req.KnowledgeBaseIDs)
	if err != nil {
		writeJSON(w, statusFor(err), domain.BatchResponse{Results: []domain.BatchItem{}, Error: err.Error()})
		return
	}
	batch := rag.Prepare(r.Context(), s.retriever, req.HazardDescription, kbs, s.topK, s.logger)
	resp := s.batch.Run(r.Context(), batch)
	if resp.Error != "" {
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleRecent(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history store not configured")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	out, err := s.history.RecentHazards(ctx, limit)
	if err != nil {
		s.logger.Error("recent hazards failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) handleCategoryCounts(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history store not configured")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	out, err := s.history.CategoryCounts(ctx, r.URL.Query().Get("kb"))
	if err != nil {
		s.logger.Error("category counts failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, out)
}
