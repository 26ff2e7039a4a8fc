package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/infera-ai/infera/internal/orchestrator"
	"github.com/infera-ai/infera/internal/record"
	"github.com/infera-ai/infera/internal/tenant"
)

// analyzeTenantID is the tenant whose credentials back the direct /analyze
// bypass. The endpoint predates multi-tenancy and keeps its original single
// tenant binding.
const analyzeTenantID = 1

type classifyRequest struct {
	Message string `json:"message"`
}

// handleClassify classifies one message synchronously and persists the
// record.
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}
	ctx := r.Context()

	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "message is required"})
		return
	}

	result := s.classifier.Classify(ctx, req.Message)
	if s.metrics != nil {
		s.metrics.Classifications.WithLabelValues(result.Label).Inc()
	}

	rec := record.NewClassification(req.Message, result.Label, result.Confidence)
	s.putClassification(ctx, rec)

	writeJSON(w, http.StatusOK, rec)
}

type analyzeRequest struct {
	Message string `json:"message"`

	// Optional knobs: disable a provider or override the system prompt.
	UseNotion    *bool  `json:"use_notion,omitempty"`
	UseGitHub    *bool  `json:"use_github,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty"`
}

// handleAnalyze starts a one-shot analysis session in the background,
// bypassing the coalescer.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}
	ctx := r.Context()

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "message is required"})
		return
	}

	var creds tenant.Credentials
	if c, err := s.creds.GetCredentials(ctx, analyzeTenantID); err == nil {
		creds = *c
	} else {
		s.logger.Warn(ctx, "analyze running without tenant credentials", "error", err)
	}
	if req.UseNotion != nil && !*req.UseNotion {
		creds.NotionToken = ""
	}
	if req.UseGitHub != nil && !*req.UseGitHub {
		creds.GitHubToken = ""
	}

	orch := s.factory.NewForUser(creds)
	instructions := orchestrator.DefaultInstructions
	if req.SystemPrompt != "" {
		instructions = req.SystemPrompt
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sessionTimeout)
		defer cancel()
		s.runAnalysis(ctx, orch, req.Message, instructions)
	}()

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Análisis iniciado en background",
		"status":  "processing",
	})
}

// handleBatchStatus reports pending batches, one channel or all.
func (s *Server) handleBatchStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}

	window := s.coalescer.Window().Seconds()
	channelID := r.URL.Query().Get("channel_id")

	if channelID != "" {
		st, ok := s.coalescer.Status(channelID)
		if !ok {
			writeJSON(w, http.StatusOK, map[string]any{
				"status":                "no_batch",
				"channel_id":            channelID,
				"batch_timeout_seconds": window,
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":                 "active",
			"channel_id":             st.ChannelID,
			"channel_name":           st.ChannelName,
			"message_count":          st.Messages,
			"created_at":             st.FirstAt.UTC().Format(time.RFC3339),
			"seconds_since_creation": time.Since(st.FirstAt).Seconds(),
			"seconds_remaining":      st.SecondsRemaining,
			"batch_timeout_seconds":  window,
		})
		return
	}

	all := s.coalescer.StatusAll()
	batches := make([]map[string]any, 0, len(all))
	for _, st := range all {
		batches = append(batches, map[string]any{
			"channel_id":             st.ChannelID,
			"channel_name":           st.ChannelName,
			"message_count":          st.Messages,
			"created_at":             st.FirstAt.UTC().Format(time.RFC3339),
			"seconds_since_creation": time.Since(st.FirstAt).Seconds(),
			"seconds_remaining":      st.SecondsRemaining,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"active_batches":        batches,
		"count":                 len(batches),
		"batch_timeout_seconds": window,
	})
}

// handleForceFlush flushes one channel's batch immediately.
func (s *Server) handleForceFlush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}

	channelID := r.URL.Query().Get("channel_id")
	if channelID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "channel_id is required"})
		return
	}

	if !s.coalescer.ForceFlush(channelID) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": false, "reason": "no active batch"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "channel_id": channelID})
}
