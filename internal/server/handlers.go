package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/kotae/internal/metrics"
	"github.com/hyperjump/kotae/internal/models"
	"go.uber.org/zap"
)

const (
	greeting   = "Chatbot server"
	maxBodyLen = 1 << 20
)

// Response messages for failed chat requests.
const (
	msgInvalidRequest = "Invalid request"
	msgRateLimited    = "Rate limited, try again later"
	msgFailedToAnswer = "Failed to answer"
)

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type chatResponse struct {
	Success        bool   `json:"success"`
	Answer         string `json:"answer,omitempty"`
	Message        string `json:"message,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(greeting))
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyLen)).Decode(&req); err != nil ||
		strings.TrimSpace(req.Message) == "" {
		s.metrics.ObserveChat(metrics.OutcomeInvalid, time.Since(start))
		s.respondJSON(w, http.StatusBadRequest, chatResponse{Message: msgInvalidRequest})
		return
	}
	ctx := r.Context()

	var history []models.ChatMessage
	if req.ConversationID != "" && s.store != nil {
		var err error
		history, err = s.store.History(ctx, req.ConversationID)
		if err != nil {
			s.logger.Error("load conversation failed", zap.String("conversation_id", req.ConversationID), zap.Error(err))
			s.metrics.ObserveChat(metrics.OutcomeError, time.Since(start))
			s.respondJSON(w, http.StatusInternalServerError, chatResponse{Message: msgFailedToAnswer})
			return
		}
	}
	question := models.ChatMessage{Role: models.RoleHuman, Content: req.Message}
	messages := append(history, question)

	s.logger.Debug("chat request",
		zap.String("conversation_id", req.ConversationID),
		zap.Int("history", len(history)),
	)
	answer, err := s.engine.Ask(ctx, messages)
	if err != nil {
		// The request was already validated, so an ErrInvalidInput here came
		// from a provider rejecting a call and is reported like any other failure.
		status, outcome, msg := http.StatusInternalServerError, metrics.OutcomeError, msgFailedToAnswer
		if errors.Is(err, models.ErrRateLimited) {
			status, outcome, msg = http.StatusTooManyRequests, metrics.OutcomeRateLimited, msgRateLimited
		}
		s.logger.Error("chat failed", zap.Error(err))
		s.metrics.ObserveChat(outcome, time.Since(start))
		s.respondJSON(w, status, chatResponse{Message: msg, ConversationID: req.ConversationID})
		return
	}

	if req.ConversationID != "" && s.store != nil {
		reply := models.ChatMessage{Role: models.RoleAssistant, Content: answer.Text}
		if err := s.store.Append(ctx, req.ConversationID, question, reply); err != nil {
			s.logger.Warn("failed to persist conversation", zap.String("conversation_id", req.ConversationID), zap.Error(err))
		}
	}
	s.metrics.ObserveChat(metrics.OutcomeOK, time.Since(start))
	s.respondJSON(w, http.StatusOK, chatResponse{
		Success:        true,
		Answer:         answer.Text,
		ConversationID: req.ConversationID,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	index := s.engine.Index()
	resp := map[string]interface{}{
		"index": map[string]int{
			"passages":   index.Size(),
			"dimensions": index.Dimensions(),
		},
		"model": s.engine.ModelName(),
	}
	if s.store != nil {
		convs, err := s.store.CountConversations(ctx)
		if err != nil {
			s.logger.Error("status: count conversations failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		msgs, err := s.store.CountMessages(ctx)
		if err != nil {
			s.logger.Error("status: count messages failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp["conversations"] = convs
		resp["messages"] = msgs
		if du, ok := s.store.(interface{ DiskUsageBytes() (int64, error) }); ok {
			if n, err := du.DiskUsageBytes(); err == nil {
				resp["disk_usage_bytes"] = n
			}
		}
	}

	if s.config != nil {
		resp["config"] = map[string]interface{}{
			"document":           s.config.Document.Path,
			"embedding_provider": s.config.Embedding.Provider,
			"embedding_model":    s.config.Embedding.Model,
			"llm_provider":       s.config.LLM.Provider,
			"chunk_size":         s.config.Chunking.ChunkSize,
			"chunk_overlap":      s.config.Chunking.ChunkOverlap,
			"top_k":              s.config.Retrieval.TopK,
			"database_path":      s.config.Storage.DatabasePath,
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.respondError(w, http.StatusNotImplemented, "conversations not enabled")
		return
	}
	id := chi.URLParam(r, "id")
	msgs, err := s.store.History(r.Context(), id)
	if err != nil {
		s.logger.Error("load conversation failed", zap.String("conversation_id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(msgs) == 0 {
		s.respondError(w, http.StatusNotFound, "conversation not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"id": id, "messages": msgs})
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.respondError(w, http.StatusNotImplemented, "conversations not enabled")
		return
	}
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete conversation request", zap.String("conversation_id", id))
	if err := s.store.Delete(r.Context(), id); err != nil {
		s.logger.Error("deletion failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
