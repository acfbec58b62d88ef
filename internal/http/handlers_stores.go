package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"splitlens/internal/core"
	"splitlens/internal/session"
)

type mergeRequest struct {
	Group1 core.StoreGrouping `json:"group1"`
	Group2 core.StoreGrouping `json:"group2"`
}

type splitRequest struct {
	Group        core.StoreGrouping `json:"group"`
	NamesToSplit []string           `json:"namesToSplit"`
}

func (s *Server) handleSimilarStores(w http.ResponseWriter, r *http.Request) {
	s.serveCached(w, r, func() (any, error) {
		return s.sessions.AnalyzeSimilarStores(r.Context(), r.PathValue("id"))
	})
}

// handleApplyMappings persists a confirmed {canonical: [variations]}
// mapping and rewrites the session's transactions.
func (s *Server) handleApplyMappings(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var mapping core.StoreMapping
	if err := json.NewDecoder(r.Body).Decode(&mapping); err != nil {
		writeError(w, http.StatusBadRequest, "invalid mapping body")
		return
	}

	sess, err := s.sessions.ApplyMappings(r.Context(), id, mapping)
	if err != nil {
		s.writeStoreError(w, r, id, "Apply mappings failed", err)
		return
	}

	s.respCache.DeletePrefix(id + "|")
	writeJSON(w, http.StatusOK, summarizeSession(sess))
}

func (s *Server) handleMergeStores(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req mergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid merge body")
		return
	}
	if req.Group1.CanonicalName == "" || req.Group2.CanonicalName == "" {
		writeError(w, http.StatusBadRequest, "both groups need a canonical name")
		return
	}

	merged, err := s.sessions.MergeStores(r.Context(), id, req.Group1, req.Group2)
	if err != nil {
		s.writeStoreError(w, r, id, "Merge stores failed", err)
		return
	}

	s.respCache.DeletePrefix(id + "|")
	writeJSON(w, http.StatusOK, merged)
}

func (s *Server) handleSplitStores(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req splitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid split body")
		return
	}
	if req.Group.CanonicalName == "" {
		writeError(w, http.StatusBadRequest, "group needs a canonical name")
		return
	}

	res, err := s.sessions.SplitStores(r.Context(), id, req.Group, req.NamesToSplit)
	if err != nil {
		s.writeStoreError(w, r, id, "Split stores failed", err)
		return
	}

	s.respCache.DeletePrefix(id + "|")
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, sessionID, msg string, err error) {
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	slog.ErrorContext(r.Context(), msg, "session_id", sessionID, "error", err)
	writeError(w, http.StatusInternalServerError, "store operation failed")
}
