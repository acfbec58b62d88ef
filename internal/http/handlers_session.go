package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sort"

	"splitlens/internal/core"
	"splitlens/internal/session"
)

// maxUploadBytes bounds CSV uploads at 16 MiB.
const maxUploadBytes = 16 << 20

type sessionSummaryResponse struct {
	ID            string            `json:"id"`
	CreatedAt     string            `json:"createdAt"`
	UpdatedAt     string            `json:"updatedAt"`
	Transactions  int               `json:"transactions"`
	People        []string          `json:"people"`
	FirstDate     string            `json:"firstDate,omitempty"`
	LastDate      string            `json:"lastDate,omitempty"`
	StoreMappings core.StoreMapping `json:"storeMappings"`
}

type importResponse struct {
	SessionID    string   `json:"sessionId"`
	Transactions int      `json:"transactions"`
	SkippedRows  int      `json:"skippedRows"`
	People       []string `json:"people"`
}

// handleCreateSession accepts a multipart CSV upload. With async=1 the
// payload is queued and a job is returned; otherwise the CSV is parsed
// inline and the new session returned.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	if r.FormValue("async") == "1" {
		payload, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, "read upload")
			return
		}

		job, err := s.sessions.EnqueueImport(r.Context(), header.Filename, payload)
		if err != nil {
			slog.ErrorContext(r.Context(), "Enqueue import failed", "error", err)
			writeError(w, http.StatusInternalServerError, "enqueue import")
			return
		}

		writeJSON(w, http.StatusAccepted, job)
		return
	}

	sess, result, err := s.sessions.ImportCSV(r.Context(), file)
	if err != nil {
		slog.WarnContext(r.Context(), "CSV import rejected", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.structured.LogImportCompleted(r.Context(), sess.ID, "", header.Filename, len(sess.Transactions), result.SkippedRows)

	writeJSON(w, http.StatusCreated, importResponse{
		SessionID:    sess.ID,
		Transactions: len(sess.Transactions),
		SkippedRows:  result.SkippedRows,
		People:       result.People,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, summarizeSession(sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.sessions.DeleteSession(r.Context(), id); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		slog.ErrorContext(r.Context(), "Delete session failed", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "delete session")
		return
	}

	s.respCache.DeletePrefix(id + "|")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("jobID")
	job, err := s.sessions.ImportJobStatus(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, session.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "import job not found")
			return
		}
		slog.ErrorContext(r.Context(), "Import status failed", "job_id", jobID, "error", err)
		writeError(w, http.StatusInternalServerError, "import status")
		return
	}

	writeJSON(w, http.StatusOK, job)
}

// loadSession resolves the {id} path parameter, writing the error
// response itself when the session cannot be served.
func (s *Server) loadSession(w http.ResponseWriter, r *http.Request) (session.Session, bool) {
	id := r.PathValue("id")
	sess, err := s.sessions.GetSession(r.Context(), id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
		} else {
			slog.ErrorContext(r.Context(), "Load session failed", "session_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "load session")
		}
		return session.Session{}, false
	}
	return sess, true
}

func summarizeSession(sess session.Session) sessionSummaryResponse {
	people := make(map[string]struct{})
	first, last := "", ""
	for _, tx := range sess.Transactions {
		for _, share := range tx.Shares {
			people[share.Name] = struct{}{}
		}
		if first == "" || tx.Date < first {
			first = tx.Date
		}
		if tx.Date > last {
			last = tx.Date
		}
	}

	names := make([]string, 0, len(people))
	for name := range people {
		names = append(names, name)
	}
	sort.Strings(names)

	mappings := sess.StoreMappings
	if mappings == nil {
		mappings = core.StoreMapping{}
	}

	return sessionSummaryResponse{
		ID:            sess.ID,
		CreatedAt:     sess.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:     sess.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
		Transactions:  len(sess.Transactions),
		People:        names,
		FirstDate:     first,
		LastDate:      last,
		StoreMappings: mappings,
	}
}
