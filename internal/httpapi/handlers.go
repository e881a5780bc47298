package httpapi

import (
	"encoding/json"
	"net/http"

	"codewiki/internal/corerr"
	"codewiki/internal/domain"
	"codewiki/internal/repomanager"
	"codewiki/internal/research"
)

func (s *Server) handleListRepositories(w http.ResponseWriter, r *http.Request) {
	repos, err := s.repos.ListRepositories(r.Context(), r.URL.Query().Get("owner_id"))
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"repositories": repos})
}

func (s *Server) handleAddRepository(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		URL       string            `json:"url"`
		RepoType  domain.RepoType   `json:"repo_type"`
		OwnerID   string            `json:"owner_id"`
		AutoIndex bool              `json:"auto_index"`
		Metadata  map[string]string `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	id, err := s.repos.AddRepository(r.Context(), payload.URL, payload.RepoType, payload.OwnerID, repomanager.RepositoryOptions{
		AutoIndex: payload.AutoIndex,
		Metadata:  payload.Metadata,
	})
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (s *Server) handleGetRepository(w http.ResponseWriter, r *http.Request) {
	repo, err := s.repos.GetRepository(r.Context(), r.PathValue("repoID"))
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusOK, repo)
}

func (s *Server) handleDeleteRepository(w http.ResponseWriter, r *http.Request) {
	if err := s.repos.DeleteRepository(r.Context(), r.PathValue("repoID")); err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStartIndexing(w http.ResponseWriter, r *http.Request) {
	if err := s.repos.StartIndexing(r.Context(), r.PathValue("repoID")); err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]any{"status": "indexing"})
}

func (s *Server) handleReindexRepository(w http.ResponseWriter, r *http.Request) {
	if err := s.repos.ReindexRepository(r.Context(), r.PathValue("repoID")); err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]any{"status": "indexing"})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var query domain.Query
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.repos.QueryRepository(r.Context(), r.PathValue("repoID"), query)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStartResearch(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Topic                  string  `json:"topic"`
		MaxIterations          int     `json:"max_iterations"`
		ConfidenceThreshold    float64 `json:"confidence_threshold"`
		MaxSourcesPerIteration int     `json:"max_sources_per_iteration"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	id, err := s.research.StartResearch(r.Context(), r.PathValue("repoID"), payload.Topic, research.Config{
		MaxIterations:          payload.MaxIterations,
		ConfidenceThreshold:    payload.ConfidenceThreshold,
		MaxSourcesPerIteration: payload.MaxSourcesPerIteration,
	})
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"session_id": id})
}

func (s *Server) handleRunIteration(w http.ResponseWriter, r *http.Request) {
	iteration, err := s.research.RunIteration(r.Context(), r.PathValue("sessionID"))
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusOK, iteration)
}

func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	result, err := s.research.Synthesize(r.Context(), r.PathValue("sessionID"))
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleCancelResearch(w http.ResponseWriter, r *http.Request) {
	if err := s.research.CancelResearch(r.Context(), r.PathValue("sessionID")); err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetResearchSession(w http.ResponseWriter, r *http.Request) {
	rc, err := s.research.GetSession(r.PathValue("sessionID"))
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusOK, rc)
}

func (s *Server) handleListActiveResearch(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"sessions": s.research.ListActive()})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]any{"error": err.Error()})
}

func statusFromError(err error) int {
	switch {
	case corerr.Is(err, corerr.KindNotFound):
		return http.StatusNotFound
	case corerr.Is(err, corerr.KindConflict):
		return http.StatusConflict
	case corerr.Is(err, corerr.KindConfig):
		return http.StatusBadRequest
	case corerr.Is(err, corerr.KindCancelled):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}
