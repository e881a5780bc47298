// Package httpapi implements the HTTP/WS external adapter (C12): REST
// endpoints over the Repository Manager and Research Engine, plus a
// WebSocket feed for indexing progress and streaming ask responses.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"codewiki/internal/domain"
	"codewiki/internal/repomanager"
	"codewiki/internal/research"
)

// RepositoryService is the subset of repomanager.Manager the API depends on.
type RepositoryService interface {
	AddRepository(ctx context.Context, url string, repoType domain.RepoType, ownerID string, opts repomanager.RepositoryOptions) (string, error)
	StartIndexing(ctx context.Context, repositoryID string) error
	ListRepositories(ctx context.Context, ownerID string) ([]domain.Repository, error)
	GetRepository(ctx context.Context, id string) (domain.Repository, error)
	QueryRepository(ctx context.Context, id string, query domain.Query) (domain.RAGResponse, error)
	StreamQueryRepository(ctx context.Context, id string, query domain.Query, emit func(domain.QueryStreamChunk)) error
	ReindexRepository(ctx context.Context, id string) error
	DeleteRepository(ctx context.Context, id string) error
	SubscribeToProgress() (<-chan domain.IndexingUpdate, func())
}

// ResearchService is the subset of research.Engine the API depends on.
type ResearchService interface {
	StartResearch(ctx context.Context, repositoryID, topic string, cfg research.Config) (string, error)
	RunIteration(ctx context.Context, id string) (research.Iteration, error)
	Synthesize(ctx context.Context, id string) (research.Result, error)
	CancelResearch(ctx context.Context, id string) error
	GetSession(id string) (research.Context, error)
	ListActive() []string
}

// Server exposes the codewiki HTTP and WebSocket API.
type Server struct {
	repos    RepositoryService
	research ResearchService
	mux      *http.ServeMux
	upgrader websocket.Upgrader
}

// NewServer wires a Server to its backing services and registers routes.
func NewServer(repos RepositoryService, researchSvc ResearchService) *Server {
	s := &Server{
		repos:    repos,
		research: researchSvc,
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.registerRoutes()
	return s
}

// ServeHTTP satisfies http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/v1/repositories", s.handleListRepositories)
	s.mux.HandleFunc("POST /api/v1/repositories", s.handleAddRepository)
	s.mux.HandleFunc("GET /api/v1/repositories/{repoID}", s.handleGetRepository)
	s.mux.HandleFunc("DELETE /api/v1/repositories/{repoID}", s.handleDeleteRepository)
	s.mux.HandleFunc("POST /api/v1/repositories/{repoID}/index", s.handleStartIndexing)
	s.mux.HandleFunc("POST /api/v1/repositories/{repoID}/reindex", s.handleReindexRepository)
	s.mux.HandleFunc("POST /api/v1/repositories/{repoID}/ask", s.handleAsk)

	s.mux.HandleFunc("POST /api/v1/repositories/{repoID}/research", s.handleStartResearch)
	s.mux.HandleFunc("POST /api/v1/research/{sessionID}/iterate", s.handleRunIteration)
	s.mux.HandleFunc("POST /api/v1/research/{sessionID}/synthesize", s.handleSynthesize)
	s.mux.HandleFunc("POST /api/v1/research/{sessionID}/cancel", s.handleCancelResearch)
	s.mux.HandleFunc("GET /api/v1/research/{sessionID}", s.handleGetResearchSession)
	s.mux.HandleFunc("GET /api/v1/research", s.handleListActiveResearch)

	s.mux.HandleFunc("GET /api/v1/repositories/{repoID}/progress", s.handleProgressWebSocket)
	s.mux.HandleFunc("GET /api/v1/repositories/{repoID}/ask/stream", s.handleAskStreamWebSocket)
}
