package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codewiki/internal/corerr"
	"codewiki/internal/domain"
	"codewiki/internal/repomanager"
	"codewiki/internal/research"
)

type fakeRepos struct {
	repos     map[string]domain.Repository
	addErr    error
	queryResp domain.RAGResponse
	queryErr  error
	lastOpts  repomanager.RepositoryOptions
}

func newFakeRepos() *fakeRepos {
	return &fakeRepos{repos: make(map[string]domain.Repository)}
}

func (f *fakeRepos) AddRepository(ctx context.Context, url string, repoType domain.RepoType, ownerID string, opts repomanager.RepositoryOptions) (string, error) {
	if f.addErr != nil {
		return "", f.addErr
	}
	f.lastOpts = opts
	f.repos["repo-1"] = domain.Repository{ID: "repo-1", URL: url, RepoType: repoType, OwnerID: ownerID}
	return "repo-1", nil
}

func (f *fakeRepos) StartIndexing(ctx context.Context, repositoryID string) error { return nil }

func (f *fakeRepos) ListRepositories(ctx context.Context, ownerID string) ([]domain.Repository, error) {
	out := make([]domain.Repository, 0, len(f.repos))
	for _, r := range f.repos {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeRepos) GetRepository(ctx context.Context, id string) (domain.Repository, error) {
	r, ok := f.repos[id]
	if !ok {
		return domain.Repository{}, corerr.NotFound("repository %s not found", id)
	}
	return r, nil
}

func (f *fakeRepos) QueryRepository(ctx context.Context, id string, query domain.Query) (domain.RAGResponse, error) {
	return f.queryResp, f.queryErr
}

func (f *fakeRepos) StreamQueryRepository(ctx context.Context, id string, query domain.Query, emit func(domain.QueryStreamChunk)) error {
	return nil
}

func (f *fakeRepos) ReindexRepository(ctx context.Context, id string) error { return nil }

func (f *fakeRepos) DeleteRepository(ctx context.Context, id string) error {
	if _, ok := f.repos[id]; !ok {
		return corerr.NotFound("repository %s not found", id)
	}
	delete(f.repos, id)
	return nil
}

func (f *fakeRepos) SubscribeToProgress() (<-chan domain.IndexingUpdate, func()) {
	ch := make(chan domain.IndexingUpdate)
	return ch, func() {}
}

type fakeResearch struct {
	startID  string
	startErr error
}

func (f *fakeResearch) StartResearch(ctx context.Context, repositoryID, topic string, cfg research.Config) (string, error) {
	return f.startID, f.startErr
}
func (f *fakeResearch) RunIteration(ctx context.Context, id string) (research.Iteration, error) {
	return research.Iteration{Ordinal: 0}, nil
}
func (f *fakeResearch) Synthesize(ctx context.Context, id string) (research.Result, error) {
	return research.Result{SessionID: id, FinalReport: "report"}, nil
}
func (f *fakeResearch) CancelResearch(ctx context.Context, id string) error { return nil }
func (f *fakeResearch) GetSession(id string) (research.Context, error) {
	return research.Context{ResearchID: id}, nil
}
func (f *fakeResearch) ListActive() []string { return []string{"s1"} }

func newTestServer() (*Server, *fakeRepos, *fakeResearch) {
	repos := newFakeRepos()
	rs := &fakeResearch{startID: "session-1"}
	return NewServer(repos, rs), repos, rs
}

func TestHandleAddRepository_Created(t *testing.T) {
	s, _, _ := newTestServer()
	body, _ := json.Marshal(map[string]any{"url": "https://example.com/repo.git", "repo_type": "github"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/repositories", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "repo-1", out["id"])
}

func TestHandleGetRepository_NotFound(t *testing.T) {
	s, _, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/repositories/missing", nil)
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetRepository_Found(t *testing.T) {
	s, repos, _ := newTestServer()
	repos.repos["repo-1"] = domain.Repository{ID: "repo-1", Status: domain.StatusCompleted}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/repositories/repo-1", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var repo domain.Repository
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &repo))
	assert.Equal(t, "repo-1", repo.ID)
}

func TestHandleDeleteRepository_NoContent(t *testing.T) {
	s, repos, _ := newTestServer()
	repos.repos["repo-1"] = domain.Repository{ID: "repo-1"}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/repositories/repo-1", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, ok := repos.repos["repo-1"]
	assert.False(t, ok)
}

func TestHandleAsk_BadRequestOnInvalidJSON(t *testing.T) {
	s, _, _ := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/repositories/repo-1/ask", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAsk_ReturnsResponse(t *testing.T) {
	s, repos, _ := newTestServer()
	repos.queryResp = domain.RAGResponse{Answer: "yes"}

	body, _ := json.Marshal(domain.Query{Question: "does it work?"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/repositories/repo-1/ask", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp domain.RAGResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "yes", resp.Answer)
}

func TestHandleStartResearch_Created(t *testing.T) {
	s, _, _ := newTestServer()
	body, _ := json.Marshal(map[string]any{"topic": "the retry queue", "max_iterations": 3, "confidence_threshold": 0.8})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/repositories/repo-1/research", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "session-1", out["session_id"])
}

func TestHandleListActiveResearch(t *testing.T) {
	s, _, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/research", nil)
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, []string{"s1"}, out["sessions"])
}

func TestStatusFromError_MapsKinds(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFromError(corerr.NotFound("x")))
	assert.Equal(t, http.StatusConflict, statusFromError(corerr.Conflict("x")))
	assert.Equal(t, http.StatusGone, statusFromError(corerr.Cancelled("x")))
	assert.Equal(t, http.StatusInternalServerError, statusFromError(corerr.Internal(nil, "x")))
}
