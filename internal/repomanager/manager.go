// Package repomanager implements the Repository Manager (C10): the public,
// message-passing front-end over the Indexing Worker (C7) and Repository
// Storage (C9) (spec §4.2).
package repomanager

import (
	"context"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"codewiki/internal/concurrency"
	"codewiki/internal/corerr"
	"codewiki/internal/domain"
	"codewiki/internal/indexworker"
	"codewiki/internal/logging"
	"codewiki/internal/repostore"
)

// RepositoryOptions configures add_repository (spec §4.2).
type RepositoryOptions struct {
	AutoIndex bool
	Metadata  map[string]string
}

// Option configures a Manager at construction time, following the
// functional-options pattern the teacher's service constructors use.
type Option func(*Manager)

// WithStorage overrides the default in-memory Storage.
func WithStorage(s repostore.Storage) Option {
	return func(m *Manager) { m.storage = s }
}

// WithProgressBufferSize overrides the default progress broadcast capacity.
func WithProgressBufferSize(n int) Option {
	return func(m *Manager) { m.progressBufSize = n }
}

// Manager is the public repository lifecycle API (spec §4.2 "Repository Manager").
type Manager struct {
	storage         repostore.Storage
	controller      *concurrency.Controller
	worker          *indexworker.Worker
	progressBufSize int

	mu          sync.RWMutex
	subscribers map[int]chan domain.IndexingUpdate
	nextSubID   int

	workerHealthy healthFlag
}

// healthFlag is a tiny mutex-guarded bool latch mirroring the teacher's
// worker_healthy flag (spec §4.2 "Health model").
type healthFlag struct {
	mu      sync.RWMutex
	healthy bool
}

func (f *healthFlag) get() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.healthy
}

func (f *healthFlag) set(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.healthy = v
}

// New constructs a Manager backed by an in-memory Storage and the given
// worker, applying any Options.
func New(worker *indexworker.Worker, maxConcurrency int, opts ...Option) *Manager {
	m := &Manager{
		storage:         repostore.NewMemory(),
		controller:      concurrency.New(maxConcurrency),
		worker:          worker,
		progressBufSize: 1000,
		subscribers:     make(map[int]chan domain.IndexingUpdate),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize waits briefly for the worker to report health, mirroring the
// teacher's 1-second post-spawn health check (spec §4.2 "Health model").
func (m *Manager) Initialize(ctx context.Context) error {
	time.Sleep(1 * time.Second)
	healthy := m.worker.Healthy()
	m.workerHealthy.set(healthy)
	if !healthy {
		return corerr.New(corerr.KindConfig, "repository indexing worker failed to initialize; check LLM API configuration")
	}
	return nil
}

func (m *Manager) broadcast(update domain.IndexingUpdate) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ch := range m.subscribers {
		select {
		case ch <- update:
		default:
			// Lossy by design: slow subscribers miss events (spec §4.2).
		}
	}
}

// SubscribeToProgress returns a channel of Indexing Updates with lossy,
// bounded-buffer delivery (spec §4.2 "subscribe_to_progress").
func (m *Manager) SubscribeToProgress() (<-chan domain.IndexingUpdate, func()) {
	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	ch := make(chan domain.IndexingUpdate, m.progressBufSize)
	m.subscribers[id] = ch
	m.mu.Unlock()

	unsubscribe := func() {
		m.mu.Lock()
		delete(m.subscribers, id)
		m.mu.Unlock()
		close(ch)
	}
	return ch, unsubscribe
}

// AddRepository creates a Pending record, best-effort-enriches its metadata,
// and optionally starts indexing (spec §4.2 "add_repository").
func (m *Manager) AddRepository(ctx context.Context, url string, repoType domain.RepoType, ownerID string, opts RepositoryOptions) (string, error) {
	now := time.Now()
	repo := domain.Repository{
		ID:        uuid.NewString(),
		URL:       url,
		RepoType:  repoType,
		Status:    domain.StatusPending,
		Progress:  0,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  extractMetadata(url, repoType),
	}
	for k, v := range opts.Metadata {
		repo.Metadata[k] = v
	}

	if err := m.storage.Save(ctx, repo); err != nil {
		return "", corerr.Wrap(corerr.KindInternal, "failed to save repository", err)
	}

	logging.Log.WithField("repository_id", repo.ID).WithField("url", url).Info("repository added")

	if opts.AutoIndex {
		if err := m.StartIndexing(ctx, repo.ID); err != nil {
			return repo.ID, err
		}
	}

	return repo.ID, nil
}

// extractMetadata is a best-effort enrichment pass (spec §4.2 "10-second
// per-call deadline"); it never fails add_repository. No outbound API call
// is wired here (no hosting-provider API client is grounded in the pack),
// so parsing is local and the deadline has nothing to bound yet.
func extractMetadata(url string, repoType domain.RepoType) map[string]string {
	md := make(map[string]string)

	if repoType == domain.RepoTypeLocal {
		md["owner"] = "local"
		md["name"] = baseName(url)
		return md
	}

	owner, name := parseOwnerName(url)
	md["owner"] = owner
	md["name"] = name
	md["parsed_repo_type"] = string(repoType)

	switch repoType {
	case domain.RepoTypeGitHub:
		if tok := os.Getenv("GITHUB_TOKEN"); tok != "" {
			md["access_mode"] = "api"
		}
	case domain.RepoTypeGitLab:
		if tok := os.Getenv("GITLAB_TOKEN"); tok != "" {
			md["access_mode"] = "api"
		}
	case domain.RepoTypeBitbucket:
		if tok := os.Getenv("BITBUCKET_TOKEN"); tok != "" {
			md["access_mode"] = "api"
		}
	case domain.RepoTypeGitea:
		if base := os.Getenv("GITEA_BASE_URL"); base != "" {
			md["access_mode"] = "api"
			md["gitea_base_url"] = base
		}
	}
	return md
}

// StartIndexing transitions a repository to Indexing and enqueues an
// IndexRepository command, updating status asynchronously on completion
// (spec §4.2 "start_indexing").
func (m *Manager) StartIndexing(ctx context.Context, repositoryID string) error {
	if !m.workerHealthy.get() {
		return corerr.New(corerr.KindConfig, "cannot start indexing: RAG worker is not healthy")
	}

	repo, err := m.storage.Load(ctx, repositoryID)
	if err != nil {
		return err
	}

	if m.controller.IsIndexing(repositoryID) {
		return corerr.Conflict("session already indexing")
	}

	if err := m.storage.UpdateStatus(ctx, repositoryID, domain.StatusIndexing, 0); err != nil {
		return corerr.Wrap(corerr.KindInternal, "failed to update repository status", err)
	}

	startErr := m.controller.Start(ctx, repositoryID, repo.URL, func(taskCtx context.Context) {
		reply := make(chan indexworker.Result[domain.IndexingStats], 1)
		m.worker.Send(indexworker.IndexRepositoryCmd{
			RepositoryID: repositoryID,
			RepoType:     repo.RepoType,
			URL:          repo.URL,
			LocalPath:    repo.URL,
			Progress: func(stage string, pct float64, detail string) {
				m.broadcast(domain.IndexingUpdate{
					RepositoryID: repositoryID,
					Status:       domain.StatusIndexing,
					Progress:     pct / 100.0,
					Message:      detail,
					Timestamp:    time.Now(),
				})
				_ = m.storage.UpdateStatus(taskCtx, repositoryID, domain.StatusIndexing, pct/100.0)
			},
			Reply: reply,
		})

		result := <-reply
		if result.Err != nil {
			logging.Log.WithError(result.Err).WithField("repository_id", repositoryID).Error("repository indexing failed")
			_ = m.storage.UpdateStatus(context.Background(), repositoryID, domain.StatusFailed, 0)
			m.broadcast(domain.IndexingUpdate{RepositoryID: repositoryID, Status: domain.StatusFailed, Message: result.Err.Error(), Timestamp: time.Now()})
			return
		}

		_ = m.storage.UpdateStatus(context.Background(), repositoryID, domain.StatusCompleted, 1.0)
		logging.Log.WithField("repository_id", repositoryID).
			WithField("total_documents", result.Value.TotalDocuments).
			WithField("total_chunks", result.Value.TotalChunks).
			Info("repository indexing completed")
		m.broadcast(domain.IndexingUpdate{RepositoryID: repositoryID, Status: domain.StatusCompleted, Progress: 1.0, Message: "indexing complete", Timestamp: time.Now()})
	})
	if startErr != nil {
		_ = m.storage.UpdateStatus(ctx, repositoryID, domain.StatusFailed, 0)
		return startErr
	}

	return nil
}

func (m *Manager) ListRepositories(ctx context.Context, ownerID string) ([]domain.Repository, error) {
	return m.storage.List(ctx, ownerID)
}

func (m *Manager) GetRepository(ctx context.Context, id string) (domain.Repository, error) {
	return m.storage.Load(ctx, id)
}

// QueryRepository requires the repository to be Completed (spec §4.2
// "query_repository").
func (m *Manager) QueryRepository(ctx context.Context, id string, query domain.Query) (domain.RAGResponse, error) {
	repo, err := m.storage.Load(ctx, id)
	if err != nil {
		return domain.RAGResponse{}, err
	}
	if repo.Status != domain.StatusCompleted {
		return domain.RAGResponse{}, corerr.New(corerr.KindConfig, "repository not ready for querying: "+id)
	}

	reply := make(chan indexworker.Result[domain.RAGResponse], 1)
	m.worker.Send(indexworker.QueryRepositoryCmd{Query: query, Reply: reply})
	result := <-reply
	if result.Err != nil {
		return domain.RAGResponse{}, corerr.Wrap(corerr.KindGeneration, "query failed", result.Err)
	}
	return result.Value, nil
}

// StreamQueryRepository requires the repository to be Completed (spec §4.2
// "stream_query_repository"), enqueues the stream command and blocks until
// the worker has emitted the terminal chunk; it does not return before the
// stream ends. emit is invoked on the worker goroutine.
func (m *Manager) StreamQueryRepository(ctx context.Context, id string, query domain.Query, emit func(domain.QueryStreamChunk)) error {
	repo, err := m.storage.Load(ctx, id)
	if err != nil {
		return err
	}
	if repo.Status != domain.StatusCompleted {
		return corerr.New(corerr.KindConfig, "repository not ready for querying: "+id)
	}

	done := make(chan struct{})
	m.worker.Send(indexworker.StreamQueryRepositoryCmd{Query: query, Emit: emit, Done: done})
	<-done
	return nil
}

// ReindexRepository fails with Conflict if already Indexing, otherwise
// resets progress and starts a fresh index pass (spec §4.2
// "reindex_repository").
func (m *Manager) ReindexRepository(ctx context.Context, id string) error {
	if m.controller.IsIndexing(id) {
		return corerr.Conflict("session already indexing")
	}
	if _, err := m.storage.Load(ctx, id); err != nil {
		return err
	}
	if err := m.storage.UpdateStatus(ctx, id, domain.StatusPending, 0); err != nil {
		return corerr.Wrap(corerr.KindInternal, "failed to reset repository status", err)
	}
	return m.StartIndexing(ctx, id)
}

// DeleteRepository removes the record and cancels any active indexing task
// for id (spec §4.2 "delete_repository").
func (m *Manager) DeleteRepository(ctx context.Context, id string) error {
	m.controller.Cancel(id)
	return m.storage.Delete(ctx, id)
}

func baseName(p string) string {
	return path.Base(strings.ReplaceAll(p, "\\", "/"))
}

// parseOwnerName extracts {owner, name} from a remote URL of the form
// host/owner/name(.git) or host:owner/name(.git), covering both HTTPS and
// SSH remote syntaxes.
func parseOwnerName(url string) (owner, name string) {
	trimmed := strings.TrimSuffix(strings.TrimRight(url, "/"), ".git")
	trimmed = strings.ReplaceAll(trimmed, ":", "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) >= 2 {
		name = parts[len(parts)-1]
		owner = parts[len(parts)-2]
	}
	if owner == "" {
		owner = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return owner, name
}
