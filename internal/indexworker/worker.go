// Package indexworker implements the Indexing Worker (C7): a single
// long-lived actor that owns one RAG pipeline and serializes all indexing
// and query commands for it through one command channel (spec §4.3).
package indexworker

import (
	"context"
	"os"
	"sync/atomic"

	"codewiki/internal/config"
	"codewiki/internal/domain"
	"codewiki/internal/logging"
	"codewiki/internal/ragpipeline"
)

// IndexRepositoryCmd asks the worker to run index_repository and reply with
// stats or an error message (spec §4.3 "IndexRepository").
type IndexRepositoryCmd struct {
	RepositoryID string
	RepoType     domain.RepoType
	URL          string
	LocalPath    string
	Progress     ragpipeline.ProgressFunc
	Reply        chan<- Result[domain.IndexingStats]
}

// QueryRepositoryCmd asks the worker to run ask() and reply with the
// response or an error message (spec §4.3 "QueryRepository").
type QueryRepositoryCmd struct {
	Query domain.Query
	Reply chan<- Result[domain.RAGResponse]
}

// StreamQueryRepositoryCmd asks the worker to stream an answer: Content
// chunks as the LLM produces them, then one Complete or Error chunk (spec
// §4.3 "StreamQueryRepository").
type StreamQueryRepositoryCmd struct {
	Query domain.Query
	Emit  func(domain.QueryStreamChunk)
	Done  chan<- struct{}
}

// Result carries either a value or an error message, mirroring the
// `Result<T, String>` oneshot reply the original worker used.
type Result[T any] struct {
	Value T
	Err   error
}

type command interface{}

// Worker is the single actor processing commands in FIFO order against one
// Pipeline (spec §4.3 "Ordering").
type Worker struct {
	cfg      *config.Config
	pipeline *ragpipeline.Pipeline
	commands chan command
	healthy  atomic.Bool
}

func New(cfg *config.Config) *Worker {
	return &Worker{
		cfg:      cfg,
		pipeline: ragpipeline.New(cfg),
		commands: make(chan command, 64),
	}
}

// Send enqueues a command. It never blocks the caller past channel
// backpressure; commands are drained by Run in submission order.
func (w *Worker) Send(cmd command) {
	w.commands <- cmd
}

// Healthy reports whether pipeline initialization succeeded.
func (w *Worker) Healthy() bool { return w.healthy.Load() }

// Run starts the worker loop. It blocks until ctx is cancelled or the
// command channel is closed; callers typically run it in its own goroutine.
func (w *Worker) Run(ctx context.Context) {
	logging.Log.Info("starting indexing worker")
	logProviderAvailability()

	if err := w.pipeline.Initialize(ctx); err != nil {
		logging.Log.WithError(err).Error("failed to initialize rag pipeline")
		w.healthy.Store(false)
		w.runUnhealthy(ctx)
		return
	}
	w.healthy.Store(true)
	logging.Log.Info("rag pipeline initialized, worker ready")

	for {
		select {
		case <-ctx.Done():
			logging.Log.Info("indexing worker shutting down")
			return
		case cmd, ok := <-w.commands:
			if !ok {
				return
			}
			w.handle(ctx, cmd)
		}
	}
}

func logProviderAvailability() {
	found := make([]string, 0, 3)
	if os.Getenv("OPENAI_API_KEY") != "" {
		found = append(found, "OpenAI")
	}
	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		found = append(found, "Anthropic")
	}
	if os.Getenv("GROQ_API_KEY") != "" {
		found = append(found, "Groq")
	}
	if len(found) == 0 {
		logging.Log.Warn("no LLM API keys found in environment; RAG pipeline may not function")
		return
	}
	logging.Log.WithField("providers", found).Info("available LLM providers")
}

// runUnhealthy keeps the worker alive to answer status checks but rejects
// every command (spec §4.3 "degraded mode").
func (w *Worker) runUnhealthy(ctx context.Context) {
	const errMsg = "RAG pipeline not initialized. Check server logs for LLM API configuration."
	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-w.commands:
			if !ok {
				return
			}
			switch c := cmd.(type) {
			case IndexRepositoryCmd:
				c.Reply <- Result[domain.IndexingStats]{Err: newWorkerError(errMsg)}
			case QueryRepositoryCmd:
				c.Reply <- Result[domain.RAGResponse]{Err: newWorkerError(errMsg)}
			case StreamQueryRepositoryCmd:
				c.Emit(domain.QueryStreamChunk{ChunkType: domain.StreamError, Content: errMsg, IsFinal: true})
				close(c.Done)
			}
		}
	}
}

func (w *Worker) handle(ctx context.Context, cmd command) {
	switch c := cmd.(type) {
	case IndexRepositoryCmd:
		stats, err := w.pipeline.IndexRepository(ctx, c.RepoType, c.URL, c.LocalPath, c.Progress)
		c.Reply <- Result[domain.IndexingStats]{Value: stats, Err: err}

	case QueryRepositoryCmd:
		resp, err := w.pipeline.Ask(ctx, c.Query)
		c.Reply <- Result[domain.RAGResponse]{Value: resp, Err: err}

	case StreamQueryRepositoryCmd:
		err := w.streamQuery(ctx, c)
		if err != nil {
			logging.Log.WithError(err).Warn("stream query failed")
		}
		close(c.Done)
	}
}

// streamQuery delegates to the pipeline's token-level AskStream, which
// preserves the "at least one and only one terminal chunk" invariant the
// original word-group simulation was built to guarantee (spec §4.3).
func (w *Worker) streamQuery(ctx context.Context, c StreamQueryRepositoryCmd) error {
	return w.pipeline.AskStream(ctx, c.Query, c.Emit)
}

func newWorkerError(msg string) error {
	return &workerError{msg: msg}
}

type workerError struct{ msg string }

func (e *workerError) Error() string { return e.msg }
