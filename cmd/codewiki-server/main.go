// Command codewiki-server runs the codewiki HTTP/WS API: repository
// lifecycle management, RAG indexing and ask/stream-ask, and the deep
// research engine, all backed by one long-lived Indexing Worker.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codewiki/internal/config"
	"codewiki/internal/httpapi"
	"codewiki/internal/indexworker"
	"codewiki/internal/llmclient"
	"codewiki/internal/logging"
	"codewiki/internal/repomanager"
	"codewiki/internal/repostore"
	"codewiki/internal/research"
)

func main() {
	cfgPath := os.Getenv("CODEWIKI_CONFIG")
	if cfgPath == "" {
		cfgPath = "codewiki.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logging.Log.WithError(err).Fatal("failed to load configuration")
	}

	storage, err := newStorage(cfg)
	if err != nil {
		logging.Log.WithError(err).Fatal("failed to open repository storage")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker := indexworker.New(cfg)
	go worker.Run(ctx)

	manager := repomanager.New(worker, cfg.Indexing.MaxConcurrency, repomanager.WithStorage(storage))
	if err := manager.Initialize(ctx); err != nil {
		logging.Log.WithError(err).Fatal("failed to initialize repository manager")
	}

	engine := buildResearchEngine(cfg, manager)

	server := httpapi.NewServer(manager, engine)
	httpServer := &http.Server{Addr: cfg.Server.Addr, Handler: server}

	go func() {
		logging.Log.WithField("addr", cfg.Server.Addr).Info("codewiki-server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Log.WithError(err).Fatal("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logging.Log.WithError(err).Warn("http server shutdown error")
	}
	cancel()
	logging.Log.Info("codewiki-server stopped")
}

func newStorage(cfg *config.Config) (repostore.Storage, error) {
	connString := os.Getenv("CODEWIKI_DATABASE_URL")
	if connString == "" {
		return repostore.NewMemory(), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return repostore.NewSQL(ctx, connString)
}

// buildResearchEngine wires the research engine to the same LLM provider
// the RAG pipeline uses (spec §4.7 "synthesize" — "Use an LLM when
// available"); if no provider can be built, synthesis falls back to the
// template-based report and the engine still functions fully.
func buildResearchEngine(cfg *config.Config, manager *repomanager.Manager) *research.Engine {
	provider, err := llmclient.Build(cfg.LLM, http.DefaultClient)
	if err != nil {
		logging.Log.WithError(err).Warn("no LLM provider available, research synthesis will use the template fallback")
		provider = nil
	}

	historyPath := cfg.Research.HistoryPath
	var history research.HistoryStore
	if historyPath != "" {
		history = research.NewFileHistory(historyPath)
	} else {
		history = research.NewMemoryHistory()
	}

	return research.NewEngine(manager, history, provider, cfg.LLM.Model)
}
