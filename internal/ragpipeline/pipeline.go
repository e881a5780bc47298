// Package ragpipeline implements the Retrieval+Generation Pipeline (C6):
// index_repository (C2->C1->C3->C4) and ask (query->C4->prompt->C5).
package ragpipeline

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"codewiki/internal/chunking"
	"codewiki/internal/config"
	"codewiki/internal/corerr"
	"codewiki/internal/domain"
	"codewiki/internal/embedding"
	"codewiki/internal/llmclient"
	"codewiki/internal/loader"
	"codewiki/internal/logging"
	"codewiki/internal/vectorstore"
)

// ProgressFunc reports index_repository progress: stage name, percent in
// [0,100], and an optional human-readable detail (spec §4.6).
type ProgressFunc func(stage string, percent float64, detail string)

const systemPrompt = "You are a helpful assistant answering questions about a source code repository using only the provided context. Cite file paths where relevant."

const userPromptTemplate = "Context:\n{context}\n\nQuestion: {question}"

const noInfoAnswer = "I couldn't find any relevant information in the indexed repository to answer that question."

// Pipeline is the per-repository RAG pipeline owned exclusively by one
// Indexing Worker (spec §4.6, §5 "Shared resource policy").
type Pipeline struct {
	cfg             *config.Config
	chunkers        *chunking.Registry
	embedder        embedding.Embedder
	llm             llmclient.Provider
	store           vectorstore.Store
	isInitialized   bool
}

func New(cfg *config.Config) *Pipeline {
	return &Pipeline{cfg: cfg}
}

// Initialize creates the LLM client, pings it best-effort, and constructs
// an empty vector store of the configured dimension (spec §4.6).
func (p *Pipeline) Initialize(ctx context.Context) error {
	llm, err := llmclient.Build(p.cfg.LLM, http.DefaultClient)
	if err != nil {
		return corerr.Wrap(corerr.KindConfig, "build llm client", err)
	}
	p.llm = llm

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.llm.Ping(pingCtx); err != nil {
		logging.Log.WithError(err).Warn("llm provider ping failed, continuing best-effort")
	}

	embedBaseURL := ""
	if p.cfg.Embeddings.Provider != "deterministic" {
		// Real providers are reached through the same base URL conventions as
		// the chat provider when one isn't separately configured.
		if p.cfg.LLM.BaseURL != nil {
			embedBaseURL = *p.cfg.LLM.BaseURL
		}
	}
	p.embedder = embedding.NewFromConfig(p.cfg.Embeddings, embedBaseURL, "")

	registry, err := chunking.NewRegistry(chunking.Options{
		ChunkSize:                 p.cfg.Indexing.ChunkSize,
		ChunkOverlap:              p.cfg.Indexing.ChunkOverlap,
		EnableASTCodeSplitting:    p.cfg.Indexing.EnableASTCodeSplitting,
		PreserveMarkdownStructure: p.cfg.Indexing.PreserveMarkdownStructure,
		EnableSemanticSplitting:   p.cfg.Indexing.EnableSemanticSplitting,
	})
	if err != nil {
		return corerr.Wrap(corerr.KindConfig, "build chunker registry", err)
	}
	p.chunkers = registry

	store, err := p.buildStore()
	if err != nil {
		return corerr.Wrap(corerr.KindConfig, "build vector store", err)
	}
	p.store = store
	p.isInitialized = true
	return nil
}

func (p *Pipeline) IsInitialized() bool { return p.isInitialized }

// buildStore selects the Store backend per vector_store.backend (spec
// DOMAIN STACK "optional persistent VectorStore adapter"): "qdrant" for a
// Qdrant-backed collection surviving process restarts, "memory" (the
// default) otherwise.
func (p *Pipeline) buildStore() (vectorstore.Store, error) {
	switch p.cfg.VectorStore.Backend {
	case "qdrant":
		collection := p.cfg.VectorStore.Collection
		if collection == "" {
			collection = "codewiki"
		}
		return vectorstore.NewQdrant(p.cfg.VectorStore.DSN, collection, p.cfg.Embeddings.Dimension)
	default:
		return vectorstore.NewMemory(p.cfg.Embeddings.Dimension), nil
	}
}

// IndexRepository runs the full index (spec §4.6 "index_repository").
func (p *Pipeline) IndexRepository(ctx context.Context, repoType domain.RepoType, url, localPath string, progress ProgressFunc) (domain.IndexingStats, error) {
	start := time.Now()
	report := func(stage string, pct float64, detail string) {
		if progress != nil {
			progress(stage, pct, detail)
		}
	}

	report("Starting", 0, "")

	policy := loader.Policy{
		IncludedExtensions: p.cfg.Pipeline.IncludedExtensions,
		ExcludedDirs:       p.cfg.Pipeline.ExcludedDirs,
		ExcludedFiles:      p.cfg.Pipeline.ExcludedFiles,
		MaxFiles:           p.cfg.Pipeline.MaxFiles,
	}
	if p.cfg.Pipeline.MaxFileSizeMB != nil {
		maxBytes := int64(*p.cfg.Pipeline.MaxFileSizeMB) * 1024 * 1024
		policy.MaxFileSizeBytes = &maxBytes
	}

	docs, err := loader.Load(repoType, url, localPath, policy)
	if err != nil {
		return domain.IndexingStats{}, corerr.Wrap(corerr.KindIndexing, "load documents", err)
	}

	report("Processing documents", 10, fmt.Sprintf("%d documents found", len(docs)))

	var allChunks []domain.Chunk
	for _, doc := range docs {
		chunks, err := p.chunkers.Chunk(doc)
		if err != nil {
			if !p.cfg.Indexing.ContinueOnError {
				return domain.IndexingStats{}, corerr.Wrap(corerr.KindIndexing, "chunk document "+doc.FilePath, err)
			}
			logging.Log.WithError(err).WithField("file_path", doc.FilePath).Warn("chunking failed, skipping document")
			continue
		}
		allChunks = append(allChunks, chunks...)
	}

	totalNodes := len(allChunks)
	batchSize := p.cfg.Embeddings.BatchSize
	if batchSize <= 0 {
		batchSize = 32
	}

	embedded := 0
	for i := 0; i < len(allChunks); i += batchSize {
		end := i + batchSize
		if end > len(allChunks) {
			end = len(allChunks)
		}
		batch := allChunks[i:end]

		texts := make([]string, 0, len(batch))
		idxs := make([]int, 0, len(batch))
		for bi, c := range batch {
			if strings.TrimSpace(c.Content) == "" {
				continue
			}
			texts = append(texts, c.Content)
			idxs = append(idxs, i+bi)
		}

		vecs, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			logging.Log.WithError(err).Warn("embedding batch failed, skipping batch")
			embedded += len(batch)
			continue
		}
		for vi, v := range vecs {
			if vi >= len(idxs) {
				break
			}
			allChunks[idxs[vi]].Embedding = v
		}

		embedded += len(batch)
		pct := 20.0 + (60.0 * float64(embedded) / float64(max(totalNodes, 1)))
		if pct > 80 {
			pct = 80
		}
		report("Generating embeddings", pct, fmt.Sprintf("%d/%d chunks embedded", embedded, totalNodes))

		time.Sleep(100 * time.Millisecond)
	}

	report("Storing vectors", 85, "")

	stored := 0
	for _, c := range allChunks {
		if len(c.Embedding) == 0 {
			continue
		}
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if err := p.store.Insert(ctx, c); err != nil {
			logging.Log.WithError(err).WithField("chunk_id", c.ID).Warn("failed to insert chunk, skipping")
			continue
		}
		stored++
	}

	report("Finalizing", 95, "")
	report("Complete", 100, "")

	return domain.IndexingStats{
		TotalDocuments: len(docs),
		TotalNodes:     totalNodes,
		TotalChunks:    stored,
		IndexingTimeMS: time.Since(start).Milliseconds(),
	}, nil
}
