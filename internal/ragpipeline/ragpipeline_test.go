package ragpipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codewiki/internal/chunking"
	"codewiki/internal/config"
	"codewiki/internal/corerr"
	"codewiki/internal/domain"
	"codewiki/internal/embedding"
	"codewiki/internal/llmclient"
	"codewiki/internal/vectorstore"
)

type fakeProvider struct {
	reply      string
	err        error
	streamErr  error
	streamOut  []string
}

func (f *fakeProvider) Chat(context.Context, []llmclient.Message, string, float64, *int) (string, error) {
	return f.reply, f.err
}

func (f *fakeProvider) ChatStream(_ context.Context, _ []llmclient.Message, _ string, _ float64, _ *int, h llmclient.StreamHandler) error {
	if f.streamErr != nil {
		return f.streamErr
	}
	for _, d := range f.streamOut {
		h.OnDelta(d)
	}
	return nil
}

func (f *fakeProvider) Ping(context.Context) error { return nil }
func (f *fakeProvider) Name() string               { return "fake" }

func newTestPipeline(t *testing.T, provider llmclient.Provider) *Pipeline {
	t.Helper()
	cfg := config.Default()
	cfg.RAG.TopK = 5
	cfg.Embeddings.Dimension = 8

	registry, err := chunking.NewRegistry(chunking.Options{ChunkSize: 1000})
	require.NoError(t, err)

	return &Pipeline{
		cfg:           cfg,
		chunkers:      registry,
		embedder:      embedding.NewDeterministic(8, true, 1),
		llm:           provider,
		store:         vectorstore.NewMemory(8),
		isInitialized: true,
	}
}

func TestAsk_NoSourcesReturnsNoInfoAnswer(t *testing.T) {
	p := newTestPipeline(t, &fakeProvider{reply: "unused"})
	resp, err := p.Ask(context.Background(), domain.Query{Question: "what does this do?"})
	require.NoError(t, err)
	assert.Equal(t, noInfoAnswer, resp.Answer)
	assert.Empty(t, resp.Sources)
}

func TestAsk_ReturnsAnswerWithSources(t *testing.T) {
	p := newTestPipeline(t, &fakeProvider{reply: "it adds two numbers"})
	ctx := context.Background()

	vec, err := p.embedder.EmbedBatch(ctx, []string{"func add(a, b int) int { return a + b }"})
	require.NoError(t, err)
	require.NoError(t, p.store.Insert(ctx, domain.Chunk{
		ID: "c1", Content: "func add(a, b int) int { return a + b }", FilePath: "add.go", Embedding: vec[0],
	}))

	resp, err := p.Ask(ctx, domain.Query{Question: "func add(a, b int) int { return a + b }"})
	require.NoError(t, err)
	assert.Equal(t, "it adds two numbers", resp.Answer)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "add.go", resp.Sources[0].Chunk.FilePath)
}

func TestAsk_LLMErrorWrapsAsGenerationError(t *testing.T) {
	p := newTestPipeline(t, &fakeProvider{err: errors.New("boom")})
	ctx := context.Background()

	vec, err := p.embedder.EmbedBatch(ctx, []string{"hello"})
	require.NoError(t, err)
	require.NoError(t, p.store.Insert(ctx, domain.Chunk{ID: "c1", Content: "hello", Embedding: vec[0]}))

	_, err = p.Ask(ctx, domain.Query{Question: "hello"})
	assert.Error(t, err)
	assert.True(t, corerr.Is(err, corerr.KindGeneration))
}

func TestAskStream_EmitsContentThenComplete(t *testing.T) {
	p := newTestPipeline(t, &fakeProvider{streamOut: []string{"ans", "wer"}})
	ctx := context.Background()

	vec, err := p.embedder.EmbedBatch(ctx, []string{"hello"})
	require.NoError(t, err)
	require.NoError(t, p.store.Insert(ctx, domain.Chunk{ID: "c1", Content: "hello", Embedding: vec[0]}))

	var chunks []domain.QueryStreamChunk
	err = p.AskStream(ctx, domain.Query{Question: "hello"}, func(c domain.QueryStreamChunk) {
		chunks = append(chunks, c)
	})
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, domain.StreamContent, chunks[0].ChunkType)
	assert.Equal(t, domain.StreamComplete, chunks[2].ChunkType)
	assert.Equal(t, "answer", chunks[2].Content)
	assert.True(t, chunks[2].IsFinal)
}

func TestAskStream_NoSourcesEmitsImmediateComplete(t *testing.T) {
	p := newTestPipeline(t, &fakeProvider{})
	var chunks []domain.QueryStreamChunk
	err := p.AskStream(context.Background(), domain.Query{Question: "anything"}, func(c domain.QueryStreamChunk) {
		chunks = append(chunks, c)
	})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, domain.StreamComplete, chunks[0].ChunkType)
}

func TestAskStream_ErrorEmitsErrorChunk(t *testing.T) {
	p := newTestPipeline(t, &fakeProvider{streamErr: errors.New("stream broke")})
	ctx := context.Background()

	vec, err := p.embedder.EmbedBatch(ctx, []string{"hello"})
	require.NoError(t, err)
	require.NoError(t, p.store.Insert(ctx, domain.Chunk{ID: "c1", Content: "hello", Embedding: vec[0]}))

	var chunks []domain.QueryStreamChunk
	err = p.AskStream(ctx, domain.Query{Question: "hello"}, func(c domain.QueryStreamChunk) {
		chunks = append(chunks, c)
	})
	assert.Error(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, domain.StreamError, chunks[0].ChunkType)
	assert.True(t, chunks[0].IsFinal)
}

func TestIndexRepository_IndexesLocalRepoAndReportsProgress(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644))

	p := newTestPipeline(t, &fakeProvider{})
	var stages []string
	stats, err := p.IndexRepository(context.Background(), domain.RepoTypeLocal, root, root, func(stage string, pct float64, detail string) {
		stages = append(stages, stage)
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalDocuments)
	assert.Greater(t, stats.TotalChunks, 0)
	assert.Contains(t, stages, "Complete")
	assert.False(t, p.store.IsEmpty())
}

func TestIndexRepository_ProgressIsMonotonicallyNonDecreasing(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 3; i++ {
		name := filepath.Join(root, string(rune('a'+i))+".go")
		require.NoError(t, os.WriteFile(name, []byte("package main\n\nfunc f() {}\n"), 0o644))
	}

	p := newTestPipeline(t, &fakeProvider{})
	var percents []float64
	_, err := p.IndexRepository(context.Background(), domain.RepoTypeLocal, root, root, func(_ string, pct float64, _ string) {
		percents = append(percents, pct)
	})
	require.NoError(t, err)
	require.NotEmpty(t, percents)
	for i := 1; i < len(percents); i++ {
		assert.GreaterOrEqualf(t, percents[i], percents[i-1], "progress decreased at step %d: %v", i, percents)
	}
}

func TestIsInitialized_FalseBeforeInitialize(t *testing.T) {
	p := New(config.Default())
	assert.False(t, p.IsInitialized())
}

func TestBuildStore_DefaultsToMemoryBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Embeddings.Dimension = 4
	p := &Pipeline{cfg: cfg}

	store, err := p.buildStore()
	require.NoError(t, err)
	assert.Equal(t, 4, store.Dimension())
	assert.True(t, store.IsEmpty())
}

func TestComposePrompt_PrependsPreviousConversation(t *testing.T) {
	p := newTestPipeline(t, &fakeProvider{})
	prompt := p.composePrompt("ctx", domain.Query{Question: "q", Context: "earlier turn"})
	assert.Contains(t, prompt, "Previous conversation:")
	assert.Contains(t, prompt, "earlier turn")
}
