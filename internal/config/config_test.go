package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_OverlaysYAMLOntoDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codewiki.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":9090\"\nllm:\n  provider: anthropic\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, Default().RAG.TopK, cfg.RAG.TopK)
}

func TestLoad_InvalidYAMLReturnsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not: [valid: yaml"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_ClampsExcessiveChunkOverlap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overlap.yaml")
	require.NoError(t, os.WriteFile(path, []byte("indexing:\n  chunk_size: 100\n  chunk_overlap: 90\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Indexing.ChunkOverlap)
}

func TestDefault_VectorStoreDefaultsToMemoryBackend(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "memory", cfg.VectorStore.Backend)
	assert.NotEmpty(t, cfg.VectorStore.Collection)
}

func TestLoad_OverlaysVectorStoreBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qdrant.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vector_store:\n  backend: qdrant\n  dsn: \"http://localhost:6334\"\n  collection: my-repo\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "qdrant", cfg.VectorStore.Backend)
	assert.Equal(t, "http://localhost:6334", cfg.VectorStore.DSN)
	assert.Equal(t, "my-repo", cfg.VectorStore.Collection)
}

func TestDefault_IsStableAcrossCalls(t *testing.T) {
	a := Default()
	b := Default()
	assert.Equal(t, a, b)
	a.Server.Addr = "mutated"
	assert.NotEqual(t, a.Server.Addr, b.Server.Addr)
}
