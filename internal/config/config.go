// Package config loads and defaults the codewiki service configuration.
package config

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"gopkg.in/yaml.v3"
)

// RAGConfig controls retrieval behavior.
type RAGConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	TopK                int     `yaml:"top_k"`
	MaxContextLength    int     `yaml:"max_context_length"`
	EnableReranking     bool    `yaml:"enable_reranking"`
}

// IndexingConfig controls chunking and batching during indexing.
type IndexingConfig struct {
	ChunkSize                 int  `yaml:"chunk_size"`
	ChunkOverlap              int  `yaml:"chunk_overlap"`
	EnableASTCodeSplitting    bool `yaml:"enable_ast_code_splitting"`
	PreserveMarkdownStructure bool `yaml:"preserve_markdown_structure"`
	EnableSemanticSplitting   bool `yaml:"enable_semantic_splitting"`
	BatchSize                 int  `yaml:"batch_size"`
	MaxConcurrency            int  `yaml:"max_concurrency"`
	ContinueOnError           bool `yaml:"continue_on_error"`
}

// LLMConfig selects and parameterizes the chat provider.
type LLMConfig struct {
	Provider    string   `yaml:"provider"`
	Model       string   `yaml:"model"`
	Temperature float64  `yaml:"temperature"`
	MaxTokens   *int     `yaml:"max_tokens,omitempty"`
	BaseURL     *string  `yaml:"base_url,omitempty"`
}

// EmbeddingsConfig selects and parameterizes the embedding provider.
type EmbeddingsConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch_size"`
}

// VectorStoreConfig selects the Store backend a pipeline's index is kept
// in: the in-memory default, or a Qdrant collection for persistence across
// process restarts.
type VectorStoreConfig struct {
	Backend    string `yaml:"backend"`
	DSN        string `yaml:"dsn,omitempty"`
	Collection string `yaml:"collection,omitempty"`
}

// PipelineConfig bounds document discovery.
type PipelineConfig struct {
	MaxFiles           *int     `yaml:"max_files,omitempty"`
	MaxFileSizeMB      *int     `yaml:"max_file_size_mb,omitempty"`
	IncludedExtensions []string `yaml:"included_extensions"`
	ExcludedDirs       []string `yaml:"excluded_dirs"`
	ExcludedFiles      []string `yaml:"excluded_files"`
}

// ResearchConfig holds research settings. The server reads only
// HistoryPath; each research session takes its iteration, confidence and
// source limits from its start request, not from these fields.
type ResearchConfig struct {
	MaxIterations        int     `yaml:"max_iterations"`
	ConfidenceThreshold   float64 `yaml:"confidence_threshold"`
	MaxSourcesPerIteration int    `yaml:"max_sources_per_iteration"`
	HistoryPath           string  `yaml:"history_path"`
}

// ServerConfig controls the HTTP/WS external adapter.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Config is the top-level codewiki configuration document.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	RAG         RAGConfig         `yaml:"rag"`
	Indexing    IndexingConfig    `yaml:"indexing"`
	LLM         LLMConfig         `yaml:"llm"`
	Embeddings  EmbeddingsConfig  `yaml:"embeddings"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	Research    ResearchConfig    `yaml:"research"`
}

// Default returns a configuration with every field filled to the spec's
// documented defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		RAG: RAGConfig{
			SimilarityThreshold: 0.5,
			TopK:                5,
			MaxContextLength:    4000,
			EnableReranking:     false,
		},
		Indexing: IndexingConfig{
			ChunkSize:                 1000,
			ChunkOverlap:              200,
			EnableASTCodeSplitting:    true,
			PreserveMarkdownStructure: true,
			EnableSemanticSplitting:   false,
			BatchSize:                 32,
			MaxConcurrency:            2,
			ContinueOnError:           true,
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Temperature: 0.2,
		},
		Embeddings: EmbeddingsConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			Dimension: 1536,
			BatchSize: 32,
		},
		VectorStore: VectorStoreConfig{
			Backend:    "memory",
			Collection: "codewiki",
		},
		Pipeline: PipelineConfig{
			IncludedExtensions: []string{
				".rs", ".py", ".js", ".ts", ".java", ".cpp", ".c", ".go", ".cs",
				".md", ".txt", ".yaml", ".yml", ".json", ".toml",
			},
			ExcludedDirs:  []string{".git", "node_modules", "target", "dist", "build", "vendor"},
			ExcludedFiles: []string{"*.lock", "*.min.js"},
		},
		Research: ResearchConfig{
			MaxIterations:          5,
			ConfidenceThreshold:    0.85,
			MaxSourcesPerIteration: 5,
			HistoryPath:            "research_history.yaml",
		},
	}
}

// Load reads a YAML configuration file, overlaying it onto Default(), and
// reports load-time diagnostics via pterm, mirroring the teacher's
// load-and-warn convention.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			pterm.Warning.Printfln("config file %q not found, using defaults", path)
			return cfg, nil
		}
		pterm.Error.Printfln("failed to read config file %q: %v", path, err)
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		pterm.Error.Printfln("failed to parse config file %q: %v", path, err)
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Indexing.ChunkOverlap > cfg.Indexing.ChunkSize/2 {
		pterm.Warning.Printfln("indexing.chunk_overlap (%d) exceeds half of chunk_size (%d), clamping",
			cfg.Indexing.ChunkOverlap, cfg.Indexing.ChunkSize)
		cfg.Indexing.ChunkOverlap = cfg.Indexing.ChunkSize / 2
	}

	pterm.Success.Printfln("loaded config from %q", path)
	return cfg, nil
}
