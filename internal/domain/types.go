// Package domain holds the data model shared across codewiki's components
// (chunking, loading, embedding, vector storage, retrieval, indexing,
// repository management, and research) so those packages can depend on a
// common vocabulary without import cycles.
package domain

import "time"

// FileType classifies a Document's purpose.
type FileType string

const (
	FileTypeCode          FileType = "code"
	FileTypeDocumentation FileType = "documentation"
	FileTypeConfiguration FileType = "configuration"
	FileTypeOther         FileType = "other"
)

// Document is one file discovered by the loader (C2).
type Document struct {
	ID       string
	Content  string
	FilePath string
	FileType FileType
	Language string
	FileSize int64
}

// Chunk is a bounded piece of document text plus its embedding and source
// metadata (spec §3).
type Chunk struct {
	ID          string
	Content     string
	Embedding   []float32
	DocumentID  string
	ChunkIndex  int
	FilePath    string
	Language    string
	FileType    FileType
	StartLine   int
	EndLine     int
	Metadata    map[string]string
}

// ScoredChunk pairs a Chunk with its similarity score for a retrieval result.
type ScoredChunk struct {
	Chunk Chunk
	Score float32
}

// RepoType enumerates recognized repository origins.
type RepoType string

const (
	RepoTypeGitHub    RepoType = "github"
	RepoTypeGitLab    RepoType = "gitlab"
	RepoTypeBitbucket RepoType = "bitbucket"
	RepoTypeGitea     RepoType = "gitea"
	RepoTypeLocal     RepoType = "local"
)

// RepoStatus is the repository lifecycle state (spec §4.2).
type RepoStatus string

const (
	StatusPending   RepoStatus = "Pending"
	StatusIndexing  RepoStatus = "Indexing"
	StatusCompleted RepoStatus = "Completed"
	StatusFailed    RepoStatus = "Failed"
	StatusCancelled RepoStatus = "Cancelled"
)

// Repository is the persisted record for one repository (spec §3 "Repository Record").
type Repository struct {
	ID        string
	URL       string
	RepoType  RepoType
	Status    RepoStatus
	Progress  float64
	OwnerID   string
	CreatedAt time.Time
	UpdatedAt time.Time
	IndexedAt *time.Time
	Metadata  map[string]string
}

// Clone returns a deep-enough copy for safe handoff across goroutines.
func (r Repository) Clone() Repository {
	md := make(map[string]string, len(r.Metadata))
	for k, v := range r.Metadata {
		md[k] = v
	}
	r.Metadata = md
	return r
}

// RAGResponse is the result of one ask() round (spec §3 "RAG Response").
type RAGResponse struct {
	Answer   string
	Sources  []ScoredChunk
	Metadata ResponseMetadata
}

// ResponseMetadata carries the diagnostic counters attached to a RAGResponse.
type ResponseMetadata struct {
	ChunksRetrieved  int
	ContextTokens    int
	GenerationTokens int
	RetrievalTimeMS  int64
	GenerationTimeMS int64
	ModelUsed        string
}

// IndexingStats summarizes a completed index_repository run.
type IndexingStats struct {
	TotalDocuments  int
	TotalNodes      int
	TotalChunks     int
	IndexingTimeMS  int64
}

// IndexingUpdate is a progress event broadcast during indexing (spec §3).
type IndexingUpdate struct {
	RepositoryID string
	Status       RepoStatus
	Progress     float64
	Message      string
	Timestamp    time.Time
}

// StreamChunkType enumerates the Query Stream Chunk variants.
type StreamChunkType string

const (
	StreamContent  StreamChunkType = "Content"
	StreamComplete StreamChunkType = "Complete"
	StreamError    StreamChunkType = "Error"
)

// QueryStreamChunk is one item of a stream-ask response (spec §3).
type QueryStreamChunk struct {
	ChunkType StreamChunkType
	Content   string
	IsFinal   bool
	Sources   []ScoredChunk
	Metadata  *ResponseMetadata
}

// Query is the input to ask()/stream-ask(), optionally carrying prior
// conversational context.
type Query struct {
	Question string
	Context  string
}
