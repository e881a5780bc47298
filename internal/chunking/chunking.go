// Package chunking implements the chunker set (C1): AST-aware code
// splitting, markdown-structural splitting, token splitting, and sentence
// splitting, selected by the routing policy in Select.
package chunking

import (
	"strings"

	"github.com/google/uuid"

	"codewiki/internal/domain"
)

// Options are the common chunking parameters shared by every splitter
// (spec §4.5): chunk_size in characters (or tokens, for the token
// splitter) and chunk_overlap, which must not exceed half of chunk_size.
type Options struct {
	ChunkSize    int
	ChunkOverlap int

	EnableASTCodeSplitting    bool
	PreserveMarkdownStructure bool
	EnableSemanticSplitting   bool
}

// Chunker produces chunks from one document.
type Chunker interface {
	Chunk(doc domain.Document) ([]domain.Chunk, error)
}

// newChunk builds a Chunk skeleton shared by every splitter implementation.
func newChunk(doc domain.Document, index int, content string, startLine, endLine int) domain.Chunk {
	return domain.Chunk{
		ID:         uuid.NewString(),
		Content:    content,
		DocumentID: doc.ID,
		ChunkIndex: index,
		FilePath:   doc.FilePath,
		Language:   doc.Language,
		FileType:   doc.FileType,
		StartLine:  startLine,
		EndLine:    endLine,
		Metadata: map[string]string{
			"file_path": doc.FilePath,
		},
	}
}

// dropEmpty filters out whitespace-only chunks (spec §4.5: "Empty chunks
// are dropped").
func dropEmpty(chunks []domain.Chunk) []domain.Chunk {
	out := chunks[:0]
	for _, c := range chunks {
		if strings.TrimSpace(c.Content) == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}

func clampOverlap(opt Options) Options {
	if opt.ChunkSize <= 0 {
		opt.ChunkSize = 1000
	}
	if opt.ChunkOverlap > opt.ChunkSize/2 {
		opt.ChunkOverlap = opt.ChunkSize / 2
	}
	if opt.ChunkOverlap < 0 {
		opt.ChunkOverlap = 0
	}
	return opt
}
