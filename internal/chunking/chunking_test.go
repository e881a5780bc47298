package chunking

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codewiki/internal/domain"
)

func TestSentenceChunker_SplitsOnSentenceBoundaries(t *testing.T) {
	c := NewSentenceChunker(Options{ChunkSize: 1000})
	doc := domain.Document{ID: "d1", Content: "First sentence. Second sentence. Third sentence."}

	chunks, err := c.Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Content, "First sentence.")
}

func TestSentenceChunker_RespectsChunkSize(t *testing.T) {
	c := NewSentenceChunker(Options{ChunkSize: 20})
	doc := domain.Document{ID: "d1", Content: "One sentence here. Another one follows. A third one too."}

	chunks, err := c.Chunk(doc)
	require.NoError(t, err)
	assert.Greater(t, len(chunks), 1)
}

func TestSentenceChunker_EmptyContentReturnsNoChunks(t *testing.T) {
	c := NewSentenceChunker(Options{ChunkSize: 100})
	chunks, err := c.Chunk(domain.Document{ID: "d1", Content: "   "})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestTokenChunker_SplitsLongContentByTokenLimit(t *testing.T) {
	tc, err := NewTokenChunker(Options{ChunkSize: 5})
	require.NoError(t, err)

	var lines []string
	for i := 0; i < 20; i++ {
		lines = append(lines, "x = 1")
	}
	doc := domain.Document{ID: "d1", Language: "python", Content: strings.Join(lines, "\n")}

	chunks, err := tc.Chunk(doc)
	require.NoError(t, err)
	assert.Greater(t, len(chunks), 1)
}

func TestTokenChunker_SingleSmallDocumentIsOneChunk(t *testing.T) {
	tc, err := NewTokenChunker(Options{ChunkSize: 1000})
	require.NoError(t, err)

	doc := domain.Document{ID: "d1", Language: "go", Content: "package main\n\nfunc main() {}\n"}
	chunks, err := tc.Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
}

func TestMarkdownChunker_SplitsOnHeadings(t *testing.T) {
	mc := NewMarkdownChunker(Options{ChunkSize: 1000})
	doc := domain.Document{ID: "d1", Language: "markdown", Content: "# Title\n\nIntro text.\n\n## Section\n\nBody text."}

	chunks, err := mc.Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "# Title", chunks[0].Metadata["heading"])
	assert.Equal(t, "## Section", chunks[1].Metadata["heading"])
}

func TestMarkdownChunker_NoHeadingsTreatsWholeDocAsOneSection(t *testing.T) {
	mc := NewMarkdownChunker(Options{ChunkSize: 1000})
	doc := domain.Document{ID: "d1", Language: "markdown", Content: "Just a paragraph with no heading."}

	chunks, err := mc.Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.NotContains(t, chunks[0].Metadata, "heading")
}

func TestMarkdownChunker_EmptyContentReturnsNoChunks(t *testing.T) {
	mc := NewMarkdownChunker(Options{ChunkSize: 1000})
	chunks, err := mc.Chunk(domain.Document{ID: "d1", Content: ""})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestASTChunker_SupportsRegisteredLanguagesOnly(t *testing.T) {
	ac := NewASTChunker(Options{ChunkSize: 1000})
	assert.True(t, ac.Supports("go"))
	assert.True(t, ac.Supports("python"))
	assert.False(t, ac.Supports("cobol"))
}

func TestASTChunker_ExtractsFunctionDeclarations(t *testing.T) {
	ac := NewASTChunker(Options{ChunkSize: 1000})
	doc := domain.Document{
		ID:       "d1",
		Language: "go",
		FileType: domain.FileTypeCode,
		Content:  "package main\n\nfunc add(a, b int) int {\n\treturn a + b\n}\n\nfunc sub(a, b int) int {\n\treturn a - b\n}\n",
	}

	chunks, err := ac.Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "function", chunks[0].Metadata["node_kind"])
}

func TestASTChunker_NoParserForLanguageReturnsError(t *testing.T) {
	ac := NewASTChunker(Options{ChunkSize: 1000})
	_, err := ac.Chunk(domain.Document{ID: "d1", Language: "cobol", Content: "IDENTIFICATION DIVISION."})
	assert.Error(t, err)
}

func TestRegistry_SelectsASTForSupportedCodeLanguage(t *testing.T) {
	r, err := NewRegistry(Options{ChunkSize: 1000, EnableASTCodeSplitting: true})
	require.NoError(t, err)

	doc := domain.Document{Language: "go", FileType: domain.FileTypeCode}
	selected := r.Select(doc)
	assert.Same(t, r.ast, selected)
}

func TestRegistry_SelectsTokenForUnsupportedCodeLanguage(t *testing.T) {
	r, err := NewRegistry(Options{ChunkSize: 1000, EnableASTCodeSplitting: true})
	require.NoError(t, err)

	doc := domain.Document{Language: "cobol", FileType: domain.FileTypeCode}
	selected := r.Select(doc)
	assert.Same(t, r.token, selected)
}

func TestRegistry_SelectsMarkdownWhenStructurePreservationEnabled(t *testing.T) {
	r, err := NewRegistry(Options{ChunkSize: 1000, PreserveMarkdownStructure: true})
	require.NoError(t, err)

	doc := domain.Document{Language: "markdown", FileType: domain.FileTypeDocumentation}
	selected := r.Select(doc)
	assert.Same(t, r.markdown, selected)
}

func TestRegistry_SelectsSentenceForPlainText(t *testing.T) {
	r, err := NewRegistry(Options{ChunkSize: 1000})
	require.NoError(t, err)

	doc := domain.Document{Language: "text", FileType: domain.FileTypeDocumentation}
	selected := r.Select(doc)
	assert.Same(t, r.sentence, selected)
}

func TestRegistry_ChunkFallsBackToTokenOnPrimaryFailure(t *testing.T) {
	r, err := NewRegistry(Options{ChunkSize: 1000, EnableASTCodeSplitting: true})
	require.NoError(t, err)

	// No function or class definitions, so the AST chunker yields nothing
	// and the registry falls back to the token splitter.
	doc := domain.Document{ID: "d1", Language: "python", FileType: domain.FileTypeCode, Content: "x = 1\ny = 2\n"}
	chunks, err := r.Chunk(doc)
	require.NoError(t, err)
	assert.NotEmpty(t, chunks)
	assert.NotContains(t, chunks[0].Metadata, "node_kind")
}

func TestClampOverlap_CapsOverlapAtHalfChunkSize(t *testing.T) {
	opt := clampOverlap(Options{ChunkSize: 100, ChunkOverlap: 90})
	assert.Equal(t, 50, opt.ChunkOverlap)
}

func TestClampOverlap_DefaultsChunkSizeWhenNonPositive(t *testing.T) {
	opt := clampOverlap(Options{ChunkSize: 0})
	assert.Equal(t, 1000, opt.ChunkSize)
}

func TestClampOverlap_NegativeOverlapBecomesZero(t *testing.T) {
	opt := clampOverlap(Options{ChunkSize: 100, ChunkOverlap: -5})
	assert.Equal(t, 0, opt.ChunkOverlap)
}
