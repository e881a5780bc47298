package chunking

import (
	"codewiki/internal/domain"
	"codewiki/internal/logging"
)

// Registry implements the intelligent routing policy of spec §4.5: select
// an AST splitter for recognized code languages, a markdown-structural
// splitter for markdown, and fall back through token and sentence
// splitters, with the token splitter always the safety net on failure.
type Registry struct {
	options  Options
	ast      *ASTChunker
	markdown *MarkdownChunker
	token    *TokenChunker
	sentence *SentenceChunker
}

func NewRegistry(opt Options) (*Registry, error) {
	opt = clampOverlap(opt)

	tok, err := NewTokenChunker(opt)
	if err != nil {
		return nil, err
	}

	r := &Registry{
		options:  opt,
		markdown: NewMarkdownChunker(opt),
		token:    tok,
		sentence: NewSentenceChunker(opt),
	}
	if opt.EnableASTCodeSplitting {
		r.ast = NewASTChunker(opt)
	}
	return r, nil
}

// Select picks the chunker for a document per the routing policy, without
// running it.
func (r *Registry) Select(doc domain.Document) Chunker {
	if doc.FileType == domain.FileTypeCode && r.ast != nil && r.ast.Supports(doc.Language) {
		return r.ast
	}
	if doc.Language == "markdown" && r.options.PreserveMarkdownStructure {
		return r.markdown
	}
	if doc.FileType == domain.FileTypeCode {
		return r.token
	}
	return r.sentence
}

// Chunk runs the selected chunker and falls back to the token splitter,
// and finally the sentence splitter, on failure (spec §4.5: "On chunker
// failure, fall back to token splitter before surfacing an error").
func (r *Registry) Chunk(doc domain.Document) ([]domain.Chunk, error) {
	primary := r.Select(doc)
	chunks, err := primary.Chunk(doc)
	if err == nil && len(chunks) > 0 {
		return chunks, nil
	}
	if err != nil {
		logging.Log.WithError(err).WithField("file_path", doc.FilePath).
			Warn("chunker failed, falling back to token splitter")
	}
	if primary != Chunker(r.token) {
		chunks, err = r.token.Chunk(doc)
		if err == nil && len(chunks) > 0 {
			return chunks, nil
		}
	}
	return r.sentence.Chunk(doc)
}
