package chunking

import (
	"regexp"
	"strings"

	"codewiki/internal/domain"
)

// sentenceBoundary approximates sentence ends: '.', '!', '?' followed by
// whitespace. Good enough for the default natural-language fallback; it
// does not attempt abbreviation detection.
var sentenceBoundary = regexp.MustCompile(`(?:[.!?])\s+`)

// SentenceChunker is the default splitter for natural-language documents
// (spec §4.5 item 5) and the final link in the chunker fallback chain.
type SentenceChunker struct {
	Options Options
}

func NewSentenceChunker(opt Options) *SentenceChunker {
	return &SentenceChunker{Options: clampOverlap(opt)}
}

func (s *SentenceChunker) Chunk(doc domain.Document) ([]domain.Chunk, error) {
	sentences := splitSentences(doc.Content)
	if len(sentences) == 0 {
		return nil, nil
	}

	var chunks []domain.Chunk
	var builder strings.Builder
	idx := 0
	startLine := 1
	line := 1

	flush := func() {
		content := strings.TrimSpace(builder.String())
		if content != "" {
			chunks = append(chunks, newChunk(doc, idx, content, startLine, line))
			idx++
		}
		builder.Reset()
	}

	for _, sent := range sentences {
		if builder.Len() > 0 && builder.Len()+len(sent) > s.Options.ChunkSize {
			flush()
			if s.Options.ChunkOverlap > 0 {
				tail := lastNChars(chunks, s.Options.ChunkOverlap)
				builder.WriteString(tail)
			}
			startLine = line
		}
		builder.WriteString(sent)
		builder.WriteString(" ")
		line += strings.Count(sent, "\n")
	}
	flush()

	return dropEmpty(chunks), nil
}

func splitSentences(text string) []string {
	locs := sentenceBoundary.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []string{text}
	}
	var out []string
	prev := 0
	for _, loc := range locs {
		out = append(out, text[prev:loc[1]])
		prev = loc[1]
	}
	if prev < len(text) {
		out = append(out, text[prev:])
	}
	return out
}

func lastNChars(chunks []domain.Chunk, n int) string {
	if len(chunks) == 0 {
		return ""
	}
	last := chunks[len(chunks)-1].Content
	if len(last) <= n {
		return last + " "
	}
	return last[len(last)-n:] + " "
}
