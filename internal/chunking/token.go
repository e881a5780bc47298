package chunking

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"codewiki/internal/domain"
)

// boundaryPatterns maps a language to regexes recognizing a "natural" split
// point (a new top-level declaration), used to avoid cutting a token chunk
// mid-construct when a lookahead boundary is within reach.
var boundaryPatterns = map[string][]string{
	"go":         {`^func\s`, `^type\s`},
	"rust":       {`^(pub\s+)?fn\s`, `^(pub\s+)?struct\s`, `^(pub\s+)?impl\s`},
	"python":     {`^def\s`, `^class\s`},
	"javascript": {`^function\s`, `^(export\s+)?(default\s+)?class\s`},
	"typescript": {`^function\s`, `^(export\s+)?(default\s+)?class\s`, `^interface\s`},
	"java":       {`^(public|private|protected)\s.*\s(class|interface)\s`, `^\s*(public|private|protected).*\(.*\)\s*\{?$`},
}

func isBoundary(line, language string) bool {
	line = strings.TrimSpace(line)
	for _, pattern := range boundaryPatterns[language] {
		if matched, err := regexp.MatchString(pattern, line); err == nil && matched {
			return true
		}
	}
	return false
}

// TokenChunker splits content on token-count limits (cl100k_base), looking
// ahead for a natural boundary before force-splitting (spec §4.5 item 4:
// the token splitter fallback for code).
type TokenChunker struct {
	tokenizer *tiktoken.Tiktoken
	options   Options
}

func NewTokenChunker(opt Options) (*TokenChunker, error) {
	tokenizer, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding: %w", err)
	}
	return &TokenChunker{tokenizer: tokenizer, options: clampOverlap(opt)}, nil
}

func (tc *TokenChunker) Chunk(doc domain.Document) ([]domain.Chunk, error) {
	maxTokens := tc.options.ChunkSize
	overlap := tc.options.ChunkOverlap

	lines := strings.Split(doc.Content, "\n")
	var chunks []domain.Chunk
	var current []string
	currentTokens := 0
	startLine := 1
	idx := 0

	flush := func(lastLine int) {
		content := strings.TrimSpace(strings.Join(current, "\n"))
		if content != "" {
			chunks = append(chunks, newChunk(doc, idx, content, startLine, lastLine))
			idx++
		}
	}

	i := 0
	for i < len(lines) {
		line := lines[i]
		lineTokens := len(tc.tokenizer.Encode(line, nil, nil))

		if currentTokens+lineTokens > maxTokens && len(current) > 0 {
			boundaryFound := false
			for j := i; j < i+10 && j < len(lines); j++ {
				if isBoundary(lines[j], doc.Language) {
					for k := i; k <= j; k++ {
						current = append(current, lines[k])
						currentTokens += len(tc.tokenizer.Encode(lines[k], nil, nil))
					}
					i = j + 1
					boundaryFound = true
					break
				}
			}

			flush(startLine + len(current) - 1)

			overlapLines := tc.overlapLines(current, overlap)
			startLine = startLine + len(current) - len(overlapLines)
			current = overlapLines
			currentTokens = len(tc.tokenizer.Encode(strings.Join(current, "\n"), nil, nil))

			if boundaryFound {
				continue
			}
		}

		current = append(current, line)
		currentTokens += lineTokens
		i++
	}

	if len(current) > 0 {
		flush(startLine + len(current) - 1)
	}

	return dropEmpty(chunks), nil
}

func (tc *TokenChunker) overlapLines(lines []string, overlapTokens int) []string {
	if len(lines) == 0 || overlapTokens <= 0 {
		return nil
	}
	var out []string
	total := 0
	for i := len(lines) - 1; i >= 0 && total < overlapTokens; i-- {
		total += len(tc.tokenizer.Encode(lines[i], nil, nil))
		out = append([]string{lines[i]}, out...)
	}
	return out
}
