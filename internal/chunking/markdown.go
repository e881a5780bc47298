package chunking

import (
	"regexp"
	"strings"

	"codewiki/internal/domain"
)

var mdHeadingRe = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+?)\s*$`)

// MarkdownChunker splits markdown on headings, keeping each heading's text
// attached to its descendant body chunks (spec §4.5 item 2), selected when
// language=markdown and structure preservation is enabled.
type MarkdownChunker struct {
	Options Options
}

func NewMarkdownChunker(opt Options) *MarkdownChunker {
	return &MarkdownChunker{Options: clampOverlap(opt)}
}

type mdSection struct {
	heading string
	body    string
	line    int
}

func (m *MarkdownChunker) Chunk(doc domain.Document) ([]domain.Chunk, error) {
	text := strings.ReplaceAll(doc.Content, "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	locs := mdHeadingRe.FindAllStringSubmatchIndex(text, -1)
	var sections []mdSection
	if len(locs) == 0 {
		sections = append(sections, mdSection{heading: "", body: text, line: 1})
	} else {
		for i, loc := range locs {
			start := loc[0]
			end := len(text)
			if i+1 < len(locs) {
				end = locs[i+1][0]
			}
			heading := strings.TrimSpace(text[loc[0]:loc[1]])
			body := strings.TrimSpace(text[loc[1]:end])
			sections = append(sections, mdSection{
				heading: heading,
				body:    body,
				line:    1 + strings.Count(text[:start], "\n"),
			})
		}
	}

	var chunks []domain.Chunk
	idx := 0
	for _, sec := range sections {
		groups := groupBySize(sec.body, m.Options.ChunkSize, m.Options.ChunkOverlap)
		if len(groups) == 0 {
			groups = []string{""}
		}
		for _, g := range groups {
			content := g
			if sec.heading != "" {
				content = sec.heading + "\n\n" + g
			}
			content = strings.TrimSpace(content)
			if content == "" {
				continue
			}
			c := newChunk(doc, idx, content, sec.line, sec.line+strings.Count(g, "\n"))
			if sec.heading != "" {
				c.Metadata["heading"] = sec.heading
			}
			chunks = append(chunks, c)
			idx++
		}
	}

	return dropEmpty(chunks), nil
}

// groupBySize packs paragraphs into windows of about size bytes with the
// requested byte overlap between consecutive windows. Paragraphs are never
// split, so a paragraph longer than size yields a window larger than size.
func groupBySize(text string, size, overlap int) []string {
	paras := strings.Split(text, "\n\n")
	var groups []string
	var cur strings.Builder

	flush := func() {
		if strings.TrimSpace(cur.String()) != "" {
			groups = append(groups, strings.TrimSpace(cur.String()))
		}
	}

	for _, p := range paras {
		if cur.Len() > 0 && cur.Len()+len(p) > size {
			flush()
			tail := ""
			if overlap > 0 && cur.Len() > overlap {
				s := cur.String()
				tail = s[len(s)-overlap:]
			}
			cur.Reset()
			cur.WriteString(tail)
		}
		cur.WriteString(p)
		cur.WriteString("\n\n")
	}
	flush()
	return groups
}
