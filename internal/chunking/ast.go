package chunking

import (
	"fmt"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"codewiki/internal/domain"
)

const (
	minChunkSizeBytes = 10
	overlapLinesRatio = 10
	maxOverlapLines    = 10
	minOverlapLines    = 1
)

// semanticNodeTypes lists the Tree-sitter grammar node type strings that
// denote a top-level declaration worth chunking on its own, per language.
// These strings are defined by each grammar, not by this package.
var semanticNodeTypes = map[string][]string{
	"go":         {"function_declaration", "method_declaration", "type_declaration"},
	"python":     {"function_definition", "class_definition"},
	"javascript": {"function_declaration", "class_declaration", "method_definition", "arrow_function"},
	"typescript": {"function_declaration", "class_declaration", "interface_declaration", "method_definition"},
	"java":       {"class_declaration", "interface_declaration", "enum_declaration", "method_declaration", "constructor_declaration"},
}

var classNodeTypes = map[string]bool{
	"class_declaration":     true,
	"interface_declaration": true,
	"enum_declaration":      true,
	"class_definition":      true,
}

// ASTChunker extracts semantic chunks (functions, classes, methods) via
// Tree-sitter parsing, selected when the document's language has a parser
// available and AST splitting is enabled (spec §4.5 item 1). Tree-sitter
// parsers are not thread-safe, so access is serialized by mux.
type ASTChunker struct {
	parsers map[string]*sitter.Parser
	mux     sync.Mutex
	options Options
}

func NewASTChunker(opt Options) *ASTChunker {
	ac := &ASTChunker{parsers: make(map[string]*sitter.Parser), options: clampOverlap(opt)}
	ac.initParsers()
	return ac
}

func (ac *ASTChunker) initParsers() {
	add := func(lang string, grammar *sitter.Language) {
		p := sitter.NewParser()
		p.SetLanguage(grammar)
		ac.parsers[lang] = p
	}
	add("go", golang.GetLanguage())
	add("python", python.GetLanguage())
	add("javascript", javascript.GetLanguage())
	add("typescript", typescript.GetLanguage())
	add("java", java.GetLanguage())
}

// Supports reports whether a parser is registered for language.
func (ac *ASTChunker) Supports(language string) bool {
	_, ok := ac.parsers[language]
	return ok
}

func (ac *ASTChunker) Chunk(doc domain.Document) ([]domain.Chunk, error) {
	ac.mux.Lock()
	parser, ok := ac.parsers[doc.Language]
	if !ok {
		ac.mux.Unlock()
		return nil, fmt.Errorf("no AST parser for language %q", doc.Language)
	}
	tree := parser.Parse(nil, []byte(doc.Content))
	ac.mux.Unlock()
	if tree == nil {
		return nil, fmt.Errorf("parse %s: failed to produce a tree", doc.FilePath)
	}

	root := tree.RootNode()
	if root == nil {
		return nil, fmt.Errorf("empty parse tree for %s", doc.FilePath)
	}

	nodeTypes := make(map[string]bool)
	for _, t := range semanticNodeTypes[doc.Language] {
		nodeTypes[t] = true
	}

	var out []domain.Chunk
	idx := 0
	ac.walk(root, nodeTypes, func(node *sitter.Node, nodeType string) {
		c := ac.fromNode(doc, node, nodeType, idx)
		if c == nil {
			return
		}
		if len(c.Content) > ac.options.ChunkSize {
			for _, split := range ac.splitLarge(*c, doc) {
				split.ChunkIndex = idx
				out = append(out, split)
				idx++
			}
			return
		}
		c.ChunkIndex = idx
		out = append(out, *c)
		idx++
	})

	return dropEmpty(out), nil
}

func (ac *ASTChunker) walk(node *sitter.Node, nodeTypes map[string]bool, visit func(*sitter.Node, string)) {
	if node == nil {
		return
	}
	t := node.Type()
	if nodeTypes[t] {
		visit(node, t)
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		ac.walk(node.Child(i), nodeTypes, visit)
	}
}

func (ac *ASTChunker) fromNode(doc domain.Document, node *sitter.Node, nodeType string, idx int) *domain.Chunk {
	start, end := node.StartByte(), node.EndByte()
	if start >= end || int(end) > len(doc.Content) {
		return nil
	}
	content := doc.Content[start:end]
	if len(strings.TrimSpace(content)) < minChunkSizeBytes {
		return nil
	}
	startLine := int(node.StartPoint().Row) + 1
	endLine := int(node.EndPoint().Row) + 1

	c := newChunk(doc, idx, content, startLine, endLine)
	if classNodeTypes[nodeType] {
		c.Metadata["node_kind"] = "class"
	} else {
		c.Metadata["node_kind"] = "function"
	}
	return &c
}

// splitLarge breaks a too-large AST chunk by lines, never by mid-construct
// beyond this necessity (spec §4.5 item 1: exceeding chunk_size is the only
// case in which a syntactic construct may be split).
func (ac *ASTChunker) splitLarge(c domain.Chunk, doc domain.Document) []domain.Chunk {
	lines := strings.Split(c.Content, "\n")
	overlap := len(lines) / overlapLinesRatio
	if overlap > maxOverlapLines {
		overlap = maxOverlapLines
	}
	if overlap < minOverlapLines {
		overlap = minOverlapLines
	}

	var out []domain.Chunk
	var cur []string
	size := 0
	startLine := c.StartLine
	line := c.StartLine

	flush := func() {
		content := strings.TrimSpace(strings.Join(cur, "\n"))
		if content == "" {
			return
		}
		nc := newChunk(doc, 0, content, startLine, line-1)
		nc.Metadata["node_kind"] = c.Metadata["node_kind"]
		nc.Metadata["split_from"] = "ast"
		out = append(out, nc)
	}

	for _, l := range lines {
		if size+len(l) > ac.options.ChunkSize && len(cur) > 0 {
			flush()
			tailStart := len(cur) - overlap
			if tailStart < 0 {
				tailStart = 0
			}
			tail := cur[tailStart:]
			startLine = line - len(tail)
			cur = append([]string{}, tail...)
			size = 0
			for _, t := range cur {
				size += len(t)
			}
		}
		cur = append(cur, l)
		size += len(l)
		line++
	}
	flush()
	return out
}
