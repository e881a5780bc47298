package ragpipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"codewiki/internal/corerr"
	"codewiki/internal/domain"
	"codewiki/internal/llmclient"
)

// Ask runs one retrieval+generation round (spec §4.6 "ask(query)").
func (p *Pipeline) Ask(ctx context.Context, query domain.Query) (domain.RAGResponse, error) {
	retrievalStart := time.Now()
	sources, err := p.retrieve(ctx, query.Question)
	if err != nil {
		return domain.RAGResponse{}, err
	}
	retrievalMS := time.Since(retrievalStart).Milliseconds()

	if len(sources) == 0 {
		return domain.RAGResponse{
			Answer:  noInfoAnswer,
			Sources: nil,
			Metadata: domain.ResponseMetadata{
				RetrievalTimeMS: retrievalMS,
				ModelUsed:       p.cfg.LLM.Model,
			},
		}, nil
	}

	contextStr, contextTokens := p.assembleContext(sources)
	userPrompt := p.composePrompt(contextStr, query)

	genStart := time.Now()
	answer, err := p.llm.Chat(ctx, []llmclient.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}, p.cfg.LLM.Model, p.cfg.LLM.Temperature, p.cfg.LLM.MaxTokens)
	genMS := time.Since(genStart).Milliseconds()
	if err != nil {
		return domain.RAGResponse{}, corerr.Wrap(corerr.KindGeneration, "llm chat failed", err)
	}

	return domain.RAGResponse{
		Answer:  answer,
		Sources: sources,
		Metadata: domain.ResponseMetadata{
			ChunksRetrieved:  len(sources),
			ContextTokens:    contextTokens,
			GenerationTokens: approxTokens(answer),
			RetrievalTimeMS:  retrievalMS,
			GenerationTimeMS: genMS,
			ModelUsed:        p.cfg.LLM.Model,
		},
	}, nil
}

// AskStream runs the same retrieval+prompt assembly as Ask, then streams
// the LLM's tokens as Content chunks, terminated by exactly one Complete
// or Error chunk (spec §4.6 "Streaming variant", §3 invariant).
func (p *Pipeline) AskStream(ctx context.Context, query domain.Query, emit func(domain.QueryStreamChunk)) error {
	retrievalStart := time.Now()
	sources, err := p.retrieve(ctx, query.Question)
	if err != nil {
		emit(domain.QueryStreamChunk{ChunkType: domain.StreamError, Content: err.Error(), IsFinal: true})
		return err
	}
	retrievalMS := time.Since(retrievalStart).Milliseconds()

	if len(sources) == 0 {
		emit(domain.QueryStreamChunk{
			ChunkType: domain.StreamComplete,
			Content:   noInfoAnswer,
			IsFinal:   true,
			Sources:   nil,
			Metadata:  &domain.ResponseMetadata{RetrievalTimeMS: retrievalMS, ModelUsed: p.cfg.LLM.Model},
		})
		return nil
	}

	contextStr, contextTokens := p.assembleContext(sources)
	userPrompt := p.composePrompt(contextStr, query)

	genStart := time.Now()
	var answer strings.Builder
	handler := streamHandlerFunc(func(delta string) {
		answer.WriteString(delta)
		emit(domain.QueryStreamChunk{ChunkType: domain.StreamContent, Content: delta})
	})

	err = p.llm.ChatStream(ctx, []llmclient.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}, p.cfg.LLM.Model, p.cfg.LLM.Temperature, p.cfg.LLM.MaxTokens, handler)
	genMS := time.Since(genStart).Milliseconds()

	if err != nil {
		emit(domain.QueryStreamChunk{ChunkType: domain.StreamError, Content: err.Error(), IsFinal: true})
		return corerr.Wrap(corerr.KindGeneration, "llm chat stream failed", err)
	}

	emit(domain.QueryStreamChunk{
		ChunkType: domain.StreamComplete,
		Content:   answer.String(),
		IsFinal:   true,
		Sources:   sources,
		Metadata: &domain.ResponseMetadata{
			ChunksRetrieved:  len(sources),
			ContextTokens:    contextTokens,
			GenerationTokens: approxTokens(answer.String()),
			RetrievalTimeMS:  retrievalMS,
			GenerationTimeMS: genMS,
			ModelUsed:        p.cfg.LLM.Model,
		},
	})
	return nil
}

type streamHandlerFunc func(delta string)

func (f streamHandlerFunc) OnDelta(delta string) { f(delta) }

func (p *Pipeline) retrieve(ctx context.Context, question string) ([]domain.ScoredChunk, error) {
	vecs, err := p.embedder.EmbedBatch(ctx, []string{question})
	if err != nil || len(vecs) == 0 {
		return nil, corerr.Wrap(corerr.KindRetrieval, "embed query", err)
	}
	queryVec := vecs[0]
	if len(queryVec) != p.store.Dimension() {
		return nil, corerr.New(corerr.KindRetrieval, "query embedding dimension mismatch")
	}

	return p.store.Search(ctx, queryVec, p.cfg.RAG.TopK, float32(p.cfg.RAG.SimilarityThreshold))
}

func (p *Pipeline) assembleContext(sources []domain.ScoredChunk) (string, int) {
	var sb strings.Builder
	for i, s := range sources {
		label := s.Chunk.FilePath
		if label == "" {
			label = fmt.Sprintf("chunk:%s", shortID(s.Chunk.ID))
		}
		sb.WriteString(fmt.Sprintf("[Source %d: %s]\n", i+1, label))
		sb.WriteString(s.Chunk.Content)
		sb.WriteString("\n\n---\n\n")
	}
	text := sb.String()
	return text, approxTokens(text)
}

func (p *Pipeline) composePrompt(contextStr string, query domain.Query) string {
	prompt := strings.NewReplacer("{context}", contextStr, "{question}", query.Question).Replace(userPromptTemplate)
	if strings.TrimSpace(query.Context) != "" {
		prompt = "Previous conversation:\n" + query.Context + "\n\n" + prompt
	}
	return prompt
}

func approxTokens(s string) int {
	return len(s) / 4
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
