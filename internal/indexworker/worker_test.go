package indexworker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codewiki/internal/config"
	"codewiki/internal/domain"
)

func TestHealthy_DefaultsFalseBeforeRun(t *testing.T) {
	w := New(config.Default())
	assert.False(t, w.Healthy())
}

func TestRunUnhealthy_RejectsIndexRepositoryCmd(t *testing.T) {
	w := New(config.Default())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.runUnhealthy(ctx)

	reply := make(chan Result[domain.IndexingStats], 1)
	w.Send(IndexRepositoryCmd{RepositoryID: "repo-1", Reply: reply})

	select {
	case result := <-reply:
		assert.Error(t, result.Err)
	case <-time.After(time.Second):
		t.Fatal("degraded worker never replied")
	}
}

func TestRunUnhealthy_RejectsQueryRepositoryCmd(t *testing.T) {
	w := New(config.Default())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.runUnhealthy(ctx)

	reply := make(chan Result[domain.RAGResponse], 1)
	w.Send(QueryRepositoryCmd{Query: domain.Query{Question: "q"}, Reply: reply})

	select {
	case result := <-reply:
		assert.Error(t, result.Err)
	case <-time.After(time.Second):
		t.Fatal("degraded worker never replied")
	}
}

func TestRunUnhealthy_EmitsErrorChunkForStreamQuery(t *testing.T) {
	w := New(config.Default())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.runUnhealthy(ctx)

	var chunk domain.QueryStreamChunk
	done := make(chan struct{})
	w.Send(StreamQueryRepositoryCmd{
		Query: domain.Query{Question: "q"},
		Emit:  func(c domain.QueryStreamChunk) { chunk = c },
		Done:  done,
	})

	select {
	case <-done:
		assert.Equal(t, domain.StreamError, chunk.ChunkType)
		assert.True(t, chunk.IsFinal)
	case <-time.After(time.Second):
		t.Fatal("degraded worker never closed Done")
	}
}

func TestRunUnhealthy_StopsOnContextCancellation(t *testing.T) {
	w := New(config.Default())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		w.runUnhealthy(ctx)
		close(stopped)
	}()

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("runUnhealthy did not exit after context cancellation")
	}
}

func TestSend_DoesNotBlockUnderBacklog(t *testing.T) {
	w := New(config.Default())
	require.NotNil(t, w.commands)
	for i := 0; i < 10; i++ {
		done := make(chan struct{})
		w.Send(StreamQueryRepositoryCmd{Emit: func(domain.QueryStreamChunk) {}, Done: done})
	}
}
