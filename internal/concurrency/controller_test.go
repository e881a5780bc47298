package concurrency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codewiki/internal/corerr"
)

func TestStart_RunsTaskAndCleansUpOnCompletion(t *testing.T) {
	c := New(2)
	done := make(chan struct{})

	err := c.Start(context.Background(), "repo-1", "/tmp/repo-1", func(ctx context.Context) {
		close(done)
	})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}

	assert.Eventually(t, func() bool { return !c.IsIndexing("repo-1") }, time.Second, time.Millisecond)
	assert.False(t, c.IsRepositoryIndexing("/tmp/repo-1"))
}

func TestStart_RejectsDuplicateID(t *testing.T) {
	c := New(2)
	block := make(chan struct{})
	started := make(chan struct{})

	err := c.Start(context.Background(), "repo-1", "/tmp/a", func(ctx context.Context) {
		close(started)
		<-block
	})
	require.NoError(t, err)
	<-started

	err = c.Start(context.Background(), "repo-1", "/tmp/b", func(ctx context.Context) {})
	assert.True(t, corerr.Is(err, corerr.KindConflict))

	close(block)
}

func TestStart_RejectsDuplicatePath(t *testing.T) {
	c := New(2)
	block := make(chan struct{})
	started := make(chan struct{})

	err := c.Start(context.Background(), "repo-1", "/tmp/same", func(ctx context.Context) {
		close(started)
		<-block
	})
	require.NoError(t, err)
	<-started

	err = c.Start(context.Background(), "repo-2", "/tmp/same", func(ctx context.Context) {})
	assert.True(t, corerr.Is(err, corerr.KindConflict))

	close(block)
}

func TestCancel_StopsTaskContext(t *testing.T) {
	c := New(1)
	cancelled := make(chan struct{})

	err := c.Start(context.Background(), "repo-1", "/tmp/cancel-me", func(ctx context.Context) {
		<-ctx.Done()
		close(cancelled)
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return c.IsIndexing("repo-1") }, time.Second, time.Millisecond)
	c.Cancel("repo-1")

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("task context was not cancelled")
	}
	assert.False(t, c.IsIndexing("repo-1"))
}

func TestStart_BoundsPeakConcurrency(t *testing.T) {
	c := New(1)
	release := make(chan struct{})
	firstRunning := make(chan struct{})

	require.NoError(t, c.Start(context.Background(), "repo-1", "/tmp/one", func(ctx context.Context) {
		close(firstRunning)
		<-release
	}))
	<-firstRunning

	secondStarted := make(chan struct{})
	require.NoError(t, c.Start(context.Background(), "repo-2", "/tmp/two", func(ctx context.Context) {
		close(secondStarted)
	}))

	select {
	case <-secondStarted:
		t.Fatal("second task ran before semaphore permit was free")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-secondStarted:
	case <-time.After(time.Second):
		t.Fatal("second task never ran after permit freed")
	}
}
