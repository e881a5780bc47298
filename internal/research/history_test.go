package research

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryHistory_SaveLoadList(t *testing.T) {
	h := NewMemoryHistory()
	ctx := context.Background()

	require.NoError(t, h.Save(ctx, HistoryRecord{SessionID: "s1", Topic: "topic one", UserID: "u1", StartedAt: time.Now()}))
	require.NoError(t, h.Save(ctx, HistoryRecord{SessionID: "s2", Topic: "topic two", UserID: "u2", StartedAt: time.Now()}))

	got, err := h.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "topic one", got.Topic)

	all, err := h.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	filtered, err := h.List(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "s2", filtered[0].SessionID)
}

func TestMemoryHistory_LoadMissingReturnsNotFound(t *testing.T) {
	h := NewMemoryHistory()
	_, err := h.Load(context.Background(), "missing")
	assert.Error(t, err)
}

func TestMemoryHistory_Delete(t *testing.T) {
	h := NewMemoryHistory()
	ctx := context.Background()
	require.NoError(t, h.Save(ctx, HistoryRecord{SessionID: "s1"}))
	require.NoError(t, h.Delete(ctx, "s1"))
	_, err := h.Load(ctx, "s1")
	assert.Error(t, err)
	assert.Error(t, h.Delete(ctx, "s1"))
}

func TestFileHistory_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.yaml")
	ctx := context.Background()

	first := NewFileHistory(path)
	require.NoError(t, first.Save(ctx, HistoryRecord{SessionID: "s1", Topic: "persisted topic", StartedAt: time.Now()}))

	second := NewFileHistory(path)
	got, err := second.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "persisted topic", got.Topic)
}

func TestFileHistory_LoadFromMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.yaml")
	h := NewFileHistory(path)
	_, err := h.Load(context.Background(), "anything")
	assert.Error(t, err)
}

func TestFileHistory_Delete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.yaml")
	ctx := context.Background()
	h := NewFileHistory(path)

	require.NoError(t, h.Save(ctx, HistoryRecord{SessionID: "s1"}))
	require.NoError(t, h.Delete(ctx, "s1"))

	_, err := h.Load(ctx, "s1")
	assert.Error(t, err)
}
