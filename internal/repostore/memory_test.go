package repostore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codewiki/internal/domain"
)

func TestMemory_SaveAndLoad(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Save(ctx, domain.Repository{ID: "r1", OwnerID: "u1", Status: domain.StatusPending}))

	got, err := m.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
}

func TestMemory_LoadMissingReturnsNotFound(t *testing.T) {
	m := NewMemory()
	_, err := m.Load(context.Background(), "missing")
	assert.Error(t, err)
}

func TestMemory_UpdateStatus_SetsIndexedAtOnlyOnCompleted(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Save(ctx, domain.Repository{ID: "r1"}))

	require.NoError(t, m.UpdateStatus(ctx, "r1", domain.StatusIndexing, 0.5))
	got, err := m.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Nil(t, got.IndexedAt)

	require.NoError(t, m.UpdateStatus(ctx, "r1", domain.StatusCompleted, 1.0))
	got, err = m.Load(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, got.IndexedAt)
}

func TestMemory_UpdateMetadataMergesKeys(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Save(ctx, domain.Repository{ID: "r1", Metadata: map[string]string{"owner": "acme"}}))

	require.NoError(t, m.UpdateMetadata(ctx, "r1", map[string]string{"name": "widget"}))
	got, err := m.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "acme", got.Metadata["owner"])
	assert.Equal(t, "widget", got.Metadata["name"])
}

func TestMemory_ListFiltersByOwner(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Save(ctx, domain.Repository{ID: "r1", OwnerID: "u1"}))
	require.NoError(t, m.Save(ctx, domain.Repository{ID: "r2", OwnerID: "u2"}))

	all, err := m.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	filtered, err := m.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "r1", filtered[0].ID)
}

func TestMemory_ListByStatus(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Save(ctx, domain.Repository{ID: "r1", Status: domain.StatusCompleted}))
	require.NoError(t, m.Save(ctx, domain.Repository{ID: "r2", Status: domain.StatusFailed}))

	completed, err := m.ListByStatus(ctx, domain.StatusCompleted)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, "r1", completed[0].ID)
}

func TestMemory_StatusCounts(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Save(ctx, domain.Repository{ID: "r1", Status: domain.StatusCompleted}))
	require.NoError(t, m.Save(ctx, domain.Repository{ID: "r2", Status: domain.StatusCompleted}))
	require.NoError(t, m.Save(ctx, domain.Repository{ID: "r3", Status: domain.StatusFailed}))

	counts, err := m.StatusCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[domain.StatusCompleted])
	assert.Equal(t, 1, counts[domain.StatusFailed])
}

func TestMemory_Delete(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Save(ctx, domain.Repository{ID: "r1"}))
	require.NoError(t, m.Delete(ctx, "r1"))

	_, err := m.Load(ctx, "r1")
	assert.Error(t, err)
	assert.Error(t, m.Delete(ctx, "r1"))
}

func TestMemory_SaveClonesMetadataToPreventAliasing(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	md := map[string]string{"owner": "acme"}
	require.NoError(t, m.Save(ctx, domain.Repository{ID: "r1", Metadata: md}))

	md["owner"] = "mutated"

	got, err := m.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "acme", got.Metadata["owner"])
}
