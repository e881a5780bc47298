package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRepository_CloneDeepCopiesMetadata(t *testing.T) {
	original := Repository{ID: "r1", Metadata: map[string]string{"owner": "acme"}}
	clone := original.Clone()

	clone.Metadata["owner"] = "mutated"

	assert.Equal(t, "acme", original.Metadata["owner"])
	assert.Equal(t, "mutated", clone.Metadata["owner"])
}

func TestRepository_CloneOfNilMetadataProducesEmptyMap(t *testing.T) {
	original := Repository{ID: "r1"}
	clone := original.Clone()

	assert.NotNil(t, clone.Metadata)
	assert.Empty(t, clone.Metadata)
}
