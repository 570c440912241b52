package action

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/mist/internal/core/entity"
	"github.com/zeusync/mist/internal/core/protocol"
	"github.com/zeusync/mist/internal/core/storage/memory"
)

func TestDeleteRemovesFromEveryType(t *testing.T) {
	ctx := context.Background()
	store := memory.New(nil, nil)
	m1, m2 := store.Define("M1"), store.Define("M2")

	doc := entity.NewDocument(map[string]any{"name": "a"})
	require.NoError(t, store.Save(ctx, "M1", doc))
	require.NoError(t, store.Save(ctx, "M2", &entity.Document{ID: doc.ID}))

	del := Delete("M1", "M2")
	assert.Equal(t, DeleteName, del.Name())

	result, err := del.Execute(ctx, doc.ID, store)
	require.NoError(t, err)
	assert.Equal(t, protocol.Success(""), result)

	_, err = m1.Find(ctx, doc.ID)
	assert.ErrorIs(t, err, entity.ErrNotFound)
	_, err = m2.Find(ctx, doc.ID)
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestDeleteMissingEntityFails(t *testing.T) {
	store := memory.New(nil, nil)
	store.Define("M1")
	id := uuid.New()

	result, err := Delete("M1").Execute(context.Background(), id, store)
	require.NoError(t, err)
	assert.Equal(t, protocol.Failure("entity '"+id.String()+"' not found"), result)
}
