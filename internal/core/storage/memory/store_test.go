package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/mist/internal/core/entity"
	"github.com/zeusync/mist/internal/core/events/bus"
)

func TestSaveFindAndPublish(t *testing.T) {
	b := bus.New()
	var seen []entity.Entity
	_, err := b.Subscribe("Message", func(_ context.Context, ev bus.Event) error {
		assert.Equal(t, "memory", ev.Source())
		seen = append(seen, ev.Data().(entity.Entity))
		return nil
	})
	require.NoError(t, err)

	s := New(b, nil)
	typ := s.Define("Message")
	first := entity.NewDocument(map[string]any{"text": "a"})
	second := entity.NewDocument(map[string]any{"text": "b"})

	ctx := context.Background()
	require.NoError(t, s.Save(ctx, "Message", first))
	require.NoError(t, s.Save(ctx, "Message", second))
	require.NoError(t, s.Save(ctx, "Message", first))

	got, err := typ.Find(ctx, first.ID)
	require.NoError(t, err)
	assert.Same(t, first, got)

	all, err := typ.FindAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []entity.Entity{first, second}, all)
	assert.Len(t, seen, 3)
}

func TestSaveRejectsUnknownTypeAndMissingID(t *testing.T) {
	s := New(nil, nil)
	s.Define("Message")

	err := s.Save(context.Background(), "User", entity.NewDocument(nil))
	assert.ErrorIs(t, err, entity.ErrUnknownType)

	err = s.Save(context.Background(), "Message", &entity.Document{})
	assert.ErrorIs(t, err, entity.ErrNoID)
}

func TestDelete(t *testing.T) {
	s := New(nil, nil)
	typ := s.Define("Message")
	doc := entity.NewDocument(nil)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, "Message", doc))

	require.NoError(t, s.Delete(ctx, "Message", doc.ID))
	_, err := typ.Find(ctx, doc.ID)
	assert.ErrorIs(t, err, entity.ErrNotFound)
	all, err := typ.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	assert.ErrorIs(t, s.Delete(ctx, "Message", doc.ID), entity.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "User", doc.ID), entity.ErrUnknownType)
}

func TestTypeLookup(t *testing.T) {
	s := New(nil, nil)
	_, ok := s.Type("Message")
	assert.False(t, ok)

	s.Define("Message")
	typ, ok := s.Type("Message")
	require.True(t, ok)
	assert.Equal(t, "Message", typ.Name())
}
