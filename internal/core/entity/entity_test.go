package entity

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentJSON(t *testing.T) {
	doc := NewDocument(map[string]any{"title": "hello", "done": true})
	id, ok := doc.EntityID()
	require.True(t, ok)

	data, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"`+id.String()+`","title":"hello","done":true}`, string(data))

	e, err := DocumentDecoder()(data)
	require.NoError(t, err)
	back := e.(*Document)
	assert.Equal(t, id, back.ID)
	assert.Equal(t, map[string]any{"title": "hello", "done": true}, back.Fields)
}

func TestDocumentWithoutID(t *testing.T) {
	var doc Document
	require.NoError(t, json.Unmarshal([]byte(`{"title":"x"}`), &doc))
	_, ok := doc.EntityID()
	assert.False(t, ok)

	var nilDoc *Document
	_, ok = nilDoc.EntityID()
	assert.False(t, ok)

	assert.Error(t, json.Unmarshal([]byte(`{"id":"nope"}`), &doc))
}

func TestNewType(t *testing.T) {
	doc := NewDocument(nil)
	typ := NewType("Message", func(_ context.Context, id uuid.UUID) (Entity, error) {
		if id == doc.ID {
			return doc, nil
		}
		return nil, ErrNotFound
	}, nil)

	assert.Equal(t, "Message", typ.Name())
	assert.Equal(t, "message", Key(typ.Name()))

	got, err := typ.Find(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Same(t, doc, got)

	_, err = typ.Find(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := typ.FindAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}
