package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/mist/internal/core/entity"
	"github.com/zeusync/mist/internal/core/events/bus"
)

type message struct {
	ID   uuid.UUID `json:"id"`
	Text string    `json:"text"`
}

func (m *message) EntityID() (uuid.UUID, bool) { return m.ID, m.ID != uuid.Nil }

func openStore(t *testing.T, b bus.EventBus) *Store {
	t.Helper()
	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "mist.db"), PoolSize: 2, Bus: b})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveFindUpsert(t *testing.T) {
	s := openStore(t, nil)
	typ := s.Define("Message", entity.JSONDecoder[message]())
	ctx := context.Background()

	a := &message{ID: uuid.New(), Text: "a"}
	b := &message{ID: uuid.New(), Text: "b"}
	require.NoError(t, s.Save(ctx, "Message", a))
	require.NoError(t, s.Save(ctx, "Message", b))
	a.Text = "a2"
	require.NoError(t, s.Save(ctx, "Message", a))

	got, err := typ.Find(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, &message{ID: a.ID, Text: "a2"}, got)

	all, err := typ.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, a.ID, all[0].(*message).ID, "upsert keeps the original position")
	assert.Equal(t, b.ID, all[1].(*message).ID)

	n, err := s.Count(ctx, "Message")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = typ.Find(ctx, uuid.New())
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestCommitIsPublishedAfterWrite(t *testing.T) {
	b := bus.New()
	s := openStore(t, b)
	typ := s.Define("Message", entity.JSONDecoder[message]())
	ctx := context.Background()

	var found []entity.Entity
	_, err := b.Subscribe("Message", func(ctx context.Context, ev bus.Event) error {
		assert.Equal(t, "sqlite", ev.Source())
		id, _ := ev.Data().(entity.Entity).EntityID()
		e, err := typ.Find(ctx, id)
		if err != nil {
			return err
		}
		found = append(found, e)
		return nil
	})
	require.NoError(t, err)

	m := &message{ID: uuid.New(), Text: "hello"}
	require.NoError(t, s.Save(ctx, "Message", m))
	require.Len(t, found, 1)
	assert.Equal(t, "hello", found[0].(*message).Text)
}

func TestDocumentsRoundTrip(t *testing.T) {
	s := openStore(t, nil)
	typ := s.Define("Note", entity.DocumentDecoder())
	doc := entity.NewDocument(map[string]any{"title": "t", "n": float64(3)})
	require.NoError(t, s.Save(context.Background(), "Note", doc))

	got, err := typ.Find(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc, got)
}

func TestDeleteAndErrors(t *testing.T) {
	s := openStore(t, nil)
	typ := s.Define("Message", entity.JSONDecoder[message]())
	ctx := context.Background()
	m := &message{ID: uuid.New(), Text: "x"}
	require.NoError(t, s.Save(ctx, "Message", m))

	require.NoError(t, s.Delete(ctx, "Message", m.ID))
	_, err := typ.Find(ctx, m.ID)
	assert.ErrorIs(t, err, entity.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "Message", m.ID), entity.ErrNotFound)

	assert.ErrorIs(t, s.Save(ctx, "User", m), entity.ErrUnknownType)
	assert.ErrorIs(t, s.Save(ctx, "Message", &message{}), entity.ErrNoID)
	assert.ErrorIs(t, s.Delete(ctx, "User", m.ID), entity.ErrUnknownType)

	_, ok := s.Type("User")
	assert.False(t, ok)
	_, ok = s.Type("Message")
	assert.True(t, ok)
}

func TestInMemoryDatabase(t *testing.T) {
	s, err := Open(Config{Path: ":memory:", PoolSize: 8})
	require.NoError(t, err)
	defer s.Close()

	typ := s.Define("Message", entity.JSONDecoder[message]())
	m := &message{ID: uuid.New(), Text: "mem"}
	require.NoError(t, s.Save(context.Background(), "Message", m))
	got, err := typ.Find(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}
