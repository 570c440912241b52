package action

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/mist/internal/core/component"
	"github.com/zeusync/mist/internal/core/entity"
	"github.com/zeusync/mist/internal/core/observability/metrics"
	"github.com/zeusync/mist/internal/core/protocol"
)

type fakeStore struct{ deleted []uuid.UUID }

func (s *fakeStore) Type(string) (entity.Type, bool) { return nil, false }
func (s *fakeStore) Save(context.Context, string, entity.Entity) error {
	return nil
}

func (s *fakeStore) Delete(_ context.Context, _ string, id uuid.UUID) error {
	s.deleted = append(s.deleted, id)
	return nil
}

func setup(t *testing.T, actions ...component.Action) (*Dispatcher, *fakeStore, *prometheus.Registry) {
	t.Helper()
	reg := component.NewRegistry()
	require.True(t, reg.Register(component.New("Row", nil, component.WithActions(actions...))))
	store := &fakeStore{}
	promReg := prometheus.NewRegistry()
	return NewDispatcher(reg, store, WithMetrics(metrics.New(metrics.WithRegistry(promReg)))), store, promReg
}

func TestPerformRunsHandlerWithStore(t *testing.T) {
	del := component.NewAction("delete", func(ctx context.Context, id uuid.UUID, store entity.Store) (protocol.ActionResult, error) {
		if err := store.Delete(ctx, "M1", id); err != nil {
			return protocol.ActionResult{}, err
		}
		return protocol.Success("deleted"), nil
	})
	d, store, _ := setup(t, del)
	id := uuid.New()

	res, err := d.Perform(context.Background(), "Row", "delete", id)
	require.NoError(t, err)
	assert.Equal(t, protocol.Success("deleted"), res)
	assert.Equal(t, []uuid.UUID{id}, store.deleted)
}

func TestPerformReturnsBusinessFailureUnmodified(t *testing.T) {
	d, _, _ := setup(t, component.NewAction("buy", func(context.Context, uuid.UUID, entity.Store) (protocol.ActionResult, error) {
		return protocol.Failure("out of stock"), nil
	}))

	res, err := d.Perform(context.Background(), "Row", "buy", uuid.New())
	require.NoError(t, err)
	assert.Equal(t, protocol.Failure("out of stock"), res)
}

func TestPerformDistinguishesMissingLookups(t *testing.T) {
	d, _, _ := setup(t)

	res, err := d.Perform(context.Background(), "Row", "archive", uuid.New())
	require.NoError(t, err)
	assert.False(t, res.Succeeded())
	assert.Equal(t, "action 'archive' not found on component 'Row'", res.Message)

	res, err = d.Perform(context.Background(), "Ghost", "archive", uuid.New())
	require.NoError(t, err)
	assert.False(t, res.Succeeded())
	assert.Equal(t, "component 'Ghost' not found", res.Message)
}

func TestPerformSurfacesExecutionErrors(t *testing.T) {
	boom := errors.New("disk on fire")
	d, _, promReg := setup(t,
		component.NewAction("explode", func(context.Context, uuid.UUID, entity.Store) (protocol.ActionResult, error) {
			return protocol.ActionResult{}, boom
		}),
		component.NewAction("panic", func(context.Context, uuid.UUID, entity.Store) (protocol.ActionResult, error) {
			panic("unexpected")
		}),
	)

	_, err := d.Perform(context.Background(), "Row", "explode", uuid.New())
	assert.ErrorIs(t, err, ErrExecution)
	assert.ErrorIs(t, err, boom)

	_, err = d.Perform(context.Background(), "Row", "panic", uuid.New())
	assert.ErrorIs(t, err, ErrExecution)

	count, err := testutil.GatherAndCount(promReg, "mist_actions_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
