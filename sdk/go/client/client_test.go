package client

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSendBeforeConnect(t *testing.T) {
	c := NewClient(DefaultClientConfig())
	assert.ErrorIs(t, c.Subscribe(context.Background(), "Row"), ErrNotConnected)
	assert.ErrorIs(t, c.Action(context.Background(), "Row", uuid.New(), "delete"), ErrNotConnected)
	assert.False(t, c.IsConnected())
}

func TestUnknownTransport(t *testing.T) {
	c := NewClient(Config{ServerAddr: "localhost:1", Transport: "carrier-pigeon"})
	assert.ErrorIs(t, c.Connect(context.Background()), ErrInvalidConfig)
	assert.False(t, c.IsConnected())
}

func TestCloseTwice(t *testing.T) {
	c := NewClient(DefaultClientConfig())
	assert.NoError(t, c.Close())
	assert.ErrorIs(t, c.Close(), ErrClientClosed)
	assert.ErrorIs(t, c.Connect(context.Background()), ErrClientClosed)

	_, open := <-c.Messages()
	assert.False(t, open)
}
