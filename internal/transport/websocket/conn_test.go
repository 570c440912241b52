package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/mist/internal/transport"
)

func TestEchoOverUpgrade(t *testing.T) {
	up := NewUpgrader(Options{ReadLimit: 1024})
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := up.Upgrade(w, r)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			frame, err := c.Receive(r.Context())
			if err != nil {
				return
			}
			if err = c.Send(frame); err != nil {
				return
			}
		}
	}))
	defer s.Close()

	ctx := context.Background()
	c, err := Dial(ctx, "ws"+strings.TrimPrefix(s.URL, "http"), Options{})
	require.NoError(t, err)

	require.NoError(t, c.Send([]byte(`{"text":{"message":"ping"}}`)))
	frame, err := c.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"text":{"message":"ping"}}`, string(frame))
	assert.NotEmpty(t, c.RemoteAddr())

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Send([]byte("x")), transport.ErrClosed)
	_, err = c.Receive(ctx)
	assert.ErrorIs(t, err, transport.ErrClosed)
}

func TestReadLimit(t *testing.T) {
	up := NewUpgrader(Options{ReadLimit: 16})
	done := make(chan error, 1)
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := up.Upgrade(w, r)
		if err != nil {
			done <- err
			return
		}
		defer c.Close()
		_, err = c.Receive(r.Context())
		done <- err
	}))
	defer s.Close()

	c, err := Dial(context.Background(), "ws"+strings.TrimPrefix(s.URL, "http"), Options{})
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Send([]byte(strings.Repeat("x", 64))))
	assert.Error(t, <-done)
}

func TestWriteTimeoutUnblocksStalledPeer(t *testing.T) {
	up := NewUpgrader(Options{WriteTimeout: 100 * time.Millisecond})
	done := make(chan error, 1)
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := up.Upgrade(w, r)
		if err != nil {
			done <- err
			return
		}
		defer c.Close()
		frame := []byte(strings.Repeat("x", 1<<20))
		for i := 0; i < 512; i++ {
			if err = c.Send(frame); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}))
	defer s.Close()

	// The client never reads, so the server's socket buffers fill up.
	c, err := Dial(context.Background(), "ws"+strings.TrimPrefix(s.URL, "http"), Options{})
	require.NoError(t, err)
	defer c.Close()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("write to a stalled peer did not time out")
	}
}
