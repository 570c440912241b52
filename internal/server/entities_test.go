package server

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/mist/internal/core/client"
	"github.com/zeusync/mist/internal/core/component"
	"github.com/zeusync/mist/internal/core/entity"
	"github.com/zeusync/mist/internal/core/events/bus"
	"github.com/zeusync/mist/internal/core/listener"
	"github.com/zeusync/mist/internal/core/protocol"
	"github.com/zeusync/mist/internal/core/render"
	"github.com/zeusync/mist/internal/core/storage/memory"
	"github.com/zeusync/mist/internal/transport/websocket"
)

// startWithStore runs a server whose Row component is backed by the M1
// documents of an in-memory store.
func startWithStore(t *testing.T) *Server {
	t.Helper()
	b := bus.New()
	store := memory.New(b, nil)
	m1 := store.Define("M1")

	src := render.NewSource("")
	src.Register("Row", `<div mist-id="{{.component.m1.id}}">{{.component.m1.name}}</div>`)

	components := component.NewRegistry()
	clients := client.NewRegistry(components)
	l := listener.New(components, clients, render.NewTemplateRenderer(src))
	require.True(t, components.Register(component.New("Row", []entity.Type{m1})))
	_, err := b.Subscribe("M1", l.Handle)
	require.NoError(t, err)

	cfg := testConfig()
	s := NewServer(cfg, NewHandler(clients, nil, WithWelcome(cfg.Welcome)), WithEntityStore(store))
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop(context.Background()) })
	return s
}

func request(t *testing.T, method, url, body string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func TestEntityPutBroadcastsUpdate(t *testing.T) {
	s := startWithStore(t)
	base := "http://" + s.Addr().String() + EntityPath

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := websocket.Dial(ctx, "ws://"+s.Addr().String()+"/mist/ws", websocket.Options{})
	require.NoError(t, err)
	defer conn.Close()

	assert.JSONEq(t, text("Server Welcome Message"), receive(t, conn))
	require.NoError(t, conn.Send([]byte(`{"subscribe":{"component":"Row"}}`)))
	assert.JSONEq(t, text("Subscribed to 'Row'"), receive(t, conn))

	id := uuid.New()
	status, _ := request(t, http.MethodPut, base+"/M1/"+id.String(), `{"name":"alpha"}`)
	require.Equal(t, http.StatusNoContent, status)

	msg, err := protocol.Decode([]byte(receive(t, conn)))
	require.NoError(t, err)
	require.NotNil(t, msg.Update)
	assert.Equal(t, "Row", msg.Update.Component)
	require.NotNil(t, msg.Update.ID)
	assert.Equal(t, id, *msg.Update.ID)
	assert.Equal(t, `<div mist-id="`+id.String()+`">alpha</div>`, msg.Update.HTML)

	status, body := request(t, http.MethodGet, base+"/M1/"+id.String(), "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"id":"`+id.String()+`","name":"alpha"}`, body)
}

func TestEntityRequestErrors(t *testing.T) {
	s := startWithStore(t)
	base := "http://" + s.Addr().String() + EntityPath
	id := uuid.New().String()

	status, _ := request(t, http.MethodPut, base+"/M1/not-a-uuid", `{}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = request(t, http.MethodPut, base+"/Ghost/"+id, `{}`)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = request(t, http.MethodPut, base+"/M1/"+id, `{"name":`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = request(t, http.MethodGet, base+"/M1/"+id, "")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = request(t, http.MethodDelete, base+"/M1/"+id, "")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = request(t, http.MethodPut, base+"/M1/"+id, `{"name":"x"}`)
	require.Equal(t, http.StatusNoContent, status)
	status, _ = request(t, http.MethodDelete, base+"/M1/"+id, "")
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = request(t, http.MethodGet, base+"/M1/"+id, "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestEntityRoutesNeedStore(t *testing.T) {
	s := startServer(t, testConfig())
	status, _ := request(t, http.MethodPut, "http://"+s.Addr().String()+EntityPath+"/M1/"+uuid.NewString(), `{}`)
	assert.Equal(t, http.StatusNotFound, status)
}
