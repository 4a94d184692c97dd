package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub("http://localhost:3000")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(w, r, "staff-1")
	}))
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string, header http.Header) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var e Event
	require.NoError(t, conn.ReadJSON(&e))
	return e
}

func TestHubBroadcast(t *testing.T) {
	hub, url := startHub(t)

	first := dial(t, url, nil)
	second := dial(t, url, http.Header{"Origin": []string{"http://localhost:3000"}})
	assert.Equal(t, EventConnection, readEvent(t, first).Type)
	assert.Equal(t, EventConnection, readEvent(t, second).Type)
	require.Eventually(t, func() bool { return hub.Count() == 2 }, time.Second, 5*time.Millisecond)

	hub.Broadcast(NewEvent(EventMessageCreated, map[string]string{"folio": "MSG-000001-001"}))
	for _, conn := range []*websocket.Conn{first, second} {
		e := readEvent(t, conn)
		assert.Equal(t, EventMessageCreated, e.Type)
		assert.Equal(t, map[string]interface{}{"folio": "MSG-000001-001"}, e.Data)
	}

	require.NoError(t, first.WriteJSON(map[string]string{"type": "ping"}))
	assert.Equal(t, EventPong, readEvent(t, first).Type)

	first.Close()
	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestHubRejectsForeignOrigin(t *testing.T) {
	hub, url := startHub(t)

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://evil.example.com"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Zero(t, hub.Count())
}

func TestSameOrigin(t *testing.T) {
	assert.True(t, sameOrigin("http://LOCALHOST:3000", "http://localhost:3000/"))
	assert.False(t, sameOrigin("https://localhost:3000", "http://localhost:3000"))
	assert.False(t, sameOrigin("http://localhost:3001", "http://localhost:3000"))
}
