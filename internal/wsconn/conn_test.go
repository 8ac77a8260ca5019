package wsconn

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/affanhamid/editor/taskhub/internal/broadcast"
)

func startServer(t *testing.T, hub *broadcast.Hub, room broadcast.RoomKey, cfg Config) (string, chan *Conn) {
	t.Helper()
	conns := make(chan *Conn, 4)
	upgrader := websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := New(ws)
		conns <- c
		_ = Serve(r.Context(), hub, c, room, cfg)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http"), conns
}

func readEvent(t *testing.T, ws *websocket.Conn) broadcast.Event {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, p, err := ws.ReadMessage()
	require.NoError(t, err)
	var ev broadcast.Event
	require.NoError(t, json.Unmarshal(p, &ev))
	return ev
}

func TestServe_DeliversPublishedEvents(t *testing.T) {
	hub := broadcast.NewHub(broadcast.Options{})
	url, conns := startServer(t, hub, broadcast.ProjectRoom(1), Config{Heartbeat: time.Hour})

	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer client.Close()

	c := <-conns
	require.Eventually(t, func() bool { return c.State() == StateConnected }, time.Second, 5*time.Millisecond)
	require.Equal(t, 1, hub.Members(broadcast.ProjectRoom(1)))

	n, err := hub.Publish(context.Background(), broadcast.ProjectRoom(1), broadcast.Event{
		Type: broadcast.TypeCommentCreated,
		Data: map[string]any{"comment_id": 3},
	})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	ev := readEvent(t, client)
	require.Equal(t, broadcast.TypeCommentCreated, ev.Type)
}

func TestServe_Heartbeat(t *testing.T) {
	hub := broadcast.NewHub(broadcast.Options{})
	url, _ := startServer(t, hub, broadcast.UserRoom(2), Config{Heartbeat: 20 * time.Millisecond})

	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer client.Close()

	ev := readEvent(t, client)
	require.Equal(t, broadcast.TypeHeartbeat, ev.Type)
}

func TestServe_ClientCloseLeavesRooms(t *testing.T) {
	hub := broadcast.NewHub(broadcast.Options{})
	url, conns := startServer(t, hub, broadcast.ProjectRoom(5), Config{Heartbeat: time.Hour})

	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	c := <-conns
	require.Eventually(t, func() bool { return hub.Members(broadcast.ProjectRoom(5)) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, client.Close())
	require.Eventually(t, func() bool { return hub.Rooms() == 0 }, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, StateDisconnected, c.State())
	require.ErrorIs(t, c.Send(context.Background(), []byte("{}")), ErrClosed)
}
