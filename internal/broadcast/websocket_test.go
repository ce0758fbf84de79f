package broadcast

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dialTestSubscriber spins up a one-shot websocket server, dials it, and
// returns the server-side subscriber plus the client connection.
func dialTestSubscriber(t *testing.T) (*WSSubscriber, *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	subCh := make(chan *WSSubscriber, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		subCh <- NewWSSubscriber(conn)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	select {
	case sub := <-subCh:
		t.Cleanup(sub.Close)
		return sub, client
	case <-time.After(5 * time.Second):
		t.Fatal("server never produced a subscriber")
		return nil, nil
	}
}

func TestWSSubscriber_SendDeliversToClient(t *testing.T) {
	sub, client := dialTestSubscriber(t)

	require.NoError(t, sub.Send([]byte(`{"timestamp":1}`)))

	client.SetReadDeadline(time.Now().Add(5 * time.Second))
	msgType, payload, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, msgType)
	assert.JSONEq(t, `{"timestamp":1}`, string(payload))
}

func TestWSSubscriber_SendAfterCloseFails(t *testing.T) {
	sub, _ := dialTestSubscriber(t)

	sub.Close()
	err := sub.Send([]byte("late"))
	assert.ErrorIs(t, err, ErrSubscriberClosed)
}

func TestWSSubscriber_CloseIsIdempotent(t *testing.T) {
	sub, _ := dialTestSubscriber(t)
	assert.NotPanics(t, func() {
		sub.Close()
		sub.Close()
	})
}

func TestWSSubscriber_SendFailsWhenQueueFull(t *testing.T) {
	// No writer goroutine draining the queue, so fills are deterministic.
	sub := &WSSubscriber{
		id:     "stalled",
		sendCh: make(chan []byte, 1),
		done:   make(chan struct{}),
	}
	require.NoError(t, sub.Send([]byte("first")))
	assert.ErrorIs(t, sub.Send([]byte("second")), ErrSubscriberBacklogged)
}

func TestWSSubscriber_IDsAreUnique(t *testing.T) {
	a, _ := dialTestSubscriber(t)
	b, _ := dialTestSubscriber(t)
	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
}
