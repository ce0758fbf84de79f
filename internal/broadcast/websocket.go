package broadcast

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrSubscriberBacklogged is returned by Send when a subscriber's outbound
// queue is full. The scheduler treats it like any other send failure and
// prunes the subscriber.
var ErrSubscriberBacklogged = errors.New("broadcast: subscriber send queue full")

// ErrSubscriberClosed is returned by Send after the subscriber is closed.
var ErrSubscriberClosed = errors.New("broadcast: subscriber closed")

const (
	// sendQueueDepth bounds how many frames a slow client may fall behind
	// before it is considered failed.
	sendQueueDepth = 8

	// writeTimeout bounds a single websocket write so a stalled peer can
	// never wedge the writer goroutine indefinitely.
	writeTimeout = 5 * time.Second
)

// WSSubscriber adapts a websocket connection to the Subscriber interface.
// Each subscriber owns a writer goroutine draining a bounded queue, so Send
// only ever blocks on a channel select and the broadcast tick never waits
// on network I/O.
type WSSubscriber struct {
	id     string
	conn   *websocket.Conn
	sendCh chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

// NewWSSubscriber wraps conn and starts its writer goroutine.
func NewWSSubscriber(conn *websocket.Conn) *WSSubscriber {
	s := &WSSubscriber{
		id:     uuid.NewString(),
		conn:   conn,
		sendCh: make(chan []byte, sendQueueDepth),
		done:   make(chan struct{}),
	}
	go s.writeLoop()
	return s
}

// ID returns the subscriber's connection ID.
func (s *WSSubscriber) ID() string { return s.id }

// Send queues payload for delivery. It fails immediately when the queue is
// full or the subscriber has been closed; it never blocks on the socket.
func (s *WSSubscriber) Send(payload []byte) error {
	select {
	case <-s.done:
		return ErrSubscriberClosed
	default:
	}
	select {
	case s.sendCh <- payload:
		return nil
	case <-s.done:
		return ErrSubscriberClosed
	default:
		return ErrSubscriberBacklogged
	}
}

// Close tears down the writer goroutine and the underlying connection.
func (s *WSSubscriber) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

func (s *WSSubscriber) writeLoop() {
	for {
		select {
		case payload := <-s.sendCh:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}
