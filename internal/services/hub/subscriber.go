package hub

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	// ErrSendQueueFull is returned when a subscriber is not draining its queue
	ErrSendQueueFull = errors.New("subscriber send queue full")
	// ErrSubscriberClosed is returned for sends after the subscriber left
	ErrSubscriberClosed = errors.New("subscriber closed")
)

// Subscriber is one connected viewer. Outbound messages are queued and
// written by the subscriber's own write pump, the only writer of conn.
type Subscriber struct {
	ID          string
	ConnectedAt time.Time
	RemoteAddr  string

	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newSubscriber(id string, conn *websocket.Conn, queue int) *Subscriber {
	if queue <= 0 {
		queue = DefaultSendQueue
	}
	return &Subscriber{
		ID:          id,
		ConnectedAt: time.Now(),
		RemoteAddr:  conn.RemoteAddr().String(),
		conn:        conn,
		send:        make(chan []byte, queue),
		done:        make(chan struct{}),
	}
}

// Send queues one text message without blocking
func (s *Subscriber) Send(data []byte) error {
	select {
	case <-s.done:
		return ErrSubscriberClosed
	default:
	}
	select {
	case s.send <- data:
		return nil
	case <-s.done:
		return ErrSubscriberClosed
	default:
		return ErrSendQueueFull
	}
}

// SendJSON marshals v and queues it
func (s *Subscriber) SendJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Send(data)
}

func (s *Subscriber) write(data []byte, timeout time.Duration) error {
	if timeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Subscriber) ping(timeout time.Duration) error {
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(timeout))
}

func (s *Subscriber) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}
