package hub

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type echoHandler struct {
	mu   sync.Mutex
	seen []string
}

func (e *echoHandler) HandleCommand(ctx context.Context, sub *Subscriber, data []byte) {
	e.mu.Lock()
	e.seen = append(e.seen, string(data))
	e.mu.Unlock()
	_ = sub.SendJSON(map[string]string{"type": "status", "message": "ack"})
}

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	h := NewHub(Config{
		WriteTimeout: time.Second,
		PingInterval: time.Hour,
		PongTimeout:  time.Minute,
		ReadLimit:    1 << 16,
	}, zerolog.Nop())
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return h, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitCount(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.Count() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("subscriber count = %d, want %d", h.Count(), want)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var out map[string]interface{}
	if err := conn.ReadJSON(&out); err != nil {
		t.Fatalf("read: %v", err)
	}
	return out
}

func TestBroadcastReachesAllSubscribers(t *testing.T) {
	h, srv := newTestHub(t)
	a := dial(t, srv)
	b := dial(t, srv)
	waitCount(t, h, 2)

	h.Broadcast(map[string]interface{}{"type": "frame", "camera_id": 1})

	for _, c := range []*websocket.Conn{a, b} {
		msg := readJSON(t, c)
		if msg["type"] != "frame" || msg["camera_id"].(float64) != 1 {
			t.Errorf("msg = %v", msg)
		}
	}
	waitFor(t, func() bool { return h.Stats().MessagesSent == 2 })
	if st := h.Stats(); st.Subscribers != 2 {
		t.Errorf("stats = %+v", st)
	}
}

func TestFailedSubscriberIsDroppedOthersContinue(t *testing.T) {
	h, srv := newTestHub(t)
	a := dial(t, srv)
	b := dial(t, srv)
	waitCount(t, h, 2)

	// break one subscriber server-side; it is dropped by whichever of the
	// read loop or the next broadcast notices first
	for _, sub := range h.snapshot() {
		sub.conn.Close()
		break
	}

	h.Broadcast(map[string]string{"type": "status", "message": "hello"})
	waitCount(t, h, 1)

	// exactly one of the clients is still served
	h.Broadcast(map[string]string{"type": "status", "message": "again"})
	received := 0
	for _, c := range []*websocket.Conn{a, b} {
		_ = c.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
		for {
			var m map[string]string
			if err := c.ReadJSON(&m); err != nil {
				break
			}
			if m["message"] == "again" {
				received++
				break
			}
		}
	}
	if received != 1 {
		t.Errorf("surviving subscribers received = %d, want 1", received)
	}
}

func TestOnEmptyFiresWhenLastSubscriberLeaves(t *testing.T) {
	h, srv := newTestHub(t)
	fired := make(chan struct{}, 4)
	h.OnEmpty(func() { fired <- struct{}{} })

	a := dial(t, srv)
	b := dial(t, srv)
	waitCount(t, h, 2)

	a.Close()
	waitCount(t, h, 1)
	select {
	case <-fired:
		t.Fatal("OnEmpty fired with a subscriber still connected")
	case <-time.After(50 * time.Millisecond):
	}

	b.Close()
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("OnEmpty did not fire")
	}
}

func TestCommandsReachHandler(t *testing.T) {
	h, srv := newTestHub(t)
	handler := &echoHandler{}
	h.SetHandler(handler)

	c := dial(t, srv)
	if err := c.WriteMessage(websocket.TextMessage, []byte(`{"command":"init"}`)); err != nil {
		t.Fatal(err)
	}
	msg := readJSON(t, c)
	if msg["message"] != "ack" {
		t.Errorf("reply = %v", msg)
	}

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if len(handler.seen) != 1 || handler.seen[0] != `{"command":"init"}` {
		t.Errorf("seen = %v", handler.seen)
	}
}

func TestBroadcastMarshalError(t *testing.T) {
	h, srv := newTestHub(t)
	c := dial(t, srv)
	waitCount(t, h, 1)

	h.Broadcast(map[string]interface{}{"bad": make(chan int)})
	h.Broadcast(json.RawMessage(`{"type":"status"}`))

	if msg := readJSON(t, c); msg["type"] != "status" {
		t.Errorf("msg = %v", msg)
	}
}

func TestSendFailureDropsSubscriber(t *testing.T) {
	h, srv := newTestHub(t)
	c := dial(t, srv)
	c.Close()

	broken := newSubscriber("broken", c, 4)
	h.register(broken)
	go h.writePump(context.Background(), broken)

	h.Broadcast(map[string]string{"type": "status"})

	waitFor(t, func() bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		_, still := h.subs["broken"]
		return !still
	})
	if h.Stats().SendFailures == 0 {
		t.Error("send failure not counted")
	}
	if err := broken.Send([]byte("late")); !errors.Is(err, ErrSubscriberClosed) {
		t.Errorf("Send after removal = %v, want ErrSubscriberClosed", err)
	}
}

// A viewer that never reads must not stall the cameras producing frames.
func TestStalledSubscriberDoesNotBlockBroadcast(t *testing.T) {
	h := NewHub(Config{
		WriteTimeout: time.Second,
		PingInterval: time.Hour,
		PongTimeout:  time.Minute,
		SendQueue:    4,
	}, zerolog.Nop())
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	fast := dial(t, srv)
	_ = dial(t, srv) // never reads
	waitCount(t, h, 2)

	go func() {
		for {
			if _, _, err := fast.ReadMessage(); err != nil {
				return
			}
		}
	}()

	payload := make([]byte, 256*1024)
	for i := range payload {
		payload[i] = 'x'
	}

	var wg sync.WaitGroup
	stalls := make([]time.Duration, 2)
	for cam := 0; cam < 2; cam++ {
		wg.Add(1)
		go func(cam int) {
			defer wg.Done()
			for i := 0; i < 40; i++ {
				start := time.Now()
				h.BroadcastRaw(payload)
				if d := time.Since(start); d > stalls[cam] {
					stalls[cam] = d
				}
			}
		}(cam)
	}
	wg.Wait()

	for cam, d := range stalls {
		if d > 100*time.Millisecond {
			t.Errorf("camera %d broadcast stalled for %v", cam, d)
		}
	}
	if h.Stats().Dropped == 0 {
		t.Error("expected frames dropped for the stalled subscriber")
	}

	// the stalled writer hits its deadline and is dropped; the reader stays
	waitCount(t, h, 1)
}

// The empty transition and its callback complete before a new viewer is
// admitted, so the callback never tears down a newer viewer's cameras.
func TestOnEmptyCompletesBeforeNextSubscriberRegisters(t *testing.T) {
	h, srv := newTestHub(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	countDuringCallback := make(chan int, 1)
	h.OnEmpty(func() {
		close(entered)
		<-release
		countDuringCallback <- h.Count()
	})

	a := dial(t, srv)
	waitCount(t, h, 1)
	a.Close()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("OnEmpty did not fire")
	}

	// a second viewer connects while the callback is still running
	_ = dial(t, srv)
	time.Sleep(50 * time.Millisecond)
	if n := h.Count(); n != 0 {
		t.Fatalf("subscriber registered during OnEmpty: count = %d", n)
	}

	close(release)
	if n := <-countDuringCallback; n != 0 {
		t.Errorf("OnEmpty ran with %d subscriber(s) connected", n)
	}
	waitCount(t, h, 1)
}
