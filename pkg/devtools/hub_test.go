package devtools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/microscope/pkg/cell"
)

// fakeConn is an in-memory inspector connection.
type fakeConn struct {
	sent   chan Message
	inbox  chan Message
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		sent:   make(chan Message, 64),
		inbox:  make(chan Message, 8),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) Send(msg Message) error {
	select {
	case <-c.closed:
		return errors.New("closed")
	default:
	}
	c.sent <- msg
	return nil
}

func (c *fakeConn) Receive() (Message, error) {
	select {
	case msg := <-c.inbox:
		return msg, nil
	case <-c.closed:
		return Message{}, errors.New("closed")
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) next(t *testing.T) Message {
	t.Helper()
	select {
	case msg := <-c.sent:
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message sent")
		return Message{}
	}
}

func (c *fakeConn) assertQuiet(t *testing.T) {
	t.Helper()
	select {
	case msg := <-c.sent:
		t.Fatalf("unexpected message %+v", msg)
	case <-time.After(30 * time.Millisecond):
	}
}

func fakeConnector(conn *fakeConn, dials *int) Connector {
	return ConnectorFunc(func(context.Context) (Conn, error) {
		*dials++
		return conn, nil
	})
}

func TestMiddlewareConnectsLazilyAndReports(t *testing.T) {
	conn := newFakeConn()
	dials := 0
	hub := NewHub(fakeConnector(conn, &dials), nil)
	defer hub.Close()

	c := cell.New(1).Use(Middleware[int]("counter", WithHub(hub)))
	assert.Equal(t, 0, dials, "no connection before the first write")

	c.SetValue(2, "inc")
	c.SetValue(3, "inc")
	assert.Equal(t, 1, dials)

	init := conn.next(t)
	assert.Equal(t, TypeInit, init.Type)
	assert.Equal(t, "counter", init.Store)
	assert.JSONEq(t, "1", string(init.State))
	assert.Equal(t, hub.Instance(), init.Instance)

	first := conn.next(t)
	assert.Equal(t, TypeAction, first.Type)
	assert.Equal(t, "inc", first.Label)
	assert.JSONEq(t, "2", string(first.State))

	second := conn.next(t)
	assert.JSONEq(t, "3", string(second.State))
}

func TestVetoedWriteIsNotReported(t *testing.T) {
	conn := newFakeConn()
	dials := 0
	hub := NewHub(fakeConnector(conn, &dials), nil)
	defer hub.Close()

	veto := func(prev, next int, _ *cell.Cell[int], label string) int {
		if label == "blocked" {
			return prev
		}
		return next
	}
	c := cell.New(0).Use(Middleware[int]("c", WithHub(hub)), veto)

	c.SetValue(1, "ok")
	conn.next(t) // INIT
	conn.next(t) // ACTION ok

	c.SetValue(2, "blocked")
	conn.assertQuiet(t)
}

func TestJumpToStateIsSuppressed(t *testing.T) {
	conn := newFakeConn()
	dials := 0
	hub := NewHub(fakeConnector(conn, &dials), nil)
	defer hub.Close()

	var labels []string
	var mu sync.Mutex
	record := func(prev, next []string, _ *cell.Cell[[]string], label string) []string {
		mu.Lock()
		labels = append(labels, label)
		mu.Unlock()
		return next
	}
	c := cell.New([]string{}).Use(record, Middleware[[]string]("todos", WithHub(hub)))

	c.SetValue([]string{"a"}, "add")
	conn.next(t)
	conn.next(t)

	conn.inbox <- Message{
		Type:    TypeDispatch,
		Store:   "todos",
		Payload: &Payload{Type: JumpToState},
		State:   json.RawMessage(`["x","y"]`),
	}

	require.Eventually(t, func() bool { return len(c.Get()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"x", "y"}, c.Get())
	conn.assertQuiet(t)

	mu.Lock()
	assert.Equal(t, []string{"add", LabelTimeTravel}, labels)
	mu.Unlock()

	// later writes are reported again
	c.SetValue([]string{"z"}, "add")
	assert.Equal(t, "add", conn.next(t).Label)
}

func TestBadDispatchIsIgnored(t *testing.T) {
	conn := newFakeConn()
	dials := 0
	var buf bytes.Buffer
	var bufMu sync.Mutex
	logger := slog.New(slog.NewTextHandler(writerFunc(func(p []byte) (int, error) {
		bufMu.Lock()
		defer bufMu.Unlock()
		return buf.Write(p)
	}), nil))
	hub := NewHub(fakeConnector(conn, &dials), logger)
	defer hub.Close()

	c := cell.New(5).Use(Middleware[int]("n", WithHub(hub)))
	c.SetValue(6)

	conn.inbox <- Message{Type: TypeDispatch, Store: "n", Payload: &Payload{Type: JumpToState}, State: json.RawMessage(`"text"`)}
	conn.inbox <- Message{Type: TypeDispatch, Store: "other", Payload: &Payload{Type: JumpToState}, State: json.RawMessage(`1`)}
	conn.inbox <- Message{Type: "PING", Store: "n"}

	require.Eventually(t, func() bool {
		bufMu.Lock()
		defer bufMu.Unlock()
		return bytes.Contains(buf.Bytes(), []byte("X001"))
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 6, c.Get())
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

func TestConnectFailureDisablesHub(t *testing.T) {
	dials := 0
	hub := NewHub(ConnectorFunc(func(context.Context) (Conn, error) {
		dials++
		return nil, errors.New("connection refused")
	}), slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	c := cell.New(0).Use(Middleware[int]("c", WithHub(hub)))
	c.SetValue(1)
	c.SetValue(2)

	assert.Equal(t, 2, c.Get())
	assert.Equal(t, 1, dials)
	assert.False(t, hub.Enabled())
}

func TestDisabledHubIsPassThrough(t *testing.T) {
	hub := NewHub(nil, nil)
	c := cell.New(0).Use(Middleware[int]("c", WithHub(hub)))
	c.SetValue(1)

	assert.Equal(t, 1, c.Get())
	assert.Equal(t, 0, c.Listeners())
	assert.False(t, hub.Enabled())
}

func TestReconnectAfterDrop(t *testing.T) {
	first, second := newFakeConn(), newFakeConn()
	conns := []*fakeConn{first, second}
	dials := 0
	hub := NewHub(ConnectorFunc(func(context.Context) (Conn, error) {
		conn := conns[dials]
		dials++
		return conn, nil
	}), nil)
	defer hub.Close()

	a := cell.New(0).Use(Middleware[int]("a", WithHub(hub)))
	a.SetValue(1)
	first.next(t)
	first.Close()

	require.Eventually(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return hub.status == statusIdle
	}, time.Second, 5*time.Millisecond)

	b := cell.New("x").Use(Middleware[string]("b", WithHub(hub)))
	b.SetValue("y")

	assert.Equal(t, 2, dials)
	assert.Equal(t, "b", second.next(t).Store)
}
