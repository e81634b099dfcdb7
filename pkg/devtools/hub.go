package devtools

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	merr "github.com/vango-dev/microscope/internal/errors"
	"github.com/vango-dev/microscope/internal/logging"
)

// EnvURL names the inspector URL used by Default.
const EnvURL = "MICROSCOPE_DEVTOOLS_URL"

const connectTimeout = 5 * time.Second

type status int

const (
	statusIdle status = iota
	statusConnected
	statusFailed
	statusClosed
)

// receiver is a store registered with a hub.
type receiver interface {
	snapshot() (json.RawMessage, error)
	jump(state json.RawMessage) error
}

// Hub multiplexes the stores of one process over a single inspector
// connection. It connects on the first registration. A failed connection
// attempt disables the hub; a connection lost later is re-established by
// the next registration.
type Hub struct {
	connector Connector
	logger    *slog.Logger
	instance  string

	mu     sync.Mutex
	status status
	conn   Conn
	stores map[string]receiver
}

// NewHub creates a hub using connector. A nil connector disables the hub.
// A nil logger uses slog.Default().
func NewHub(connector Connector, logger *slog.Logger) *Hub {
	return &Hub{
		connector: connector,
		logger:    logging.OrDefault(logger),
		instance:  uuid.NewString(),
		stores:    make(map[string]receiver),
	}
}

var (
	defaultHub     *Hub
	defaultHubOnce sync.Once
)

// Default returns the process-wide hub, created on first use from
// $MICROSCOPE_DEVTOOLS_URL.
func Default() *Hub {
	defaultHubOnce.Do(func() {
		var connector Connector
		if url := os.Getenv(EnvURL); url != "" {
			connector = WebsocketConnector(url)
		}
		defaultHub = NewHub(connector, nil)
	})
	return defaultHub
}

// Instance returns the identifier sent with every message.
func (h *Hub) Instance() string {
	return h.instance
}

// Enabled reports whether the hub may still reach an inspector.
func (h *Hub) Enabled() bool {
	if h.connector == nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status != statusFailed && h.status != statusClosed
}

// register adds a store, connecting first if needed, and announces it.
func (h *Hub) register(name string, r receiver) {
	h.mu.Lock()
	h.stores[name] = r
	h.mu.Unlock()

	if !h.ensureConnected() {
		return
	}
	h.announce(name, r)
}

func (h *Hub) announce(name string, r receiver) {
	state, err := r.snapshot()
	if err != nil {
		h.logger.Warn("devtools: cannot encode state", "store", name, "error", err)
		return
	}
	h.send(Message{Type: TypeInit, Store: name, State: state})
}

func (h *Hub) ensureConnected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch h.status {
	case statusConnected:
		return true
	case statusFailed, statusClosed:
		return false
	}
	if h.connector == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	conn, err := h.connector.Connect(ctx)
	if err != nil {
		h.status = statusFailed
		h.logger.Warn("devtools: disabled",
			"error", merr.New(merr.CodeDevtoolsConnect).Wrap(err),
		)
		return false
	}

	h.conn = conn
	h.status = statusConnected
	go h.readLoop(conn)
	return true
}

// send delivers msg when connected and drops it otherwise.
func (h *Hub) send(msg Message) {
	h.mu.Lock()
	conn := h.conn
	connected := h.status == statusConnected
	h.mu.Unlock()
	if !connected {
		return
	}

	msg.Instance = h.instance
	if err := conn.Send(msg); err != nil {
		h.logger.Debug("devtools: send failed", "store", msg.Store, "error", err)
	}
}

func (h *Hub) readLoop(conn Conn) {
	for {
		msg, err := conn.Receive()
		if err != nil {
			h.mu.Lock()
			if h.conn == conn && h.status == statusConnected {
				h.status = statusIdle
				h.conn = nil
			}
			h.mu.Unlock()
			conn.Close()
			return
		}
		h.handle(msg)
	}
}

func (h *Hub) handle(msg Message) {
	if msg.Type != TypeDispatch || msg.Payload == nil {
		h.logger.Debug("devtools: ignoring message",
			"error", merr.New(merr.CodeDevtoolsProtocol).WithDetailf("type %q", msg.Type),
		)
		return
	}

	switch msg.Payload.Type {
	case JumpToState, JumpToAction:
	default:
		h.logger.Debug("devtools: ignoring dispatch", "payload", msg.Payload.Type)
		return
	}

	h.mu.Lock()
	r, ok := h.stores[msg.Store]
	h.mu.Unlock()
	if !ok {
		h.logger.Debug("devtools: dispatch for unknown store", "store", msg.Store)
		return
	}

	if err := r.jump(msg.State); err != nil {
		h.logger.Warn("devtools: cannot apply state",
			"store", msg.Store,
			"error", merr.New(merr.CodeDecode).Wrap(err),
		)
	}
}

// Close disconnects and disables the hub.
func (h *Hub) Close() error {
	h.mu.Lock()
	conn := h.conn
	h.conn = nil
	h.status = statusClosed
	h.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}
