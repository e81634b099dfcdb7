package storage

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/microscope/internal/logging"
)

// RelayServer rebroadcasts storage events between connected clients. Each
// event received from one client is sent to every other client.
type RelayServer struct {
	peers    map[*relayPeer]bool
	mu       sync.RWMutex
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

type relayPeer struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (p *relayPeer) send(data []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.conn.WriteMessage(websocket.TextMessage, data)
}

// NewRelayServer creates a relay server. A nil logger uses slog.Default().
func NewRelayServer(logger *slog.Logger) *RelayServer {
	return &RelayServer{
		peers: make(map[*relayPeer]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logging.OrDefault(logger),
	}
}

// ServeHTTP upgrades the connection and relays its events until it closes.
func (r *RelayServer) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Warn("relay: upgrade failed", "error", err)
		return
	}

	peer := &relayPeer{conn: conn}
	r.mu.Lock()
	r.peers[peer] = true
	r.mu.Unlock()
	r.logger.Debug("relay: client connected", "remote", req.RemoteAddr)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil || ev.Key == "" {
			r.logger.Warn("relay: dropping malformed event", "remote", req.RemoteAddr)
			continue
		}
		r.broadcast(peer, data)
	}

	r.drop(peer)
	r.logger.Debug("relay: client disconnected", "remote", req.RemoteAddr)
}

// broadcast sends data to every peer except from.
func (r *RelayServer) broadcast(from *relayPeer, data []byte) {
	r.mu.RLock()
	peers := make([]*relayPeer, 0, len(r.peers))
	for p := range r.peers {
		if p != from {
			peers = append(peers, p)
		}
	}
	r.mu.RUnlock()

	for _, p := range peers {
		if err := p.send(data); err != nil {
			r.drop(p)
		}
	}
}

func (r *RelayServer) drop(p *relayPeer) {
	r.mu.Lock()
	delete(r.peers, p)
	r.mu.Unlock()
	p.conn.Close()
}

// ClientCount returns the number of connected clients.
func (r *RelayServer) ClientCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// Close closes all client connections.
func (r *RelayServer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for p := range r.peers {
		p.conn.Close()
		delete(r.peers, p)
	}
}

// RelayClient connects a local Hub to a RelayServer. Events published on
// the hub by local writers are sent to the relay; events received from the
// relay are applied to the local store (when one is given) and published
// on the hub.
type RelayClient struct {
	conn   *websocket.Conn
	hub    *Hub
	store  Engine
	logger *slog.Logger

	writeMu sync.Mutex

	mu     sync.Mutex
	remote map[string]bool

	cancel func()
	done   chan struct{}
	once   sync.Once
}

// RelayOption configures a RelayClient.
type RelayOption func(*RelayClient)

// WithRelayLogger sets the client logger. Defaults to slog.Default().
func WithRelayLogger(l *slog.Logger) RelayOption {
	return func(c *RelayClient) {
		c.logger = l
	}
}

// DialRelay connects to the relay at url. store receives remote writes
// before they are published; pass nil when the processes already share
// the underlying storage (for example one SQLite file).
func DialRelay(ctx context.Context, url string, hub *Hub, store Engine, opts ...RelayOption) (*RelayClient, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	c := &RelayClient{
		conn:   conn,
		hub:    hub,
		store:  store,
		remote: make(map[string]bool),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrDefault(c.logger)

	c.cancel = hub.Subscribe(c.forward)
	go c.readLoop()
	return c, nil
}

// forward sends locally originated events to the relay.
func (c *RelayClient) forward(ev Event) {
	c.mu.Lock()
	fromRemote := c.remote[ev.Origin]
	c.mu.Unlock()
	if fromRemote {
		return
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return
	}

	c.writeMu.Lock()
	err = c.conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		c.logger.Warn("relay: send failed", "key", ev.Key, "error", err)
	}
}

func (c *RelayClient) readLoop() {
	defer close(c.done)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			c.logger.Warn("relay: dropping malformed event", "error", err)
			continue
		}

		c.mu.Lock()
		c.remote[ev.Origin] = true
		c.mu.Unlock()

		if err := c.apply(ev); err != nil {
			c.logger.Warn("relay: apply failed", "key", ev.Key, "error", err)
			continue
		}
		c.hub.Publish(ev)
	}
}

func (c *RelayClient) apply(ev Event) error {
	if c.store == nil {
		return nil
	}
	if ev.NewValue == nil {
		return c.store.RemoveItem(ev.Key)
	}
	return c.store.SetItem(ev.Key, *ev.NewValue)
}

// Done is closed when the connection to the relay ends.
func (c *RelayClient) Done() <-chan struct{} {
	return c.done
}

// Close disconnects from the relay. Close is idempotent.
func (c *RelayClient) Close() error {
	var err error
	c.once.Do(func() {
		c.cancel()
		c.writeMu.Lock()
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.conn.Close()
		<-c.done
	})
	return err
}
