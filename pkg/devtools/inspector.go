package devtools

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/microscope/internal/logging"
	"github.com/vango-dev/microscope/pkg/middleware"
)

// DefaultHistoryLimit bounds the history kept per store.
const DefaultHistoryLimit = 100

// HistoryEntry is one reported write.
type HistoryEntry struct {
	Label string          `json:"label"`
	State json.RawMessage `json:"state"`
	At    time.Time       `json:"at"`
}

// StoreInfo describes a store known to the inspector.
type StoreInfo struct {
	Name      string          `json:"name"`
	Instance  string          `json:"instance"`
	Label     string          `json:"label,omitempty"`
	State     json.RawMessage `json:"state,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
	Connected bool            `json:"connected"`
	History   []HistoryEntry  `json:"history,omitempty"`
}

type inspectorClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *inspectorClient) send(msg Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(msg)
}

type storeRecord struct {
	info   StoreInfo
	client *inspectorClient
}

// Inspector is the devtools server. Processes connect to /ws; the HTTP
// API lists stores and pushes states back:
//
//	GET  /stores               list stores (without history)
//	GET  /stores/{name}        one store with its history
//	POST /stores/{name}/jump   {"state": ...} or {"index": n}
//	GET  /metrics              Prometheus metrics
type Inspector struct {
	router   chi.Router
	upgrader websocket.Upgrader
	logger   *slog.Logger
	limit    int

	mu     sync.RWMutex
	stores map[string]*storeRecord
}

// InspectorOption configures an Inspector.
type InspectorOption func(*Inspector)

// WithHistoryLimit sets the history kept per store.
func WithHistoryLimit(n int) InspectorOption {
	return func(i *Inspector) {
		if n > 0 {
			i.limit = n
		}
	}
}

// WithInspectorLogger sets the logger. Defaults to slog.Default().
func WithInspectorLogger(l *slog.Logger) InspectorOption {
	return func(i *Inspector) {
		i.logger = l
	}
}

// NewInspector creates an inspector server.
func NewInspector(opts ...InspectorOption) *Inspector {
	i := &Inspector{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		limit:  DefaultHistoryLimit,
		stores: make(map[string]*storeRecord),
	}
	for _, opt := range opts {
		opt(i)
	}
	i.logger = logging.OrDefault(i.logger)

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Get("/ws", i.handleWebSocket)
	r.Get("/stores", i.handleList)
	r.Get("/stores/{name}", i.handleGet)
	r.Post("/stores/{name}/jump", i.handleJump)
	r.Handle("/metrics", promhttp.Handler())
	i.router = r
	return i
}

// ServeHTTP implements http.Handler.
func (i *Inspector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	i.router.ServeHTTP(w, r)
}

// Stores returns a snapshot of every known store, sorted by name.
func (i *Inspector) Stores() []StoreInfo {
	i.mu.RLock()
	defer i.mu.RUnlock()

	out := make([]StoreInfo, 0, len(i.stores))
	for _, rec := range i.stores {
		info := rec.info
		info.History = nil
		out = append(out, info)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

// Store returns one store with its history.
func (i *Inspector) Store(name string) (StoreInfo, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	rec, ok := i.stores[name]
	if !ok {
		return StoreInfo{}, false
	}
	info := rec.info
	info.History = append([]HistoryEntry(nil), rec.info.History...)
	return info, true
}

func (i *Inspector) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := i.upgrader.Upgrade(w, r, nil)
	if err != nil {
		i.logger.Warn("inspector: upgrade failed", "error", err)
		return
	}

	client := &inspectorClient{conn: conn}
	middleware.RecordInspectorConnect()
	i.logger.Info("inspector: client connected", "remote", r.RemoteAddr)

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		i.record(client, msg)
	}

	i.disconnect(client)
	middleware.RecordInspectorDisconnect()
	conn.Close()
	i.logger.Info("inspector: client disconnected", "remote", r.RemoteAddr)
}

func (i *Inspector) record(client *inspectorClient, msg Message) {
	if msg.Store == "" || (msg.Type != TypeInit && msg.Type != TypeAction) {
		i.logger.Debug("inspector: ignoring message", "type", msg.Type)
		return
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	rec, ok := i.stores[msg.Store]
	if !ok || msg.Type == TypeInit {
		rec = &storeRecord{info: StoreInfo{Name: msg.Store}}
		i.stores[msg.Store] = rec
	}

	now := time.Now()
	label := msg.Label
	if msg.Type == TypeInit {
		label = "@@INIT"
	}

	rec.client = client
	rec.info.Instance = msg.Instance
	rec.info.Label = label
	rec.info.State = msg.State
	rec.info.UpdatedAt = now
	rec.info.Connected = true
	rec.info.History = append(rec.info.History, HistoryEntry{Label: label, State: msg.State, At: now})
	if over := len(rec.info.History) - i.limit; over > 0 {
		rec.info.History = rec.info.History[over:]
	}
}

func (i *Inspector) disconnect(client *inspectorClient) {
	i.mu.Lock()
	defer i.mu.Unlock()

	for _, rec := range i.stores {
		if rec.client == client {
			rec.client = nil
			rec.info.Connected = false
		}
	}
}

func (i *Inspector) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, i.Stores())
}

func (i *Inspector) handleGet(w http.ResponseWriter, r *http.Request) {
	info, ok := i.Store(chi.URLParam(r, "name"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown store")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

type jumpRequest struct {
	State json.RawMessage `json:"state"`
	Index *int            `json:"index"`
}

func (i *Inspector) handleJump(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req jumpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}

	i.mu.RLock()
	rec, ok := i.stores[name]
	var client *inspectorClient
	var msg Message
	if ok {
		client = rec.client
		msg = Message{Type: TypeDispatch, Store: name, Payload: &Payload{Type: JumpToState}, State: req.State}
		if req.Index != nil {
			if *req.Index < 0 || *req.Index >= len(rec.info.History) {
				i.mu.RUnlock()
				writeError(w, http.StatusBadRequest, "history index out of range")
				return
			}
			msg.Payload = &Payload{Type: JumpToAction, Index: *req.Index}
			msg.State = rec.info.History[*req.Index].State
		}
	}
	i.mu.RUnlock()

	switch {
	case !ok:
		writeError(w, http.StatusNotFound, "unknown store")
		return
	case client == nil:
		writeError(w, http.StatusConflict, "store is not connected")
		return
	case len(msg.State) == 0:
		writeError(w, http.StatusBadRequest, "state or index required")
		return
	}

	if err := client.send(msg); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
