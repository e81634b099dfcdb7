package devtools

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
)

// Connector opens a connection to an inspector.
type Connector interface {
	Connect(ctx context.Context) (Conn, error)
}

// Conn is an open inspector connection. Send may be called concurrently
// with Receive.
type Conn interface {
	Send(msg Message) error
	Receive() (Message, error)
	Close() error
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(ctx context.Context) (Conn, error)

// Connect implements Connector.
func (f ConnectorFunc) Connect(ctx context.Context) (Conn, error) {
	return f(ctx)
}

// WebsocketConnector connects to the inspector websocket at url.
func WebsocketConnector(url string) Connector {
	return ConnectorFunc(func(ctx context.Context) (Conn, error) {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			return nil, err
		}
		return &wsConn{conn: conn}, nil
	})
}

type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsConn) Send(msg Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(msg)
}

func (c *wsConn) Receive() (Message, error) {
	var msg Message
	err := c.conn.ReadJSON(&msg)
	return msg, err
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
