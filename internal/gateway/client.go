package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/clawgate/pkg/protocol"
)

const (
	writeTimeout   = 10 * time.Second
	maxFrameSize   = 512 * 1024
	connectTimeout = 15 * time.Second
)

// Client is a single WebSocket connection. Until the connect method
// succeeds, only connect itself is accepted and no events are delivered.
type Client struct {
	id     string
	conn   *websocket.Conn
	server *Server

	writeMu sync.Mutex
	authMu  sync.RWMutex
	authed  bool
}

// NewClient wraps a websocket connection.
func NewClient(conn *websocket.Conn, server *Server) *Client {
	return &Client{
		id:     uuid.Must(uuid.NewV7()).String(),
		conn:   conn,
		server: server,
	}
}

// ID returns the connection id.
func (c *Client) ID() string { return c.id }

// Authed reports whether the client has completed the connect handshake.
func (c *Client) Authed() bool {
	c.authMu.RLock()
	defer c.authMu.RUnlock()
	return c.authed
}

func (c *Client) setAuthed() {
	c.authMu.Lock()
	c.authed = true
	c.authMu.Unlock()
}

// Close closes the underlying connection.
func (c *Client) Close() {
	_ = c.conn.Close()
}

// Run reads frames until the connection drops. A client that does not
// authenticate within connectTimeout is dropped.
func (c *Client) Run(ctx context.Context) {
	c.conn.SetReadLimit(maxFrameSize)

	authTimer := time.AfterFunc(connectTimeout, func() {
		if !c.Authed() {
			slog.Warn("client auth timeout", "id", c.id)
			c.Close()
		}
	})
	defer authTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("client read error", "id", c.id, "error", err)
			}
			return
		}

		var req protocol.RequestFrame
		if err := json.Unmarshal(data, &req); err != nil {
			slog.Debug("invalid frame from client", "id", c.id, "error", err)
			continue
		}
		if req.Type != protocol.FrameRequest || req.Method == "" {
			continue
		}

		resp := c.server.router.Dispatch(ctx, c, req)
		c.SendResponse(resp)
	}
}

// SendEvent pushes an event frame. Dropped silently for clients that have
// not authenticated yet.
func (c *Client) SendEvent(event protocol.EventFrame) {
	if !c.Authed() {
		return
	}
	c.write(event)
}

// SendResponse sends a method response frame.
func (c *Client) SendResponse(resp protocol.ResponseFrame) {
	c.write(resp)
}

func (c *Client) write(v interface{}) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(v); err != nil {
		slog.Debug("client write failed", "id", c.id, "error", err)
	}
}
